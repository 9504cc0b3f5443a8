// internal/viewer/scripted_session.go
package viewer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/docnav/internal/config"
	"github.com/valpere/docnav/internal/navigator"
)

// ScriptedSession pairs a resolver with an SDK build hosted in goja
type ScriptedSession struct {
	id       string
	path     string
	opened   time.Time
	handle   *ScriptedHandle
	resolver *navigator.Resolver
}

var _ Session = (*ScriptedSession)(nil)

// OpenScriptedSession loads the SDK build at path. The resolver is created
// before the script runs so signals raised during loading are observed.
func OpenScriptedSession(ctx context.Context, cfg *config.Config, path string, deps SessionDeps) (*ScriptedSession, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	id := uuid.NewString()
	logger := deps.Logger.With(zap.String("session", id))

	opts, err := NavigatorOptions(cfg, logger, deps.Recorder)
	if err != nil {
		return nil, err
	}
	if deps.OnResult != nil {
		opts.OnResult = func(r navigator.Result) { deps.OnResult(id, r) }
	}
	resolver := navigator.New(opts)

	handle, err := LoadScriptFile(ctx, path, ScriptedOptions{
		APIExpression: cfg.Browser.APIExpression,
		Sink:          resolver,
		Logger:        logger,
	})
	if err != nil {
		resolver.Close()
		return nil, err
	}

	return &ScriptedSession{
		id:       id,
		path:     path,
		opened:   time.Now(),
		handle:   handle,
		resolver: resolver,
	}, nil
}

// ID returns the session identifier
func (s *ScriptedSession) ID() string { return s.id }

// URL returns the script path
func (s *ScriptedSession) URL() string { return s.path }

// OpenedAt returns when the session was opened
func (s *ScriptedSession) OpenedAt() time.Time { return s.opened }

// Resolver returns the session's resolver
func (s *ScriptedSession) Resolver() *navigator.Resolver { return s.resolver }

// Handle exposes the hosted SDK
func (s *ScriptedSession) Handle() *ScriptedHandle { return s.handle }

// Close stops the resolver and releases the runtime
func (s *ScriptedSession) Close() error {
	s.resolver.Close()
	return s.handle.Close()
}
