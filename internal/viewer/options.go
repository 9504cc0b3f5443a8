// internal/viewer/options.go
package viewer

import (
	"go.uber.org/zap"

	"github.com/valpere/docnav/internal/config"
	"github.com/valpere/docnav/internal/navigator"
)

// NavigatorOptions converts the navigation section of cfg into resolver
// options. Simulator and OnResult are left for the caller.
func NavigatorOptions(cfg *config.Config, logger *zap.Logger, rec navigator.Recorder) (navigator.Options, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	d, err := cfg.Durations()
	if err != nil {
		return navigator.Options{}, err
	}

	opts := navigator.DefaultOptions()
	opts.Passes = cfg.Navigation.Passes
	opts.PassPause = d.PassPause
	opts.PollAttempts = cfg.Navigation.PollAttempts
	opts.PollInterval = d.PollInterval
	opts.QueueSize = cfg.Navigation.QueueSize
	opts.Logger = logger
	opts.Recorder = rec
	return opts, nil
}
