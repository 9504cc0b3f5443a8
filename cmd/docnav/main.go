// cmd/docnav/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/valpere/docnav/internal/config"
	"github.com/valpere/docnav/internal/errors"
	"github.com/valpere/docnav/internal/navigator"
	"github.com/valpere/docnav/internal/utils"
	"github.com/valpere/docnav/internal/viewer"
	"github.com/valpere/docnav/pkg/api"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cli carries the output streams and error service for one invocation
type cli struct {
	stdout  io.Writer
	stderr  io.Writer
	errors  *errors.Service
	verbose bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	c := &cli{stdout: stdout, stderr: stderr, errors: errors.NewService()}
	command, rest := args[0], args[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "navigate":
		err = c.navigate(ctx, rest)
	case "probe":
		err = c.probe(ctx, rest)
	case "describe":
		err = c.describe(ctx, rest)
	case "validate":
		err = c.validate(rest)
	case "template":
		err = c.template(rest)
	case "version", "--version":
		printVersion(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n", command)
		printUsage(stderr)
		return 1
	}

	if err != nil {
		if usage, ok := err.(usageError); ok {
			fmt.Fprintf(stderr, "Error: %s\n", usage.msg)
			fmt.Fprintf(stderr, "Usage: docnav %s\n", usage.usage)
			return 1
		}
		fmt.Fprint(stderr, c.errors.FormatErrorForCLI(err))
		return c.errors.GetExitCode(err)
	}
	return 0
}

type usageError struct {
	msg   string
	usage string
}

func (e usageError) Error() string { return e.msg }

// parseArgs splits one leading positional argument from the flags, so
// flags may follow it as in "docnav navigate cfg.yaml --page 3"
func parseArgs(fs *flag.FlagSet, args []string, usage string, wantPositional bool) (string, error) {
	fs.SetOutput(io.Discard)
	var positional string
	if wantPositional {
		if len(args) == 0 || strings.HasPrefix(args[0], "-") {
			return "", usageError{msg: "missing required argument", usage: usage}
		}
		positional, args = args[0], args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return "", usageError{msg: err.Error(), usage: usage}
	}
	if fs.NArg() > 0 {
		return "", usageError{msg: fmt.Sprintf("unexpected argument %q", fs.Arg(0)), usage: usage}
	}
	return positional, nil
}

func (c *cli) commonFlags(fs *flag.FlagSet) *bool {
	fs.BoolVar(&c.verbose, "v", false, "verbose output")
	fs.BoolVar(&c.verbose, "verbose", false, "verbose output")
	return fs.Bool("json", false, "print JSON")
}

func (c *cli) newLogger(cfg *config.Config) (*zap.Logger, error) {
	lc := cfg.Logging
	if c.verbose {
		lc.Level = "debug"
	}
	return utils.NewLogger(lc)
}

// navigate opens a viewer in Chrome, requests a page and waits for the result
func (c *cli) navigate(ctx context.Context, args []string) error {
	const usage = "navigate <config.yaml> --url <viewer-url> --page <index> [--wait 60s] [--json] [-v]"
	fs := flag.NewFlagSet("navigate", flag.ContinueOnError)
	viewerURL := fs.String("url", "", "viewer page URL")
	page := fs.Int("page", -1, "zero-based page index")
	wait := fs.Duration("wait", 60*time.Second, "how long to wait for the viewer and the navigation")
	asJSON := c.commonFlags(fs)

	configFile, err := parseArgs(fs, args, usage, true)
	if err != nil {
		return err
	}
	if *viewerURL == "" || *page < 0 {
		return usageError{msg: "--url and a non-negative --page are required", usage: usage}
	}
	c.errors = c.errors.WithVerbose(c.verbose)

	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	results := make(chan navigator.Result, 1)
	deps := viewer.SessionDeps{
		Logger: logger,
		OnResult: func(_ string, r navigator.Result) {
			select {
			case results <- r:
			default:
			}
		},
	}

	var session *viewer.BrowserSession
	err = c.errors.ExecuteWithRetry(ctx, func() error {
		var err error
		session, err = viewer.OpenBrowserSession(ctx, cfg, *viewerURL, deps)
		return err
	}, "opening viewer")
	if err != nil {
		return err
	}
	defer session.Close()

	if session.Resolver().NavigateToPage(*page) {
		logger.Debug("Navigation dispatched", zap.Int("page_index", *page))
	} else {
		logger.Debug("Navigation queued until the viewer is ready", zap.Int("page_index", *page))
	}

	timer := time.NewTimer(*wait)
	defer timer.Stop()
	select {
	case res := <-results:
		return c.report(res, *asJSON)
	case <-timer.C:
		report := session.Resolver().DescribeCapabilities(ctx)
		if !report.Ready {
			return errors.New(errors.KindNotReady, *page+1,
				fmt.Errorf("viewer not ready after %s (api handle: %v, ready signal: %v)",
					*wait, report.HasAPIHandle, report.HasReadySignal))
		}
		return errors.New(errors.KindVerificationTimeout, *page+1, fmt.Errorf("no result after %s", *wait))
	case <-ctx.Done():
		return ctx.Err()
	}
}

// probe runs the resolver against a scripted SDK build and prints the trace
func (c *cli) probe(ctx context.Context, args []string) error {
	const usage = "probe <sdk.js> --page <index> [--config <config.yaml>] [--json] [-v]"
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	page := fs.Int("page", 0, "zero-based page index")
	configFile := fs.String("config", "", "configuration file")
	asJSON := c.commonFlags(fs)

	script, err := parseArgs(fs, args, usage, true)
	if err != nil {
		return err
	}
	c.errors = c.errors.WithVerbose(c.verbose)

	session, err := c.openScript(ctx, script, *configFile)
	if err != nil {
		return err
	}
	defer session.Close()

	res := session.Resolver().DebugNavigate(ctx, *page)
	return c.report(res, *asJSON)
}

// describe prints the capability report of a scripted SDK build
func (c *cli) describe(ctx context.Context, args []string) error {
	const usage = "describe <sdk.js> [--config <config.yaml>] [-v]"
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	configFile := fs.String("config", "", "configuration file")
	c.commonFlags(fs)

	script, err := parseArgs(fs, args, usage, true)
	if err != nil {
		return err
	}
	c.errors = c.errors.WithVerbose(c.verbose)

	session, err := c.openScript(ctx, script, *configFile)
	if err != nil {
		return err
	}
	defer session.Close()

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(session.Resolver().DescribeCapabilities(ctx))
}

func (c *cli) openScript(ctx context.Context, script, configFile string) (*viewer.ScriptedSession, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return viewer.OpenScriptedSession(ctx, cfg, script, viewer.SessionDeps{Logger: logger})
}

func (c *cli) report(res navigator.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(api.ResultInfo(res)); err != nil {
			return err
		}
	} else {
		printResult(c.stdout, res, c.verbose)
	}
	if !res.Success {
		return res.Err
	}
	return nil
}

// validate checks a configuration file and prints its warnings
func (c *cli) validate(args []string) error {
	const usage = "validate <config.yaml> [-v]"
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	c.commonFlags(fs)

	configFile, err := parseArgs(fs, args, usage, true)
	if err != nil {
		return err
	}
	c.errors = c.errors.WithVerbose(c.verbose)

	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	for _, w := range cfg.ValidateDetailed().Warnings {
		fmt.Fprintf(c.stdout, "⚠ %s\n", w)
	}
	if c.verbose {
		fmt.Fprintf(c.stdout, "Configuration details:\n")
		fmt.Fprintf(c.stdout, "  Name: %s\n", cfg.Name)
		fmt.Fprintf(c.stdout, "  Passes: %d, polls: %d every %s\n",
			cfg.Navigation.Passes, cfg.Navigation.PollAttempts, cfg.Navigation.PollInterval)
		fmt.Fprintf(c.stdout, "  API expression: %s\n", cfg.Browser.APIExpression)
	}
	fmt.Fprintf(c.stdout, "✓ Configuration file '%s' is valid\n", configFile)
	return nil
}

// template prints a configuration template
func (c *cli) template(args []string) error {
	const usage = "template [--type basic|adobe|server]"
	fs := flag.NewFlagSet("template", flag.ContinueOnError)
	templateType := fs.String("type", "basic", "template type")
	if _, err := parseArgs(fs, args, usage, false); err != nil {
		return err
	}

	data, err := yaml.Marshal(config.GenerateTemplate(*templateType))
	if err != nil {
		return fmt.Errorf("failed to marshal template to YAML: %w", err)
	}
	_, err = c.stdout.Write(data)
	return err
}

func printResult(w io.Writer, res navigator.Result, verbose bool) {
	if res.Success {
		fmt.Fprintf(w, "✓ Page %d reached via %s (pass %d, %s)\n",
			res.TargetPage, res.Strategy, res.Pass, res.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(w, "✗ Page %d not reached after %d attempts (%s)\n",
			res.TargetPage, len(res.Attempts), res.Duration.Round(time.Millisecond))
		if res.Simulated {
			fmt.Fprintf(w, "  UI simulation was attempted; its effect cannot be verified\n")
		}
	}
	if !verbose && res.Success {
		return
	}
	for _, a := range res.Attempts {
		line := fmt.Sprintf("  pass %d  %-26s %s", a.Pass, a.Strategy, a.Outcome)
		if a.Err != nil && verbose {
			line += "  " + a.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}

// printUsage displays help information
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "docnav - adaptive page navigation for embedded PDF viewers")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  docnav navigate <config.yaml> --url <url> --page <index>   Open a viewer in Chrome and navigate")
	fmt.Fprintln(w, "  docnav probe <sdk.js> --page <index>                        Try every strategy against a scripted SDK")
	fmt.Fprintln(w, "  docnav describe <sdk.js>                                    Print the capability report of a scripted SDK")
	fmt.Fprintln(w, "  docnav validate <config.yaml>                               Validate configuration file")
	fmt.Fprintln(w, "  docnav template [--type <type>]                             Generate configuration template")
	fmt.Fprintln(w, "  docnav version                                              Show version information")
	fmt.Fprintln(w, "  docnav help                                                 Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -v, --verbose   Enable verbose output")
	fmt.Fprintln(w, "  --json          Print results as JSON (navigate, probe)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Page indexes are zero-based; reports show one-based page numbers.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Template types:")
	fmt.Fprintln(w, "  basic    Generic viewer exposing window.docnavAPI (default)")
	fmt.Fprintln(w, "  adobe    Adobe PDF Embed style viewer")
	fmt.Fprintln(w, "  server   HTTP control surface with metrics enabled")
}

// printVersion displays version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "docnav %s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}
