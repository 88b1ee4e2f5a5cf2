package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"cyarchive/pkg/config"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	// Version information, set with -ldflags at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "cyarchive",
	Short: "Archive your Cyworld posts as static files",
	Long: `cyarchive signs in to Cyworld with a real browser, collects the ids of
every post on your home feed and saves each post as an HTML file with its
images, sorted into year/month folders.

Both phases are resumable. Post ids are kept in contents_ids.txt and finished
posts in downloaded_ids.txt; rerunning a command continues where the last
run stopped.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}

		switch cmd.Name() {
		case "version", "help", "show", "list":
		default:
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./cyarchive.yaml or ~/.config/cyarchive/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when a run ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logs and one line per post")

	rootCmd.SetVersionTemplate(`cyarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges the config sources with the changed flags of cmd and
// initializes the global logger
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := changedFlags(cmd)

	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case quiet:
		flags["log-level"] = "error"
	case verbose:
		flags["log-level"] = "debug"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithField("version", version).Debug("cyarchive starting")

	return cfg, nil
}

// changedFlags collects only the flags given on the command line, so that
// defaults never override the config file or environment
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	fs := cmd.Flags()

	for _, name := range []string{"output", "template", "id-file", "done-file", "account"} {
		if fs.Changed(name) {
			flags[name], _ = fs.GetString(name)
		}
	}
	for _, name := range []string{"headless", "sidecars"} {
		if fs.Changed(name) {
			flags[name], _ = fs.GetBool(name)
		}
	}
	if fs.Changed("max-pages") {
		flags["max-pages"], _ = fs.GetInt("max-pages")
	}
	if fs.Changed("page-delay") {
		flags["page-delay"], _ = fs.GetDuration("page-delay")
	}

	return flags
}

// signalContext is cancelled on SIGINT or SIGTERM; the current step finishes
// flushing before the run stops
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
