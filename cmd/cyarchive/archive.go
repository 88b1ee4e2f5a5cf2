package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"cyarchive/internal/downloader"
	"cyarchive/pkg/auth"
	"cyarchive/pkg/config"
	"cyarchive/pkg/cyworld"
	"cyarchive/pkg/logger"
	"cyarchive/pkg/scraper"
	"cyarchive/pkg/ui"

	"github.com/spf13/cobra"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Collect the ids of every post on your home feed",
	Long: `Log in, open your home feed and keep pressing "load more" until the feed
ends, appending every new post id to the identifier set.`,
	Example: `  # Collect ids only, two pages at a time
  cyarchive crawl --max-pages 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScraper(cmd, func(s *scraper.Scraper, creds cyworld.Credentials) error {
			ctx, cancel := signalContext()
			defer cancel()

			if _, err := s.Login(ctx, creds); err != nil {
				return err
			}
			_, err := s.Crawl(ctx)
			return err
		})
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Archive every collected post that is not downloaded yet",
	Long: `Log in and archive every post in the identifier set that is missing from
the completion set. Posts whose page does not render are retried with a
growing delay; posts that turn out to be deleted are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScraper(cmd, func(s *scraper.Scraper, creds cyworld.Credentials) error {
			ctx, cancel := signalContext()
			defer cancel()

			if _, err := s.Login(ctx, creds); err != nil {
				return err
			}
			summary, err := s.Download(ctx)
			printSummary(summary)
			return err
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl the feed, then archive every new post",
	Example: `  # Full archive into ./archive
  cyarchive run

  # Headless, into another directory
  cyarchive run --headless --output ~/cyworld`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withScraper(cmd, func(s *scraper.Scraper, creds cyworld.Credentials) error {
			ctx, cancel := signalContext()
			defer cancel()

			summary, err := s.Run(ctx, creds)
			printSummary(summary)
			return err
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the archive against the completion set",
	Long: `Walk the output directory and compare the metadata sidecars with the
completion set. No browser is started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		s, err := scraper.New(cfg, scraper.Deps{})
		if err != nil {
			return err
		}
		defer s.Close()

		report, err := s.Verify()
		if err != nil {
			return err
		}

		ui.PrintInfo("Completed", fmt.Sprintf("%d", report.Completed))
		ui.PrintInfo("Archived", fmt.Sprintf("%d", report.Archived))
		ui.PrintInfo("Pending", fmt.Sprintf("%d", report.Pending))
		if len(report.Unarchived) > 0 {
			ui.PrintWarning(fmt.Sprintf("%d completed posts have no files (deleted on the site, or sidecars disabled)", len(report.Unarchived)))
			if verbose {
				for _, id := range report.Unarchived {
					fmt.Fprintf(ui.Output(), "  - %s\n", id)
				}
			}
		}
		for _, id := range report.Orphaned {
			ui.PrintWarning("Archived but not in completion set", id)
		}
		for _, path := range report.Broken {
			ui.PrintError("Broken sidecar", path)
		}

		if !report.OK() {
			return errors.New("archive does not match the completion set")
		}
		ui.PrintSuccess("Archive is consistent")
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{crawlCmd, downloadCmd, runCmd, verifyCmd} {
		rootCmd.AddCommand(cmd)
		cmd.Flags().StringP("output", "o", "", "archive directory (default ./archive)")
		cmd.Flags().String("id-file", "", "identifier set file (default contents_ids.txt)")
		cmd.Flags().String("done-file", "", "completion set file (default downloaded_ids.txt)")
	}

	for _, cmd := range []*cobra.Command{crawlCmd, downloadCmd, runCmd} {
		cmd.Flags().StringP("account", "a", "", "use a specific stored account")
		cmd.Flags().Bool("headless", false, "run the browser without a window")
	}

	for _, cmd := range []*cobra.Command{crawlCmd, runCmd} {
		cmd.Flags().Int("max-pages", 0, "stop after this many feed pages (0 = no limit)")
		cmd.Flags().Duration("page-delay", 5*time.Second, "pause before each load-more click")
	}

	for _, cmd := range []*cobra.Command{downloadCmd, runCmd} {
		cmd.Flags().String("template", "", "HTML template with {title}, {timestamp}, {privacy} and {content}")
		cmd.Flags().Bool("sidecars", true, "write a metadata JSON next to every post")
	}
}

// withScraper loads the config, resolves credentials and hands a scraper to fn
func withScraper(cmd *cobra.Command, fn func(*scraper.Scraper, cyworld.Credentials) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	creds, err := resolveCredentials(cfg)
	if err != nil {
		return err
	}

	deps := scraper.Deps{}
	if notifications {
		deps.Notifier = ui.NewNotifier()
	}
	s, err := scraper.New(cfg, deps)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Failed to shut down cleanly")
		}
	}()

	return fn(s, creds)
}

// resolveCredentials prefers an explicit email/password from the config or
// environment, then a stored account
func resolveCredentials(cfg *config.Config) (cyworld.Credentials, error) {
	if cfg.HasCredentials() {
		logger.Debug("Using credentials from configuration")
		return cyworld.Credentials{Email: cfg.Credentials.Email, Password: cfg.Credentials.Password}, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return cyworld.Credentials{}, fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	if cfg.Credentials.Account != "" {
		account, err = manager.Retrieve(cfg.Credentials.Account)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			auth.ShowCredentialGuide(os.Stderr)
		}
		return cyworld.Credentials{}, err
	}

	logger.WithField("account", account.Username).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Username)
	return cyworld.Credentials{Email: account.Email, Password: account.Password}, nil
}

func printSummary(summary downloader.Summary) {
	if summary.Processed() == 0 && summary.AlreadyComplete > 0 {
		ui.PrintSuccess(fmt.Sprintf("Nothing to do, all %d posts are archived", summary.AlreadyComplete))
	}
}
