package main

import (
	"errors"
	"fmt"
	"os"

	"cyarchive/pkg/config"
	"cyarchive/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage cyarchive configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (CYARCHIVE_*, CYWORLD_EMAIL, CYWORLD_PASSWORD)
  - .env files
  - The configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = "cyarchive.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s", path)
		}

		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}

		ui.PrintSuccess("Configuration file created: " + path)
		fmt.Fprintln(ui.Output(), "\nNext steps:")
		fmt.Fprintln(ui.Output(), "1. Store your login with 'cyarchive auth login' (or set CYWORLD_EMAIL and CYWORLD_PASSWORD)")
		fmt.Fprintln(ui.Output(), "2. Run 'cyarchive config validate' to check the file")
		fmt.Fprintln(ui.Output(), "3. Start archiving with 'cyarchive run'")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return err
		}

		display := *cfg
		if display.Credentials.Password != "" {
			display.Credentials.Password = "********"
		}

		data, err := yaml.Marshal(&display)
		if err != nil {
			return fmt.Errorf("failed to format configuration: %w", err)
		}
		fmt.Fprint(ui.Output(), string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = config.FindConfigFile()
		}
		if path == "" {
			return errors.New("no configuration file found; pass one with --config")
		}

		ui.PrintInfo("Validating configuration", path)
		cfg, err := config.Load(path, nil)
		if err != nil {
			return err
		}

		if !cfg.HasCredentials() {
			ui.PrintWarning("No email/password configured; a stored account will be used")
		}
		if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
			return fmt.Errorf("cannot create output directory: %w", err)
		}

		ui.PrintSuccess("Configuration is valid")
		ui.PrintInfo("Output directory", cfg.Output.BaseDirectory)
		ui.PrintInfo("Identifier set", cfg.Crawl.IDSetFile)
		ui.PrintInfo("Completion set", cfg.Download.CompletionSetFile)
		ui.PrintInfo("Log level", cfg.Logging.Level)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(ui.Output(), "cyarchive %s (commit: %s, built: %s)\n", version, gitCommit, buildDate)
	},
}

func init() {
	rootCmd.AddCommand(configCmd, versionCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}
