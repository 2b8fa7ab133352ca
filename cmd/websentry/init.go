package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/websentry/websentry/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new websentry configuration file",
		Long: `Initialize creates a new .websentry.yaml configuration file in the
current directory.

The generated file includes:
- Default settings for crawl limits, timeouts and politeness delays
- Commented examples for proxy rotation and authenticated sessions
- Documentation for all available options

Examples:
  # Create .websentry.yaml in current directory
  websentry init

  # Create config file at a specific path
  websentry init -o myconfig.yaml

  # Force overwrite existing file
  websentry init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if _, err := os.Stat(outputPath); err == nil {
		if !force {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
		if err := os.Remove(outputPath); err != nil {
			return fmt.Errorf("failed to replace configuration file: %w", err)
		}
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := config.WriteDefault(outputPath); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure site-specific settings such as:")
	fmt.Fprintln(out, "  - Login selectors and session handling")
	fmt.Fprintln(out, "  - Proxy rotation and fingerprinting")
	fmt.Fprintln(out, "  - Crawl limits, timeouts and politeness delays")

	return nil
}
