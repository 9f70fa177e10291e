package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/merlin/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new merlin project",
	Long: `Initialize a new merlin project in the current directory.
Creates .merlin/config.toml with the default tier, validation, execution,
and workspace settings.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration")
}

func runInit(_ *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	merlinDir := filepath.Join(cwd, ".merlin")
	configPath := filepath.Join(merlinDir, "config.toml")

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists at .merlin/config.toml, use --force to overwrite")
	}

	if err := config.AtomicWrite(configPath, []byte(config.DefaultConfigTOML)); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("Initialized merlin project in", cwd)
	fmt.Println("Configuration file: .merlin/config.toml")
	return nil
}
