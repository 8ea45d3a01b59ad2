package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/codeclass/internal/config"
)

const (
	defaultConfigPath = "codeclass.yaml"
	configHeader      = "# codeclass configuration. Pass with --config; flags override these values.\n"
)

// initCmd implements `codeclass init`, which writes the default
// configuration so it can be edited.
func initCmd(a *app) *cobra.Command {
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Long: `Write the default configuration to path (default ./codeclass.yaml).
An existing file is left alone unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := generateConfig(config.DefaultConfig())
			if err != nil {
				return err
			}

			if dryRun {
				_, err := fmt.Fprint(a.stdout, content)
				return err
			}

			path := defaultConfigPath
			if len(args) > 0 {
				path = args[0]
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(a.stderr, "wrote default configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the configuration without writing it")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// generateConfig renders cfg as a commented YAML document.
func generateConfig(cfg *config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return configHeader + string(data), nil
}
