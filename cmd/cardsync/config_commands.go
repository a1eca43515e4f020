package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lusbox/umasparkmaker/pkg/catalog"
	"github.com/Lusbox/umasparkmaker/pkg/config"
	"github.com/Lusbox/umasparkmaker/pkg/logging"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the cardsync configuration",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration and show where sync will store its files",
		Args:  cobra.NoArgs,
		// The file being created may be the one the root would try to load.
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			cfg, _, _, err := config.Load(target)
			if err != nil {
				return fmt.Errorf("reload sample config: %w", err)
			}
			facts, err := storageFacts(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, renderFacts("Sync will use", facts))
			fmt.Fprintln(out, "Relative paths resolve against the directory you run cardsync from.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func initTarget(flagValue string) (string, error) {
	target := strings.TrimSpace(flagValue)
	if target == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(target)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the catalog it points at",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			configNote := ctx.configPath
			if _, err := os.Stat(ctx.configPath); err != nil {
				configNote += " (missing, defaults used)"
			}
			facts := [][2]string{
				{"Config", configNote},
				{"Source", cfg.Source.URL},
				{"Filter mode", cfg.FilterMode()},
			}
			storage, err := storageFacts(cfg)
			if err != nil {
				return err
			}
			facts = append(facts, storage...)

			// A catalog that sync would refuse to merge into is a config problem
			// worth reporting before the first run.
			cards, err := catalog.NewStore(cfg.Catalog.Path, logging.NewNop()).Read()
			if err != nil {
				return fmt.Errorf("catalog %s: %w", cfg.Catalog.Path, err)
			}
			facts = append(facts, [2]string{"Cards in catalog", strconv.Itoa(len(cards))})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderFacts("Configuration", facts))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// storageFacts lists the absolute locations a sync run reads and writes.
func storageFacts(cfg *config.Config) ([][2]string, error) {
	catalogPath, err := config.ExpandPath(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	imagesDir, err := config.ExpandPath(cfg.Download.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve image directory: %w", err)
	}
	history := "disabled"
	if cfg.History.Enabled {
		if history, err = config.ExpandPath(cfg.History.Path); err != nil {
			return nil, fmt.Errorf("resolve history path: %w", err)
		}
	}
	return [][2]string{
		{"Catalog", catalogPath},
		{"Images", imagesDir},
		{"History", history},
	}, nil
}
