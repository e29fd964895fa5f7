// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ManuGH/wxbridge/internal/config"
	xglog "github.com/ManuGH/wxbridge/internal/log"
	"github.com/ManuGH/wxbridge/internal/version"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	loader     *config.Loader
	config     config.AppConfig
	configErr  error
}

// ensureConfig loads the configuration once. Without --config it picks up
// ${WXBRIDGE_DATA_DIR}/config.yaml when that file exists.
func (c *commandContext) ensureConfig() (config.AppConfig, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		if path == "" {
			dataDir := strings.TrimSpace(config.ParseString(config.EnvDataDir, "."))
			auto := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(auto); err == nil {
				path = auto
			}
		}
		c.loader = config.NewLoader(path, version.Version)
		c.config, c.configErr = c.loader.Load()
		if c.configErr == nil {
			xglog.Configure(xglog.Config{Level: c.config.LogLevel, Version: version.Version})
		}
	})
	return c.config, c.configErr
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "wxbridge",
		Short:         "Local bridge between the host page and the download backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			xglog.Configure(xglog.Config{Level: "info", Version: version.Version})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newDecryptCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
