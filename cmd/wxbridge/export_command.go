// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/ManuGH/wxbridge/internal/backend"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		format  string
		output  string
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Save the backend's download history to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cfg.Backend.BaseURL
			}
			if baseURL == "" && len(cfg.Bridge.Ports) > 0 {
				baseURL = fmt.Sprintf("http://%s:%d", cfg.Bridge.Host, cfg.Bridge.Ports[0])
			}
			if output == "" {
				output = fmt.Sprintf("downloads_%s.%s", time.Now().Format("20060102_150405"), format)
			}

			client := backend.NewClient(backend.Options{
				BaseURL:    baseURL,
				LocalToken: cfg.Backend.LocalToken,
				Timeout:    timeout,
			})

			out, err := renameio.NewPendingFile(filepath.Clean(output), renameio.WithPermissions(0o600))
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer func() { _ = out.Cleanup() }()

			n, err := client.ExportDownloads(cmd.Context(), format, out)
			if err != nil {
				return fmt.Errorf("export downloads: %w", err)
			}
			if err := out.CloseAtomicallyReplace(); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, output)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format (csv or json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default downloads_<timestamp>.<format>)")
	cmd.Flags().StringVar(&baseURL, "backend", "", "Backend base URL (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Request timeout")
	return cmd
}
