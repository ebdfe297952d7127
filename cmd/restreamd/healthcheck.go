// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/platform/httpx"
)

type healthcheckOptions struct {
	mode    string
	host    string
	port    int
	timeout time.Duration
}

func newHealthcheckCmd() *cobra.Command {
	opts := healthcheckOptions{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running daemon (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runHealthcheck(cmd.Context(), opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Healthcheck successful (%s)\n", opts.mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.mode, "mode", "live", "healthcheck mode: live or ready")
	cmd.Flags().StringVar(&opts.host, "host", "127.0.0.1", "admin API host")
	cmd.Flags().IntVar(&opts.port, "port", 9090, "admin API port")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}

func runHealthcheck(ctx context.Context, opts healthcheckOptions) error {
	var path string
	switch opts.mode {
	case "live":
		path = "/healthz"
	case "ready":
		path = "/readyz"
	default:
		return fmt.Errorf("unknown healthcheck mode %q", opts.mode)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	url := fmt.Sprintf("http://%s:%d%s", opts.host, opts.port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpx.NewClient(opts.timeout).Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck failed (network): %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
	}
	return nil
}
