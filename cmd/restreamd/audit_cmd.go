// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/audit"
)

var errAuditDisabled = errors.New("audit trail disabled (set audit.db or AUDIT_DB)")

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent audit events as JSON lines, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if cfg.Audit.DB == "" {
				return errAuditDisabled
			}
			sink, err := audit.OpenSQLiteSink(cmd.Context(), cfg.Audit.DB)
			if err != nil {
				return err
			}
			defer func() { _ = sink.Close() }()

			events, err := sink.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, ev := range events {
				if err := enc.Encode(ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of events to print")
	return cmd
}
