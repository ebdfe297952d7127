// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command restreamd is the control plane of the nginx-rtmp restream appliance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/config"
	"github.com/BharathVasireddy/redstudio-nginx-rtmp/internal/version"
)

const (
	serviceName = "restreamd"
	envConfig   = "RESTREAM_CONFIG"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "nginx-rtmp restream control plane",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.String(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv(envConfig), "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(
		newServeCmd(opts),
		newHealthcheckCmd(),
		newConfigCmd(opts),
		newAuditCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig applies the dotenv file and returns the loader with its first
// snapshot.
func loadConfig(opts *rootOptions) (*config.Loader, config.AppConfig, error) {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return nil, config.AppConfig{}, err
	}
	loader := config.NewLoader(opts.configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, config.AppConfig{}, err
	}
	return loader, cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
