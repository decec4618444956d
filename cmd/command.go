// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/szhorvath/s3plus/pkg/debug"
	"github.com/szhorvath/s3plus/pkg/logger"
	"github.com/szhorvath/s3plus/pkg/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var debugServer *debug.Server

var rootCmd = &cobra.Command{
	Use:   "s3plus",
	Short: "S3Plus - version-aware object lifecycle for S3",
	Long: `S3Plus manages objects in versioned S3 buckets.
It lists an object's full history of versions and delete markers,
reads pinned versions, deletes softly or permanently and restores
old versions by copying them back on top of the key.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&utils.ConfigurationFileDirectory, "config_dir", ".", "Directory for configuration files")
	rootCmd.PersistentFlags().String("disk", "", "Name of the disk to use (default: the 'disk' config key, or the only disk configured)")
	rootCmd.PersistentFlags().String("log_level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("debug_addr", "", "Serve /metrics and pprof on this address while the command runs")

	// Ad-hoc overrides for the selected disk
	rootCmd.PersistentFlags().String("bucket", "", "Override the disk bucket")
	rootCmd.PersistentFlags().String("root", "", "Override the disk root prefix")
	rootCmd.PersistentFlags().String("endpoint", "", "Override the disk endpoint")
	rootCmd.PersistentFlags().String("region", "", "Override the disk region")
	rootCmd.PersistentFlags().Bool("throw", false, "Propagate store failures instead of suppressing them")
	rootCmd.PersistentFlags().Int("delete_concurrency", 0, "Override how many deletes run at once")
}

// loadConfig reads s3plus.{yaml,json,toml} and applies the log level
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := utils.LoadConfiguration("s3plus", false); err != nil {
		return err
	}

	flags := NewFlagLoader(cmd)
	if level := flags.String("log_level"); level != "" {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(lvl)
	}

	if addr := flags.String("debug_addr"); addr != "" && debugServer == nil {
		s, err := debug.Start(addr)
		if err != nil {
			return fmt.Errorf("start debug server: %w", err)
		}
		debugServer = s
	}
	return nil
}

func stopDebugServer() {
	if debugServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := debugServer.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("debug server shutdown")
	}
	debugServer = nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	stopDebugServer()
	closeManager()
	if err != nil {
		os.Exit(1)
	}
}
