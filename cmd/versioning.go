// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/szhorvath/s3plus/pkg/versioning"

	"github.com/spf13/cobra"
)

var versioningCmd = &cobra.Command{
	Use:   "versioning",
	Short: "Bucket versioning configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versioningStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the disk's bucket keeps versions",
	Args:  cobra.NoArgs,
	RunE:  runVersioningStatus,
}

var versioningEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn on versioning for the disk's bucket",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setVersioning(cmd, versioning.VersioningEnabled)
	},
}

var versioningSuspendCmd = &cobra.Command{
	Use:   "suspend",
	Short: "Stop creating new versions; existing history is kept",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setVersioning(cmd, versioning.VersioningSuspended)
	},
}

func init() {
	rootCmd.AddCommand(versioningCmd)
	versioningCmd.AddCommand(versioningStatusCmd)
	versioningCmd.AddCommand(versioningEnableCmd)
	versioningCmd.AddCommand(versioningSuspendCmd)
}

func runVersioningStatus(cmd *cobra.Command, args []string) error {
	ctrl, err := controllerFor(cmd)
	if err != nil {
		return err
	}

	status, err := ctrl.VersioningStatus(cmd.Context())
	if err != nil {
		return err
	}
	if status == versioning.VersioningDisabled {
		status = "Disabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ctrl.Bucket(), status)
	return nil
}

func setVersioning(cmd *cobra.Command, status versioning.BucketVersioning) error {
	ctrl, err := controllerFor(cmd)
	if err != nil {
		return err
	}

	if status == versioning.VersioningSuspended {
		err = ctrl.SuspendVersioning(cmd.Context())
	} else {
		err = ctrl.EnableVersioning(cmd.Context())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ctrl.Bucket(), status)
	return nil
}
