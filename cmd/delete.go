// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/szhorvath/s3plus/pkg/versioning"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <key...>",
	Short: "Soft delete keys, or permanently delete versions",
	Long: `Without --version-id every key gets a delete marker and all of its
versions are kept. With --version-id the named versions are removed
for good.

--version-id may be repeated. With a single key every id belongs to
that key; otherwise ids pair with keys by position.

Example:
  s3plus delete a.txt b.txt
  s3plus delete a.txt --version-id v1 --version-id v2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().StringSlice("version-id", nil, "Version to delete permanently (repeatable)")
}

// deleteTargets builds the request shape from keys and version ids
func deleteTargets(keys, versionIDs []string) (versioning.Targets, error) {
	switch {
	case len(versionIDs) == 0 && len(keys) == 1:
		return versioning.Key(keys[0]), nil
	case len(versionIDs) == 0:
		return versioning.Keys(keys...), nil
	}

	byVersion := make(map[string]string, len(versionIDs))
	switch {
	case len(keys) == 1:
		for _, id := range versionIDs {
			byVersion[id] = keys[0]
		}
	case len(keys) == len(versionIDs):
		for i, id := range versionIDs {
			if prev, ok := byVersion[id]; ok {
				return versioning.Targets{}, fmt.Errorf("version %s given for both %s and %s", id, prev, keys[i])
			}
			byVersion[id] = keys[i]
		}
	default:
		return versioning.Targets{}, fmt.Errorf("got %d keys and %d version ids", len(keys), len(versionIDs))
	}
	return versioning.Versions(byVersion), nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	versionIDs, _ := cmd.Flags().GetStringSlice("version-id")
	targets, err := deleteTargets(args, versionIDs)
	if err != nil {
		return err
	}

	ctrl, err := controllerFor(cmd)
	if err != nil {
		return err
	}

	report := ctrl.DeleteAll(cmd.Context(), targets)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVERSION\tRESULT")
	fmt.Fprintln(w, "---\t-------\t------")
	for _, o := range report.Outcomes {
		version := o.Target.VersionID
		result := "deleted"
		switch {
		case o.Err != nil:
			result = "failed"
		case o.DeleteMarker && !o.Target.Qualified():
			result = "delete marker"
			version = o.VersionID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", o.Target.Path, version, result)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	_, err = ctrl.ApplyDeletePolicy(report)
	return err
}
