// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/szhorvath/s3plus/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions <key>",
	Short: "List every version and delete marker of a key",
	Long: `List the complete history of a key, newest first.
Files and delete markers are interleaved by modification time.

Example:
  s3plus versions reports/q1.csv
  s3plus versions reports/q1.csv --json`,
	Args: cobra.ExactArgs(1),
	RunE: runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.Flags().Bool("json", false, "Print the history as JSON")
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctrl, err := controllerFor(cmd)
	if err != nil {
		return err
	}

	entries, err := ctrl.Versions(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No versions found for %s\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tTYPE\tLATEST\tSIZE\tHASH\tUPDATED")
	fmt.Fprintln(w, "-------\t----\t------\t----\t----\t-------")
	for _, e := range entries {
		size := "-"
		if !e.IsDeleteMarker() {
			size = humanize.Bytes(uint64(e.Size))
		}
		latest := ""
		if e.IsLatest {
			latest = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.VersionID,
			e.Kind,
			latest,
			size,
			e.ContentHash,
			humanize.Time(e.UpdatedAt),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "State:          %s\n", types.State(entries))
	fmt.Fprintf(out, "Files:          %d\n", types.CountKind(entries, types.KindFile))
	fmt.Fprintf(out, "Delete markers: %d\n", types.CountKind(entries, types.KindDeleteMarker))
	return nil
}
