// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var urlCmd = &cobra.Command{
	Use:   "url <key>",
	Short: "Print the public or a presigned URL of a key",
	Long: `Print the public URL of a key, or with --temporary a presigned GET URL
that expires. --upload presigns a PUT instead and prints the headers the
upload must send.

Example:
  s3plus url reports/q1.csv
  s3plus url reports/q1.csv --temporary --expires 1h --version-id v1
  s3plus url incoming/new.csv --upload`,
	Args: cobra.ExactArgs(1),
	RunE: runURL,
}

func init() {
	rootCmd.AddCommand(urlCmd)
	urlCmd.Flags().Bool("temporary", false, "Presign a GET URL")
	urlCmd.Flags().Bool("upload", false, "Presign a PUT URL")
	urlCmd.Flags().Duration("expires", 15*time.Minute, "Lifetime of a presigned URL")
	urlCmd.Flags().String("version-id", "", "Pin the presigned GET URL to a version")
}

func runURL(cmd *cobra.Command, args []string) error {
	ctrl, err := controllerFor(cmd)
	if err != nil {
		return err
	}

	flags := NewFlagLoader(cmd)
	temporary, _ := cmd.Flags().GetBool("temporary")
	upload, _ := cmd.Flags().GetBool("upload")
	expires := flags.Duration("expires")
	versionID, _ := cmd.Flags().GetString("version-id")
	out := cmd.OutOrStdout()

	switch {
	case upload:
		if versionID != "" {
			return fmt.Errorf("--version-id cannot be used with --upload")
		}
		up, err := ctrl.TemporaryUploadURL(cmd.Context(), args[0], expires)
		if err != nil {
			return err
		}
		if up == nil {
			return nil
		}
		fmt.Fprintln(out, up.URL)
		names := make([]string, 0, len(up.Headers))
		for name := range up.Headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			for _, v := range up.Headers[name] {
				fmt.Fprintf(out, "  %s: %s\n", name, v)
			}
		}
	case temporary || versionID != "":
		u, err := ctrl.TemporaryURL(cmd.Context(), args[0], expires, versionID)
		if err != nil {
			return err
		}
		if u != "" {
			fmt.Fprintln(out, u)
		}
	default:
		fmt.Fprintln(out, ctrl.URL(args[0]))
	}
	return nil
}
