// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"sync"
	"text/tabwriter"

	"github.com/szhorvath/s3plus/pkg/logger"
	"github.com/szhorvath/s3plus/pkg/storage/backend"
	"github.com/szhorvath/s3plus/pkg/types"
	"github.com/szhorvath/s3plus/pkg/utils"
	"github.com/szhorvath/s3plus/pkg/versioning"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// adHocDisk names the disk built from flags when no disk is configured
const adHocDisk = "cli"

var (
	managerMu sync.Mutex
	manager   *backend.Manager
)

func init() {
	rootCmd.AddCommand(disksCmd)
}

var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "List configured disks",
	Long: `List the disks declared under 'disks.<name>' in the configuration,
with their driver, bucket, root prefix and failure policy.`,
	Args: cobra.NoArgs,
	RunE: runDisks,
}

func runDisks(cmd *cobra.Command, args []string) error {
	disks, err := utils.LoadDisks(viper.GetViper())
	if err != nil {
		return err
	}
	if len(disks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No disks configured")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISK\tDRIVER\tBUCKET\tROOT\tPOLICY\tSTREAM READS")
	fmt.Fprintln(w, "----\t------\t------\t----\t------\t------------")
	for _, name := range utils.DiskNames(disks) {
		cfg := disks[name]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			name,
			cfg.Driver,
			cfg.Bucket,
			cfg.Root,
			versioning.PolicyFromThrow(cfg.Throw),
			cfg.StreamReads,
		)
		for _, warning := range types.ValidateDisk(name, cfg).Warnings {
			logger.Warn().Str("disk", name).Msg(warning)
		}
	}
	return w.Flush()
}

// diskManager returns the process-wide disk manager
func diskManager() *backend.Manager {
	managerMu.Lock()
	defer managerMu.Unlock()
	if manager == nil {
		manager = backend.NewManager(nil)
	}
	return manager
}

func closeManager() {
	managerMu.Lock()
	defer managerMu.Unlock()
	if manager != nil {
		manager.Close()
		manager = nil
	}
}

// selectDisk resolves the disk name and its config, applying flag overrides
func selectDisk(cmd *cobra.Command) (string, types.DiskConfig, error) {
	flags := NewFlagLoader(cmd)

	disks, err := utils.LoadDisks(viper.GetViper())
	if err != nil {
		return "", types.DiskConfig{}, err
	}

	name := flags.String("disk")
	var cfg types.DiskConfig
	switch {
	case name != "":
		var ok bool
		cfg, ok = disks[name]
		if !ok {
			return "", types.DiskConfig{}, fmt.Errorf("disk %q is not configured", name)
		}
	case len(disks) == 1:
		name = utils.DiskNames(disks)[0]
		cfg = disks[name]
	case len(disks) == 0:
		name = adHocDisk
		cfg = types.DiskConfig{Driver: types.StorageTypeS3}
	default:
		return "", types.DiskConfig{}, fmt.Errorf("several disks configured, pick one with --disk: %v", utils.DiskNames(disks))
	}

	if cmd.Flags().Changed("bucket") {
		cfg.Bucket = flags.String("bucket")
	}
	if cmd.Flags().Changed("root") {
		cfg.Root = flags.String("root")
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Endpoint = flags.String("endpoint")
	}
	if cmd.Flags().Changed("region") {
		cfg.Region = flags.String("region")
	}
	if cmd.Flags().Changed("throw") {
		cfg.Throw = flags.Bool("throw")
	}
	if cmd.Flags().Changed("delete_concurrency") {
		cfg.DeleteConcurrency = flags.Int("delete_concurrency")
	}

	return name, cfg, nil
}

// openDisk returns the selected disk, creating it on first use
func openDisk(ctx context.Context, cmd *cobra.Command) (*backend.Disk, error) {
	name, cfg, err := selectDisk(cmd)
	if err != nil {
		return nil, err
	}

	m := diskManager()
	if d, ok := m.Get(name); ok && d.Config == cfg {
		return d, nil
	}

	d, err := m.Add(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug().
		Str("disk", name).
		Str("driver", string(cfg.Driver)).
		Str("bucket", cfg.Bucket).
		Str("policy", d.Controller.Policy().String()).
		Msg("disk ready")
	return d, nil
}

// controllerFor opens the selected disk and returns its controller
func controllerFor(cmd *cobra.Command) (*versioning.Controller, error) {
	d, err := openDisk(cmd.Context(), cmd)
	if err != nil {
		return nil, err
	}
	return d.Controller, nil
}
