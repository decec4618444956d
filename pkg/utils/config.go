// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	"github.com/szhorvath/s3plus/pkg/types"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ConfigurationFileDirectory string
)

// LoadConfiguration merges the named config file into the global viper
// instance. A missing file is only an error when required.
func LoadConfiguration(configFileName string, required bool) error {
	viper.SetConfigName(configFileName)
	viper.AddConfigPath(ResolvePath(ConfigurationFileDirectory))
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.s3plus")
	viper.AddConfigPath("/etc/s3plus/")
	viper.SetEnvPrefix("S3PLUS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if required {
				return fmt.Errorf("config file not found: %s", configFileName)
			}
			log.Debug().Msgf("Config file not found: %s", configFileName)
			return nil
		}
		return fmt.Errorf("load config file %s: %w", configFileName, err)
	}
	log.Debug().Msgf("Loaded config file: %s", viper.ConfigFileUsed())

	return nil
}

// LoadDisks decodes every disk declared under "disks.<name>"
func LoadDisks(v *viper.Viper) (map[string]types.DiskConfig, error) {
	disks := make(map[string]types.DiskConfig)
	if err := v.UnmarshalKey("disks", &disks); err != nil {
		return nil, fmt.Errorf("decode disks: %w", err)
	}
	return disks, nil
}

// DiskNames returns the names of disks, sorted
func DiskNames(disks map[string]types.DiskConfig) []string {
	names := make([]string, 0, len(disks))
	for name := range disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolvePath expands ~ and environment variables and makes path absolute
func ResolvePath(path string) string {
	if !strings.Contains(path, "~") {
		return path
	}

	if path == "~" {
		if usr, err := user.Current(); err == nil {
			path = usr.HomeDir
		}
	} else if strings.HasPrefix(path, "~/") {
		if usr, err := user.Current(); err == nil {
			path = filepath.Join(usr.HomeDir, path[2:])
		}
	}

	path = os.ExpandEnv(path)
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}

	return path
}
