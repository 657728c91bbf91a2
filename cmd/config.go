// Copyright © 2024 The gatbcore Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"os"
	"path/filepath"
	"strconv"

	homedir "github.com/mitchellh/go-homedir"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// fileConfig holds the subset of flag defaults a user may pin in
// ~/.gatb.toml instead of repeating on every invocation: resource
// budgets and counting defaults, the knobs spec.md §4.3's Config wraps.
type fileConfig struct {
	Threads     int    `toml:"threads"`
	MaxMemoryMB uint64 `toml:"max_memory_mb"`
	MaxDiskMB   uint64 `toml:"max_disk_mb"`
	Abundance   uint32 `toml:"abundance_min"`
}

// defaultConfigPath returns ~/.gatb.toml.
func defaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gatb.toml"), nil
}

// loadFileConfig reads the config file if it exists, returning a zero
// fileConfig (every flag falls back to its own default) when it does
// not.
func loadFileConfig() (fileConfig, error) {
	var cfg fileConfig
	path, err := defaultConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFileConfigDefaults overrides the named flags' defaults with the
// config file's values, for any flag the user did not pass explicitly on
// the command line -- command-line flags always win.
func applyFileConfigDefaults(cmd *cobra.Command, cfg fileConfig) {
	set := func(name, value string) {
		if cmd.Flags().Changed(name) {
			return
		}
		_ = cmd.Flags().Set(name, value)
	}
	if cfg.Threads > 0 {
		set("threads", strconv.Itoa(cfg.Threads))
	}
	if cfg.MaxMemoryMB > 0 {
		set("max-memory", strconv.FormatUint(cfg.MaxMemoryMB, 10))
	}
	if cfg.MaxDiskMB > 0 {
		set("max-disk", strconv.FormatUint(cfg.MaxDiskMB, 10))
	}
	if cfg.Abundance > 0 {
		set("abundance-min", strconv.FormatUint(uint64(cfg.Abundance), 10))
	}
}
