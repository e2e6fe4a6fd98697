/*
 * Copyright 2023 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package cmd

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dgraph-io/lmerge"
	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/sink"
)

var (
	dir        string
	configPath string
	logLevel   string
	debugAddr  string
	statsCSV   string
	statsDB    string

	// Merge settings shared by merge and bench.
	gamma       float64
	validate    bool
	compression string
	zstdLevel   int
	blockSize   string
	cacheSize   string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:               "lmerge",
	Short:             "Tools to generate, merge and inspect sorted run files.",
	PersistentPreRunE: validateRootCmdArgs,
	SilenceUsage:      true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&dir, "dir", "",
		"Directory relative run file paths are resolved against.")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML file with merge options. Flags override its values.")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"One of debug, info, warning or error.")
	RootCmd.PersistentFlags().StringVar(&debugAddr, "debug-addr", "",
		"Serve /debug/pprof, /debug/requests and /z at this address, if set.")
	RootCmd.PersistentFlags().StringVar(&statsCSV, "stats-csv", "",
		"Append one statistics row per merge to this CSV file.")
	RootCmd.PersistentFlags().StringVar(&statsDB, "stats-db", "",
		"Record merge statistics in this SQLite database.")
}

// addMergeFlags registers the flags that tune a merge on c.
func addMergeFlags(c *cobra.Command) {
	c.Flags().Float64VarP(&gamma, "gamma", "g", 10, "Error bound of the learned models.")
	c.Flags().BoolVar(&validate, "validate", false,
		"Check the learned merge against the baseline merge.")
	addTableFlags(c)
}

// addTableFlags registers the flags that shape written run files on c.
func addTableFlags(c *cobra.Command) {
	c.Flags().StringVar(&compression, "compression", "snappy",
		"Block compression of the output: none, snappy or zstd.")
	c.Flags().IntVar(&zstdLevel, "zstd-level", 1, "ZSTD compression level.")
	c.Flags().StringVar(&blockSize, "block-size", "4KiB", "Block size of the output.")
	c.Flags().StringVar(&cacheSize, "cache-size", "64MiB", "Size of the block cache.")
}

func validateRootCmdArgs(cmd *cobra.Command, args []string) error {
	if strings.HasPrefix(cmd.Use, "help ") { // No need to validate if it is help
		return nil
	}
	if debugAddr != "" {
		go func() {
			fmt.Printf("Listening for /debug HTTP requests at: %s\n", debugAddr)
			if err := http.ListenAndServe(debugAddr, nil); err != nil {
				fmt.Printf("Debug server stopped: %v\n", err)
			}
		}()
	}
	return nil
}

// mergeOptions builds the options from the config file, overridden by the
// flags that were set explicitly on cmd.
func mergeOptions(cmd *cobra.Command) (lmerge.Options, error) {
	opt := lmerge.DefaultOptions(dir)
	if configPath != "" {
		var err error
		if opt, err = lmerge.LoadConfig(configPath); err != nil {
			return opt, err
		}
		if dir != "" {
			opt = opt.WithDir(dir)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		var err error
		if opt, err = opt.WithLoggingLevel(logLevel); err != nil {
			return opt, err
		}
	}

	if flags.Changed("gamma") {
		opt = opt.WithGamma(gamma)
	}
	if flags.Changed("validate") {
		opt = opt.WithValidate(validate)
	}
	if flags.Changed("compression") {
		c, err := options.ParseCompression(compression)
		if err != nil {
			return opt, err
		}
		opt = opt.WithCompression(c)
	}
	if flags.Changed("zstd-level") {
		opt = opt.WithZSTDCompressionLevel(zstdLevel)
	}
	if flags.Changed("block-size") {
		sz, err := humanize.ParseBytes(blockSize)
		if err != nil {
			return opt, errors.Wrapf(err, "invalid --block-size: %s", blockSize)
		}
		opt = opt.WithBlockSize(int(sz))
	}
	if flags.Changed("cache-size") {
		sz, err := humanize.ParseBytes(cacheSize)
		if err != nil {
			return opt, errors.Wrapf(err, "invalid --cache-size: %s", cacheSize)
		}
		opt = opt.WithBlockCacheSize(int64(sz))
	}
	return opt, nil
}

// runPath resolves name against --dir.
func runPath(name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// openStatsSink opens the sinks named by --stats-csv and --stats-db. It
// returns nil if neither is set.
func openStatsSink() (sink.Sink, error) {
	var csvSink, dbSink sink.Sink
	if statsCSV != "" {
		s, err := sink.NewCSVSink(statsCSV)
		if err != nil {
			return nil, err
		}
		csvSink = s
	}
	if statsDB != "" {
		s, err := sink.NewSQLiteSink(statsDB)
		if err != nil {
			if csvSink != nil {
				_ = csvSink.Close()
			}
			return nil, err
		}
		dbSink = s
	}
	if csvSink == nil && dbSink == nil {
		return nil, nil
	}
	return sink.Multi(csvSink, dbSink), nil
}
