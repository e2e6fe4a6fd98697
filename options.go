/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
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


package lmerge

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/sink"
	"github.com/dgraph-io/lmerge/table"
	"github.com/dgraph-io/lmerge/y"
)

// Options are params for running a merge.
//
// Each option X is documented on the WithX method.
type Options struct {
	// Required options.

	Dir string

	// Usually modified options.

	Gamma          float64
	Validate       bool
	Logger         y.Logger
	MetricsEnabled bool
	StatsSink      sink.Sink

	// Fine tuning options.

	BlockSize            int
	Compression          options.CompressionType
	ZSTDCompressionLevel int
	ChecksumVerification options.ChecksumVerificationMode
	LoadingMode          options.FileLoadingMode
	BlockCacheSize       int64
	NumGoroutines        int
}

// DefaultOptions sets a list of recommended options for good performance.
// Feel free to modify these to suit your needs with the WithX methods.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:                  dir,
		Gamma:                10,
		Validate:             false,
		Logger:               y.DefaultLogger(y.INFO),
		MetricsEnabled:       true,
		BlockSize:            4 * 1024,
		Compression:          options.Snappy,
		ZSTDCompressionLevel: 1,
		ChecksumVerification: options.OnBlockRead,
		LoadingMode:          options.MemoryMap,
		BlockCacheSize:       64 << 20,
		NumGoroutines:        8,
	}
}

// WithDir returns a new Options value with Dir set to the given value.
//
// Dir is the directory relative input and output paths are resolved
// against. An empty Dir leaves them relative to the working directory.
func (opt Options) WithDir(val string) Options {
	opt.Dir = val
	return opt
}

// WithGamma returns a new Options value with Gamma set to the given value.
//
// Gamma is the maximum vertical error allowed for a trained segment, in
// positions. Larger values give fewer segments and longer corrections.
//
// The default value of Gamma is 10.
func (opt Options) WithGamma(val float64) Options {
	opt.Gamma = val
	return opt
}

// WithValidate returns a new Options value with Validate set to the given
// value.
//
// When Validate is set every merge also runs the baseline merge in lockstep
// and fails with a *y.ConsistencyError on the first disagreement.
//
// The default value of Validate is false.
func (opt Options) WithValidate(val bool) Options {
	opt.Validate = val
	return opt
}

// WithLogger returns a new Options value with Logger set to the given value.
//
// Logger provides a way to configure what logger each value of Options
// uses. Nil disables logging.
//
// The default value of Logger writes info level messages to stderr.
func (opt Options) WithLogger(val y.Logger) Options {
	opt.Logger = val
	return opt
}

// WithLoggingLevel returns a new Options value with Logger set to the
// default logger at the given level.
func (opt Options) WithLoggingLevel(level string) (Options, error) {
	lvl, err := parseLoggingLevel(level)
	if err != nil {
		return opt, err
	}
	opt.Logger = y.DefaultLogger(lvl)
	return opt, nil
}

// WithMetricsEnabled returns a new Options value with MetricsEnabled set to
// the given value.
//
// When MetricsEnabled is set, merges update the expvar counters.
//
// The default value of MetricsEnabled is true.
func (opt Options) WithMetricsEnabled(val bool) Options {
	opt.MetricsEnabled = val
	return opt
}

// WithStatsSink returns a new Options value with StatsSink set to the given
// value.
//
// StatsSink receives one record for every completed merge. It is not closed
// by Merge.
func (opt Options) WithStatsSink(val sink.Sink) Options {
	opt.StatsSink = val
	return opt
}

// WithBlockSize returns a new Options value with BlockSize set to the given
// value.
//
// BlockSize sets the size of any block in the merged run file.
//
// The default value of BlockSize is 4KB.
func (opt Options) WithBlockSize(val int) Options {
	opt.BlockSize = val
	return opt
}

// WithCompression returns a new Options value with Compression set to the
// given value.
//
// The default value of Compression is options.Snappy.
func (opt Options) WithCompression(cType options.CompressionType) Options {
	opt.Compression = cType
	return opt
}

// WithZSTDCompressionLevel returns a new Options value with
// ZSTDCompressionLevel set to the given value.
//
// Valid levels are 1 to 22. Level 1 is the fastest.
//
// The default value of ZSTDCompressionLevel is 1.
func (opt Options) WithZSTDCompressionLevel(cLevel int) Options {
	opt.ZSTDCompressionLevel = cLevel
	return opt
}

// WithChecksumVerification returns a new Options value with
// ChecksumVerification set to the given value.
//
// The default value of ChecksumVerification is options.OnBlockRead.
func (opt Options) WithChecksumVerification(cvMode options.ChecksumVerificationMode) Options {
	opt.ChecksumVerification = cvMode
	return opt
}

// WithLoadingMode returns a new Options value with LoadingMode set to the
// given value.
//
// The default value of LoadingMode is options.MemoryMap.
func (opt Options) WithLoadingMode(val options.FileLoadingMode) Options {
	opt.LoadingMode = val
	return opt
}

// WithBlockCacheSize returns a new Options value with BlockCacheSize set to
// the given value.
//
// BlockCacheSize is the number of bytes of decoded blocks kept in memory
// while a merge reads its inputs. Zero disables the cache.
//
// The default value of BlockCacheSize is 64MB.
func (opt Options) WithBlockCacheSize(size int64) Options {
	opt.BlockCacheSize = size
	return opt
}

// WithNumGoroutines returns a new Options value with NumGoroutines set to
// the given value.
//
// NumGoroutines bounds how many input files are opened at the same time.
//
// The default value of NumGoroutines is 8.
func (opt Options) WithNumGoroutines(val int) Options {
	opt.NumGoroutines = val
	return opt
}

func (opt Options) validate() error {
	if opt.Gamma < 0 || math.IsNaN(opt.Gamma) {
		return errors.Errorf("Invalid Gamma: %v, must be a number >= 0", opt.Gamma)
	}
	if opt.BlockSize <= 0 {
		return errors.Errorf("Invalid BlockSize: %d, must be positive", opt.BlockSize)
	}
	if opt.Compression == options.ZSTD &&
		(opt.ZSTDCompressionLevel < 1 || opt.ZSTDCompressionLevel > 22) {
		return errors.Errorf("Invalid ZSTDCompressionLevel: %d, must be between 1 and 22",
			opt.ZSTDCompressionLevel)
	}
	if opt.BlockCacheSize < 0 {
		return errors.Errorf("Invalid BlockCacheSize: %d", opt.BlockCacheSize)
	}
	if opt.NumGoroutines <= 0 {
		return errors.Errorf("Invalid NumGoroutines: %d, must be positive", opt.NumGoroutines)
	}
	return nil
}

func (opt Options) path(name string) string {
	if opt.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(opt.Dir, name)
}

func (opt Options) logger() y.Logger {
	if opt.Logger == nil {
		return y.NopLogger
	}
	return opt.Logger
}

func (opt Options) newBlockCache() (*ristretto.Cache, error) {
	if opt.BlockCacheSize == 0 {
		return nil, nil
	}
	config := ristretto.Config{
		// Decoded blocks are roughly BlockSize bytes each.
		NumCounters: opt.BlockCacheSize / int64(opt.BlockSize) * 10,
		MaxCost:     opt.BlockCacheSize,
		BufferItems: 64,
		Metrics:     true,
	}
	if config.NumCounters < 100 {
		config.NumCounters = 100
	}
	cache, err := ristretto.NewCache(&config)
	return cache, errors.Wrap(err, "failed to create block cache")
}

// TableOptions returns the run file and iterator settings derived from opt,
// without a block cache.
func (opt Options) TableOptions() table.Options {
	return opt.tableOptions(nil)
}

func (opt Options) tableOptions(cache *ristretto.Cache) table.Options {
	return table.Options{
		BlockSize:            opt.BlockSize,
		Compression:          opt.Compression,
		ZSTDCompressionLevel: opt.ZSTDCompressionLevel,
		ChkMode:              opt.ChecksumVerification,
		LoadingMode:          opt.LoadingMode,
		BlockCache:           cache,
		Gamma:                opt.Gamma,
		Compare:              y.DefaultCompare,
		Logger:               opt.logger(),
		MetricsEnabled:       opt.MetricsEnabled,
	}
}

func parseLoggingLevel(s string) (y.LoggingLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return y.DEBUG, nil
	case "info":
		return y.INFO, nil
	case "warning", "warn":
		return y.WARNING, nil
	case "error":
		return y.ERROR, nil
	}
	return y.INFO, errors.Errorf("unknown logging level: %q", s)
}

// fileConfig mirrors the YAML configuration file. Absent keys keep their
// default value.
type fileConfig struct {
	Dir            *string  `yaml:"dir"`
	Gamma          *float64 `yaml:"gamma"`
	Validate       *bool    `yaml:"validate"`
	LogLevel       *string  `yaml:"log_level"`
	Metrics        *bool    `yaml:"metrics"`
	BlockSize      *string  `yaml:"block_size"`
	Compression    *string  `yaml:"compression"`
	ZSTDLevel      *int     `yaml:"zstd_level"`
	Checksum       *string  `yaml:"checksum_verification"`
	LoadingMode    *string  `yaml:"loading_mode"`
	BlockCacheSize *string  `yaml:"block_cache_size"`
	NumGoroutines  *int     `yaml:"num_goroutines"`
}

// LoadConfig reads a YAML configuration file and overlays it on
// DefaultOptions(""). Sizes accept humanized values such as "4KB" or
// "64MiB".
func LoadConfig(path string) (Options, error) {
	opt := DefaultOptions("")
	data, err := os.ReadFile(path)
	if err != nil {
		return opt, errors.Wrapf(err, "while reading config: %s", path)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return opt, errors.Wrapf(err, "while parsing config: %s", path)
	}
	if opt, err = cfg.apply(opt); err != nil {
		return opt, errors.Wrapf(err, "invalid config: %s", path)
	}
	return opt, opt.validate()
}

func (cfg fileConfig) apply(opt Options) (Options, error) {
	var err error
	if cfg.Dir != nil {
		opt.Dir = *cfg.Dir
	}
	if cfg.Gamma != nil {
		opt.Gamma = *cfg.Gamma
	}
	if cfg.Validate != nil {
		opt.Validate = *cfg.Validate
	}
	if cfg.LogLevel != nil {
		if opt, err = opt.WithLoggingLevel(*cfg.LogLevel); err != nil {
			return opt, err
		}
	}
	if cfg.Metrics != nil {
		opt.MetricsEnabled = *cfg.Metrics
	}
	if cfg.BlockSize != nil {
		sz, err := humanize.ParseBytes(*cfg.BlockSize)
		if err != nil {
			return opt, errors.Wrap(err, "block_size")
		}
		opt.BlockSize = int(sz)
	}
	if cfg.Compression != nil {
		if opt.Compression, err = options.ParseCompression(*cfg.Compression); err != nil {
			return opt, err
		}
	}
	if cfg.ZSTDLevel != nil {
		opt.ZSTDCompressionLevel = *cfg.ZSTDLevel
	}
	if cfg.Checksum != nil {
		if opt.ChecksumVerification, err = options.ParseChecksumVerification(*cfg.Checksum); err != nil {
			return opt, err
		}
	}
	if cfg.LoadingMode != nil {
		if opt.LoadingMode, err = options.ParseLoadingMode(*cfg.LoadingMode); err != nil {
			return opt, err
		}
	}
	if cfg.BlockCacheSize != nil {
		sz, err := humanize.ParseBytes(*cfg.BlockCacheSize)
		if err != nil {
			return opt, errors.Wrap(err, "block_cache_size")
		}
		opt.BlockCacheSize = int64(sz)
	}
	if cfg.NumGoroutines != nil {
		opt.NumGoroutines = *cfg.NumGoroutines
	}
	return opt, nil
}
