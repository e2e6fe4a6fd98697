package lmerge

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/y"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "lmerge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultOptionsValid(t *testing.T) {
	opt := DefaultOptions("/tmp/runs")
	require.NoError(t, opt.validate())
	require.Equal(t, "/tmp/runs", opt.Dir)
	require.Equal(t, 10.0, opt.Gamma)
	require.False(t, opt.Validate)
}

func TestOptionSetters(t *testing.T) {
	opt := DefaultOptions("").
		WithDir("runs").
		WithGamma(0).
		WithValidate(true).
		WithLogger(nil).
		WithMetricsEnabled(false).
		WithBlockSize(1 << 10).
		WithCompression(options.ZSTD).
		WithZSTDCompressionLevel(3).
		WithChecksumVerification(options.OnTableAndBlockRead).
		WithLoadingMode(options.FileIO).
		WithBlockCacheSize(0).
		WithNumGoroutines(2)
	require.NoError(t, opt.validate())

	require.Equal(t, "runs", opt.Dir)
	require.Equal(t, 0.0, opt.Gamma)
	require.True(t, opt.Validate)
	require.Equal(t, y.NopLogger, opt.logger())
	require.Equal(t, 1<<10, opt.BlockSize)
	require.Equal(t, options.ZSTD, opt.Compression)
	require.Equal(t, 3, opt.ZSTDCompressionLevel)
	require.Equal(t, options.OnTableAndBlockRead, opt.ChecksumVerification)
	require.Equal(t, options.FileIO, opt.LoadingMode)
	require.Equal(t, 2, opt.NumGoroutines)

	topt := opt.tableOptions(nil)
	require.Equal(t, opt.Gamma, topt.Gamma)
	require.Equal(t, opt.BlockSize, topt.BlockSize)
	require.Equal(t, opt.Compression, topt.Compression)
	require.Equal(t, opt.ChecksumVerification, topt.ChkMode)
	require.Nil(t, topt.BlockCache)
}

func TestOptionsPath(t *testing.T) {
	opt := DefaultOptions("")
	require.Equal(t, "a.run", opt.path("a.run"))
	opt = opt.WithDir("/data")
	require.Equal(t, filepath.Join("/data", "a.run"), opt.path("a.run"))
	require.Equal(t, "/other/a.run", opt.path("/other/a.run"))
}

func TestOptionsValidate(t *testing.T) {
	base := DefaultOptions("")
	tests := []struct {
		name string
		opt  Options
	}{
		{"negative gamma", base.WithGamma(-1)},
		{"nan gamma", base.WithGamma(math.NaN())},
		{"zero block size", base.WithBlockSize(0)},
		{"zstd level too low", base.WithCompression(options.ZSTD).WithZSTDCompressionLevel(0)},
		{"zstd level too high", base.WithCompression(options.ZSTD).WithZSTDCompressionLevel(23)},
		{"negative cache", base.WithBlockCacheSize(-1)},
		{"no goroutines", base.WithNumGoroutines(0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.opt.validate())
		})
	}
	// The level only matters for zstd.
	require.NoError(t, base.WithZSTDCompressionLevel(0).validate())
}

func TestWithLoggingLevel(t *testing.T) {
	opt, err := DefaultOptions("").WithLoggingLevel("debug")
	require.NoError(t, err)
	require.NotNil(t, opt.Logger)

	_, err = DefaultOptions("").WithLoggingLevel("loud")
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
dir: /var/runs
gamma: 0
validate: true
log_level: error
metrics: false
block_size: 16KiB
compression: zstd
zstd_level: 7
checksum_verification: table
loading_mode: fileio
block_cache_size: 1MB
num_goroutines: 3
`)
	opt, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/var/runs", opt.Dir)
	require.Equal(t, 0.0, opt.Gamma)
	require.True(t, opt.Validate)
	require.False(t, opt.MetricsEnabled)
	require.Equal(t, 16<<10, opt.BlockSize)
	require.Equal(t, options.ZSTD, opt.Compression)
	require.Equal(t, 7, opt.ZSTDCompressionLevel)
	require.Equal(t, options.OnTableRead, opt.ChecksumVerification)
	require.Equal(t, options.FileIO, opt.LoadingMode)
	require.Equal(t, int64(1000*1000), opt.BlockCacheSize)
	require.Equal(t, 3, opt.NumGoroutines)
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	opt, err := LoadConfig(writeConfig(t, "gamma: 2.5\n"))
	require.NoError(t, err)
	def := DefaultOptions("")
	require.Equal(t, 2.5, opt.Gamma)
	require.Equal(t, def.BlockSize, opt.BlockSize)
	require.Equal(t, def.Compression, opt.Compression)
	require.Equal(t, def.BlockCacheSize, opt.BlockCacheSize)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":       "gamma: [1, 2\n",
		"compression":  "compression: lz5\n",
		"checksum":     "checksum_verification: sometimes\n",
		"loading mode": "loading_mode: tape\n",
		"block size":   "block_size: lots\n",
		"log level":    "log_level: loud\n",
		"validation":   "gamma: -3\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			require.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
