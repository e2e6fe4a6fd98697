package workload

import (
	"bytes"
	"os"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgraph-io/lmerge/table"
)

func testConfig() Config {
	return Config{
		NumKeys:  1000,
		KeyWidth: 10,
		NumRuns:  4,
		Dist:     NewFlag("uniform:0-500"),
		Seed:     42,
	}
}

func TestMemtableKeepsDuplicates(t *testing.T) {
	mt := NewMemtable()
	mt.Add([]byte("b"), []byte("1"))
	mt.Add([]byte("a"), []byte("2"))
	mt.Add([]byte("b"), []byte("3"))
	mt.Add([]byte("a"), []byte("4"))
	require.Equal(t, 4, mt.Len())
	require.EqualValues(t, 8, mt.Size())

	var got []string
	mt.Ascend(func(key, value []byte) bool {
		got = append(got, string(key)+"="+string(value))
		return true
	})
	require.Equal(t, []string{"a=2", "a=4", "b=1", "b=3"}, got)

	// Ascend stops early.
	var n int
	mt.Ascend(func(_, _ []byte) bool {
		n++
		return false
	})
	require.Equal(t, 1, n)
}

func TestMemtableCopiesInput(t *testing.T) {
	mt := NewMemtable()
	key := []byte("k1")
	mt.Add(key, key)
	key[1] = '2'
	require.Equal(t, [][]byte{[]byte("k1")}, mt.Keys())
}

func TestKeysReproducible(t *testing.T) {
	cfg := testConfig()
	a, err := Keys(cfg)
	require.NoError(t, err)
	b, err := Keys(cfg)
	require.NoError(t, err)
	require.Equal(t, a, b)
	for _, k := range a {
		require.Len(t, k, 10)
	}

	cfg.Seed++
	c, err := Keys(cfg)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestRuns(t *testing.T) {
	cfg := testConfig()
	cfg.NumKeys = 1003
	runs, err := Runs(cfg)
	require.NoError(t, err)
	require.Len(t, runs, 4)

	keys, err := Keys(cfg)
	require.NoError(t, err)
	var all [][]byte
	for i, mt := range runs {
		if i < 3 {
			require.Equal(t, 251, mt.Len())
		}
		rk := mt.Keys()
		require.True(t, sort.SliceIsSorted(rk, func(a, b int) bool {
			return bytes.Compare(rk[a], rk[b]) < 0
		}))
		all = append(all, rk...)
	}
	require.Len(t, all, len(keys))
	// Runs are flushed in generation order.
	require.ElementsMatch(t, keys[:251], runs[0].Keys())
}

func TestRunsMoreRunsThanKeys(t *testing.T) {
	cfg := testConfig()
	cfg.NumKeys = 2
	runs, err := Runs(cfg)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	require.Equal(t, 1, runs[0].Len())
	require.Equal(t, 1, runs[1].Len())
	require.Zero(t, runs[2].Len())
	require.Zero(t, runs[3].Len())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	for _, mod := range []func(*Config){
		func(c *Config) { c.NumKeys = -1 },
		func(c *Config) { c.KeyWidth = 0 },
		func(c *Config) { c.KeyWidth = 21 },
		func(c *Config) { c.NumRuns = 0 },
		func(c *Config) { c.Dist = nil },
	} {
		cfg := testConfig()
		mod(&cfg)
		require.Error(t, cfg.Validate())
		_, err := Runs(cfg)
		require.Error(t, err)
	}
}

func TestWriteRuns(t *testing.T) {
	runs, err := Runs(testConfig())
	require.NoError(t, err)
	topt := table.DefaultOptions()

	dir := t.TempDir()
	paths, err := WriteRuns(dir, runs, topt)
	require.NoError(t, err)
	require.Len(t, paths, len(runs))

	for i, p := range paths {
		fd, err := os.Open(p)
		require.NoError(t, err)
		tbl, err := table.OpenTable(fd, topt)
		require.NoError(t, err)
		require.EqualValues(t, runs[i].Len(), tbl.KeyCount())

		var keys [][]byte
		it := tbl.NewIterator()
		for it.SeekToFirst(); it.Valid(); it.Next() {
			require.Equal(t, it.Key(), it.Value())
			keys = append(keys, append([]byte(nil), it.Key()...))
		}
		require.NoError(t, it.Close())
		require.Equal(t, runs[i].Keys(), keys)
		require.NoError(t, tbl.Close())
	}

	// Run files are never overwritten.
	_, err = WriteRuns(dir, runs, topt)
	require.Error(t, err)
}

func TestBuildTables(t *testing.T) {
	runs, err := Runs(testConfig())
	require.NoError(t, err)
	tables, err := BuildTables(runs, table.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, tables, len(runs))
	for i, tbl := range tables {
		require.EqualValues(t, runs[i].Len(), tbl.KeyCount())
	}
}
