package lmerge

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/sink"
	"github.com/dgraph-io/lmerge/table"
	"github.com/dgraph-io/lmerge/y"
)

type kv struct {
	key, value string
}

func getTestOptions(dir string) Options {
	return DefaultOptions(dir).
		WithLogger(nil).
		WithMetricsEnabled(false).
		WithValidate(true).
		WithBlockSize(1 << 10)
}

// writeRun writes keys as a run file named name. Values record the input
// and position of each key.
func writeRun(t *testing.T, opt Options, input int, name string, keys []string) []kv {
	b := table.NewTableBuilder(opt.tableOptions(nil))
	var kvs []kv
	for i, k := range keys {
		v := fmt.Sprintf("%d:%d", input, i)
		require.NoError(t, b.Add([]byte(k), []byte(v)))
		kvs = append(kvs, kv{k, v})
	}
	tbl, err := table.CreateTable(opt.path(name), b)
	require.NoError(t, err)
	require.NoError(t, tbl.Close())
	return kvs
}

// writeRuns spreads total random keys over n runs and returns the file names
// and the expected merge output.
func writeRuns(t *testing.T, opt Options, seed int64, n, total, universe int) ([]string, []kv) {
	r := rand.New(rand.NewSource(seed))
	runs := make([][]string, n)
	for i := 0; i < total; i++ {
		j := r.Intn(n)
		runs[j] = append(runs[j], string(y.FixedWidthKey(uint64(r.Intn(universe)), 16)))
	}
	var names []string
	var all []kv
	for i, keys := range runs {
		sort.Strings(keys)
		name := fmt.Sprintf("%06d.run", i)
		all = append(all, writeRun(t, opt, i, name, keys)...)
		names = append(names, name)
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].key < all[b].key })
	return names, all
}

func readRun(t *testing.T, opt Options, path string) []kv {
	fd, err := os.Open(path)
	require.NoError(t, err)
	tbl, err := table.OpenTable(fd, opt.tableOptions(nil))
	require.NoError(t, err)
	defer tbl.Close()

	var out []kv
	it := tbl.NewIterator()
	defer it.Close()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		out = append(out, kv{string(it.Key()), string(it.Value())})
	}
	require.NoError(t, it.Status())
	return out
}

func TestMerge(t *testing.T) {
	for _, validate := range []bool{false, true} {
		for _, gamma := range []float64{0, 4, 64} {
			t.Run(fmt.Sprintf("validate=%v/gamma=%v", validate, gamma), func(t *testing.T) {
				opt := getTestOptions(t.TempDir()).WithValidate(validate).WithGamma(gamma)
				inputs, want := writeRuns(t, opt, 7, 5, 5000, 20000)

				res, err := Merge(context.Background(), opt, inputs, "merged.run")
				require.NoError(t, err)
				require.Equal(t, opt.path("merged.run"), res.Output)
				require.Equal(t, 5, res.InputCount)
				require.Equal(t, 5, res.Stats.NumInputs)
				require.EqualValues(t, len(want), res.Stats.TotalItems)
				require.Greater(t, res.OutputSize, int64(0))
				require.Equal(t, gamma, res.Gamma)
				if validate {
					require.Greater(t, res.Stats.BaselineComparisons, int64(0))
				}

				require.Equal(t, want, readRun(t, opt, res.Output))
			})
		}
	}
}

func TestMergeCompressionModes(t *testing.T) {
	for _, c := range []options.CompressionType{options.None, options.Snappy, options.ZSTD} {
		for _, mode := range []options.FileLoadingMode{options.FileIO, options.MemoryMap} {
			t.Run(fmt.Sprintf("%s/%s", c, mode), func(t *testing.T) {
				opt := getTestOptions(t.TempDir()).
					WithCompression(c).
					WithLoadingMode(mode).
					WithChecksumVerification(options.OnTableAndBlockRead)
				inputs, want := writeRuns(t, opt, 11, 3, 2000, 500)
				res, err := Merge(context.Background(), opt, inputs, "merged.run")
				require.NoError(t, err)
				require.Equal(t, want, readRun(t, opt, res.Output))
			})
		}
	}
}

func TestMergeSingleInputCopied(t *testing.T) {
	opt := getTestOptions(t.TempDir())
	want := writeRun(t, opt, 0, "only.run", []string{"0001", "0002", "0002", "0009"})

	res, err := Merge(context.Background(), opt, []string{"only.run"}, "merged.run")
	require.NoError(t, err)
	require.Equal(t, 1, res.Stats.NumInputs)
	require.EqualValues(t, 4, res.Stats.TotalItems)
	require.Zero(t, res.Stats.LearnedComparisons)
	require.Equal(t, want, readRun(t, opt, res.Output))
}

func TestMergeEmptyInputs(t *testing.T) {
	opt := getTestOptions(t.TempDir())
	writeRun(t, opt, 0, "a.run", nil)
	want := writeRun(t, opt, 1, "b.run", []string{"1", "2"})
	writeRun(t, opt, 2, "c.run", nil)

	res, err := Merge(context.Background(), opt, []string{"a.run", "b.run", "c.run"}, "out.run")
	require.NoError(t, err)
	require.Equal(t, want, readRun(t, opt, res.Output))
}

func TestMergeErrors(t *testing.T) {
	ctx := context.Background()
	opt := getTestOptions(t.TempDir())
	writeRun(t, opt, 0, "a.run", []string{"1"})
	writeRun(t, opt, 1, "b.run", []string{"2"})

	_, err := Merge(ctx, opt, nil, "out.run")
	require.Equal(t, ErrNoInputs, err)

	_, err = Merge(ctx, opt, []string{"a.run"}, "")
	require.Equal(t, ErrEmptyOutput, err)

	_, err = Merge(ctx, opt, []string{"a.run", "missing.run"}, "out.run")
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing.run")

	_, err = Merge(ctx, opt.WithGamma(-1), []string{"a.run", "b.run"}, "out.run")
	require.Error(t, err)

	// The output must not exist.
	_, err = Merge(ctx, opt, []string{"a.run", "b.run"}, "a.run")
	require.Error(t, err)

	// Inputs that are not run files.
	require.NoError(t, os.WriteFile(opt.path("junk.run"), []byte("not a run file at all"), 0644))
	_, err = Merge(ctx, opt, []string{"a.run", "junk.run"}, "out.run")
	require.Error(t, err)
}

func TestMergeCanceled(t *testing.T) {
	opt := getTestOptions(t.TempDir())
	inputs, _ := writeRuns(t, opt, 3, 2, 100, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Merge(ctx, opt, inputs, "out.run")
	require.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(opt.path("out.run"))
	require.True(t, os.IsNotExist(err))
}

func TestMergeTablesInMemory(t *testing.T) {
	opt := getTestOptions("")
	topt := opt.tableOptions(nil)
	runs := [][]string{
		{"0000000001", "0000000003", "0000000005"},
		{"0000000002", "0000000004", "0000000006"},
	}
	var tables []*table.Table
	for _, keys := range runs {
		b := table.NewTableBuilder(topt)
		for _, k := range keys {
			require.NoError(t, b.Add([]byte(k), []byte(k)))
		}
		data, err := b.Finish()
		require.NoError(t, err)
		tbl, err := table.OpenInMemoryTable(data, topt)
		require.NoError(t, err)
		tables = append(tables, tbl)
	}

	out := table.NewTableBuilder(topt)
	stats, err := MergeTables(context.Background(), opt, tables, out)
	require.NoError(t, err)
	require.EqualValues(t, 6, stats.TotalItems)
	require.EqualValues(t, 5, stats.LearnedComparisons)
	require.EqualValues(t, 9, stats.BaselineComparisons)
	require.EqualValues(t, 6, out.KeyCount())

	_, err = MergeTables(context.Background(), opt, nil, out)
	require.Equal(t, ErrNoInputs, err)
}

func TestMergeRecordsStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := sink.NewSQLiteSink(filepath.Join(dir, "stats.db"))
	require.NoError(t, err)
	defer s.Close()

	opt := getTestOptions(dir).WithStatsSink(s)
	inputs, want := writeRuns(t, opt, 5, 4, 1000, 100)
	res, err := Merge(ctx, opt, inputs, "out.run")
	require.NoError(t, err)

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.EqualValues(t, len(want), recs[0].NumItems)
	require.Equal(t, res.Stats.BaselineComparisons, recs[0].Comparisons)
	require.Equal(t, res.Stats.LearnedComparisons, recs[0].LearnedComparisons)
	require.Equal(t, res.Stats.Corrections, recs[0].Corrections)
	require.Equal(t, 4, recs[0].NumInputs)
}
