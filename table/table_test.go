package table

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/dgraph-io/ristretto"
	"github.com/stretchr/testify/require"

	"github.com/dgraph-io/lmerge/options"
	"github.com/dgraph-io/lmerge/y"
)

func key(prefix string, i int) string {
	return prefix + fmt.Sprintf("%04d", i)
}

func getTestTableOptions() Options {
	opt := DefaultOptions()
	opt.Compression = options.ZSTD
	opt.ZSTDCompressionLevel = 3
	opt.BlockSize = 4 * 1024
	return opt
}

func buildTestTable(t testing.TB, prefix string, n int, opts Options) *Table {
	y.AssertTrue(n <= 10000)
	keyValues := make([][]string, n)
	for i := 0; i < n; i++ {
		k := key(prefix, i)
		v := fmt.Sprintf("%d", i)
		keyValues[i] = []string{k, v}
	}
	return buildTable(t, keyValues, opts)
}

// keyValues is n by 2 where n is number of pairs.
func buildTable(t testing.TB, keyValues [][]string, opts Options) *Table {
	b := NewTableBuilder(opts)
	defer b.Close()

	dir := t.TempDir()
	filename := filepath.Join(dir, fmt.Sprintf("%d.run", rand.Uint32()))

	sort.SliceStable(keyValues, func(i, j int) bool {
		return keyValues[i][0] < keyValues[j][0]
	})
	for _, kv := range keyValues {
		y.AssertTrue(len(kv) == 2)
		require.NoError(t, b.Add([]byte(kv[0]), []byte(kv[1])))
	}
	tbl, err := CreateTable(filename, b)
	require.NoError(t, err, "writing to file failed")
	t.Cleanup(func() { require.NoError(t, tbl.Close()) })
	return tbl
}

func TestTableIterator(t *testing.T) {
	for _, n := range []int{1, 99, 100, 101, 1000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			opts := getTestTableOptions()
			table := buildTestTable(t, "key", n, opts)
			it := table.NewIterator()
			defer it.Close()
			count := 0
			for it.SeekToFirst(); it.Valid(); it.Next() {
				require.EqualValues(t, key("key", count), string(it.Key()))
				require.EqualValues(t, fmt.Sprintf("%d", count), string(it.Value()))
				count++
			}
			require.NoError(t, it.Status())
			require.Equal(t, n, count)
			require.EqualValues(t, n, table.KeyCount())
		})
	}
}

func TestSeekToFirstAndLast(t *testing.T) {
	for _, n := range []int{99, 100, 101, 199, 200, 250, 9999, 10000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			opts := getTestTableOptions()
			table := buildTestTable(t, "key", n, opts)
			it := table.NewIterator()
			defer it.Close()
			require.False(t, it.Valid())

			it.SeekToFirst()
			require.True(t, it.Valid())
			require.EqualValues(t, "0", string(it.Value()))

			it.SeekToLast()
			require.True(t, it.Valid())
			require.EqualValues(t, fmt.Sprintf("%d", n-1), string(it.Value()))
			it.Prev()
			require.True(t, it.Valid())
			require.EqualValues(t, fmt.Sprintf("%d", n-2), string(it.Value()))
			it.Next()
			it.Next()
			require.False(t, it.Valid())
			require.NoError(t, it.Status())

			require.Equal(t, key("key", 0), string(table.Smallest()))
			require.Equal(t, key("key", n-1), string(table.Biggest()))
		})
	}
}

func TestSeek(t *testing.T) {
	opts := getTestTableOptions()
	table := buildTestTable(t, "k", 10000, opts)
	require.Greater(t, table.NumBlocks(), 1)

	it := table.NewIterator()
	defer it.Close()

	var data = []struct {
		in    string
		valid bool
		out   string
	}{
		{"abc", true, "k0000"},
		{"k0100", true, "k0100"},
		{"k0100b", true, "k0101"}, // Test case where we jump to next block.
		{"k1234", true, "k1234"},
		{"k1234b", true, "k1235"},
		{"k9999", true, "k9999"},
		{"z", false, ""},
	}

	for _, tt := range data {
		it.Seek([]byte(tt.in))
		if !tt.valid {
			require.False(t, it.Valid())
			continue
		}
		require.True(t, it.Valid())
		require.EqualValues(t, tt.out, string(it.Key()))
	}
}

func TestSeekEveryBlockBoundary(t *testing.T) {
	opts := getTestTableOptions()
	table := buildTestTable(t, "k", 5000, opts)
	it := table.NewIterator()
	defer it.Close()
	for i := 0; i < 5000; i++ {
		it.Seek([]byte(key("k", i)))
		require.True(t, it.Valid())
		require.Equal(t, key("k", i), string(it.Key()))
	}
}

func TestIterateFromEnd(t *testing.T) {
	// Vary the number of elements added.
	for _, n := range []int{99, 100, 101, 199, 200, 250, 9999, 10000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			opts := getTestTableOptions()
			table := buildTestTable(t, "key", n, opts)
			ti := table.NewIterator()
			defer ti.Close()
			ti.SeekToLast()
			for i := n - 1; i >= 0; i-- {
				require.True(t, ti.Valid())
				require.EqualValues(t, fmt.Sprintf("%d", i), string(ti.Value()))
				ti.Prev()
			}
			require.False(t, ti.Valid())
		})
	}
}

func TestIterateBackAndForth(t *testing.T) {
	opts := getTestTableOptions()
	table := buildTestTable(t, "key", 10000, opts)

	seek := []byte(key("key", 1010))
	it := table.NewIterator()
	defer it.Close()
	it.Seek(seek)
	require.True(t, it.Valid())
	require.EqualValues(t, seek, it.Key())

	it.Prev()
	it.Prev()
	require.True(t, it.Valid())
	require.EqualValues(t, key("key", 1008), string(it.Key()))

	it.Next()
	it.Next()
	require.True(t, it.Valid())
	require.EqualValues(t, key("key", 1010), string(it.Key()))

	it.Seek([]byte(key("key", 2000)))
	require.True(t, it.Valid())
	require.EqualValues(t, key("key", 2000), string(it.Key()))

	it.Prev()
	require.True(t, it.Valid())
	require.EqualValues(t, key("key", 1999), string(it.Key()))

	it.SeekToFirst()
	require.EqualValues(t, key("key", 0), string(it.Key()))
}

func TestDuplicateKeysAcrossBlocks(t *testing.T) {
	opts := getTestTableOptions()
	opts.BlockSize = 256
	var kvs [][]string
	for i := 0; i < 300; i++ {
		kvs = append(kvs, []string{key("k", i/100), fmt.Sprintf("%d", i)})
	}
	table := buildTable(t, kvs, opts)
	require.Greater(t, table.NumBlocks(), 3)

	it := table.NewIterator()
	defer it.Close()
	for _, i := range []int{0, 1, 2} {
		it.Seek([]byte(key("k", i)))
		require.True(t, it.Valid())
		require.Equal(t, key("k", i), string(it.Key()))
		// Seek lands on the first of the duplicates.
		require.Equal(t, fmt.Sprintf("%d", i*100), string(it.Value()))
	}

	var got []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		got = append(got, string(it.Value()))
	}
	require.Len(t, got, 300)
	for i, v := range got {
		require.Equal(t, fmt.Sprintf("%d", i), v)
	}
}

func TestCompressionModes(t *testing.T) {
	for _, c := range []options.CompressionType{options.None, options.Snappy, options.ZSTD} {
		for _, mode := range []options.FileLoadingMode{options.FileIO, options.MemoryMap} {
			t.Run(fmt.Sprintf("%s/%s", c, mode), func(t *testing.T) {
				opts := getTestTableOptions()
				opts.Compression = c
				opts.LoadingMode = mode
				opts.ChkMode = options.OnTableAndBlockRead
				table := buildTestTable(t, "key", 2000, opts)
				require.Equal(t, c, table.Compression())

				it := table.NewIterator()
				count := 0
				for it.SeekToFirst(); it.Valid(); it.Next() {
					require.Equal(t, key("key", count), string(it.Key()))
					count++
				}
				require.Equal(t, 2000, count)
			})
		}
	}
}

func TestInMemoryTable(t *testing.T) {
	opts := getTestTableOptions()
	b := NewTableBuilder(opts)
	require.True(t, b.Empty())
	for i := 0; i < 500; i++ {
		require.NoError(t, b.Add([]byte(key("m", i)), []byte("v")))
	}
	require.EqualValues(t, 500, b.KeyCount())
	data, err := b.Finish()
	require.NoError(t, err)

	tbl, err := OpenInMemoryTable(data, opts)
	require.NoError(t, err)
	defer tbl.Close()
	require.EqualValues(t, 500, tbl.KeyCount())
	require.Contains(t, tbl.Filename(), "in-memory")

	it := tbl.NewIterator()
	it.Seek([]byte(key("m", 250)))
	require.True(t, it.Valid())
	require.Equal(t, key("m", 250), string(it.Key()))
}

func TestEmptyTable(t *testing.T) {
	opts := getTestTableOptions()
	data, err := NewTableBuilder(opts).Finish()
	require.NoError(t, err)
	tbl, err := OpenInMemoryTable(data, opts)
	require.NoError(t, err)
	require.EqualValues(t, 0, tbl.KeyCount())

	it := tbl.NewIterator()
	it.SeekToFirst()
	require.False(t, it.Valid())
	it.SeekToLast()
	require.False(t, it.Valid())
	it.Seek([]byte("a"))
	require.False(t, it.Valid())
	require.NoError(t, it.Status())
}

func TestBuilderRejectsOutOfOrder(t *testing.T) {
	b := NewTableBuilder(getTestTableOptions())
	require.NoError(t, b.Add([]byte("b"), nil))
	require.NoError(t, b.Add([]byte("b"), nil))
	err := b.Add([]byte("a"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), ErrOutOfOrder.Error())
}

func TestTableBigValues(t *testing.T) {
	value := func(i int) []byte {
		return []byte(fmt.Sprintf("%0100000d", i)) // Larger than math.MaxUint16.
	}

	n := 20
	opts := Options{Compression: options.ZSTD, BlockSize: 4 * 1024}
	builder := NewTableBuilder(opts)
	defer builder.Close()
	for i := 0; i < n; i++ {
		require.NoError(t, builder.Add([]byte(key("", i)), value(i)))
	}

	filename := filepath.Join(t.TempDir(), "big.run")
	tbl, err := CreateTable(filename, builder)
	require.NoError(t, err, "unable to open table")
	defer func() { require.NoError(t, tbl.Close()) }()

	itr := tbl.NewIterator()
	count := 0
	for itr.SeekToFirst(); itr.Valid(); itr.Next() {
		require.Equal(t, []byte(key("", count)), itr.Key(), "keys are not equal")
		require.Equal(t, value(count), itr.Value(), "values are not equal")
		count++
	}
	require.False(t, itr.Valid(), "table iterator should be invalid now")
	require.Equal(t, n, count)
}

// This test is for verifying checksum failure during table open.
func TestTableChecksum(t *testing.T) {
	opts := getTestTableOptions()
	// When verifying checksum capability, we find it simpler to disable compression
	// since randomly initializing bytes can kill the compression storage.
	opts.Compression = options.None
	b := NewTableBuilder(opts)
	for i := 0; i < 10000; i++ {
		require.NoError(t, b.Add([]byte(key("k", i)), []byte("value")))
	}
	data, err := b.Finish()
	require.NoError(t, err)

	// Flip a byte inside the first block.
	corrupt := append([]byte{}, data...)
	corrupt[128] ^= 0xff
	filename := filepath.Join(t.TempDir(), "corrupt.run")
	require.NoError(t, os.WriteFile(filename, corrupt, 0644))

	opts.ChkMode = options.OnTableRead
	fd, err := os.Open(filename)
	require.NoError(t, err)
	_, err = OpenTable(fd, opts)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum")

	// Without verification on open, the iterator reports it instead.
	opts.ChkMode = options.OnBlockRead
	tbl, err := OpenInMemoryTable(corrupt, opts)
	require.NoError(t, err)
	it := tbl.NewIterator()
	it.SeekToFirst()
	require.False(t, it.Valid())
	require.Error(t, it.Status())
}

func TestCorruptFooter(t *testing.T) {
	_, err := OpenInMemoryTable([]byte("short"), getTestTableOptions())
	require.Error(t, err)

	data, err := NewTableBuilder(getTestTableOptions()).Finish()
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	_, err = OpenInMemoryTable(data, getTestTableOptions())
	require.Error(t, err)
	require.Contains(t, err.Error(), "magic")
}

func TestBlockCache(t *testing.T) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1000 * 10,
		MaxCost:     1 << 20,
		BufferItems: 64,
		Metrics:     true,
	})
	require.NoError(t, err)
	defer cache.Close()

	opts := getTestTableOptions()
	opts.BlockCache = cache
	table := buildTestTable(t, "key", 1000, opts)

	for round := 0; round < 2; round++ {
		it := table.NewIterator()
		count := 0
		for it.SeekToFirst(); it.Valid(); it.Next() {
			count++
		}
		require.Equal(t, 1000, count)
		cache.Wait()
	}
	require.Greater(t, cache.Metrics.Hits(), uint64(0))
}

func BenchmarkRead(b *testing.B) {
	tbl := buildTestTable(b, "key", 10000, getTestTableOptions())

	b.ResetTimer()
	// Iterate b.N times over the entire table.
	for i := 0; i < b.N; i++ {
		it := tbl.NewIterator()
		for it.SeekToFirst(); it.Valid(); it.Next() {
		}
	}
}

func BenchmarkChecksum(b *testing.B) {
	data := make([]byte, 4096)
	rand.Read(data)
	for _, algo := range []y.ChecksumAlgorithm{y.CRC32C, y.XXHash64} {
		b.Run(fmt.Sprintf("algo=%d", algo), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = y.CalculateChecksum(data, algo)
			}
		})
	}
}
