package cmd

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/dgraph-io/lmerge/internal/workload"
)

// run executes the CLI with args. Flags keep their values across runs, so
// the ones that name files are cleared first.
func run(t *testing.T, args ...string) error {
	dir, configPath, statsCSV, statsDB, mergeOutput = "", "", "", "", ""
	unset := func(f *pflag.Flag) { f.Changed = false }
	RootCmd.PersistentFlags().VisitAll(unset)
	for _, c := range RootCmd.Commands() {
		c.Flags().VisitAll(unset)
	}
	RootCmd.SetArgs(args)
	return RootCmd.Execute()
}

func TestGenMergeInfo(t *testing.T) {
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats.csv")

	require.NoError(t, run(t, "gen", "--dir", dir, "--keys", "3000", "--runs", "3",
		"--dist", "zipf:0-100000", "--key-width", "12"))
	var inputs []string
	for i := 0; i < 3; i++ {
		inputs = append(inputs, workload.RunFileName(i))
		_, err := os.Stat(filepath.Join(dir, workload.RunFileName(i)))
		require.NoError(t, err)
	}

	args := append([]string{"merge", "--dir", dir, "--validate", "--gamma", "4",
		"--compression", "zstd", "--stats-csv", stats, "--out", "merged.run"}, inputs...)
	require.NoError(t, run(t, args...))

	require.NoError(t, run(t, "info", "--dir", dir, "--model", "--verify", "merged.run"))

	fd, err := os.Open(stats)
	require.NoError(t, err)
	defer fd.Close()
	rows, err := csv.NewReader(fd).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "3000", rows[1][0])
	require.Equal(t, "3", rows[1][4])
}

func TestBench(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "stats.db")
	require.NoError(t, run(t, "bench", "--keys", "2000", "--runs", "4",
		"--gammas", "0,8", "--parallel", "2", "--stats-db", db))
	_, err := os.Stat(db)
	require.NoError(t, err)
}

func TestMergeRequiresOutput(t *testing.T) {
	mergeOutput = ""
	err := handleMerge(&cobra.Command{Use: "test"}, []string{"a.run"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "--out not specified")
}

func TestRunPath(t *testing.T) {
	old := dir
	defer func() { dir = old }()

	dir = ""
	require.Equal(t, "a.run", runPath("a.run"))
	dir = "/data"
	require.Equal(t, filepath.Join("/data", "a.run"), runPath("a.run"))
	require.Equal(t, "/x/a.run", runPath("/x/a.run"))
}
