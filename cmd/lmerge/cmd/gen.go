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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dgraph-io/lmerge/internal/workload"
)

var (
	genKeys     int
	genKeyWidth int
	genRuns     int
	genSeed     uint64
	genDist     = workload.NewFlag("uniform:0-1099511627776")
)

var _ pflag.Value = genDist

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate sorted run files with synthetic keys.",
	Long: `
This command draws fixed-width numeric keys from a distribution, buffers them
in memtables and flushes every memtable as a run file into --dir, the way an
LSM tree flushes level zero tables. The runs overlap in key space, which makes
them useful inputs for the merge and bench commands.
`,
	RunE: handleGen,
}

func init() {
	RootCmd.AddCommand(genCmd)
	addWorkloadFlags(genCmd)
	addTableFlags(genCmd)
}

// addWorkloadFlags registers the flags describing a synthetic workload on c.
func addWorkloadFlags(c *cobra.Command) {
	c.Flags().IntVarP(&genKeys, "keys", "n", 1000000, "Total number of keys.")
	c.Flags().IntVar(&genKeyWidth, "key-width", 20, "Number of digits of each key.")
	c.Flags().IntVarP(&genRuns, "runs", "r", 8, "Number of runs.")
	c.Flags().Uint64Var(&genSeed, "seed", 1, "Random seed.")
	c.Flags().Var(genDist, "dist",
		"Key distribution: [uniform|zipf|zipf(theta)]:min-max.")
}

func workloadConfig() workload.Config {
	return workload.Config{
		NumKeys:  genKeys,
		KeyWidth: genKeyWidth,
		NumRuns:  genRuns,
		Dist:     genDist,
		Seed:     genSeed,
	}
}

func handleGen(cmd *cobra.Command, args []string) error {
	opt, err := mergeOptions(cmd)
	if err != nil {
		return err
	}
	start := time.Now()
	runs, err := workload.Runs(workloadConfig())
	if err != nil {
		return err
	}
	outDir := opt.Dir
	if outDir == "" {
		outDir = "."
	}
	paths, err := workload.WriteRuns(outDir, runs, opt.TableOptions())
	if err != nil {
		return err
	}
	for i, p := range paths {
		fmt.Printf("%s: %s keys\n", p, humanize.Comma(int64(runs[i].Len())))
	}
	fmt.Printf("Wrote %s keys into %d runs with distribution %s. Took: %s\n",
		humanize.Comma(int64(genKeys)), len(paths), genDist, time.Since(start))
	return nil
}
