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
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgraph-io/lmerge"
	"github.com/dgraph-io/lmerge/internal/workload"
	"github.com/dgraph-io/lmerge/table"
)

var (
	benchGammas   []string
	benchParallel int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the learned merge against the baseline merge.",
	Long: `
This command generates a synthetic workload in memory and merges its runs once
per error bound given by --gammas. Every merge is validated against the
baseline merge, and the comparisons made by both are reported side by side.
`,
	RunE: handleBench,
}

func init() {
	RootCmd.AddCommand(benchCmd)
	addWorkloadFlags(benchCmd)
	addMergeFlags(benchCmd)
	benchCmd.Flags().StringSliceVar(&benchGammas, "gammas", []string{"0", "1", "10", "100"},
		"Error bounds to benchmark. Overrides --gamma.")
	benchCmd.Flags().IntVar(&benchParallel, "parallel", 1, "Number of merges run at once.")
}

type benchResult struct {
	gamma    float64
	stats    table.MergeStats
	duration time.Duration
}

func handleBench(cmd *cobra.Command, args []string) error {
	opt, err := mergeOptions(cmd)
	if err != nil {
		return err
	}
	opt = opt.WithValidate(true)
	if benchParallel <= 0 {
		return errors.Errorf("invalid --parallel: %d", benchParallel)
	}
	gammas := make([]float64, len(benchGammas))
	for i, g := range benchGammas {
		if gammas[i], err = strconv.ParseFloat(g, 64); err != nil {
			return errors.Wrapf(err, "invalid gamma: %q", g)
		}
	}

	s, err := openStatsSink()
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
	}

	start := time.Now()
	runs, err := workload.Runs(workloadConfig())
	if err != nil {
		return err
	}
	tables, err := workload.BuildTables(runs, opt.TableOptions())
	if err != nil {
		return err
	}
	fmt.Printf("Generated %s keys in %d runs. Took: %s\n",
		humanize.Comma(int64(genKeys)), len(tables), time.Since(start))

	results := make([]benchResult, len(gammas))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(benchParallel)
	for i, gm := range gammas {
		i, gopt := i, opt.WithGamma(gm)
		g.Go(func() error {
			start := time.Now()
			out := table.NewTableBuilder(gopt.TableOptions())
			defer out.Close()
			st, err := lmerge.MergeTables(ctx, gopt, tables, out)
			if err != nil {
				return errors.Wrapf(err, "gamma %v", gopt.Gamma)
			}
			results[i] = benchResult{gamma: gopt.Gamma, stats: st, duration: time.Since(start)}
			if s == nil {
				return nil
			}
			res := &lmerge.Result{
				Stats:      st,
				Duration:   results[i].duration,
				InputCount: len(tables),
				Gamma:      gopt.Gamma,
			}
			return s.Record(ctx, res.Record())
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "GAMMA\tITEMS\tSEGMENTS\tBASELINE\tLEARNED\tSAVED\tCORRECTIONS\tTOOK\t")
	for _, r := range results {
		st := r.stats
		fmt.Fprintf(w, "%v\t%s\t%s\t%s\t%s\t%.1fx\t%s\t%s\t\n", r.gamma,
			humanize.Comma(st.TotalItems), humanize.Comma(int64(st.Segments)),
			humanize.Comma(st.BaselineComparisons), humanize.Comma(st.LearnedComparisons),
			ratio(st.BaselineComparisons, st.LearnedComparisons),
			humanize.Comma(st.Corrections), r.duration.Round(time.Millisecond))
	}
	return w.Flush()
}
