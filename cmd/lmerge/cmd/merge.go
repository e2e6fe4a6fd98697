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

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/net/trace"

	"github.com/dgraph-io/lmerge"
)

var mergeOutput string

var mergeCmd = &cobra.Command{
	Use:   "merge [flags] run...",
	Short: "Merge sorted run files into one.",
	Long: `
This command merges the given run files into a new run file with the learned
merge. With --validate every step is checked against the baseline merge and
the command fails on the first disagreement.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: handleMerge,
}

func init() {
	RootCmd.AddCommand(mergeCmd)
	addMergeFlags(mergeCmd)
	mergeCmd.Flags().StringVarP(&mergeOutput, "out", "o", "", "Path of the merged run file.")
}

func handleMerge(cmd *cobra.Command, args []string) error {
	if mergeOutput == "" {
		return errors.New("--out not specified")
	}
	opt, err := mergeOptions(cmd)
	if err != nil {
		return err
	}
	s, err := openStatsSink()
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
		opt = opt.WithStatsSink(s)
	}

	tr := trace.New("lmerge.Merge", mergeOutput)
	defer tr.Finish()
	ctx := trace.NewContext(context.Background(), tr)

	res, err := lmerge.Merge(ctx, opt, args, mergeOutput)
	if err != nil {
		tr.SetError()
		return errors.Wrap(err, "merge failed")
	}
	printResult(res)
	return nil
}

func printResult(res *lmerge.Result) {
	st := res.Stats
	fmt.Printf("Output:               %s (%s)\n", res.Output, humanize.IBytes(uint64(res.OutputSize)))
	fmt.Printf("Inputs:               %d\n", res.InputCount)
	fmt.Printf("Items:                %s\n", humanize.Comma(st.TotalItems))
	fmt.Printf("Segments:             %s\n", humanize.Comma(int64(st.Segments)))
	fmt.Printf("Learned comparisons:  %s\n", humanize.Comma(st.LearnedComparisons))
	if st.BaselineComparisons > 0 {
		fmt.Printf("Baseline comparisons: %s (%.1fx)\n", humanize.Comma(st.BaselineComparisons),
			ratio(st.BaselineComparisons, st.LearnedComparisons))
	}
	fmt.Printf("Corrections:          %s\n", humanize.Comma(st.Corrections))
	fmt.Printf("Took:                 %s\n", res.Duration)
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return float64(a)
	}
	return float64(a) / float64(b)
}
