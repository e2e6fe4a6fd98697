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
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dgraph-io/lmerge/model"
	"github.com/dgraph-io/lmerge/table"
	"github.com/dgraph-io/lmerge/y"
)

var (
	infoModel    bool
	infoSegments bool
	infoVerify   bool
)

var infoCmd = &cobra.Command{
	Use:   "info [flags] run...",
	Short: "Print information about run files.",
	Long: `
This command prints the size, key count, block layout and key range of each
run file. With --model it also trains the model the learned merge would use
for the run and prints how well it fits.
`,
	Args: cobra.MinimumNArgs(1),
	RunE: handleInfo,
}

func init() {
	RootCmd.AddCommand(infoCmd)
	infoCmd.Flags().Float64VarP(&gamma, "gamma", "g", 10, "Error bound of the model.")
	infoCmd.Flags().BoolVarP(&infoModel, "model", "m", false, "Train and describe the model.")
	infoCmd.Flags().BoolVar(&infoSegments, "show-segments", false,
		"Print every segment of the model. Implies --model.")
	infoCmd.Flags().BoolVar(&infoVerify, "verify", false, "Verify every block checksum.")
}

func handleInfo(cmd *cobra.Command, args []string) error {
	opt, err := mergeOptions(cmd)
	if err != nil {
		return err
	}
	for _, name := range args {
		if err := printRunInfo(runPath(name), opt.TableOptions()); err != nil {
			return errors.Wrapf(err, "failed to read %s", name)
		}
	}
	return nil
}

func printRunInfo(name string, topt table.Options) error {
	fd, err := os.Open(name)
	if err != nil {
		return err
	}
	t, err := table.OpenTable(fd, topt)
	if err != nil {
		return err
	}
	defer t.Close()

	fmt.Printf("[%s]\n", t.Filename())
	fmt.Printf("  Size:        %s\n", humanize.IBytes(uint64(t.Size())))
	fmt.Printf("  Keys:        %s\n", humanize.Comma(int64(t.KeyCount())))
	fmt.Printf("  Blocks:      %d\n", t.NumBlocks())
	fmt.Printf("  Compression: %s\n", t.Compression())
	fmt.Printf("  Smallest:    %q\n", t.Smallest())
	fmt.Printf("  Biggest:     %q\n", t.Biggest())
	if infoVerify {
		if err := t.VerifyChecksum(); err != nil {
			return err
		}
		fmt.Printf("  Checksums:   OK\n")
	}
	if !infoModel && !infoSegments {
		return nil
	}

	keys := make([][]byte, 0, t.KeyCount())
	it := t.NewIterator()
	defer it.Close()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		keys = append(keys, y.Copy(it.Key()))
	}
	if err := it.Status(); err != nil {
		return err
	}
	run := model.NewRun(keys, topt.Gamma)
	fmt.Printf("  Gamma:       %v\n", run.Gamma())
	fmt.Printf("  Segments:    %s\n", humanize.Comma(int64(len(run.Segments()))))
	fmt.Printf("  Max error:   %.2f\n", run.MaxTrainingError())
	fmt.Printf("  Mean error:  %.2f\n", run.MeanAbsError())
	if infoSegments {
		for i, seg := range run.Segments() {
			fmt.Printf("    %6d %s\n", i, seg)
		}
	}
	return nil
}
