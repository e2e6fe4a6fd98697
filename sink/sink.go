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


// Package sink persists merge statistics so that runs with different inputs,
// fan-ins and error bounds can be compared afterwards.
package sink

import (
	"context"
	"time"

	"github.com/dgraph-io/lmerge/y"
)

// Record is the statistics row of one completed merge.
type Record struct {
	Time time.Time
	// NumItems is the number of merged entries.
	NumItems int64
	// Comparisons counts key comparisons of the baseline merge.
	Comparisons int64
	// LearnedComparisons counts key comparisons of the learned merge.
	LearnedComparisons int64
	// Corrections counts positions walked to correct model predictions.
	Corrections int64
	// NumInputs is the fan-in of the merge.
	NumInputs int
	Gamma     float64
	Duration  time.Duration
}

// Sink receives one Record per merge. Implementations must be safe for
// concurrent use.
type Sink interface {
	Record(ctx context.Context, r Record) error
	Close() error
}

type multi []Sink

// Multi returns a Sink that forwards every record to all of sinks, in order.
// Nil sinks are skipped.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Record(ctx context.Context, r Record) error {
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) Close() error {
	errs := make([]error, 0, len(m))
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return y.CombineErrors(errs...)
}
