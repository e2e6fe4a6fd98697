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


package sink

import (
	"context"
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"
)

// csvHeader names the columns of a stats file.
var csvHeader = []string{
	"NUM_ITEMS", "COMP_COUNT", "LEARNED_COMP_COUNT", "CDF_ABS_ERROR", "NUM_ITERATORS",
}

// CSVSink appends one row per merge to a CSV file. The header is written
// when the file is empty.
type CSVSink struct {
	sync.Mutex
	fd *os.File
	w  *csv.Writer
}

// NewCSVSink opens or creates path for appending.
func NewCSVSink(path string) (*CSVSink, error) {
	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "while opening stats file: %s", path)
	}
	fi, err := fd.Stat()
	if err != nil {
		_ = fd.Close()
		return nil, errors.Wrapf(err, "while reading stats file: %s", path)
	}
	s := &CSVSink{fd: fd, w: csv.NewWriter(fd)}
	if fi.Size() == 0 {
		if err := s.write(csvHeader); err != nil {
			_ = fd.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *CSVSink) write(row []string) error {
	if err := s.w.Write(row); err != nil {
		return errors.Wrapf(err, "while writing to %s", s.fd.Name())
	}
	s.w.Flush()
	return errors.Wrapf(s.w.Error(), "while flushing %s", s.fd.Name())
}

// Record appends r as a row.
func (s *CSVSink) Record(_ context.Context, r Record) error {
	row := []string{
		strconv.FormatInt(r.NumItems, 10),
		strconv.FormatInt(r.Comparisons, 10),
		strconv.FormatInt(r.LearnedComparisons, 10),
		strconv.FormatInt(r.Corrections, 10),
		strconv.Itoa(r.NumInputs),
	}
	s.Lock()
	defer s.Unlock()
	return s.write(row)
}

// Close syncs and closes the file.
func (s *CSVSink) Close() error {
	s.Lock()
	defer s.Unlock()
	if err := s.fd.Sync(); err != nil {
		_ = s.fd.Close()
		return errors.Wrap(err, "while syncing stats file")
	}
	return s.fd.Close()
}
