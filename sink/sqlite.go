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
	"database/sql"
	"time"

	"github.com/pkg/errors"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

const createStatsTable = `
CREATE TABLE IF NOT EXISTS merge_stats (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	ts                  INTEGER NOT NULL,
	num_items           INTEGER NOT NULL,
	comparisons         INTEGER NOT NULL,
	learned_comparisons INTEGER NOT NULL,
	corrections         INTEGER NOT NULL,
	num_inputs          INTEGER NOT NULL,
	gamma               REAL NOT NULL,
	duration_ns         INTEGER NOT NULL
)`

const insertStats = `
INSERT INTO merge_stats (ts, num_items, comparisons, learned_comparisons, corrections,
	num_inputs, gamma, duration_ns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// SQLiteSink stores records in the merge_stats table of an SQLite database.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens the database at path, creating the table if needed.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "while opening stats database: %s", path)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createStatsTable); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "while creating merge_stats")
	}
	return &SQLiteSink{db: db}, nil
}

// Record inserts r.
func (s *SQLiteSink) Record(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, insertStats, r.Time.UnixNano(), r.NumItems,
		r.Comparisons, r.LearnedComparisons, r.Corrections, r.NumInputs, r.Gamma,
		int64(r.Duration))
	return errors.Wrap(err, "while inserting merge stats")
}

// Records returns every stored record, oldest first.
func (s *SQLiteSink) Records(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ts, num_items, comparisons, learned_comparisons, corrections, num_inputs,
	gamma, duration_ns
FROM merge_stats ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "while querying merge stats")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts, dur int64
		if err := rows.Scan(&ts, &r.NumItems, &r.Comparisons, &r.LearnedComparisons,
			&r.Corrections, &r.NumInputs, &r.Gamma, &dur); err != nil {
			return nil, errors.Wrap(err, "while scanning merge stats")
		}
		r.Time = time.Unix(0, ts)
		r.Duration = time.Duration(dur)
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "while reading merge stats")
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
