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

package y

// This file contains some functions for error handling. Note that we are moving
// towards using x.Trace, i.e., rpc tracing using net/tracer. But for now, these
// functions are useful for simple checks logged on one machine.
// Some common use cases are:
// (1) You receive an error from external lib, and would like to check/log fatal.
//     For this, use y.Check, y.Checkf. These will check for err != nil, which is
//     more common in Go. If you want to check for boolean being true, use
//		   y.Assert, y.Assertf.
// (2) You receive an error from external lib, and would like to pass on with some
//     stack trace information. In this case, use y.Wrap or y.Wrapf.
// (3) You want to generate a new error with stack trace info. Use y.Errorf.

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOperation is returned by iterators that can only move
	// forward when asked to seek, step back or jump to the last entry.
	ErrUnsupportedOperation = errors.New("Operation not supported by this iterator")

	// ErrChecksumMismatch is returned at checksum mismatch.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ConsistencyError is reported when the learned merge and the baseline merge
// disagree on the output at some step. It always indicates a bug in the model
// or in the correction logic.
type ConsistencyError struct {
	Step          int64
	Field         string
	BaselineValid bool
	LearnedValid  bool
	BaselineKey   []byte
	LearnedKey    []byte
}

func (e *ConsistencyError) Error() string {
	if e.BaselineValid != e.LearnedValid {
		return fmt.Sprintf("merge divergence at step %d: baseline valid=%v, learned valid=%v",
			e.Step, e.BaselineValid, e.LearnedValid)
	}
	return fmt.Sprintf("merge divergence at step %d on %s: baseline key %q, learned key %q",
		e.Step, e.Field, e.BaselineKey, e.LearnedKey)
}

// IsConsistencyError reports whether err, or its cause, is a ConsistencyError.
func IsConsistencyError(err error) bool {
	_, ok := errors.Cause(err).(*ConsistencyError)
	return ok
}

// Check panics if err is not nil.
func Check(err error) {
	if err != nil {
		panic(errors.Wrap(err, "check failed"))
	}
}

// Check2 acts as convenience wrapper around Check, using the 2nd argument as error.
func Check2(_ interface{}, err error) {
	Check(err)
}

// AssertTrue asserts that b is true. Otherwise, it would panic.
func AssertTrue(b bool) {
	if !b {
		panic(errors.Errorf("Assert failed"))
	}
}

// AssertTruef is AssertTrue with extra info.
func AssertTruef(b bool, format string, args ...interface{}) {
	if !b {
		panic(errors.Errorf(format, args...))
	}
}

// Wrap wraps errors from external lib.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with extra info.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// CombineErrors joins all non-nil errors into one, in order.
func CombineErrors(errs ...error) error {
	var msgs []string
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		msgs = append(msgs, err.Error())
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return first
	}
	return errors.New(strings.Join(msgs, "; "))
}
