/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
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


package lmerge

import (
	"github.com/pkg/errors"
)

var (
	// ErrNoInputs is returned when a merge is requested over zero inputs.
	ErrNoInputs = errors.New("No inputs to merge")

	// ErrEmptyOutput is returned when no output path is given.
	ErrEmptyOutput = errors.New("Output path cannot be empty")
)
