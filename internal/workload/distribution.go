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


package workload

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// Distribution draws key ordinals.
type Distribution interface {
	Uint64(rng *rand.Rand) uint64
}

// Uniform draws uniformly from [min, max].
type Uniform struct {
	min, max uint64
}

// NewUniform returns a uniform distribution over [min, max].
func NewUniform(min, max uint64) (*Uniform, error) {
	if min > max {
		return nil, errors.Errorf("min %d > max %d", min, max)
	}
	return &Uniform{min: min, max: max}, nil
}

// Uint64 implements Distribution.
func (u *Uniform) Uint64(rng *rand.Rand) uint64 {
	if u.max-u.min == math.MaxUint64 {
		return rng.Uint64()
	}
	return u.min + rng.Uint64n(u.max-u.min+1)
}

const (
	// DefaultTheta is the skew used when none is given.
	DefaultTheta = 0.99

	// Zeta terms summed exactly. The rest of the series is approximated.
	zetaExactTerms = 1 << 20
)

// Zipf draws from [min, max] such that min is the most frequent value, using
// the method of Gray et al., "Quickly Generating Billion-Record Synthetic
// Databases", SIGMOD 1994.
type Zipf struct {
	min, max     uint64
	theta        float64
	alpha, eta   float64
	zetaN        float64
	halfPowTheta float64
}

// NewZipf returns a Zipf distribution over [min, max] with skew theta.
func NewZipf(min, max uint64, theta float64) (*Zipf, error) {
	if min > max {
		return nil, errors.Errorf("min %d > max %d", min, max)
	}
	if max-min == math.MaxUint64 {
		return nil, errors.New("zipf range must be smaller than 2^64")
	}
	if !(theta > 0) || theta == 1 {
		return nil, errors.Errorf("invalid theta %v: must be > 0 and != 1", theta)
	}
	n := max - min + 1
	z := &Zipf{
		min:          min,
		max:          max,
		theta:        theta,
		alpha:        1 / (1 - theta),
		zetaN:        zeta(n, theta),
		halfPowTheta: 1 + math.Pow(0.5, theta),
	}
	z.eta = (1 - math.Pow(2/float64(n), 1-theta)) / (1 - zeta(2, theta)/z.zetaN)
	return z, nil
}

// zeta returns sum(1/i^theta) for i in [1, n]. Beyond zetaExactTerms the
// tail is replaced by its Euler-Maclaurin approximation.
func zeta(n uint64, theta float64) float64 {
	m := n
	if m > zetaExactTerms {
		m = zetaExactTerms
	}
	var sum float64
	for i := uint64(1); i <= m; i++ {
		sum += math.Pow(float64(i), -theta)
	}
	if m == n {
		return sum
	}
	fn, fm := float64(n), float64(m)
	sum += (math.Pow(fn, 1-theta) - math.Pow(fm, 1-theta)) / (1 - theta)
	sum += (math.Pow(fn, -theta) - math.Pow(fm, -theta)) / 2
	return sum
}

// Uint64 implements Distribution.
func (z *Zipf) Uint64(rng *rand.Rand) uint64 {
	u := rng.Float64()
	uz := u * z.zetaN
	switch {
	case uz < 1:
		return z.min
	case uz < z.halfPowTheta && z.max > z.min:
		return z.min + 1
	}
	spread := float64(z.max - z.min + 1)
	v := z.min + uint64(spread*math.Pow(z.eta*u-z.eta+1, z.alpha))
	if v > z.max {
		v = z.max
	}
	return v
}

var distRE = regexp.MustCompile(`^(?:(uniform|zipf)(?:\(([0-9.]+)\))?:)?(\d+)(?:-(\d+))?$`)

// Flag is a Distribution configured from the command line. It implements
// pflag.Value. Accepted forms are "N", "N-M", "uniform:N-M", "zipf:N-M" and
// "zipf(theta):N-M".
type Flag struct {
	Distribution
	spec string
}

// NewFlag parses spec and panics if it is invalid.
func NewFlag(spec string) *Flag {
	f := &Flag{}
	if err := f.Set(spec); err != nil {
		panic(err)
	}
	return f
}

func (f *Flag) String() string {
	return f.spec
}

// Type implements pflag.Value.
func (f *Flag) Type() string {
	return "distribution"
}

// Set implements pflag.Value.
func (f *Flag) Set(spec string) error {
	m := distRE.FindStringSubmatch(strings.ToLower(spec))
	if m == nil {
		return errors.Errorf("invalid distribution: %q", spec)
	}
	min, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid distribution: %q", spec)
	}
	max := min
	if m[4] != "" {
		if max, err = strconv.ParseUint(m[4], 10, 64); err != nil {
			return errors.Wrapf(err, "invalid distribution: %q", spec)
		}
	}

	var d Distribution
	switch m[1] {
	case "", "uniform":
		if m[2] != "" {
			return errors.Errorf("uniform distribution takes no skew: %q", spec)
		}
		d, err = NewUniform(min, max)
	case "zipf":
		theta := DefaultTheta
		if m[2] != "" {
			if theta, err = strconv.ParseFloat(m[2], 64); err != nil {
				return errors.Wrapf(err, "invalid distribution: %q", spec)
			}
		}
		d, err = NewZipf(min, max, theta)
	}
	if err != nil {
		return err
	}
	f.Distribution = d
	f.spec = spec
	return nil
}
