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

/*
Package plr implements a greedy, online piecewise linear regression that
approximates the mapping from an integer key to its rank in a sorted run.

Every segment emitted by the builder predicts the rank of each point it was
fit from within gamma. Points that were never fed to the builder carry no
such guarantee, so callers must correct predictions against the real data.
*/
package plr

import (
	"fmt"
	"math"
)

// Point is a (key, rank) sample.
type Point struct {
	X float64
	Y float64
}

// Line is y = A*x + B.
type Line struct {
	A float64
	B float64
}

// Segment approximates rank = Slope*key + Intercept for keys >= StartKey and
// below the StartKey of the following segment.
type Segment struct {
	StartKey  uint64
	Slope     float64
	Intercept float64
}

// Predict evaluates the segment at x without rounding.
func (s Segment) Predict(x float64) float64 {
	return x*s.Slope + s.Intercept
}

func (s Segment) String() string {
	return fmt.Sprintf("start=%d slope=%g intercept=%g", s.StartKey, s.Slope, s.Intercept)
}

type state int

const (
	awaitingFirst state = iota
	awaitingSecond
	fitting
	finished
)

func (s state) String() string {
	switch s {
	case awaitingFirst:
		return "awaiting-first"
	case awaitingSecond:
		return "awaiting-second"
	case fitting:
		return "fitting"
	case finished:
		return "finished"
	}
	return "unknown"
}

func slope(p1, p2 Point) float64 {
	return (p2.Y - p1.Y) / (p2.X - p1.X)
}

func lineThrough(p1, p2 Point) Line {
	a := slope(p1, p2)
	return Line{A: a, B: -a*p1.X + p1.Y}
}

// intersection returns the point where l1 and l2 meet. ok is false for
// parallel lines.
func intersection(l1, l2 Line) (Point, bool) {
	den := l1.A - l2.A
	if den == 0 {
		return Point{}, false
	}
	p := Point{
		X: (l2.B - l1.B) / den,
		Y: (l1.A*l2.B - l2.A*l1.B) / den,
	}
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return Point{}, false
	}
	return p, true
}

func isAbove(pt Point, l Line) bool {
	return pt.Y > l.A*pt.X+l.B
}

func isBelow(pt Point, l Line) bool {
	return pt.Y < l.A*pt.X+l.B
}

// GreedyPLR builds segments one point at a time. Points must be fed with
// strictly increasing X.
type GreedyPLR struct {
	gamma float64
	state state

	s0, s1 Point
	sint   Point
	upper  Line
	lower  Line
}

// NewGreedyPLR returns a builder that keeps the fit error of every fed point
// within gamma.
func NewGreedyPLR(gamma float64) *GreedyPLR {
	if gamma < 0 || math.IsNaN(gamma) {
		panic(fmt.Sprintf("plr: invalid gamma %v", gamma))
	}
	return &GreedyPLR{gamma: gamma}
}

// Gamma returns the configured error bound.
func (p *GreedyPLR) Gamma() float64 { return p.gamma }

// Process feeds pt to the builder. When pt does not fit the open segment the
// open segment is closed and returned with ok set, and pt anchors the next one.
func (p *GreedyPLR) Process(pt Point) (seg Segment, ok bool) {
	switch p.state {
	case awaitingFirst:
		p.s0 = pt
		p.state = awaitingSecond
	case awaitingSecond:
		p.s1 = pt
		p.setup()
		p.state = fitting
	case fitting:
		return p.fit(pt)
	default:
		panic(fmt.Sprintf("plr: Process called in state %s", p.state))
	}
	return Segment{}, false
}

func (p *GreedyPLR) setup() {
	g := p.gamma
	p.lower = lineThrough(Point{p.s0.X, p.s0.Y + g}, Point{p.s1.X, p.s1.Y - g})
	p.upper = lineThrough(Point{p.s0.X, p.s0.Y - g}, Point{p.s1.X, p.s1.Y + g})
	sint, ok := intersection(p.upper, p.lower)
	if !ok {
		// With gamma == 0 both lines pass through s0 and s1.
		sint = p.s0
	}
	p.sint = sint
}

func (p *GreedyPLR) fit(pt Point) (Segment, bool) {
	if !(isAbove(pt, p.lower) && isBelow(pt, p.upper)) {
		seg := p.current()
		p.s0 = pt
		p.state = awaitingSecond
		return seg, true
	}

	hi := Point{pt.X, pt.Y + p.gamma}
	lo := Point{pt.X, pt.Y - p.gamma}
	if isBelow(hi, p.upper) {
		p.upper = lineThrough(p.sint, hi)
	}
	if isAbove(lo, p.lower) {
		p.lower = lineThrough(p.sint, lo)
	}
	return Segment{}, false
}

func (p *GreedyPLR) current() Segment {
	avg := (p.lower.A + p.upper.A) / 2
	return Segment{
		StartKey:  uint64(p.s0.X),
		Slope:     avg,
		Intercept: -avg*p.sint.X + p.sint.Y,
	}
}

// Finish closes the builder and returns the open segment, if any. A single
// pending point yields a flat segment through it.
func (p *GreedyPLR) Finish() (Segment, bool) {
	st := p.state
	p.state = finished
	switch st {
	case awaitingFirst:
		return Segment{}, false
	case awaitingSecond:
		return Segment{StartKey: uint64(p.s0.X), Intercept: p.s0.Y}, true
	case fitting:
		return p.current(), true
	}
	return Segment{}, false
}
