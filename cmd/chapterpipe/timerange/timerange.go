// Package timerange implements the half-open interval algebra the chapter
// pipeline uses to plan and re-time cuts: merge, subtract, sum, and
// shift-for-removed.
package timerange

import (
	"fmt"
	"math"
	"sort"

	"github.com/castforge/chapterpipe/pipelineerr"
)

const (
	// EqualEpsilon is the tolerance under which two timestamps are
	// considered equal.
	EqualEpsilon = 0.001
	// TouchingEpsilon is the gap under which two adjacent ranges are
	// folded together by Merge.
	TouchingEpsilon = 0.01
)

// Range is a half-open interval [Start, End) in seconds.
type Range struct {
	Start float64
	End   float64
}

// Empty reports whether the range has collapsed to zero or negative length.
func (r Range) Empty() bool {
	return r.End-r.Start <= EqualEpsilon
}

// Len returns the range's length in seconds, or 0 if it has collapsed.
func (r Range) Len() float64 {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start
}

func validate(ranges []Range) error {
	for _, r := range ranges {
		if math.IsNaN(r.Start) || math.IsNaN(r.End) || math.IsInf(r.Start, 0) || math.IsInf(r.End, 0) {
			return fmt.Errorf("range [%v, %v): %w", r.Start, r.End, pipelineerr.ErrInvalidInput)
		}
	}
	return nil
}

// Merge sorts ranges by start and folds adjacent ranges whose gap is within
// TouchingEpsilon into a single range using the max end. Collapsed ranges
// are dropped.
func Merge(ranges []Range) ([]Range, error) {
	if err := validate(ranges); err != nil {
		return nil, err
	}

	clean := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if !r.Empty() {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}

	sort.Slice(clean, func(i, j int) bool { return clean[i].Start < clean[j].Start })

	merged := []Range{clean[0]}
	for _, r := range clean[1:] {
		last := &merged[len(merged)-1]
		if r.Start-last.End <= TouchingEpsilon {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}

	return merged, nil
}

// Subtract returns the complement of excludes within domain, i.e. the
// "keep ranges". Empty resulting segments are dropped.
func Subtract(domain Range, excludes []Range) ([]Range, error) {
	if err := validate([]Range{domain}); err != nil {
		return nil, err
	}
	if err := validate(excludes); err != nil {
		return nil, err
	}
	if domain.Empty() {
		return nil, nil
	}

	merged, err := Merge(excludes)
	if err != nil {
		return nil, err
	}

	keep := make([]Range, 0, len(merged)+1)
	cursor := domain.Start
	for _, ex := range merged {
		s, e := ex.Start, ex.End
		if e <= domain.Start || s >= domain.End {
			continue
		}
		if s < domain.Start {
			s = domain.Start
		}
		if e > domain.End {
			e = domain.End
		}
		if s > cursor {
			gap := Range{Start: cursor, End: s}
			if !gap.Empty() {
				keep = append(keep, gap)
			}
		}
		if e > cursor {
			cursor = e
		}
	}
	if cursor < domain.End {
		tail := Range{Start: cursor, End: domain.End}
		if !tail.Empty() {
			keep = append(keep, tail)
		}
	}

	return keep, nil
}

// Sum returns the total length of ranges.
func Sum(ranges []Range) float64 {
	var total float64
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}

// ShiftForRemoved maps an absolute time t on the pre-splice timeline to its
// position on the post-splice timeline, given the (already merged,
// sorted) set of removed ranges. Ranges wholly before t subtract their
// full length; a range containing t subtracts only the partial length up
// to t, clamping the mapped time to the removed range's start.
func ShiftForRemoved(t float64, removed []Range) (float64, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("time %v: %w", t, pipelineerr.ErrInvalidInput)
	}
	if err := validate(removed); err != nil {
		return 0, err
	}

	merged, err := Merge(removed)
	if err != nil {
		return 0, err
	}

	shifted := t
	for _, r := range merged {
		switch {
		case r.End <= t:
			shifted -= r.Len()
		case r.Start < t && t < r.End:
			shifted -= t - r.Start
			return shifted, nil
		}
	}
	return shifted, nil
}
