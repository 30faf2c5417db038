// Package navigator computes a step's position inside an ordered step sequence.
package navigator

import (
	"errors"
	"sort"
)

// ErrStepNotFound is returned when the requested step is not part of the sequence.
var ErrStepNotFound = errors.New("navigator: step not found")

// Position describes where a step sits inside its group.
type Position struct {
	Index   int
	Total   int
	IsFirst bool
	IsLast  bool

	Previous    int
	HasPrevious bool
	Next        int
	HasNext     bool
}

// Locate finds current inside steps, which must be sorted ascending without
// duplicates. Neighbours follow the sequence, not arithmetic, so gaps in the
// numbering are skipped. A missing step yields ErrStepNotFound rather than the
// nearest neighbour.
func Locate(steps []int, current int) (Position, error) {
	i := sort.SearchInts(steps, current)
	if i >= len(steps) || steps[i] != current {
		return Position{}, ErrStepNotFound
	}

	pos := Position{
		Index:   i,
		Total:   len(steps),
		IsFirst: i == 0,
		IsLast:  i == len(steps)-1,
	}
	if !pos.IsFirst {
		pos.Previous, pos.HasPrevious = steps[i-1], true
	}
	if !pos.IsLast {
		pos.Next, pos.HasNext = steps[i+1], true
	}
	return pos, nil
}

// First returns the first step of the sequence.
func First(steps []int) (int, bool) {
	if len(steps) == 0 {
		return 0, false
	}
	return steps[0], true
}
