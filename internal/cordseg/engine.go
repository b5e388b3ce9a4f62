// Package cordseg implements the chord segmentation engine: given a spinal
// cord mask and per-vertebra masks on the same voxel grid, it determines for
// each vertebra the contiguous axial slice range where the vertebra is
// present above a relative-density threshold, and optionally the chord mask
// confined to that range.
package cordseg

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/radonc-tools/chordcut/internal/monitoring"
	"github.com/radonc-tools/chordcut/internal/volume"
)

// Precondition errors. Both abort a ComputeSegments call before any vertebra
// is processed.
var (
	ErrInvalidThreshold = errors.New("threshold must be strictly between 0 and 1")
	ErrGridMismatch     = errors.New("vertebra mask grid differs from chord mask grid")
)

// SliceRange is an inclusive pair of axial slice indices where a vertebra is
// considered present. Min <= Max always holds for an emitted range.
type SliceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Result is the outcome of one ComputeSegments call. Ranges covers exactly
// the vertebrae that had a non-empty mask and at least one qualifying slice;
// Confined covers the subset of those with actual chord overlap (and only
// when confined masks were requested). Order preserves the input vertebra
// order restricted to ranged vertebrae, so iteration is deterministic
// regardless of completion order.
type Result struct {
	Order       []string
	Ranges      map[string]SliceRange
	Confined    map[string]*volume.Volume
	Diagnostics []Diagnostic
}

// Tagged per-vertebra outcome; the two phases (range detection, confinement)
// skip independently.
type outcomeKind int

const (
	outcomeMissingMask outcomeKind = iota
	outcomeEmptyMask
	outcomeNoQualifyingSlice
	outcomeRanged
	outcomeRangedNoOverlap
)

type vertebraOutcome struct {
	kind     outcomeKind
	rng      SliceRange
	confined *volume.Volume
}

// ComputeSegments runs the range-detection and confinement algorithm over
// the vertebrae in order. Vertebrae absent from masks are skipped with a
// diagnostic, never an error. Processing fans out across p.GetWorkers()
// goroutines; ctx only gates launching further per-vertebra tasks (in-flight
// work is pure computation and runs to completion). On cancellation the
// partial result is returned together with the context error.
func ComputeSegments(ctx context.Context, chord *volume.Volume, masks map[string]*volume.Volume, order []string, p Params) (*Result, error) {
	if !p.ValidThreshold() {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidThreshold, p.Threshold)
	}
	if chord == nil {
		return nil, errors.New("chord mask is required")
	}
	for _, v := range order {
		if m, ok := masks[v]; ok && !chord.SameGrid(m) {
			return nil, fmt.Errorf("%w: vertebra %s has grid %s, chord has %s", ErrGridMismatch, v, m.Dims(), chord.Dims())
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Pre-sized slot per order position; each task writes only its own slot,
	// so no locking is needed.
	type slot struct {
		outcome vertebraOutcome
		done    bool
	}
	slots := make([]slot, len(order))

	sem := make(chan struct{}, p.GetWorkers())
	var wg sync.WaitGroup
	for i, v := range order {
		if _, ok := masks[v]; !ok {
			slots[i] = slot{outcome: vertebraOutcome{kind: outcomeMissingMask}, done: true}
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, mask *volume.Volume) {
			defer wg.Done()
			defer func() { <-sem }()
			slots[i].outcome = segmentOne(chord, mask, p.Threshold, p.ProduceConfinedMasks)
			slots[i].done = true
		}(i, masks[v])
	}
	wg.Wait()

	res := &Result{
		Ranges: make(map[string]SliceRange),
	}
	if p.ProduceConfinedMasks {
		res.Confined = make(map[string]*volume.Volume)
	}
	for i, v := range order {
		s := slots[i]
		if !s.done {
			continue // launch was cancelled
		}
		switch s.outcome.kind {
		case outcomeMissingMask:
			res.report(v, ConditionMissingMask, p.Verbosity)
		case outcomeEmptyMask:
			res.report(v, ConditionEmptyMask, p.Verbosity)
		case outcomeNoQualifyingSlice:
			res.report(v, ConditionNoQualifyingSlice, p.Verbosity)
		case outcomeRanged, outcomeRangedNoOverlap:
			res.Order = append(res.Order, v)
			res.Ranges[v] = s.outcome.rng
			if p.Verbosity > 1 {
				monitoring.Logf("%s: min z: %d; max z: %d", v, s.outcome.rng.Min, s.outcome.rng.Max)
			}
			if s.outcome.kind == outcomeRangedNoOverlap {
				res.report(v, ConditionNoOverlap, p.Verbosity)
			} else if s.outcome.confined != nil {
				res.Confined[v] = s.outcome.confined
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Result) report(v string, c Condition, verbosity int) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Vertebra: v, Condition: c})
	if verbosity > 0 {
		monitoring.Logf("%s: %s", v, c)
	}
}

// segmentOne is the pure per-vertebra computation: it reads only the shared
// chord mask and this vertebra's mask, and holds no state across calls.
func segmentOne(chord, mask *volume.Volume, threshold float64, confine bool) vertebraOutcome {
	profile := mask.AxialProfile()
	total := volume.Total(profile)
	if total <= 0 {
		return vertebraOutcome{kind: outcomeEmptyMask}
	}

	minZ, maxZ := -1, -1
	for z, count := range profile {
		if count/total > threshold {
			if minZ < 0 {
				minZ = z
			}
			maxZ = z
		}
	}
	if minZ < 0 {
		return vertebraOutcome{kind: outcomeNoQualifyingSlice}
	}

	out := vertebraOutcome{kind: outcomeRanged, rng: SliceRange{Min: minZ, Max: maxZ}}
	if !confine {
		return out
	}
	confined := chord.ConfineAxial(minZ, maxZ)
	if confined.Count() == 0 {
		out.kind = outcomeRangedNoOverlap
		return out
	}
	out.confined = confined
	return out
}
