package cordseg

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/radonc-tools/chordcut/internal/monitoring"
	"github.com/radonc-tools/chordcut/internal/volume"
)

func init() {
	// Keep test output quiet; verbosity paths are still exercised.
	monitoring.SetLogger(nil)
}

// chordVolume builds a chord mask occupying the full x/y extent of the given
// inclusive axial slice range.
func chordVolume(nx, ny, nz, minZ, maxZ int) *volume.Volume {
	v := volume.New(nx, ny, nz)
	for z := minZ; z <= maxZ; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				v.Set(x, y, z, true)
			}
		}
	}
	return v
}

// uniformMask builds a vertebra mask with voxelsPerSlice occupied voxels in
// every slice of the inclusive range.
func uniformMask(nx, ny, nz, minZ, maxZ, voxelsPerSlice int) *volume.Volume {
	v := volume.New(nx, ny, nz)
	for z := minZ; z <= maxZ; z++ {
		placed := 0
		for y := 0; y < ny && placed < voxelsPerSlice; y++ {
			for x := 0; x < nx && placed < voxelsPerSlice; x++ {
				v.Set(x, y, z, true)
				placed++
			}
		}
	}
	return v
}

func TestComputeSegments_EndToEnd(t *testing.T) {
	// Chord occupies slices 10-40; T5 occupies 15-25 with uniform density.
	// Every slice fraction is 1/11 ~ 0.091 > 0.05, so the range is exactly
	// the occupied extent and the chord fully overlaps it.
	chord := chordVolume(10, 10, 50, 10, 40)
	masks := map[string]*volume.Volume{
		"T5": uniformMask(10, 10, 50, 15, 25, 4),
	}

	res, err := ComputeSegments(context.Background(), chord, masks, []string{"T5"}, Params{
		Threshold:            0.05,
		ProduceConfinedMasks: true,
	})
	if err != nil {
		t.Fatalf("ComputeSegments failed: %v", err)
	}

	wantRanges := map[string]SliceRange{"T5": {Min: 15, Max: 25}}
	if diff := cmp.Diff(wantRanges, res.Ranges); diff != "" {
		t.Errorf("ranges mismatch (-want +got):\n%s", diff)
	}

	confined, ok := res.Confined["T5"]
	if !ok {
		t.Fatal("expected a confined chord mask for T5")
	}
	// Confinement correctness: true exactly where the chord is true within
	// [15,25], false everywhere else.
	for z := 0; z < chord.NZ; z++ {
		want := 0
		if z >= 15 && z <= 25 {
			want = 100
		}
		if got := confined.SliceCount(z); got != want {
			t.Errorf("confined SliceCount(%d) = %d, want %d", z, got, want)
		}
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", res.Diagnostics)
	}
}

func TestComputeSegments_BoundaryNoOverlap(t *testing.T) {
	// L5 is concentrated in slice 60 while the chord stops at slice 40: the
	// range is still produced, but L5 is excluded from confined outputs.
	chord := chordVolume(10, 10, 70, 0, 40)
	mask := volume.New(10, 10, 70)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			mask.Set(x, y, 60, true)
		}
	}
	masks := map[string]*volume.Volume{"L5": mask}

	res, err := ComputeSegments(context.Background(), chord, masks, []string{"L5"}, Params{
		Threshold:            0.05,
		ProduceConfinedMasks: true,
	})
	if err != nil {
		t.Fatalf("ComputeSegments failed: %v", err)
	}

	if got, ok := res.Ranges["L5"]; !ok || got != (SliceRange{Min: 60, Max: 60}) {
		t.Errorf("L5 range = %v (present=%v), want (60,60)", got, ok)
	}
	if _, ok := res.Confined["L5"]; ok {
		t.Error("L5 must be excluded from confined outputs with zero overlap")
	}
	wantDiag := []Diagnostic{{Vertebra: "L5", Condition: ConditionNoOverlap}}
	if diff := cmp.Diff(wantDiag, res.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeSegments_InvalidThreshold(t *testing.T) {
	chord := chordVolume(4, 4, 10, 0, 9)
	masks := map[string]*volume.Volume{"T1": uniformMask(4, 4, 10, 2, 5, 2)}

	for _, threshold := range []float64{1.2, 0, 1, -0.5} {
		_, err := ComputeSegments(context.Background(), chord, masks, []string{"T1"}, Params{Threshold: threshold})
		if !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %g: expected ErrInvalidThreshold, got %v", threshold, err)
		}
	}
}

func TestComputeSegments_GridMismatch(t *testing.T) {
	chord := chordVolume(4, 4, 10, 0, 9)
	masks := map[string]*volume.Volume{
		"T1": uniformMask(4, 4, 12, 2, 5, 2), // different NZ
	}

	_, err := ComputeSegments(context.Background(), chord, masks, []string{"T1"}, Params{Threshold: 0.1})
	if !errors.Is(err, ErrGridMismatch) {
		t.Errorf("expected ErrGridMismatch, got %v", err)
	}
}

func TestComputeSegments_MissingAndEmptyMasks(t *testing.T) {
	chord := chordVolume(4, 4, 10, 0, 9)
	masks := map[string]*volume.Volume{
		"C2": volume.New(4, 4, 10), // present but never segmented
		"C3": uniformMask(4, 4, 10, 4, 6, 3),
	}

	res, err := ComputeSegments(context.Background(), chord, masks, []string{"C1", "C2", "C3"}, Params{Threshold: 0.1})
	if err != nil {
		t.Fatalf("ComputeSegments failed: %v", err)
	}

	if _, ok := res.Ranges["C1"]; ok {
		t.Error("missing-mask vertebra must not appear in the result")
	}
	if _, ok := res.Ranges["C2"]; ok {
		t.Error("empty-mask vertebra must not appear in the result")
	}
	if _, ok := res.Ranges["C3"]; !ok {
		t.Error("C3 should have produced a range")
	}

	wantDiag := []Diagnostic{
		{Vertebra: "C1", Condition: ConditionMissingMask},
		{Vertebra: "C2", Condition: ConditionEmptyMask},
	}
	if diff := cmp.Diff(wantDiag, res.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeSegments_NoQualifyingSlice(t *testing.T) {
	// One voxel in each of 20 slices: every slice fraction is 0.05, which
	// never exceeds a 0.5 threshold. The batch must continue, not crash.
	chord := chordVolume(4, 4, 20, 0, 19)
	thin := volume.New(4, 4, 20)
	for z := 0; z < 20; z++ {
		thin.Set(0, 0, z, true)
	}
	// T8 is concentrated in a single slice, so that slice's fraction is 1.0
	// and it clears the 0.5 threshold.
	masks := map[string]*volume.Volume{
		"T7": thin,
		"T8": uniformMask(4, 4, 20, 5, 5, 8),
	}

	res, err := ComputeSegments(context.Background(), chord, masks, []string{"T7", "T8"}, Params{Threshold: 0.5, Verbosity: 2})
	if err != nil {
		t.Fatalf("ComputeSegments failed: %v", err)
	}

	if _, ok := res.Ranges["T7"]; ok {
		t.Error("T7 must not appear in the result when no slice qualifies")
	}
	if _, ok := res.Ranges["T8"]; !ok {
		t.Error("T8 must still be processed after T7's condition")
	}
	wantDiag := []Diagnostic{{Vertebra: "T7", Condition: ConditionNoQualifyingSlice}}
	if diff := cmp.Diff(wantDiag, res.Diagnostics); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeSegments_RangeEndpointsQualify(t *testing.T) {
	// Slice counts 0,30,2,30,0: with T=0.1 only slices 1 and 3 qualify, so
	// min and max must themselves be qualifying slices even though slice 2
	// inside the range is not.
	chord := chordVolume(8, 8, 5, 0, 4)
	mask := uniformMask(8, 8, 5, 1, 1, 30)
	for i := 0; i < 30; i++ {
		mask.Set(i%8, i/8, 3, true)
	}
	mask.Set(0, 0, 2, true)
	mask.Set(1, 0, 2, true)

	threshold := 0.1
	res, err := ComputeSegments(context.Background(), chord, map[string]*volume.Volume{"T9": mask}, []string{"T9"}, Params{Threshold: threshold})
	if err != nil {
		t.Fatalf("ComputeSegments failed: %v", err)
	}

	rng, ok := res.Ranges["T9"]
	if !ok {
		t.Fatal("expected a range for T9")
	}
	if rng != (SliceRange{Min: 1, Max: 3}) {
		t.Fatalf("range = %v, want (1,3)", rng)
	}

	profile := mask.AxialProfile()
	total := volume.Total(profile)
	for _, z := range []int{rng.Min, rng.Max} {
		if profile[z]/total <= threshold {
			t.Errorf("slice %d is a range endpoint but does not qualify", z)
		}
	}
}

func TestComputeSegments_Monotonicity(t *testing.T) {
	chord := chordVolume(6, 6, 30, 0, 29)
	mask := volume.New(6, 6, 30)
	// Peaked profile: denser in the middle.
	for z := 5; z <= 15; z++ {
		n := 2
		if z >= 8 && z <= 12 {
			n = 10
		}
		placed := 0
		for y := 0; y < 6 && placed < n; y++ {
			for x := 0; x < 6 && placed < n; x++ {
				mask.Set(x, y, z, true)
				placed++
			}
		}
	}
	masks := map[string]*volume.Volume{"T3": mask}

	prevWidth := mask.NZ + 1
	for _, threshold := range []float64{0.01, 0.05, 0.1, 0.2, 0.9} {
		res, err := ComputeSegments(context.Background(), chord, masks, []string{"T3"}, Params{Threshold: threshold})
		if err != nil {
			t.Fatalf("threshold %g: %v", threshold, err)
		}
		width := 0
		if rng, ok := res.Ranges["T3"]; ok {
			width = rng.Max - rng.Min + 1
		}
		if width > prevWidth {
			t.Errorf("raising threshold to %g widened the range (%d > %d)", threshold, width, prevWidth)
		}
		prevWidth = width
	}
}

func TestComputeSegments_Idempotent(t *testing.T) {
	chord := chordVolume(6, 6, 20, 2, 18)
	masks := map[string]*volume.Volume{
		"T1": uniformMask(6, 6, 20, 3, 7, 5),
		"T2": uniformMask(6, 6, 20, 8, 12, 5),
	}
	order := []string{"T1", "T2"}
	params := Params{Threshold: 0.05, ProduceConfinedMasks: true}

	first, err := ComputeSegments(context.Background(), chord, masks, order, params)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := ComputeSegments(context.Background(), chord, masks, order, params)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if diff := cmp.Diff(first.Ranges, second.Ranges); diff != "" {
		t.Errorf("ranges differ between identical calls:\n%s", diff)
	}
	if diff := cmp.Diff(first.Order, second.Order); diff != "" {
		t.Errorf("order differs between identical calls:\n%s", diff)
	}
	for v, a := range first.Confined {
		b, ok := second.Confined[v]
		if !ok {
			t.Fatalf("confined mask for %s missing on second call", v)
		}
		if a.Count() != b.Count() {
			t.Errorf("confined mask for %s differs between calls", v)
		}
	}
}

func TestComputeSegments_OrderPreservedUnderParallelism(t *testing.T) {
	chord := chordVolume(6, 6, 40, 0, 39)
	order := []string{"C7", "T1", "T2", "T3", "T4", "T5"}
	masks := make(map[string]*volume.Volume, len(order))
	for i, v := range order {
		masks[v] = uniformMask(6, 6, 40, i*5, i*5+4, 6)
	}

	res, err := ComputeSegments(context.Background(), chord, masks, order, Params{
		Threshold: 0.05,
		Workers:   4,
	})
	if err != nil {
		t.Fatalf("ComputeSegments failed: %v", err)
	}

	if diff := cmp.Diff(order, res.Order); diff != "" {
		t.Errorf("result order must match input order regardless of completion order:\n%s", diff)
	}
	for i, v := range order {
		want := SliceRange{Min: i * 5, Max: i*5 + 4}
		if got := res.Ranges[v]; got != want {
			t.Errorf("%s range = %v, want %v", v, got, want)
		}
	}
}

func TestComputeSegments_CancelledContextStopsLaunching(t *testing.T) {
	chord := chordVolume(4, 4, 10, 0, 9)
	masks := map[string]*volume.Volume{
		"T1": uniformMask(4, 4, 10, 1, 3, 2),
		"T2": uniformMask(4, 4, 10, 4, 6, 2),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ComputeSegments(ctx, chord, masks, []string{"T1", "T2"}, Params{Threshold: 0.1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil {
		t.Fatal("cancellation must still return the partial result")
	}
	if len(res.Ranges) != 0 {
		t.Errorf("no vertebra task should have been launched, got ranges %v", res.Ranges)
	}
}

func TestComputeSegments_NoConfinedMasksUnlessRequested(t *testing.T) {
	chord := chordVolume(4, 4, 10, 0, 9)
	masks := map[string]*volume.Volume{"T1": uniformMask(4, 4, 10, 2, 5, 2)}

	res, err := ComputeSegments(context.Background(), chord, masks, []string{"T1"}, Params{Threshold: 0.1})
	if err != nil {
		t.Fatalf("ComputeSegments failed: %v", err)
	}
	if res.Confined != nil {
		t.Error("confined masks must not be produced unless requested")
	}
	if _, ok := res.Ranges["T1"]; !ok {
		t.Error("range detection must run without confinement")
	}
}
