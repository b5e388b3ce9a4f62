package cordseg

import "runtime"

// Default parameter values applied by the Get* accessors.
const (
	// DefaultThreshold is the relative slice-density threshold used when the
	// caller does not supply one. Matches the value used in clinical runs.
	DefaultThreshold = 0.02
	// DefaultVerbosity suppresses per-vertebra progress notices.
	DefaultVerbosity = 0
)

// Params configures a single ComputeSegments call.
type Params struct {
	// Threshold is the minimum fraction of a vertebra's total voxel count
	// that must appear in an axial slice for that slice to count as occupied
	// by the vertebra. Must be strictly between 0 and 1.
	Threshold float64

	// ProduceConfinedMasks requests, for each ranged vertebra, a copy of the
	// chord mask confined to that vertebra's axial slice range.
	ProduceConfinedMasks bool

	// Workers bounds the number of vertebrae processed concurrently.
	// Zero or negative selects runtime.NumCPU().
	Workers int

	// Verbosity controls progress notices through monitoring.Logf:
	// 0 silent, 1 logs per-vertebra skip conditions, 2 also logs ranges.
	Verbosity int
}

// GetWorkers returns the effective worker count.
func (p Params) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// ValidThreshold reports whether the threshold lies strictly inside (0, 1).
func (p Params) ValidThreshold() bool {
	return p.Threshold > 0 && p.Threshold < 1
}
