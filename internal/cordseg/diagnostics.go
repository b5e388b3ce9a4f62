package cordseg

// Condition classifies a non-fatal per-vertebra outcome. Conditions never
// abort the batch; they are accumulated and returned alongside the result.
type Condition int

const (
	// ConditionMissingMask: the provider supplied no mask for the vertebra.
	ConditionMissingMask Condition = iota
	// ConditionEmptyMask: the mask exists but contains no occupied voxels,
	// meaning the vertebra was not actually segmented.
	ConditionEmptyMask
	// ConditionNoQualifyingSlice: the mask is non-empty but no single axial
	// slice exceeds the relative-density threshold. The literal source
	// behavior crashed the whole batch on this case; here it only skips the
	// vertebra.
	ConditionNoQualifyingSlice
	// ConditionNoOverlap: the vertebra has a slice range but the chord mask
	// is empty within it. The vertebra keeps its range in the result and is
	// excluded from the confined-mask outputs.
	ConditionNoOverlap
)

func (c Condition) String() string {
	switch c {
	case ConditionMissingMask:
		return "missing_mask"
	case ConditionEmptyMask:
		return "empty_mask"
	case ConditionNoQualifyingSlice:
		return "no_qualifying_slice"
	case ConditionNoOverlap:
		return "no_overlap"
	}
	return "unknown"
}

// Diagnostic records a per-vertebra condition observed during a run.
type Diagnostic struct {
	Vertebra  string
	Condition Condition
}
