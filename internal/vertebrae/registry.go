// Package vertebrae maintains the ordered set of vertebra identifiers a
// segmentation run processes, with named anatomical group expansion.
package vertebrae

import "fmt"

// ErrUnknownGroup is returned by AddGroup for group names other than
// cervical, thorax and lumbar.
var ErrUnknownGroup = fmt.Errorf("unknown vertebrae group (valid groups: cervical, thorax, lumbar)")

// Canonical group memberships. Identifiers are anatomical names matching
// TotalSegmentator's vertebrae ROI set.
var (
	Cervical = []string{"C1", "C2", "C3", "C4", "C5", "C6", "C7"}
	Thorax   = []string{"T1", "T2", "T3", "T4", "T5", "T6", "T7", "T8", "T9", "T10", "T11", "T12"}
	Lumbar   = []string{"L1", "L2", "L3", "L4", "L5"}
)

// Registry is an insertion-ordered, deduplicated collection of vertebra
// identifiers. The zero value is ready to use.
type Registry struct {
	order []string
	seen  map[string]bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{seen: make(map[string]bool)}
}

// Add inserts id if absent. Re-adding an existing identifier is a no-op and
// keeps the position of its first insertion.
func (r *Registry) Add(id string) {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	if r.seen[id] {
		return
	}
	r.seen[id] = true
	r.order = append(r.order, id)
}

// AddGroup expands a named anatomical group into its canonical member
// identifiers and adds each. Recognized groups: cervical (C1..C7), thorax
// (T1..T12), lumbar (L1..L5).
func (r *Registry) AddGroup(group string) error {
	var members []string
	switch group {
	case "cervical":
		members = Cervical
	case "thorax":
		members = Thorax
	case "lumbar":
		members = Lumbar
	default:
		return fmt.Errorf("%w: %q", ErrUnknownGroup, group)
	}
	for _, id := range members {
		r.Add(id)
	}
	return nil
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.order = nil
	r.seen = make(map[string]bool)
}

// List returns the identifiers in insertion order. The returned slice is a
// copy; mutating it does not affect the registry.
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered identifiers.
func (r *Registry) Len() int {
	return len(r.order)
}
