// Package segprovider supplies vertebra masks produced by an external
// segmentation model. Absent masks are the normal "not segmented" case, not
// an error.
package segprovider

import "github.com/radonc-tools/chordcut/internal/volume"

// Provider returns zero or more vertebra masks keyed by identifier for a
// requested set of identifiers. Identifiers the provider cannot supply are
// simply omitted from the result.
type Provider interface {
	Masks(ids []string) (map[string]*volume.Volume, error)
}
