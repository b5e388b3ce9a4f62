// Package export adapts segmentation results into the named boolean-mask
// sequence consumed by an external structure-set writer.
package export

import (
	"fmt"

	"github.com/radonc-tools/chordcut/internal/cordseg"
	"github.com/radonc-tools/chordcut/internal/volume"
)

// Structure is one named region ready for a structure-set writer.
type Structure struct {
	Name string
	Mask *volume.Volume
}

// StructureWriter is the seam to the external structure-set serializer. The
// engine's obligation ends at handing it the ordered (name, mask) sequence.
type StructureWriter interface {
	WriteStructures(dst string, structures []Structure) error
}

// Assemble converts a segmentation result's confined chord masks into an
// ordered structure list. Order follows the result's vertebra order;
// vertebrae without chord overlap carry no confined mask and are excluded.
func Assemble(res *cordseg.Result) []Structure {
	var structures []Structure
	for _, v := range res.Order {
		mask, ok := res.Confined[v]
		if !ok {
			continue
		}
		structures = append(structures, Structure{Name: v, Mask: mask})
	}
	return structures
}

// Write assembles the result and drives the writer. A result with no
// overlapping vertebrae writes nothing and is not an error.
func Write(res *cordseg.Result, w StructureWriter, dst string) error {
	structures := Assemble(res)
	if len(structures) == 0 {
		return nil
	}
	if err := w.WriteStructures(dst, structures); err != nil {
		return fmt.Errorf("write structures: %w", err)
	}
	return nil
}
