package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/radonc-tools/chordcut/internal/volume"
)

// NIfTIWriter writes each structure as a gzip-compressed NIfTI-1 binary mask
// named <structure>.nii.gz under the destination directory.
type NIfTIWriter struct{}

// WriteStructures writes one mask file per structure into dst, creating the
// directory if needed.
func (NIfTIWriter) WriteStructures(dst string, structures []Structure) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, s := range structures {
		path := filepath.Join(dst, s.Name+".nii.gz")
		if err := volume.WriteNIfTI(path, s.Mask); err != nil {
			return fmt.Errorf("structure %s: %w", s.Name, err)
		}
	}
	return nil
}
