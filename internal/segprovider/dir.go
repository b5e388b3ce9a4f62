package segprovider

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/radonc-tools/chordcut/internal/volume"
)

// DirProvider loads vertebra masks from a directory of NIfTI files, the
// layout TotalSegmentator produces. For identifier "C3" it accepts
// vertebrae_C3.nii.gz, vertebrae_C3.nii, C3.nii.gz or C3.nii, first match
// wins.
type DirProvider struct {
	// Dir is the segmentation output directory.
	Dir string
	// FlipX mirrors loaded masks along x. TotalSegmentator outputs are
	// mirrored relative to volumes converted straight from DICOM without
	// reorientation, so this defaults to true in NewDirProvider.
	FlipX bool
}

// NewDirProvider returns a DirProvider for dir with the TotalSegmentator
// x-flip enabled.
func NewDirProvider(dir string) (*DirProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("segmentation directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("segmentation path %s is not a directory", dir)
	}
	return &DirProvider{Dir: dir, FlipX: true}, nil
}

// candidates lists the accepted file names for a vertebra identifier, in
// preference order.
func (p *DirProvider) candidates(id string) []string {
	return []string{
		"vertebrae_" + id + ".nii.gz",
		"vertebrae_" + id + ".nii",
		id + ".nii.gz",
		id + ".nii",
	}
}

// maskPath returns the path of the mask file for id, or "" when none exists.
func (p *DirProvider) maskPath(id string) string {
	for _, name := range p.candidates(id) {
		path := filepath.Join(p.Dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Available reports which of the requested identifiers already have a mask
// file on disk, preserving input order. Callers use this to decide whether
// the segmentation model needs to run at all.
func (p *DirProvider) Available(ids []string) []string {
	var found []string
	for _, id := range ids {
		if p.maskPath(id) != "" {
			found = append(found, id)
		}
	}
	return found
}

// Masks loads the masks available for ids. Identifiers with no mask file are
// omitted; an unreadable or malformed file is an error.
func (p *DirProvider) Masks(ids []string) (map[string]*volume.Volume, error) {
	masks := make(map[string]*volume.Volume, len(ids))
	for _, id := range ids {
		path := p.maskPath(id)
		if path == "" {
			continue
		}
		vol, err := volume.ReadNIfTI(path)
		if err != nil {
			return nil, fmt.Errorf("load mask for %s: %w", id, err)
		}
		if p.FlipX {
			vol.FlipX()
		}
		masks[id] = vol
	}
	return masks, nil
}
