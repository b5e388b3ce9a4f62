// Package volume provides the 3D boolean occupancy volume shared by the
// chord mask and the per-vertebra masks, plus NIfTI file I/O for both.
package volume

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Volume is a 3D boolean occupancy grid indexed by (x, y, z), with z as the
// axial (head-to-foot) axis. Voxels are stored in a flat slice, x fastest.
// All volumes in a single run share the same grid; a Volume is immutable
// once populated by its loader.
type Volume struct {
	NX, NY, NZ int
	data       []bool
}

// New allocates an all-false volume with the given dimensions.
func New(nx, ny, nz int) *Volume {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return &Volume{}
	}
	return &Volume{
		NX:   nx,
		NY:   ny,
		NZ:   nz,
		data: make([]bool, nx*ny*nz),
	}
}

// Index returns the flat offset for (x, y, z). No bounds check; callers
// iterate within [0,NX)x[0,NY)x[0,NZ).
func (v *Volume) Index(x, y, z int) int {
	return x + v.NX*(y+v.NY*z)
}

// At reports whether the voxel at (x, y, z) is occupied.
func (v *Volume) At(x, y, z int) bool {
	return v.data[v.Index(x, y, z)]
}

// Set marks the voxel at (x, y, z).
func (v *Volume) Set(x, y, z int, occupied bool) {
	v.data[v.Index(x, y, z)] = occupied
}

// Count returns the number of occupied voxels over the entire volume.
func (v *Volume) Count() int {
	n := 0
	for _, b := range v.data {
		if b {
			n++
		}
	}
	return n
}

// SliceCount returns the number of occupied voxels in the axial slice at z.
func (v *Volume) SliceCount(z int) int {
	if z < 0 || z >= v.NZ {
		return 0
	}
	n := 0
	base := v.NX * v.NY * z
	for _, b := range v.data[base : base+v.NX*v.NY] {
		if b {
			n++
		}
	}
	return n
}

// AxialProfile returns the per-slice occupied-voxel counts as a float slice
// of length NZ. The sum of the profile equals Count.
func (v *Volume) AxialProfile() []float64 {
	profile := make([]float64, v.NZ)
	for z := 0; z < v.NZ; z++ {
		profile[z] = float64(v.SliceCount(z))
	}
	return profile
}

// Total returns the occupied-voxel count computed from an axial profile.
func Total(profile []float64) float64 {
	return floats.Sum(profile)
}

// SameGrid reports whether o shares this volume's dimensions.
func (v *Volume) SameGrid(o *Volume) bool {
	return o != nil && v.NX == o.NX && v.NY == o.NY && v.NZ == o.NZ
}

// Dims returns the grid dimensions as a printable string, e.g. "512x512x200".
func (v *Volume) Dims() string {
	return fmt.Sprintf("%dx%dx%d", v.NX, v.NY, v.NZ)
}

// ConfineAxial returns a new volume equal to v within the inclusive axial
// slice range [minZ, maxZ] and false everywhere else. The range is clamped
// to the volume's extent.
func (v *Volume) ConfineAxial(minZ, maxZ int) *Volume {
	out := New(v.NX, v.NY, v.NZ)
	if minZ < 0 {
		minZ = 0
	}
	if maxZ >= v.NZ {
		maxZ = v.NZ - 1
	}
	if minZ > maxZ {
		return out
	}
	perSlice := v.NX * v.NY
	start := perSlice * minZ
	end := perSlice * (maxZ + 1)
	copy(out.data[start:end], v.data[start:end])
	return out
}

// FlipX mirrors the volume along the x axis in place and returns it.
// TotalSegmentator NIfTI outputs are mirrored relative to volumes converted
// straight from DICOM without reorientation.
func (v *Volume) FlipX() *Volume {
	for z := 0; z < v.NZ; z++ {
		for y := 0; y < v.NY; y++ {
			for lo, hi := 0, v.NX-1; lo < hi; lo, hi = lo+1, hi-1 {
				i, j := v.Index(lo, y, z), v.Index(hi, y, z)
				v.data[i], v.data[j] = v.data[j], v.data[i]
			}
		}
	}
	return v
}
