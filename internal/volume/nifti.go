package volume

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// NIfTI-1 single-file layout: 348-byte header, 4 bytes of extension flags,
// then the voxel buffer at vox_offset (352 for files we write). Masks store
// one value per voxel, x fastest, then y, then z, which matches Volume's
// flat layout directly.
const (
	niftiHeaderSize = 348
	niftiVoxOffset  = 352
)

// NIfTI-1 datatype codes accepted for mask volumes.
const (
	dtUint8   = 2
	dtInt16   = 4
	dtInt32   = 8
	dtFloat32 = 16
	dtFloat64 = 64
	dtInt8    = 256
	dtUint16  = 512
)

type niftiHeader struct {
	SizeofHdr     int32
	DataTypeName  [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QoffsetX      float32
	QoffsetY      float32
	QoffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// ReadNIfTI loads a NIfTI-1 volume from a .nii or .nii.gz file and converts
// it to a boolean occupancy volume: any nonzero voxel is occupied.
func ReadNIfTI(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open nifti: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open nifti gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return decodeNIfTI(r, path)
}

func decodeNIfTI(r io.Reader, path string) (*Volume, error) {
	raw := make([]byte, niftiHeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read nifti header from %s: %w", path, err)
	}

	// sizeof_hdr is always 348; use it to detect byte order.
	var order binary.ByteOrder = binary.LittleEndian
	if order.Uint32(raw[:4]) != niftiHeaderSize {
		order = binary.BigEndian
		if order.Uint32(raw[:4]) != niftiHeaderSize {
			return nil, fmt.Errorf("%s: not a NIfTI-1 file (sizeof_hdr mismatch)", path)
		}
	}

	var hdr niftiHeader
	if err := binary.Read(bytes.NewReader(raw), order, &hdr); err != nil {
		return nil, fmt.Errorf("decode nifti header from %s: %w", path, err)
	}
	if m := hdr.Magic; !(m[0] == 'n' && (m[1] == '+' || m[1] == 'i') && m[2] == '1') {
		return nil, fmt.Errorf("%s: not a NIfTI-1 file (bad magic %q)", path, m[:3])
	}
	if hdr.Dim[0] < 3 {
		return nil, fmt.Errorf("%s: expected a 3D volume, got %d dimensions", path, hdr.Dim[0])
	}
	nx, ny, nz := int(hdr.Dim[1]), int(hdr.Dim[2]), int(hdr.Dim[3])
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("%s: invalid volume dimensions %dx%dx%d", path, nx, ny, nz)
	}
	// Trailing dims beyond the third must be degenerate for a mask.
	for i := int16(4); i <= hdr.Dim[0] && i < 8; i++ {
		if hdr.Dim[i] > 1 {
			return nil, fmt.Errorf("%s: volume has non-degenerate dimension %d (%d)", path, i, hdr.Dim[i])
		}
	}

	elemSize, ok := niftiElemSize(hdr.Datatype)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported NIfTI datatype %d", path, hdr.Datatype)
	}

	// Skip extension bytes between the header and the voxel buffer.
	skip := int64(hdr.VoxOffset) - niftiHeaderSize
	if skip < 0 {
		return nil, fmt.Errorf("%s: vox_offset %f precedes header end", path, hdr.VoxOffset)
	}
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, fmt.Errorf("skip nifti extensions in %s: %w", path, err)
	}

	nvox := nx * ny * nz
	buf := make([]byte, nvox*elemSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read nifti voxels from %s: %w", path, err)
	}

	vol := New(nx, ny, nz)
	for i := 0; i < nvox; i++ {
		vol.data[i] = niftiNonzero(buf[i*elemSize:(i+1)*elemSize], hdr.Datatype, order)
	}
	return vol, nil
}

func niftiElemSize(datatype int16) (int, bool) {
	switch datatype {
	case dtUint8, dtInt8:
		return 1, true
	case dtInt16, dtUint16:
		return 2, true
	case dtInt32, dtFloat32:
		return 4, true
	case dtFloat64:
		return 8, true
	}
	return 0, false
}

func niftiNonzero(elem []byte, datatype int16, order binary.ByteOrder) bool {
	switch datatype {
	case dtUint8, dtInt8:
		return elem[0] != 0
	case dtInt16, dtUint16:
		return order.Uint16(elem) != 0
	case dtInt32:
		return order.Uint32(elem) != 0
	case dtFloat32:
		return math.Float32frombits(order.Uint32(elem)) != 0
	case dtFloat64:
		return math.Float64frombits(order.Uint64(elem)) != 0
	}
	return false
}

// WriteNIfTI stores a boolean volume as a NIfTI-1 uint8 mask (1 for occupied
// voxels) at path. Output is gzip-compressed when path ends in .gz.
func WriteNIfTI(path string, vol *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create nifti: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := encodeNIfTI(w, vol); err != nil {
		return fmt.Errorf("write nifti %s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("flush nifti gzip stream %s: %w", path, err)
		}
	}
	return f.Close()
}

func encodeNIfTI(w io.Writer, vol *Volume) error {
	hdr := niftiHeader{
		SizeofHdr: niftiHeaderSize,
		Regular:   'r',
		Datatype:  dtUint8,
		Bitpix:    8,
		VoxOffset: niftiVoxOffset,
		SclSlope:  1,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	hdr.Dim[0] = 3
	hdr.Dim[1] = int16(vol.NX)
	hdr.Dim[2] = int16(vol.NY)
	hdr.Dim[3] = int16(vol.NZ)
	for i := 4; i < 8; i++ {
		hdr.Dim[i] = 1
	}
	for i := range hdr.Pixdim {
		hdr.Pixdim[i] = 1
	}
	copy(hdr.Descrip[:], "chordcut mask")

	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	// Four zero bytes: no header extensions.
	if _, err := w.Write(make([]byte, niftiVoxOffset-niftiHeaderSize)); err != nil {
		return err
	}

	buf := make([]byte, len(vol.data))
	for i, b := range vol.data {
		if b {
			buf[i] = 1
		}
	}
	_, err := w.Write(buf)
	return err
}
