package voxel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	xxhash "github.com/cespare/xxhash/v2"
)

var (
	ErrInvalidDims  = errors.New("voxel: invalid volume dimensions")
	ErrSizeMismatch = errors.New("voxel: backing slice does not match dimensions")
)

// Volume is a dense W×H×D grid with an integer world-space origin.
// Cells are stored at i + W*(j + H*k).
type Volume struct {
	Width, Height, Depth int
	X, Y, Z              int

	Voxels []Voxel
}

// CellCount returns w*h*d, or ErrInvalidDims if a dimension is negative or
// the product does not fit in an int.
func CellCount(w, h, d int) (int, error) {
	if w < 0 || h < 0 || d < 0 {
		return 0, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDims, w, h, d)
	}
	if w == 0 || h == 0 || d == 0 {
		return 0, nil
	}
	if h > math.MaxInt/w || d > math.MaxInt/(w*h) {
		return 0, fmt.Errorf("%w: %dx%dx%d overflows", ErrInvalidDims, w, h, d)
	}
	return w * h * d, nil
}

// NewVolume allocates an all-air volume.
func NewVolume(w, h, d int) (*Volume, error) {
	n, err := CellCount(w, h, d)
	if err != nil {
		return nil, err
	}
	return &Volume{Width: w, Height: h, Depth: d, Voxels: make([]Voxel, n)}, nil
}

// FromSlice wraps caller-owned storage without copying it.
func FromSlice(w, h, d int, data []Voxel) (*Volume, error) {
	n, err := CellCount(w, h, d)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: have %d cells, want %d", ErrSizeMismatch, len(data), n)
	}
	return &Volume{Width: w, Height: h, Depth: d, Voxels: data}, nil
}

// Validate checks the dimension/storage contract.
func (v *Volume) Validate() error {
	n, err := CellCount(v.Width, v.Height, v.Depth)
	if err != nil {
		return err
	}
	if len(v.Voxels) != n {
		return fmt.Errorf("%w: have %d cells, want %d", ErrSizeMismatch, len(v.Voxels), n)
	}
	return nil
}

func (v *Volume) Dims() [3]int { return [3]int{v.Width, v.Height, v.Depth} }

func (v *Volume) Len() int { return v.Width * v.Height * v.Depth }

func (v *Volume) Index(i, j, k int) int {
	return i + v.Width*(j+v.Height*k)
}

func (v *Volume) InBounds(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < v.Width && j < v.Height && k < v.Depth
}

// At returns the cell at (i,j,k); out-of-range reads are air.
func (v *Volume) At(i, j, k int) Voxel {
	if !v.InBounds(i, j, k) {
		return Air
	}
	return v.Voxels[v.Index(i, j, k)]
}

// Set writes a cell and reports whether (i,j,k) was inside the volume.
func (v *Volume) Set(i, j, k int, c Voxel) bool {
	if !v.InBounds(i, j, k) {
		return false
	}
	v.Voxels[v.Index(i, j, k)] = c
	return true
}

// Coords is the inverse of Index.
func (v *Volume) Coords(index int) (i, j, k int) {
	wh := v.Width * v.Height
	k = index / wh
	rem := index - k*wh
	j = rem / v.Width
	i = rem - j*v.Width
	return
}

func (v *Volume) Fill(c Voxel) {
	for n := range v.Voxels {
		v.Voxels[n] = c
	}
}

func (v *Volume) Clone() *Volume {
	out := *v
	out.Voxels = append([]Voxel(nil), v.Voxels...)
	return &out
}

// CountSolid returns the number of non-air cells.
func (v *Volume) CountSolid() int {
	n := 0
	for _, c := range v.Voxels {
		if c != Air {
			n++
		}
	}
	return n
}

// Digest hashes dimensions, origin and cell codes.
func (v *Volume) Digest() uint64 {
	h := xxhash.New()
	var tmp [4]byte
	for _, n := range [...]int{v.Width, v.Height, v.Depth, v.X, v.Y, v.Z} {
		binary.LittleEndian.PutUint32(tmp[:], uint32(int32(n)))
		_, _ = h.Write(tmp[:])
	}
	for _, c := range v.Voxels {
		binary.LittleEndian.PutUint32(tmp[:], uint32(c))
		_, _ = h.Write(tmp[:])
	}
	return h.Sum64()
}
