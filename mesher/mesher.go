package mesher

import (
	"errors"
	"fmt"

	"github.com/voxelsplace/voxmesh/voxel"
)

var (
	ErrNilVolume = errors.New("mesher: nil volume")

	// ErrCapacityExceeded aborts an extraction whose output would need more
	// vertices than 16-bit indices can address.
	ErrCapacityExceeded = errors.New("mesher: mesh exceeds 16-bit index capacity")
)

// Mesher owns a Scratch and extracts meshes one volume at a time. A Mesher
// must not be shared between goroutines; create one per worker.
type Mesher struct {
	opts    Options
	scratch *Scratch
}

func New(opts Options) *Mesher {
	return &Mesher{opts: opts, scratch: new(Scratch)}
}

// NewWithScratch builds a Mesher around an existing Scratch, typically one
// checked out of a ScratchPool.
func NewWithScratch(opts Options, s *Scratch) *Mesher {
	if s == nil {
		s = new(Scratch)
	}
	return &Mesher{opts: opts, scratch: s}
}

func (m *Mesher) Options() Options { return m.opts }

// Scratch returns the buffers owned by m, e.g. to return them to a pool.
func (m *Mesher) Scratch() *Scratch { return m.scratch }

// ExtractOpaque regenerates out with every visible solid face of vol.
// Liquid cells count as air here; see ExtractWater.
func (m *Mesher) ExtractOpaque(vol *voxel.Volume, out *MeshData) error {
	return extractOpaque(vol, m.opts, m.scratch, out)
}

// ExtractWater regenerates out with the double-sided liquid surfaces of vol.
func (m *Mesher) ExtractWater(vol *voxel.Volume, out *MeshData) error {
	return extractWater(vol, WaterOptions{Centered: m.opts.Centered}, m.scratch, out)
}

// ExtractOpaque meshes vol with a pooled Scratch. It is safe to call from
// several goroutines on different volumes.
func ExtractOpaque(vol *voxel.Volume, opts Options) (*MeshData, error) {
	s := defaultPool.Get()
	defer defaultPool.Put(s)
	out := new(MeshData)
	if err := extractOpaque(vol, opts, s, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExtractWater runs the liquid pass with a pooled Scratch.
func ExtractWater(vol *voxel.Volume, opts WaterOptions) (*MeshData, error) {
	s := defaultPool.Get()
	defer defaultPool.Put(s)
	out := new(MeshData)
	if err := extractWater(vol, opts, s, out); err != nil {
		return nil, err
	}
	return out, nil
}

func checkVolume(vol *voxel.Volume) error {
	if vol == nil {
		return ErrNilVolume
	}
	if err := vol.Validate(); err != nil {
		return fmt.Errorf("mesher: %w", err)
	}
	return nil
}

func extractOpaque(vol *voxel.Volume, opts Options, s *Scratch, out *MeshData) error {
	if err := checkVolume(vol); err != nil {
		return err
	}
	out.Reset()
	p := &pass{
		vol:     vol,
		dims:    vol.Dims(),
		filter:  opaqueFilter,
		ao:      !opts.DisableAO,
		greedy:  !opts.DisableGreedyMeshing,
		stitch:  opts.Stitch,
		center:  opts.Centered,
		scratch: s,
		out:     out,
	}
	for d := 0; d < 3; d++ {
		if err := p.sweep(d); err != nil {
			return abort(vol, "opaque", out, err)
		}
	}
	Logger().Debug("mesher: opaque extraction",
		"dims", p.dims, "quads", out.QuadCount(), "vertices", len(out.Vertices), "indices", len(out.Indices))
	return nil
}

func extractWater(vol *voxel.Volume, opts WaterOptions, s *Scratch, out *MeshData) error {
	if err := checkVolume(vol); err != nil {
		return err
	}
	out.Reset()
	p := &pass{
		vol:     vol,
		dims:    vol.Dims(),
		filter:  liquidFilter,
		greedy:  true,
		liquid:  true,
		center:  opts.Centered,
		scratch: s,
		out:     out,
	}
	if err := p.sweep(1); err != nil {
		return abort(vol, "water", out, err)
	}
	Logger().Debug("mesher: water extraction",
		"dims", p.dims, "quads", out.QuadCount(), "vertices", len(out.Vertices), "indices", len(out.Indices))
	return nil
}

// abort drops a partially built mesh so callers never see truncated output.
func abort(vol *voxel.Volume, kind string, out *MeshData, err error) error {
	if errors.Is(err, ErrCapacityExceeded) {
		Logger().Warn("mesher: extraction aborted",
			"pass", kind, "dims", vol.Dims(), "origin", [3]int{vol.X, vol.Y, vol.Z}, "err", err)
	}
	out.Reset()
	return err
}
