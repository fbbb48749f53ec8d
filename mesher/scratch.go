package mesher

import (
	"sync"

	"github.com/voxelsplace/voxmesh/voxel"
)

// Scratch is the per-slice working area of one extraction: the visible
// material per cell and its Layout. It is not safe for concurrent use; give
// each worker its own or check one out of a ScratchPool.
type Scratch struct {
	mask   []voxel.Voxel
	layout []Layout
}

// grow makes room for n cells. Buffers only ever grow.
func (s *Scratch) grow(n int) {
	if len(s.mask) >= n {
		return
	}
	s.mask = make([]voxel.Voxel, n)
	s.layout = make([]Layout, n)
}

// Cap reports how many cells the buffers currently hold.
func (s *Scratch) Cap() int { return len(s.mask) }

// ScratchPool hands out Scratch buffers with exclusive ownership.
type ScratchPool struct {
	p sync.Pool
}

func (p *ScratchPool) Get() *Scratch {
	if s, ok := p.p.Get().(*Scratch); ok {
		return s
	}
	return new(Scratch)
}

func (p *ScratchPool) Put(s *Scratch) {
	if s == nil {
		return
	}
	p.p.Put(s)
}

var defaultPool ScratchPool
