package mesher

import (
	"fmt"

	"github.com/voxelsplace/voxmesh/voxel"
)

// cornerSpec lists, per quad corner in emission order, the (u, v) step from
// the face cell towards that corner. Front and back faces swap the roles of
// the quad edges, so each orientation gets its own table and corner k always
// lines up with emitted vertex k.
type cornerSpec [4][2]int

var (
	positiveCorners = cornerSpec{{-1, -1}, {+1, -1}, {+1, +1}, {-1, +1}}
	negativeCorners = cornerSpec{{-1, -1}, {-1, +1}, {+1, +1}, {+1, -1}}
)

// rect is one merged run of identical mask cells on a slice.
type rect struct {
	i, j, w, h int
	code       voxel.Voxel
	layout     Layout
}

// pass is one extraction over a volume. The opaque and liquid variants share
// it and differ only in their filter and flags.
type pass struct {
	vol     *voxel.Volume
	dims    [3]int
	filter  func(voxel.Voxel) voxel.Voxel
	ao      bool
	greedy  bool
	stitch  bool
	liquid  bool
	center  bool
	scratch *Scratch
	out     *MeshData
}

func opaqueFilter(c voxel.Voxel) voxel.Voxel {
	if c.Liquid() {
		return voxel.Air
	}
	return c
}

func liquidFilter(c voxel.Voxel) voxel.Voxel {
	if c.Liquid() {
		return c
	}
	return voxel.Air
}

func (p *pass) sample(x [3]int) voxel.Voxel {
	return p.filter(p.vol.At(x[0], x[1], x[2]))
}

func (p *pass) solid(x [3]int) bool {
	return p.sample(x) != voxel.Air
}

// sweep builds and merges every slice perpendicular to axis d.
func (p *pass) sweep(d int) error {
	u, v := (d+1)%3, (d+2)%3
	du, dv := p.dims[u], p.dims[v]
	p.scratch.grow(du * dv)
	mask, layout := p.scratch.mask, p.scratch.layout

	start := -1
	if p.liquid {
		start = 0
	}
	var x [3]int
	for x[d] = start; x[d] < p.dims[d]; x[d]++ {
		n := 0
		for x[v] = 0; x[v] < dv; x[v]++ {
			for x[u] = 0; x[u] < du; x[u]++ {
				if p.liquid {
					mask[n], layout[n] = p.sample(x), 0
				} else {
					mask[n], layout[n] = p.face(x, d, u, v)
				}
				n++
			}
		}
		plane := x[d]
		err := mergeSlice(mask, layout, du, dv, p.greedy, p.stitch, func(r rect) error {
			if p.liquid {
				if err := p.emit(d, u, v, plane, r, false); err != nil {
					return err
				}
				return p.emit(d, u, v, plane, r, true)
			}
			return p.emit(d, u, v, plane, r, r.layout.BackFace())
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// face decides whether a face lies between x and x+1 along d and fills in
// its occlusion layout.
func (p *pass) face(x [3]int, d, u, v int) (voxel.Voxel, Layout) {
	a := p.sample(x)
	next := x
	next[d]++
	b := p.sample(next)

	if (a != voxel.Air) == (b != voxel.Air) {
		return voxel.Air, 0
	}
	code, back := a, false
	if a == voxel.Air {
		code, back = b, true
	}

	var l Layout
	if back {
		l = l.withBackFace()
	}
	if !p.ao {
		return code, l
	}

	// Occluders live in the air layer the face looks into.
	s := x
	corners := &positiveCorners
	if back {
		corners = &negativeCorners
	} else {
		s[d]++
	}

	var occ [4]uint8
	for k, o := range corners {
		side1 := s
		side1[u] += o[0]
		side2 := s
		side2[v] += o[1]
		s1, s2 := p.solid(side1), p.solid(side2)
		if s1 && s2 {
			occ[k] = 0
			continue
		}
		corner := s
		corner[u] += o[0]
		corner[v] += o[1]
		occ[k] = uint8(3 - (b2i(s1) + b2i(s2) + b2i(p.solid(corner))))
	}
	return code, l.withOcclusion(occ).withFlip(flipFor(occ))
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mergeSlice partitions a du×dv mask into rectangles of identical code and
// layout, scanning with i fastest. Consumed cells are cleared so they are
// never revisited. With stitch set, cells on the slice border are emitted
// one by one and never joined with their neighbours.
func mergeSlice(mask []voxel.Voxel, layout []Layout, du, dv int, greedy, stitch bool, emit func(rect) error) error {
	pinned := func(i, j int) bool {
		return stitch && (i == 0 || j == 0 || i == du-1 || j == dv-1)
	}
	n := 0
	for j := 0; j < dv; j++ {
		for i := 0; i < du; {
			c := mask[n]
			if c == voxel.Air {
				i++
				n++
				continue
			}
			l := layout[n]

			w, h := 1, 1
			if greedy && !pinned(i, j) {
				for i+w < du && mask[n+w] == c && layout[n+w] == l && !pinned(i+w, j) {
					w++
				}
			rows:
				for ; j+h < dv; h++ {
					row := n + h*du
					for k := 0; k < w; k++ {
						if mask[row+k] != c || layout[row+k] != l || pinned(i+k, j+h) {
							break rows
						}
					}
				}
			}

			if err := emit(rect{i: i, j: j, w: w, h: h, code: c, layout: l}); err != nil {
				return err
			}

			for hh := 0; hh < h; hh++ {
				row := n + hh*du
				for k := 0; k < w; k++ {
					mask[row+k] = voxel.Air
					layout[row+k] = layoutConsumed
				}
			}
			i += w
			n += w
		}
	}
	return nil
}

// emit appends one quad for r lying on the plane after slice x[d] = plane.
func (p *pass) emit(d, u, v, plane int, r rect, back bool) error {
	if len(p.out.Vertices)+4 > MaxVertices {
		return fmt.Errorf("%w: quad %d would need vertex %d", ErrCapacityExceeded, p.out.QuadCount()+1, len(p.out.Vertices)+4)
	}

	var base, e1, e2 [3]float32
	base[d] = float32(plane + 1)
	base[u] = float32(r.i)
	base[v] = float32(r.j)
	if back {
		e1[v] = float32(r.h)
		e2[u] = float32(r.w)
	} else {
		e1[u] = float32(r.w)
		e2[v] = float32(r.h)
	}

	var pos [4][3]float32
	for a := 0; a < 3; a++ {
		pos[0][a] = base[a]
		pos[1][a] = base[a] + e1[a]
		pos[2][a] = base[a] + e1[a] + e2[a]
		pos[3][a] = base[a] + e2[a]
	}
	if p.center {
		for k := range pos {
			for a := 0; a < 3; a++ {
				pos[k][a] -= float32(p.dims[a]) / 2
			}
		}
	}

	color := r.code.RGBA()
	first := uint16(len(p.out.Vertices))
	for k := 0; k < 4; k++ {
		ao := float32(1)
		if p.ao {
			ao = float32(r.layout.Occlusion(k)) / 3
		}
		p.out.Vertices = append(p.out.Vertices, Vertex{Position: pos[k], UV: [2]float32{ao, 0}, Color: color})
	}
	if r.layout.Flip() {
		p.out.Indices = append(p.out.Indices, first+1, first+2, first+3, first+1, first+3, first)
	} else {
		p.out.Indices = append(p.out.Indices, first, first+1, first+2, first, first+2, first+3)
	}
	return nil
}
