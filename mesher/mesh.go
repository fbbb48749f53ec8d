package mesher

import (
	"encoding/binary"
	"math"

	xxhash "github.com/cespare/xxhash/v2"
)

// MaxVertices is the largest vertex count addressable by 16-bit indices.
const MaxVertices = 1 << 16

// Vertex is one quad corner. UV[0] carries the AO strength in [0,1]; the
// shader decides how to use it. UV[1] is always 0.
type Vertex struct {
	Position [3]float32
	UV       [2]float32
	Color    [4]float32
}

// MeshData is an indexed triangle list: 4 vertices and 6 indices per quad.
type MeshData struct {
	Vertices []Vertex
	Indices  []uint16
}

// Reset empties the mesh, keeping its capacity.
func (m *MeshData) Reset() {
	m.Vertices = m.Vertices[:0]
	m.Indices = m.Indices[:0]
}

func (m *MeshData) QuadCount() int { return len(m.Vertices) / 4 }

func (m *MeshData) Empty() bool { return len(m.Vertices) == 0 }

// Positions returns the position stream, e.g. for exporters.
func (m *MeshData) Positions() [][3]float32 {
	out := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = v.Position
	}
	return out
}

func (m *MeshData) UVs() [][2]float32 {
	out := make([][2]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = v.UV
	}
	return out
}

func (m *MeshData) Colors() [][4]float32 {
	out := make([][4]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		out[i] = v.Color
	}
	return out
}

// Digest hashes the vertex and index streams bit for bit.
func (m *MeshData) Digest() uint64 {
	h := xxhash.New()
	var tmp [4]byte
	put := func(f float32) {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(f))
		_, _ = h.Write(tmp[:])
	}
	for _, v := range m.Vertices {
		for _, f := range v.Position {
			put(f)
		}
		for _, f := range v.UV {
			put(f)
		}
		for _, f := range v.Color {
			put(f)
		}
	}
	for _, i := range m.Indices {
		binary.LittleEndian.PutUint16(tmp[:2], i)
		_, _ = h.Write(tmp[:2])
	}
	return h.Sum64()
}
