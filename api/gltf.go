package api

import (
	"bytes"
	"math"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/voxelsplace/voxmesh/mesher"
)

// WaterAlpha is written into the COLOR_0 alpha of water vertices. glTF
// multiplies it into the blended material's base color.
const WaterAlpha = 0.6

const (
	materialOpaque = 0
	materialWater  = 1
)

// NewDocument returns an empty scene carrying the two shared materials:
// an opaque one for solid voxels and an alpha-blended one for water. Colors
// come from the per-vertex COLOR_0 attribute.
func NewDocument() *gltf.Document {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "voxmesh"
	doc.Materials = []*gltf.Material{
		{
			Name:      "voxel",
			AlphaMode: gltf.AlphaOpaque,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				MetallicFactor:  gltf.Float(0),
				RoughnessFactor: gltf.Float(1),
			},
		},
		{
			Name:      "water",
			AlphaMode: gltf.AlphaBlend,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				MetallicFactor:  gltf.Float(0),
				RoughnessFactor: gltf.Float(0.1),
			},
		},
	}
	return doc
}

// AddNode appends one node for a meshed volume, shifting its vertices by
// offset. Either mesh may be nil or empty; a volume without geometry still
// gets its node so entries keep their place in the scene.
func AddNode(doc *gltf.Document, name string, offset [3]float32, opaque, water *mesher.MeshData) {
	var prims []*gltf.Primitive
	if opaque != nil && !opaque.Empty() {
		prims = append(prims, writePrimitive(doc, opaque, offset, 1, materialOpaque))
	}
	if water != nil && !water.Empty() {
		prims = append(prims, writePrimitive(doc, water, offset, WaterAlpha, materialWater))
	}

	node := &gltf.Node{Name: name}
	if len(prims) > 0 {
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: name, Primitives: prims})
		node.Mesh = gltf.Index(len(doc.Meshes) - 1)
	}
	doc.Nodes = append(doc.Nodes, node)
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
}

// BuildGLTF assembles a single-node document from the opaque and water
// meshes of one volume.
func BuildGLTF(name string, opaque, water *mesher.MeshData) *gltf.Document {
	doc := NewDocument()
	AddNode(doc, name, [3]float32{}, opaque, water)
	return doc
}

func writePrimitive(doc *gltf.Document, m *mesher.MeshData, offset [3]float32, alpha float32, material int) *gltf.Primitive {
	positions := m.Positions()
	if offset != ([3]float32{}) {
		for i := range positions {
			for a := 0; a < 3; a++ {
				positions[i][a] += offset[a]
			}
		}
	}
	colors := m.Colors()
	if alpha != 1 {
		for i := range colors {
			colors[i][3] = alpha
		}
	}
	indices := make([]uint16, len(m.Indices))
	copy(indices, m.Indices)

	pos := modeler.WritePosition(doc, positions)
	nrm := modeler.WriteNormal(doc, quadNormals(positions))
	uv := modeler.WriteTextureCoord(doc, m.UVs())
	col := modeler.WriteColor(doc, colors)
	idx := modeler.WriteIndices(doc, indices)

	return &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION:   pos,
			gltf.NORMAL:     nrm,
			gltf.TEXCOORD_0: uv,
			gltf.COLOR_0:    col,
		},
		Indices:  gltf.Index(idx),
		Material: gltf.Index(material),
	}
}

// quadNormals gives every vertex of a quad the flat normal of its first
// three corners.
func quadNormals(positions [][3]float32) [][3]float32 {
	normals := make([][3]float32, len(positions))
	for q := 0; q+3 < len(positions); q += 4 {
		p0, p1, p2 := positions[q], positions[q+1], positions[q+2]
		vec1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		vec2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		cross := [3]float32{
			vec1[1]*vec2[2] - vec1[2]*vec2[1],
			vec1[2]*vec2[0] - vec1[0]*vec2[2],
			vec1[0]*vec2[1] - vec1[1]*vec2[0],
		}
		length := float32(math.Sqrt(float64(cross[0]*cross[0] + cross[1]*cross[1] + cross[2]*cross[2])))
		if length > 0 {
			cross[0] /= length
			cross[1] /= length
			cross[2] /= length
		}
		for k := 0; k < 4; k++ {
			normals[q+k] = cross
		}
	}
	return normals
}

// EncodeGLB serialises doc as binary glTF.
func EncodeGLB(doc *gltf.Document) ([]byte, error) {
	var out bytes.Buffer
	enc := gltf.NewEncoder(&out)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
