package mesher

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelsplace/voxmesh/voxel"
)

func sub(a, b [3]float32) [3]float32 { return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float32) float32 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func length(a [3]float32) float32 { return float32(math.Sqrt(float64(dot(a, a)))) }

func triNormal(m *MeshData, tri int) [3]float32 {
	p0 := m.Vertices[m.Indices[3*tri]].Position
	p1 := m.Vertices[m.Indices[3*tri+1]].Position
	p2 := m.Vertices[m.Indices[3*tri+2]].Position
	return cross(sub(p1, p0), sub(p2, p0))
}

func solidCube(t *testing.T, n int, c voxel.Voxel) *voxel.Volume {
	t.Helper()
	vol, err := voxel.NewVolume(n, n, n)
	require.NoError(t, err)
	vol.Fill(c)
	return vol
}

func TestExtractOpaqueClosedCube(t *testing.T) {
	for _, disableAO := range []bool{true, false} {
		vol := solidCube(t, 4, voxel.RGB(200, 100, 50))
		mesh, err := ExtractOpaque(vol, Options{DisableAO: disableAO, Centered: true})
		require.NoError(t, err)
		require.Len(t, mesh.Vertices, 24)
		require.Len(t, mesh.Indices, 36)
		require.Equal(t, 6, mesh.QuadCount())

		for q := 0; q < 6; q++ {
			vs := mesh.Vertices[4*q : 4*q+4]
			area := length(cross(sub(vs[1].Position, vs[0].Position), sub(vs[3].Position, vs[0].Position)))
			assert.InDelta(t, 16, area, 1e-5)

			var centroid [3]float32
			for _, v := range vs {
				for a := 0; a < 3; a++ {
					centroid[a] += v.Position[a] / 4
				}
				assert.Equal(t, float32(1), v.UV[0], "open corners are unoccluded")
				assert.Equal(t, voxel.RGB(200, 100, 50).RGBA(), v.Color)
				for a := 0; a < 3; a++ {
					assert.LessOrEqual(t, math.Abs(float64(v.Position[a])), 2.0)
				}
			}
			for tri := 2 * q; tri < 2*q+2; tri++ {
				assert.Greater(t, dot(triNormal(mesh, tri), centroid), float32(0), "quad %d faces inward", q)
			}
		}
	}
}

func TestExtractOpaqueEmpty(t *testing.T) {
	for _, dims := range [][3]int{{5, 5, 5}, {0, 3, 3}, {0, 0, 0}} {
		vol, err := voxel.NewVolume(dims[0], dims[1], dims[2])
		require.NoError(t, err)
		mesh, err := ExtractOpaque(vol, Options{})
		require.NoError(t, err)
		assert.True(t, mesh.Empty())
		assert.Empty(t, mesh.Indices)
	}
}

func TestExtractOpaqueContract(t *testing.T) {
	_, err := ExtractOpaque(nil, Options{})
	assert.ErrorIs(t, err, ErrNilVolume)

	bad := &voxel.Volume{Width: 2, Height: 2, Depth: 2, Voxels: make([]voxel.Voxel, 3)}
	_, err = ExtractOpaque(bad, Options{})
	assert.ErrorIs(t, err, voxel.ErrSizeMismatch)

	_, err = ExtractWater(&voxel.Volume{Width: -1}, WaterOptions{})
	assert.ErrorIs(t, err, voxel.ErrInvalidDims)
}

func TestExtractOpaqueInternalFaces(t *testing.T) {
	vol, err := voxel.NewVolume(2, 1, 1)
	require.NoError(t, err)
	red, blue := voxel.RGB(255, 0, 0), voxel.RGB(0, 0, 255)

	vol.Set(0, 0, 0, red)
	vol.Set(1, 0, 0, red)
	mesh, err := ExtractOpaque(vol, Options{DisableAO: true})
	require.NoError(t, err)
	assert.Equal(t, 6, mesh.QuadCount(), "same material merges into one box")

	vol.Set(1, 0, 0, blue)
	mesh, err = ExtractOpaque(vol, Options{DisableAO: true})
	require.NoError(t, err)
	assert.Equal(t, 10, mesh.QuadCount(), "shared face stays culled, long sides split by material")
	for q := 0; q < mesh.QuadCount(); q++ {
		onShared := true
		for _, v := range mesh.Vertices[4*q : 4*q+4] {
			if v.Position[0] != 1 {
				onShared = false
			}
		}
		assert.False(t, onShared, "quad %d lies on the shared face x=1", q)
	}
}

type unitFace struct {
	cell [3]int
	axis int
	sign int
}

// unitFaces splits every quad into unit squares keyed by the solid cell they
// belong to. It fails the test on overlapping quads or inconsistent winding.
func unitFaces(t *testing.T, m *MeshData) map[unitFace][4]float32 {
	t.Helper()
	out := map[unitFace][4]float32{}
	for q := 0; q < m.QuadCount(); q++ {
		vs := m.Vertices[4*q : 4*q+4]
		p0 := vs[0].Position
		e1 := sub(vs[1].Position, p0)
		e2 := sub(vs[3].Position, p0)
		n := cross(e1, e2)

		axis, sign := 0, 1
		for a := 0; a < 3; a++ {
			if n[a] != 0 {
				axis = a
				if n[a] < 0 {
					sign = -1
				}
			}
		}
		for tri := 2 * q; tri < 2*q+2; tri++ {
			require.Greater(t, dot(triNormal(m, tri), n), float32(0), "triangle %d winds against its quad", tri)
		}

		l1, l2 := length(e1), length(e2)
		for a := float32(0); a < l1; a++ {
			for b := float32(0); b < l2; b++ {
				var cell [3]int
				for c := 0; c < 3; c++ {
					pt := p0[c] + (a+0.5)*e1[c]/l1 + (b+0.5)*e2[c]/l2
					if c == axis {
						pt -= 0.5 * float32(sign)
					}
					cell[c] = int(math.Floor(float64(pt)))
				}
				key := unitFace{cell: cell, axis: axis, sign: sign}
				_, dup := out[key]
				require.False(t, dup, "face %+v covered twice", key)
				out[key] = vs[0].Color
			}
		}
	}
	return out
}

func expectedFaces(vol *voxel.Volume) map[unitFace][4]float32 {
	out := map[unitFace][4]float32{}
	for k := 0; k < vol.Depth; k++ {
		for j := 0; j < vol.Height; j++ {
			for i := 0; i < vol.Width; i++ {
				c := opaqueFilter(vol.At(i, j, k))
				if c == voxel.Air {
					continue
				}
				for axis := 0; axis < 3; axis++ {
					for _, sign := range []int{-1, 1} {
						nb := [3]int{i, j, k}
						nb[axis] += sign
						if opaqueFilter(vol.At(nb[0], nb[1], nb[2])) != voxel.Air {
							continue
						}
						out[unitFace{cell: [3]int{i, j, k}, axis: axis, sign: sign}] = c.RGBA()
					}
				}
			}
		}
	}
	return out
}

func randomVolume(t *testing.T, seed int64, w, h, d int, fill float64) *voxel.Volume {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	vol, err := voxel.NewVolume(w, h, d)
	require.NoError(t, err)
	palette := []voxel.Voxel{voxel.RGB(200, 30, 30), voxel.RGB(30, 200, 30), voxel.RGB(30, 30, 200)}
	for n := range vol.Voxels {
		if rng.Float64() < fill {
			vol.Voxels[n] = palette[rng.Intn(len(palette))]
		}
	}
	return vol
}

func TestExtractOpaqueCoversExactSurface(t *testing.T) {
	variants := []Options{
		{},
		{DisableAO: true},
		{DisableGreedyMeshing: true},
		{Stitch: true},
	}
	for seed := int64(1); seed <= 5; seed++ {
		vol := randomVolume(t, seed, 6, 5, 7, 0.45)
		want := expectedFaces(vol)
		for _, opts := range variants {
			mesh, err := ExtractOpaque(vol, opts)
			require.NoError(t, err)
			got := unitFaces(t, mesh)
			assert.Equal(t, want, got, "seed %d options %+v", seed, opts)
			if opts.DisableGreedyMeshing {
				assert.Equal(t, len(want), mesh.QuadCount())
			} else {
				assert.LessOrEqual(t, mesh.QuadCount(), len(want))
			}
		}
	}
}

func TestExtractOpaqueAOBounded(t *testing.T) {
	vol := randomVolume(t, 11, 8, 8, 8, 0.5)
	mesh, err := ExtractOpaque(vol, Options{})
	require.NoError(t, err)
	require.False(t, mesh.Empty())

	occluded := false
	for _, v := range mesh.Vertices {
		ao := v.UV[0]
		require.GreaterOrEqual(t, ao, float32(0))
		require.LessOrEqual(t, ao, float32(1))
		steps := ao * 3
		assert.InDelta(t, math.Round(float64(steps)), steps, 1e-5)
		if ao < 1 {
			occluded = true
		}
		assert.Equal(t, float32(0), v.UV[1])
	}
	assert.True(t, occluded, "a half-filled volume has occluded corners")
}

func TestExtractOpaqueIdempotent(t *testing.T) {
	vol := randomVolume(t, 3, 10, 6, 9, 0.4)
	m := New(Options{})
	var a, b MeshData
	require.NoError(t, m.ExtractOpaque(vol, &a))
	require.NoError(t, m.ExtractOpaque(vol, &b))
	assert.Equal(t, a.Vertices, b.Vertices)
	assert.Equal(t, a.Indices, b.Indices)
	assert.Equal(t, a.Digest(), b.Digest())

	pooled, err := ExtractOpaque(vol, Options{})
	require.NoError(t, err)
	assert.Equal(t, a.Digest(), pooled.Digest())

	// reusing out drops the previous mesh
	require.NoError(t, m.ExtractOpaque(solidCube(t, 2, voxel.RGB(1, 1, 1)), &a))
	assert.Equal(t, 6, a.QuadCount())
}

func TestExtractOpaqueStitch(t *testing.T) {
	vol := solidCube(t, 4, voxel.RGB(9, 9, 9))
	mesh, err := ExtractOpaque(vol, Options{DisableAO: true, Stitch: true})
	require.NoError(t, err)
	assert.Equal(t, 6*13, mesh.QuadCount())
}

func TestExtractOpaqueCentered(t *testing.T) {
	vol := solidCube(t, 2, voxel.RGB(9, 9, 9))
	local, err := ExtractOpaque(vol, Options{})
	require.NoError(t, err)
	centered, err := ExtractOpaque(vol, Options{Centered: true})
	require.NoError(t, err)
	require.Equal(t, len(local.Vertices), len(centered.Vertices))
	for i := range local.Vertices {
		for a := 0; a < 3; a++ {
			assert.Equal(t, local.Vertices[i].Position[a]-1, centered.Vertices[i].Position[a])
		}
	}
}

func TestExtractOpaqueCapacityExceeded(t *testing.T) {
	vol, err := voxel.NewVolume(32, 32, 32)
	require.NoError(t, err)
	for k := 0; k < 32; k++ {
		for j := 0; j < 32; j++ {
			for i := 0; i < 32; i++ {
				if (i+j+k)%2 == 0 {
					vol.Set(i, j, k, voxel.RGB(5, 5, 5))
				}
			}
		}
	}

	m := New(Options{DisableAO: true})
	out := &MeshData{}
	err = m.ExtractOpaque(vol, out)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.True(t, out.Empty(), "aborted extraction must not leave a truncated mesh")
	assert.Empty(t, out.Indices)

	_, err = ExtractOpaque(vol, Options{})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestExtractOpaqueSkipsLiquid(t *testing.T) {
	vol, err := voxel.NewVolume(3, 2, 3)
	require.NoError(t, err)
	water := voxel.RGB(40, 80, 200).WithLiquid()
	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			vol.Set(x, 0, z, voxel.RGB(90, 60, 30))
			vol.Set(x, 1, z, water)
		}
	}
	opaque, err := ExtractOpaque(vol, Options{DisableAO: true})
	require.NoError(t, err)
	assert.Equal(t, 6, opaque.QuadCount(), "floor top stays visible under water")

	liquid, err := ExtractWater(vol, WaterOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, liquid.QuadCount(), "water layer merges into one double-sided quad")
}

func TestExtractWaterSingleCell(t *testing.T) {
	vol, err := voxel.NewVolume(1, 1, 1)
	require.NoError(t, err)
	vol.Set(0, 0, 0, voxel.RGB(0, 0, 255).WithLiquid())

	mesh, err := ExtractWater(vol, WaterOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, mesh.QuadCount())
	require.Len(t, mesh.Indices, 12)

	for _, v := range mesh.Vertices {
		assert.Equal(t, float32(1), v.UV[0])
		assert.Equal(t, float32(1), v.Position[1], "surface sits on top of the cell")
	}
	up := triNormal(mesh, 0)
	down := triNormal(mesh, 2)
	assert.Greater(t, up[1], float32(0))
	assert.Less(t, down[1], float32(0))

	opaque, err := ExtractOpaque(vol, Options{})
	require.NoError(t, err)
	assert.True(t, opaque.Empty())
}

func TestExtractWaterIgnoresSolid(t *testing.T) {
	vol := solidCube(t, 3, voxel.RGB(1, 2, 3))
	mesh, err := ExtractWater(vol, WaterOptions{Centered: true})
	require.NoError(t, err)
	assert.True(t, mesh.Empty())
}

func TestScratchPoolReuse(t *testing.T) {
	var pool ScratchPool
	s := pool.Get()
	require.NotNil(t, s)
	m := NewWithScratch(Options{}, s)
	var out MeshData
	require.NoError(t, m.ExtractOpaque(solidCube(t, 5, voxel.RGB(1, 1, 1)), &out))
	assert.GreaterOrEqual(t, s.Cap(), 25)
	assert.Same(t, s, m.Scratch())
	pool.Put(m.Scratch())
	pool.Put(nil)
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer SetLogger(nil)

	_, err := ExtractOpaque(solidCube(t, 2, voxel.RGB(1, 1, 1)), Options{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "opaque extraction"), buf.String())

	SetLogger(nil)
	buf.Reset()
	_, err = ExtractOpaque(solidCube(t, 2, voxel.RGB(1, 1, 1)), Options{})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func BenchmarkExtractOpaque(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	vol, _ := voxel.NewVolume(16, 16, 16)
	for n := range vol.Voxels {
		if rng.Intn(3) == 0 {
			vol.Voxels[n] = voxel.RGB(uint8(rng.Intn(4)), 0, 0) + 1
		}
	}
	m := New(Options{})
	var out MeshData
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := m.ExtractOpaque(vol, &out); err != nil {
			b.Fatal(err)
		}
	}
}
