package vopl

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelsplace/voxmesh/voxel"
)

func randomVolume(t *testing.T, w, h, d int, fill float64, seed int64) *voxel.Volume {
	t.Helper()
	vol, err := voxel.NewVolume(w, h, d)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	colors := []voxel.Voxel{
		voxel.RGB(200, 40, 40),
		voxel.RGB(40, 200, 40),
		voxel.RGB(40, 40, 200),
		voxel.RGB(40, 90, 200).WithLiquid(),
	}
	for i := range vol.Voxels {
		if rng.Float64() < fill {
			vol.Voxels[i] = colors[rng.Intn(len(colors))]
		}
	}
	return vol
}

func TestMortonOrderIsPermutation(t *testing.T) {
	for _, dims := range [][3]int{{1, 1, 1}, {16, 16, 16}, {5, 3, 7}, {0, 4, 4}} {
		order := mortonOrder(dims[0], dims[1], dims[2])
		require.Len(t, order, dims[0]*dims[1]*dims[2])
		seen := make([]bool, len(order))
		for _, i := range order {
			require.False(t, seen[i], "dims %v: index %d repeated", dims, i)
			seen[i] = true
		}
	}
	// first octant of a 2x2x2 block comes out in xyz bit order
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, mortonOrder(2, 2, 2))
}

func TestMortonCacheIsBounded(t *testing.T) {
	for n := 1; n <= 3*mortonCacheShapes; n++ {
		order := mortonOrder(n, 2, 1)
		require.Len(t, order, 2*n)
		assert.Equal(t, order, buildMortonOrder(n, 2, 1))
	}
	mortonCache.Lock()
	cached := len(mortonCache.orders)
	mortonCache.Unlock()
	assert.LessOrEqual(t, cached, mortonCacheShapes)
}

func TestMortonDecode(t *testing.T) {
	for _, c := range [][3]uint32{{0, 0, 0}, {1, 2, 3}, {15, 0, 15}, {65535, 1, 40000}} {
		x, y, z := MortonDecode3D64(Morton3D64(c[0], c[1], c[2]))
		assert.Equal(t, c, [3]uint32{x, y, z})
	}
}

func TestRoundTripEachEncoding(t *testing.T) {
	vols := map[string]*voxel.Volume{
		"sparse fill": randomVolume(t, 16, 16, 16, 0.05, 1),
		"dense fill":  randomVolume(t, 16, 16, 16, 0.9, 2),
		"odd dims":    randomVolume(t, 7, 3, 11, 0.4, 3),
	}
	vols["odd dims"].X, vols["odd dims"].Y, vols["odd dims"].Z = -32, 64, -1

	for name, vol := range vols {
		for _, enc := range allEncodings {
			for _, raw := range []bool{true, false} {
				t.Run(name+"/"+enc.String(), func(t *testing.T) {
					data, err := Encode(vol, EncodeOptions{Encodings: []Encoding{enc}, NoCompression: raw})
					require.NoError(t, err)

					_, got, _, err := ParseHeader(data)
					require.NoError(t, err)
					assert.Equal(t, enc, got.Base())
					if raw {
						assert.False(t, got.Compressed())
					}

					back, err := Decode(data)
					require.NoError(t, err)
					assert.Equal(t, vol.Dims(), back.Dims())
					assert.Equal(t, [3]int{vol.X, vol.Y, vol.Z}, [3]int{back.X, back.Y, back.Z})
					assert.Equal(t, vol.Voxels, back.Voxels)
				})
			}
		}
	}
}

func TestEncodePicksSmallest(t *testing.T) {
	vol := randomVolume(t, 16, 16, 16, 0.02, 4)
	best, err := Encode(vol, EncodeOptions{})
	require.NoError(t, err)
	for _, enc := range allEncodings {
		for _, raw := range []bool{true, false} {
			data, err := Encode(vol, EncodeOptions{Encodings: []Encoding{enc}, NoCompression: raw})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(best), len(data), "%s raw=%v", enc, raw)
		}
	}
}

func TestHeaderFields(t *testing.T) {
	vol, err := voxel.NewVolume(3, 2, 1)
	require.NoError(t, err)
	vol.X, vol.Y, vol.Z = 10, -20, 30
	red, blue := voxel.RGB(255, 0, 0), voxel.RGB(0, 0, 255)
	vol.Set(0, 0, 0, blue)
	vol.Set(2, 1, 0, red)
	vol.Set(1, 1, 0, red)

	data, err := Encode(vol, EncodeOptions{NoCompression: true})
	require.NoError(t, err)
	hdr, _, payload, err := ParseHeader(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(version), hdr.Ver)
	assert.Equal(t, [3]uint16{3, 2, 1}, [3]uint16{hdr.W, hdr.H, hdr.D})
	assert.Equal(t, [3]int32{10, -20, 30}, [3]int32{hdr.X, hdr.Y, hdr.Z})
	assert.Equal(t, []uint32{0, uint32(blue), uint32(red)}, hdr.Palette)
	assert.Equal(t, uint8(2), hdr.BPP)
	assert.Equal(t, int(hdr.PLen), len(payload))
}

func TestEmptyVolume(t *testing.T) {
	for _, dims := range [][3]int{{0, 0, 0}, {4, 0, 2}, {4, 4, 4}} {
		vol, err := voxel.NewVolume(dims[0], dims[1], dims[2])
		require.NoError(t, err)
		data, err := Encode(vol, EncodeOptions{})
		require.NoError(t, err)
		back, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, vol.Dims(), back.Dims())
		assert.Zero(t, back.CountSolid())
	}
}

func TestPaletteLimit(t *testing.T) {
	vol, err := voxel.NewVolume(65535, 1, 1)
	require.NoError(t, err)
	for i := range vol.Voxels {
		vol.Voxels[i] = voxel.Voxel(i + 1)
	}
	_, err = Encode(vol, EncodeOptions{Encodings: []Encoding{EncDense}, NoCompression: true})
	assert.ErrorContains(t, err, "palette limit")

	vol.Voxels[0] = vol.Voxels[1]
	data, err := Encode(vol, EncodeOptions{Encodings: []Encoding{EncDense}, NoCompression: true})
	require.NoError(t, err)
	hdr, _, _, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(16), hdr.BPP)
	assert.Len(t, hdr.Palette, 65535)
}

func deflated(t *testing.T, b []byte) []byte {
	t.Helper()
	zb, err := zlibCompress(b)
	require.NoError(t, err)
	return zb
}

func TestDecodeRejectsBadInput(t *testing.T) {
	vol := randomVolume(t, 4, 4, 4, 0.5, 5)
	good, err := Encode(vol, EncodeOptions{Encodings: []Encoding{EncDense}, NoCompression: true})
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), good...))
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b })},
		{"bad version", mutate(func(b []byte) []byte { b[4] = 3; return b })},
		{"unknown encoding", mutate(func(b []byte) []byte { b[5] = 2; return b })},
		{"truncated payload", mutate(func(b []byte) []byte { return b[:len(b)-1] })},
		{"trailing bytes", mutate(func(b []byte) []byte { return append(b, 0) })},
		{"palette air entry", mutate(func(b []byte) []byte { b[fixedHeaderLen] = 1; return b })},
		{"dense payload short", BuildFromHeaderAndPayload(Header{Ver: version, BPP: 1, W: 4, H: 4, D: 4, Palette: []uint32{0, 7}}, EncDense, make([]byte, 7))},
		{"dense payload long", BuildFromHeaderAndPayload(Header{Ver: version, BPP: 1, W: 4, H: 4, D: 4, Palette: []uint32{0, 7}}, EncDense, make([]byte, 9))},
		{"huge dims", BuildFromHeaderAndPayload(Header{Ver: version, BPP: 1, W: 65535, H: 65535, D: 65535, Palette: []uint32{0}}, EncSparse, []byte{0, 0, 0, 0})},
		{"over cell limit", BuildFromHeaderAndPayload(Header{Ver: version, BPP: 1, W: 4096, H: 4096, D: 8, Palette: []uint32{0}}, EncSparse, []byte{0, 0, 0, 0})},
		{"zlib bomb", BuildFromHeaderAndPayload(Header{Ver: version, BPP: 1, W: 2, H: 2, D: 2, Palette: []uint32{0, 7}}, EncDense|encZlib, deflated(t, make([]byte, 1<<16)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Decode(tt.data)
				assert.Error(t, err)
			})
		})
	}

	// all air: the four byte count is the whole payload
	vol, err = Decode(BuildFromHeaderAndPayload(Header{Ver: version, BPP: 1, W: 64, H: 64, D: 4, Palette: []uint32{0}}, EncSparse, []byte{0, 0, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, [3]int{64, 64, 4}, vol.Dims())
	assert.Zero(t, vol.CountSolid())
}

func TestEncodeRejectsBadVolume(t *testing.T) {
	_, err := Encode(nil, EncodeOptions{})
	assert.Error(t, err)

	_, err = Encode(&voxel.Volume{Width: 2, Height: 2, Depth: 2}, EncodeOptions{})
	assert.ErrorIs(t, err, voxel.ErrSizeMismatch)

	vol, err := voxel.NewVolume(MaxDim+1, 1, 1)
	require.NoError(t, err)
	_, err = Encode(vol, EncodeOptions{})
	assert.Error(t, err)

	_, err = Encode(randomVolume(t, 2, 2, 2, 1, 6), EncodeOptions{Encodings: []Encoding{EncBitmap | encZlib}})
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	vol := randomVolume(t, 8, 8, 8, 0.3, 7)
	path := filepath.Join(t.TempDir(), "chunk.vopl")
	require.NoError(t, Save(vol, path, EncodeOptions{}))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, vol.Digest(), back.Digest())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	viaReader, err := ReadFrom(f)
	require.NoError(t, err)
	assert.Equal(t, vol.Voxels, viaReader.Voxels)
}
