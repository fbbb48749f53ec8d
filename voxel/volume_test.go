package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeIndexing(t *testing.T) {
	v, err := NewVolume(4, 3, 2)
	require.NoError(t, err)
	require.Equal(t, 24, v.Len())

	assert.Equal(t, 0, v.Index(0, 0, 0))
	assert.Equal(t, 1, v.Index(1, 0, 0))
	assert.Equal(t, 4, v.Index(0, 1, 0))
	assert.Equal(t, 12, v.Index(0, 0, 1))
	assert.Equal(t, 3+4*(2+3*1), v.Index(3, 2, 1))

	for n := 0; n < v.Len(); n++ {
		i, j, k := v.Coords(n)
		assert.Equal(t, n, v.Index(i, j, k))
	}
}

func TestVolumeOutOfRangeReadsAir(t *testing.T) {
	v, err := NewVolume(2, 2, 2)
	require.NoError(t, err)
	v.Fill(RGB(1, 2, 3))

	for _, c := range [][3]int{{-1, 0, 0}, {0, -1, 0}, {0, 0, -1}, {2, 0, 0}, {0, 2, 0}, {0, 0, 2}} {
		assert.Equal(t, Air, v.At(c[0], c[1], c[2]), "coords %v", c)
		assert.False(t, v.Set(c[0], c[1], c[2], RGB(9, 9, 9)))
	}
	assert.Equal(t, RGB(1, 2, 3), v.At(1, 1, 1))
}

func TestVolumeContract(t *testing.T) {
	_, err := NewVolume(-1, 2, 2)
	assert.ErrorIs(t, err, ErrInvalidDims)

	_, err = FromSlice(2, 2, 2, make([]Voxel, 7))
	assert.ErrorIs(t, err, ErrSizeMismatch)

	v := &Volume{Width: 2, Height: 2, Depth: 2}
	assert.ErrorIs(t, v.Validate(), ErrSizeMismatch)

	empty, err := NewVolume(0, 0, 0)
	require.NoError(t, err)
	assert.NoError(t, empty.Validate())

	// 2^21 * 2^21 * 2^22 wraps a 64-bit int to 0
	_, err = NewVolume(1<<21, 1<<21, 1<<22)
	assert.ErrorIs(t, err, ErrInvalidDims)
	_, err = FromSlice(1<<21, 1<<21, 1<<22, nil)
	assert.ErrorIs(t, err, ErrInvalidDims)
	wrapped := &Volume{Width: 1 << 21, Height: 1 << 21, Depth: 1 << 22}
	assert.ErrorIs(t, wrapped.Validate(), ErrInvalidDims)

	n, err := CellCount(3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, 60, n)
}

func TestVoxelBits(t *testing.T) {
	c := RGB(0xFF, 0x80, 0x00)
	assert.Equal(t, uint32(0xFF8000), c.Color())
	assert.False(t, c.Liquid())
	assert.False(t, c.Empty())

	w := c.WithLiquid()
	assert.True(t, w.Liquid())
	assert.Equal(t, c.Color(), w.Color())

	assert.True(t, Air.Empty())
	assert.False(t, Air.Liquid())

	rgba := c.RGBA()
	assert.InDelta(t, 1.0, rgba[0], 1e-6)
	assert.InDelta(t, 128.0/255.0, rgba[1], 1e-6)
	assert.InDelta(t, 0.0, rgba[2], 1e-6)
	assert.Equal(t, float32(1), rgba[3])
}

func TestVolumeDigest(t *testing.T) {
	a, _ := NewVolume(3, 3, 3)
	a.Set(1, 1, 1, RGB(10, 20, 30))
	b := a.Clone()
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Equal(t, 1, b.CountSolid())

	b.Set(0, 0, 0, RGB(1, 1, 1))
	assert.NotEqual(t, a.Digest(), b.Digest())

	c := a.Clone()
	c.X = 16
	assert.NotEqual(t, a.Digest(), c.Digest())
}
