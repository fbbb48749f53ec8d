package vopl

import (
	"fmt"

	"github.com/voxelsplace/voxmesh/voxel"
)

// ExpandRLE builds a w×h×d volume from (count, code) pairs laid out in
// linear index order. The runs must cover the volume exactly.
func ExpandRLE(w, h, d int, rle []int) (*voxel.Volume, error) {
	if len(rle)%2 != 0 {
		return nil, fmt.Errorf("vopl: RLE needs (count, code) pairs, got %d values", len(rle))
	}
	vol, err := voxel.NewVolume(w, h, d)
	if err != nil {
		return nil, fmt.Errorf("vopl: %w", err)
	}
	pos := 0
	for p := 0; p < len(rle); p += 2 {
		count, code := rle[p], rle[p+1]
		if count <= 0 {
			return nil, fmt.Errorf("vopl: RLE run %d has count %d", p/2, count)
		}
		if code < 0 || int64(code) > 0xFFFFFFFF {
			return nil, fmt.Errorf("vopl: RLE run %d has invalid code %d", p/2, code)
		}
		if count > len(vol.Voxels)-pos {
			return nil, fmt.Errorf("vopl: RLE overruns volume of %d cells", len(vol.Voxels))
		}
		c := voxel.Voxel(code)
		for i := pos; i < pos+count; i++ {
			vol.Voxels[i] = c
		}
		pos += count
	}
	if pos != len(vol.Voxels) {
		return nil, fmt.Errorf("vopl: RLE covers %d of %d cells", pos, len(vol.Voxels))
	}
	return vol, nil
}

// CompressRLE is the inverse of ExpandRLE.
func CompressRLE(vol *voxel.Volume) []int {
	var out []int
	for i := 0; i < len(vol.Voxels); {
		c := vol.Voxels[i]
		j := i + 1
		for j < len(vol.Voxels) && vol.Voxels[j] == c {
			j++
		}
		out = append(out, j-i, int(c))
		i = j
	}
	return out
}
