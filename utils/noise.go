package utils

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/voxelsplace/voxmesh/vopl"
	"github.com/voxelsplace/voxmesh/voxel"
)

// noiseColors is the number of distinct random materials a noise volume
// draws from.
const noiseColors = 63

// generateNoiseVolume fills the given percentage of a w×h×d volume with
// random colors from a small per-volume palette. Remaining cells are air.
func generateNoiseVolume(w, h, d int, percentage float64, r *rand.Rand) (*voxel.Volume, error) {
	vol, err := voxel.NewVolume(w, h, d)
	if err != nil {
		return nil, err
	}
	percentage = min(max(percentage, 0), 100)
	total := vol.Len()
	want := min(int(float64(total)*(percentage/100.0)+0.5), total)

	var palette [noiseColors]voxel.Voxel
	for i := range palette {
		palette[i] = voxel.RGB(uint8(1+r.Intn(255)), uint8(r.Intn(256)), uint8(r.Intn(256)))
	}

	idx := make([]int, total)
	for i := range idx {
		idx[i] = i
	}
	// partial Fisher-Yates: only the first want slots are needed
	for i := 0; i < want; i++ {
		j := i + r.Intn(total-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	for k := 0; k < want; k++ {
		vol.Voxels[idx[k]] = palette[r.Intn(noiseColors)]
	}
	return vol, nil
}

// RunGenerateNoiseVOPL creates amount .vopl files named 0.vopl..(amount-1).vopl
// in outDir, each filled to the given percentage.
func RunGenerateNoiseVOPL(percentage float64, amount int, outDir string, dims [3]int, seed int64, opts vopl.EncodeOptions) error {
	return RunGenerateNoiseVOPLRange(percentage, percentage, amount, outDir, dims, seed, opts)
}

// RunGenerateNoiseVOPLRange generates amount .vopl files with a fill percentage
// drawn uniformly from [percentageMin, percentageMax] per file. A zero seed
// picks one from the clock.
func RunGenerateNoiseVOPLRange(percentageMin, percentageMax float64, amount int, outDir string, dims [3]int, seed int64, opts vopl.EncodeOptions) error {
	if amount < 0 {
		amount = 0
	}
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	percentageMin = max(percentageMin, 0)
	percentageMax = min(percentageMax, 100)
	if percentageMax < percentageMin {
		percentageMin, percentageMax = percentageMax, percentageMin
	}

	baseSeed := uint64(seed)
	if baseSeed == 0 {
		baseSeed = uint64(time.Now().UnixNano())
	}
	for i := 0; i < amount; i++ {
		// per-file seed from a Weyl progression
		const weyl = uint64(0x9e3779b97f4a7c15)
		s := baseSeed ^ (uint64(i)+1)*weyl
		r := rand.New(rand.NewSource(int64(s & 0x7fffffffffffffff)))

		perc := percentageMin
		if percentageMax > percentageMin {
			perc = percentageMin + r.Float64()*(percentageMax-percentageMin)
		}

		vol, err := generateNoiseVolume(dims[0], dims[1], dims[2], perc, r)
		if err != nil {
			return err
		}
		vol.X = i * dims[0]
		path := filepath.Join(outDir, fmt.Sprintf("%d.vopl", i))
		if err := vopl.Save(vol, path, opts); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
	}
	return nil
}
