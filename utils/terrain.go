package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aquilax/go-perlin"

	"github.com/voxelsplace/voxmesh/config"
	"github.com/voxelsplace/voxmesh/vopl"
	"github.com/voxelsplace/voxmesh/voxel"
)

var (
	grass = voxel.RGB(86, 152, 60)
	dirt  = voxel.RGB(121, 85, 58)
	stone = voxel.RGB(125, 125, 125)
	sand  = voxel.RGB(219, 202, 150)
	water = voxel.RGB(48, 96, 200).WithLiquid()
)

// Terrain samples a perlin heightmap in world coordinates, so volumes
// generated at adjacent origins join without seams.
type Terrain struct {
	cfg   config.TerrainConfig
	noise *perlin.Perlin
}

func NewTerrain(cfg config.TerrainConfig) *Terrain {
	return &Terrain{cfg: cfg, noise: perlin.NewPerlin(cfg.Alpha, cfg.Beta, cfg.Octaves, cfg.Seed)}
}

// Height returns the number of solid cells in column (x, z), in [1, Height].
func (t *Terrain) Height(x, z int) int {
	n := t.noise.Noise2D(float64(x)*t.cfg.Scale, float64(z)*t.cfg.Scale)
	// Noise2D is roughly in [-1, 1]
	h := int((n + 1) / 2 * float64(t.cfg.Height))
	return min(max(h, 1), t.cfg.Height)
}

// Volume generates the chunk whose origin is (ox, 0, oz). Columns below the
// water level are flooded with liquid up to it and get a sand top.
func (t *Terrain) Volume(ox, oz int) (*voxel.Volume, error) {
	vol, err := voxel.NewVolume(t.cfg.Width, t.cfg.Height, t.cfg.Depth)
	if err != nil {
		return nil, err
	}
	vol.X, vol.Z = ox, oz
	for z := 0; z < vol.Depth; z++ {
		for x := 0; x < vol.Width; x++ {
			h := t.Height(ox+x, oz+z)
			wet := h <= t.cfg.WaterLevel
			for y := 0; y < h; y++ {
				var c voxel.Voxel
				switch {
				case y == h-1 && wet:
					c = sand
				case y == h-1:
					c = grass
				case y >= h-4:
					c = dirt
				default:
					c = stone
				}
				vol.Set(x, y, z, c)
			}
			for y := h; y < t.cfg.WaterLevel && y < vol.Height; y++ {
				vol.Set(x, y, z, water)
			}
		}
	}
	return vol, nil
}

// RunGenerateTerrain writes a grid of n×n terrain chunks to outDir, named
// terrain_<cx>_<cz>.vopl, with origins tiling the XZ plane.
func RunGenerateTerrain(cfg config.TerrainConfig, n int, outDir string, opts vopl.EncodeOptions) error {
	if n <= 0 {
		return fmt.Errorf("chunk grid size must be positive, got %d", n)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	t := NewTerrain(cfg)
	for cz := 0; cz < n; cz++ {
		for cx := 0; cx < n; cx++ {
			vol, err := t.Volume(cx*cfg.Width, cz*cfg.Depth)
			if err != nil {
				return err
			}
			path := filepath.Join(outDir, fmt.Sprintf("terrain_%d_%d.vopl", cx, cz))
			if err := vopl.Save(vol, path, opts); err != nil {
				return fmt.Errorf("failed to save %s: %w", path, err)
			}
		}
	}
	fmt.Printf("generated %d terrain chunks in %s\n", n*n, outDir)
	return nil
}
