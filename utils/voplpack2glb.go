package utils

import (
	"context"
	"fmt"
	"os"

	"github.com/voxelsplace/voxmesh/api"
)

// RunVOPLPACK2GLB converts a .voplpack into a .glb with one node per entry.
// Entries are meshed in parallel; with PlaceAtOrigin set each one lands at
// its own world origin.
func RunVOPLPACK2GLB(ctx context.Context, inPackPath, outGlbPath string, opts api.Options) error {
	data, err := os.ReadFile(inPackPath)
	if err != nil {
		return err
	}
	b, err := api.PackToGLB(ctx, data, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", inPackPath, err)
	}
	if err := os.WriteFile(outGlbPath, b, 0o644); err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", outGlbPath, sizeOf(len(b)))
	return nil
}
