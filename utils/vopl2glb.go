package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/voxelsplace/voxmesh/api"
	"github.com/voxelsplace/voxmesh/mesher"
	"github.com/voxelsplace/voxmesh/vopl"
)

// RunVOPL2GLB meshes a .vopl file and writes it as a single-node .glb.
func RunVOPL2GLB(inPath, outPath string, opts api.Options) error {
	vol, err := vopl.Load(inPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", inPath, err)
	}
	opaque, liquid, err := api.MeshVolume(mesher.New(opts.Mesh), vol, opts.Water)
	if err != nil {
		return fmt.Errorf("mesh %s: %w", inPath, err)
	}
	doc := api.NewDocument()
	api.AddNode(doc, filepath.Base(inPath), api.Offset(vol, opts), opaque, liquid)
	b, err := api.EncodeGLB(doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		return err
	}
	water := 0
	if liquid != nil {
		water = liquid.QuadCount()
	}
	fmt.Printf("%s: %d opaque quads, %d water quads, %s\n", outPath, opaque.QuadCount(), water, sizeOf(len(b)))
	return nil
}
