package utils

import (
	"fmt"
	"os"

	"github.com/voxelsplace/voxmesh/api"
	"github.com/voxelsplace/voxmesh/vopl"
)

// RunRLE2VOPL writes a w×h×d volume described by a "count,code,..." run
// list as a .vopl file.
func RunRLE2VOPL(rleArg string, w, h, d int, outPath string, opts vopl.EncodeOptions) error {
	data, err := api.RLEToVOPL(rleArg, w, h, d, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to save VOPL: %w", err)
	}
	fmt.Printf(".vopl saved (%s)\n", sizeOf(len(data)))
	return nil
}
