package utils

import (
	"context"
	"fmt"
)

// RunVOPLPACK2VOPL extracts all .vopl files from a .voplpack into the given
// output directory under their entry names.
func RunVOPLPACK2VOPL(ctx context.Context, inPackPath, outDir string) error {
	n, err := UnpackToDir(ctx, inPackPath, outDir)
	if err != nil {
		return err
	}
	fmt.Printf("unpacked %d entries into %s\n", n, outDir)
	return nil
}
