package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/voxelsplace/voxmesh/mesher"
	"github.com/voxelsplace/voxmesh/vopl"
)

func sizeOf(n int) string { return humanize.Bytes(uint64(n)) }

// RunStats prints header, occupancy and mesh figures for a .vopl file, or
// for every entry of a .voplpack.
func RunStats(w io.Writer, path string, opts mesher.Options) error {
	if strings.EqualFold(filepath.Ext(path), ".voplpack") {
		names, blobs, err := UnpackToMemory(path)
		if err != nil {
			return err
		}
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d entries, %s\n", path, len(names), humanize.Bytes(uint64(fi.Size())))
		m := mesher.New(opts)
		for i, name := range names {
			if err := writeStats(w, m, name, blobs[i]); err != nil {
				return err
			}
		}
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return writeStats(w, mesher.New(opts), path, data)
}

func writeStats(w io.Writer, m *mesher.Mesher, name string, data []byte) error {
	hdr, enc, _, err := vopl.ParseHeader(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	vol, err := vopl.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	liquid := 0
	for _, c := range vol.Voxels {
		if c.Liquid() {
			liquid++
		}
	}
	var opaque, water mesher.MeshData
	if err := m.ExtractOpaque(vol, &opaque); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := m.ExtractWater(vol, &water); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	fmt.Fprintf(w, "%s\n", name)
	fmt.Fprintf(w, "  dims      %dx%dx%d at (%d,%d,%d)\n", hdr.W, hdr.H, hdr.D, hdr.X, hdr.Y, hdr.Z)
	fmt.Fprintf(w, "  file      %s, %s payload, %d palette entries, %d bpp\n",
		sizeOf(len(data)), enc, len(hdr.Palette), hdr.BPP)
	fmt.Fprintf(w, "  cells     %s solid, %s liquid of %s\n",
		humanize.Comma(int64(vol.CountSolid()-liquid)), humanize.Comma(int64(liquid)), humanize.Comma(int64(vol.Len())))
	fmt.Fprintf(w, "  mesh      %s opaque quads, %s water quads, %s vertices\n",
		humanize.Comma(int64(opaque.QuadCount())), humanize.Comma(int64(water.QuadCount())),
		humanize.Comma(int64(len(opaque.Vertices)+len(water.Vertices))))
	fmt.Fprintf(w, "  digest    %016x\n", vol.Digest())
	return nil
}
