package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxelsplace/voxmesh/vopl"
)

// CreatePack reads .vopl files and writes a .voplpack to outputFile. Entry
// names are the input base names, in argument order.
func CreatePack(ctx context.Context, inputFiles []string, outputFile string, layout vopl.PackLayout, comp vopl.PackCompression) error {
	if len(inputFiles) == 0 {
		return fmt.Errorf("no .vopl files provided")
	}
	entries := make([]vopl.PackEntry, len(inputFiles))
	seen := make(map[string]string, len(inputFiles))
	for i, path := range inputFiles {
		name := filepath.Base(path)
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("%s and %s share the entry name %q", prev, path, name)
		}
		seen[name] = path
		entries[i].Name = name
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range inputFiles {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if _, _, _, err := vopl.ParseHeader(b); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			entries[i].Data = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	pack := &vopl.Pack{Entries: entries}
	start := time.Now()
	data, err := pack.MarshalEx(layout, comp)
	if err != nil {
		return err
	}
	fmt.Printf("packed %d entries (%s, %s) into %s in %d ms\n",
		len(entries), layout, comp, sizeOf(len(data)), time.Since(start).Milliseconds())
	return os.WriteFile(outputFile, data, 0o644)
}

// UnpackToDir writes the .vopl files of a .voplpack into outputDir and
// returns how many were written.
func UnpackToDir(ctx context.Context, packFile, outputDir string) (int, error) {
	data, err := os.ReadFile(packFile)
	if err != nil {
		return 0, err
	}
	pack, _, _, err := vopl.UnmarshalPack(data)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(pack.Entries))
	for _, e := range pack.Entries {
		name := filepath.Base(e.Name)
		if name == "." || name == string(filepath.Separator) || name != e.Name {
			return 0, fmt.Errorf("refusing to unpack entry %q outside %s", e.Name, outputDir)
		}
		if seen[name] {
			return 0, fmt.Errorf("pack holds entry %q twice", name)
		}
		seen[name] = true
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, e := range pack.Entries {
		e := e
		name := e.Name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(outputDir, name), e.Data, 0o644)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(pack.Entries), nil
}

// UnpackToMemory returns names and raw .vopl bytes without writing to disk.
func UnpackToMemory(packFile string) ([]string, [][]byte, error) {
	data, err := os.ReadFile(packFile)
	if err != nil {
		return nil, nil, err
	}
	pack, _, _, err := vopl.UnmarshalPack(data)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(pack.Entries))
	blobs := make([][]byte, len(pack.Entries))
	for i, e := range pack.Entries {
		names[i] = e.Name
		blobs[i] = e.Data
	}
	return names, blobs, nil
}
