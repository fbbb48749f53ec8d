package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/voxelsplace/voxmesh/vopl"
	"github.com/voxelsplace/voxmesh/voxel"
)

// updatesJSON is { "<chunkId>": { "<index>": <code>, ... }, ... }
type updatesJSON map[string]map[string]uint32

// ReadUpdates loads an update stream from path. Files ending in .json use
// the chunk-keyed JSON form and are converted to the binary stream; anything
// else is taken as a binary .vpd stream.
func ReadUpdates(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return data, nil
	}
	entries, err := parseJSONUpdates(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vopl.EncodeUpdates(entries), nil
}

// parseJSONUpdates reads the first chunk of a JSON updates blob. Entries are
// returned in index order.
func parseJSONUpdates(jsonBlob []byte) ([]vopl.UpdateEntry, error) {
	var up updatesJSON
	if err := json.Unmarshal(jsonBlob, &up); err != nil {
		return nil, fmt.Errorf("invalid updates JSON: %w", err)
	}
	if len(up) > 1 {
		return nil, fmt.Errorf("updates JSON holds %d chunks, want one", len(up))
	}
	var entries []vopl.UpdateEntry
	for _, indices := range up {
		for idxStr, code := range indices {
			idx, err := strconv.ParseUint(idxStr, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid voxel index '%s': %w", idxStr, err)
			}
			entries = append(entries, vopl.UpdateEntry{Index: uint32(idx), Code: voxel.Voxel(code)})
		}
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Index < entries[b].Index })
	return entries, nil
}

// RunUpdateVOPL applies an update file to an existing .vopl and writes the
// re-encoded result.
func RunUpdateVOPL(updatesPath, inputPath, outputPath string, opts vopl.EncodeOptions) error {
	updates, err := ReadUpdates(updatesPath)
	if err != nil {
		return err
	}
	vol, err := vopl.Load(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load input VOPL: %w", err)
	}
	changed, err := vopl.ApplyUpdates(vol, updates)
	if err != nil {
		return err
	}
	if err := vopl.Save(vol, outputPath, opts); err != nil {
		return fmt.Errorf("failed to save VOPL: %w", err)
	}
	fmt.Printf(".vopl updated: %d cells changed\n", changed)
	return nil
}

// RunVPD2VOPL builds a w×h×d volume from an update file applied to empty
// space.
func RunVPD2VOPL(updatesPath string, w, h, d int, outPath string, opts vopl.EncodeOptions) error {
	updates, err := ReadUpdates(updatesPath)
	if err != nil {
		return err
	}
	vol, err := voxel.NewVolume(w, h, d)
	if err != nil {
		return err
	}
	if _, err := vopl.ApplyUpdates(vol, updates); err != nil {
		return err
	}
	return vopl.Save(vol, outPath, opts)
}

// RunDiffVOPL writes the update stream that turns fromPath into toPath.
func RunDiffVOPL(fromPath, toPath, outPath string) error {
	from, err := vopl.Load(fromPath)
	if err != nil {
		return err
	}
	to, err := vopl.Load(toPath)
	if err != nil {
		return err
	}
	entries, err := vopl.DiffVolumes(from, to)
	if err != nil {
		return err
	}
	data := vopl.EncodeUpdates(entries)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("%d updates, %s\n", len(entries), sizeOf(len(data)))
	return nil
}
