package api

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/voxelsplace/voxmesh/mesher"
	"github.com/voxelsplace/voxmesh/vopl"
	"github.com/voxelsplace/voxmesh/voxel"
)

// Options controls how volumes are turned into glTF.
type Options struct {
	Mesh mesher.Options `yaml:"mesh"`

	// Water adds the double-sided liquid surface as a second, blended
	// primitive.
	Water bool `yaml:"water"`

	// PlaceAtOrigin offsets each volume's vertices by its world origin so
	// that the chunks of a pack line up in one scene.
	PlaceAtOrigin bool `yaml:"place_at_origin"`
}

// MeshVolume runs the opaque pass and, if water is set, the liquid pass on
// vol. The returned meshes are freshly allocated and owned by the caller.
func MeshVolume(m *mesher.Mesher, vol *voxel.Volume, water bool) (opaque, liquid *mesher.MeshData, err error) {
	opaque = new(mesher.MeshData)
	if err := m.ExtractOpaque(vol, opaque); err != nil {
		return nil, nil, err
	}
	if !water {
		return opaque, nil, nil
	}
	liquid = new(mesher.MeshData)
	if err := m.ExtractWater(vol, liquid); err != nil {
		return nil, nil, err
	}
	return opaque, liquid, nil
}

// Offset is the vertex shift AddNode should apply to vol under opts.
func Offset(vol *voxel.Volume, opts Options) [3]float32 {
	if !opts.PlaceAtOrigin {
		return [3]float32{}
	}
	return [3]float32{float32(vol.X), float32(vol.Y), float32(vol.Z)}
}

// VolumeToGLB takes .vopl file bytes and returns .glb bytes.
func VolumeToGLB(voplBytes []byte, opts Options) ([]byte, error) {
	vol, err := vopl.Decode(voplBytes)
	if err != nil {
		return nil, err
	}
	m := mesher.New(opts.Mesh)
	opaque, liquid, err := MeshVolume(m, vol, opts.Water)
	if err != nil {
		return nil, err
	}
	doc := NewDocument()
	AddNode(doc, "volume", Offset(vol, opts), opaque, liquid)
	return EncodeGLB(doc)
}

type meshedEntry struct {
	name           string
	offset         [3]float32
	opaque, liquid *mesher.MeshData
}

// PackToGLB meshes every entry of a .voplpack concurrently, one Mesher per
// task, and returns a scene with one node per entry in pack order.
func PackToGLB(ctx context.Context, packBytes []byte, opts Options) ([]byte, error) {
	pack, _, _, err := vopl.UnmarshalPack(packBytes)
	if err != nil {
		return nil, err
	}
	if len(pack.Entries) == 0 {
		return nil, fmt.Errorf("api: pack has no entries")
	}

	meshed := make([]meshedEntry, len(pack.Entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, e := range pack.Entries {
		i, e := i, e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vol, err := e.Volume()
			if err != nil {
				return err
			}
			m := mesher.New(opts.Mesh)
			opaque, liquid, err := MeshVolume(m, vol, opts.Water)
			if err != nil {
				return fmt.Errorf("entry %d (%s): %w", i, e.Name, err)
			}
			meshed[i] = meshedEntry{name: e.Name, offset: Offset(vol, opts), opaque: opaque, liquid: liquid}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := NewDocument()
	for _, me := range meshed {
		AddNode(doc, me.name, me.offset, me.opaque, me.liquid)
	}
	mesher.Logger().Debug("api: pack meshed", "entries", len(meshed), "meshes", len(doc.Meshes))
	return EncodeGLB(doc)
}

// PackVolumes builds a .voplpack from .vopl blobs keyed by name. Entries are
// stored in name order so the output does not depend on map iteration.
func PackVolumes(files map[string][]byte, layout vopl.PackLayout, comp vopl.PackCompression) ([]byte, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("api: no files")
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	pack := &vopl.Pack{Entries: make([]vopl.PackEntry, 0, len(names))}
	for _, name := range names {
		data := files[name]
		if _, _, _, err := vopl.ParseHeader(data); err != nil {
			return nil, fmt.Errorf("api: %s: %w", name, err)
		}
		pack.Entries = append(pack.Entries, vopl.PackEntry{Name: name, Data: data})
	}
	return pack.MarshalEx(layout, comp)
}

// UnpackPack returns a map of entry name -> .vopl bytes from a .voplpack blob.
func UnpackPack(packBytes []byte) (map[string][]byte, error) {
	pack, _, _, err := vopl.UnmarshalPack(packBytes)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(pack.Entries))
	for _, e := range pack.Entries {
		if _, dup := out[e.Name]; dup {
			return nil, fmt.Errorf("api: duplicate pack entry %q", e.Name)
		}
		out[e.Name] = e.Data
	}
	return out, nil
}

// ApplyUpdates applies an update stream to .vopl bytes and re-encodes the
// result. It also reports how many cells changed.
func ApplyUpdates(voplBytes, updates []byte, opts vopl.EncodeOptions) ([]byte, int, error) {
	vol, err := vopl.Decode(voplBytes)
	if err != nil {
		return nil, 0, err
	}
	changed, err := vopl.ApplyUpdates(vol, updates)
	if err != nil {
		return nil, 0, err
	}
	out, err := vopl.Encode(vol, opts)
	if err != nil {
		return nil, 0, err
	}
	return out, changed, nil
}

// DiffVolumes returns the update stream that turns the first .vopl into the
// second.
func DiffVolumes(fromBytes, toBytes []byte) ([]byte, error) {
	from, err := vopl.Decode(fromBytes)
	if err != nil {
		return nil, fmt.Errorf("api: from: %w", err)
	}
	to, err := vopl.Decode(toBytes)
	if err != nil {
		return nil, fmt.Errorf("api: to: %w", err)
	}
	entries, err := vopl.DiffVolumes(from, to)
	if err != nil {
		return nil, err
	}
	return vopl.EncodeUpdates(entries), nil
}

// ParseRLE reads a "count,code,count,code,..." list. Surrounding brackets
// and blanks are ignored.
func ParseRLE(rleArg string) ([]int, error) {
	rleStr := strings.Trim(rleArg, "[] ")
	if rleStr == "" {
		return nil, fmt.Errorf("api: empty RLE input")
	}
	var rle []int
	for _, p := range strings.Split(rleStr, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		i, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("api: failed to parse RLE '%s': %w", p, err)
		}
		rle = append(rle, i)
	}
	return rle, nil
}

// RLEToVOPL converts an RLE string covering a w×h×d volume to .vopl bytes.
func RLEToVOPL(rleArg string, w, h, d int, opts vopl.EncodeOptions) ([]byte, error) {
	rle, err := ParseRLE(rleArg)
	if err != nil {
		return nil, err
	}
	vol, err := vopl.ExpandRLE(w, h, d, rle)
	if err != nil {
		return nil, err
	}
	return vopl.Encode(vol, opts)
}
