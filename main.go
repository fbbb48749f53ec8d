//go:build !(js && wasm)

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"

	"github.com/voxelsplace/voxmesh/config"
	"github.com/voxelsplace/voxmesh/mesher"
	"github.com/voxelsplace/voxmesh/utils"
)

// noiseDims is the chunk size gennoise writes.
var noiseDims = [3]int{32, 32, 32}

func usage() {
	fmt.Println("Usage: voxmesh <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  vopl2glb input.vopl output.glb         (mesh .vopl -> .glb, opaque + water)")
	fmt.Println("  voplpack2glb input.voplpack output.glb (convert .voplpack -> .glb, one node per entry)")
	fmt.Println("  vopl2voplpack output.voplpack input1.vopl [input2.vopl ...]   (pack multiple .vopl into a .voplpack)")
	fmt.Println("  voplpack2vopl input.voplpack output_dir  (unpack .voplpack into directory of .vopl files)")
	fmt.Println("  updatevopl input.vopl updates.vpd|updates.json output.vopl  (apply voxel updates)")
	fmt.Println("  diffvopl from.vopl to.vopl output.vpd  (write the updates turning one .vopl into another)")
	fmt.Println("  vpd2vopl updates.vpd W H D output.vopl (apply updates to an empty W×H×D volume)")
	fmt.Println("  rle2vopl \"count,code,...\" W H D output.vopl  (expand a run list into a .vopl)")
	fmt.Println("  gennoise <percentage> <amount> <output_dir>                         (generate N random .vopl chunks with fixed fill %)")
	fmt.Println("  gennoise <percentageMin> <percentageMax> <amount> <output_dir>     (generate with per-file random fill in [min,max])")
	fmt.Println("  genterrain <n> <output_dir>            (generate an n×n grid of perlin terrain chunks)")
	fmt.Println("  stats input.vopl|input.voplpack        (print header, occupancy and mesh figures)")
	fmt.Println("Configuration is read from $" + config.EnvConfig + " (YAML) and VOXMESH_* overrides.")
}

func fail(err error) {
	fmt.Println("Error:", err)
	os.Exit(1)
}

func wantArgs(n int) {
	if len(os.Args) != n {
		usage()
		os.Exit(1)
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		fail(err)
	}
	return n
}

func atof(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fail(err)
	}
	return f
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		fail(err)
	}
	settings, err := cfg.Settings()
	if err != nil {
		fail(err)
	}
	mesher.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: settings.LogLevel})))
	codec := settings.Codec

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch os.Args[1] {
	case "vopl2glb":
		wantArgs(4)
		err = utils.RunVOPL2GLB(os.Args[2], os.Args[3], cfg.GLB)
	case "voplpack2glb":
		wantArgs(4)
		err = utils.RunVOPLPACK2GLB(ctx, os.Args[2], os.Args[3], cfg.GLB)
	case "vopl2voplpack":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		output := os.Args[2]
		inputs := os.Args[3:]
		err = utils.CreatePack(ctx, inputs, output, settings.Layout, settings.Comp)
	case "voplpack2vopl":
		wantArgs(4)
		err = utils.RunVOPLPACK2VOPL(ctx, os.Args[2], os.Args[3])
	case "updatevopl":
		wantArgs(5)
		err = utils.RunUpdateVOPL(os.Args[3], os.Args[2], os.Args[4], codec)
	case "diffvopl":
		wantArgs(5)
		err = utils.RunDiffVOPL(os.Args[2], os.Args[3], os.Args[4])
	case "vpd2vopl":
		wantArgs(7)
		err = utils.RunVPD2VOPL(os.Args[2], atoi(os.Args[3]), atoi(os.Args[4]), atoi(os.Args[5]), os.Args[6], codec)
	case "rle2vopl":
		wantArgs(7)
		err = utils.RunRLE2VOPL(os.Args[2], atoi(os.Args[3]), atoi(os.Args[4]), atoi(os.Args[5]), os.Args[6], codec)
	case "gennoise":
		// Two forms:
		// 1) gennoise <percentage> <amount> <output_dir>
		// 2) gennoise <percentageMin> <percentageMax> <amount> <output_dir>
		switch len(os.Args) {
		case 5:
			err = utils.RunGenerateNoiseVOPL(atof(os.Args[2]), atoi(os.Args[3]), os.Args[4], noiseDims, 0, codec)
		case 6:
			err = utils.RunGenerateNoiseVOPLRange(atof(os.Args[2]), atof(os.Args[3]), atoi(os.Args[4]), os.Args[5], noiseDims, 0, codec)
		default:
			usage()
			os.Exit(1)
		}
	case "genterrain":
		wantArgs(4)
		err = utils.RunGenerateTerrain(cfg.Terrain, atoi(os.Args[2]), os.Args[3], codec)
	case "stats":
		wantArgs(3)
		err = utils.RunStats(os.Stdout, os.Args[2], cfg.GLB.Mesh)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fail(err)
	}

	fmt.Println("Operation completed!")
}
