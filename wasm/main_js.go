//go:build js && wasm

package main

import (
	"syscall/js"

	"github.com/voxelsplace/voxmesh/api"
	"github.com/voxelsplace/voxmesh/vopl"
)

func bytesArg(v js.Value) []byte {
	buf := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(buf, v)
	return buf
}

func toJS(out []byte) js.Value {
	uint8arr := js.Global().Get("Uint8Array").New(len(out))
	js.CopyBytesToJS(uint8arr, out)
	return uint8arr
}

// rle2vopl(rle, w, h, d)
func rle2vopl(this js.Value, args []js.Value) any {
	if len(args) < 4 {
		return js.ValueOf("usage: rle2vopl(rle, w, h, d)")
	}
	out, err := api.RLEToVOPL(args[0].String(), args[1].Int(), args[2].Int(), args[3].Int(), vopl.EncodeOptions{})
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toJS(out)
}

// vopl2glb(bytes, water?)
func vopl2glb(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("missing vopl bytes")
	}
	opts := api.Options{Water: true}
	if len(args) > 1 {
		opts.Water = args[1].Truthy()
	}
	out, err := api.VolumeToGLB(bytesArg(args[0]), opts)
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toJS(out)
}

func packVopls(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("missing files object")
	}
	filesObj := args[0]
	files := map[string][]byte{}
	keys := js.Global().Get("Object").Call("keys", filesObj)
	for i := 0; i < keys.Length(); i++ {
		k := keys.Index(i).String()
		files[k] = bytesArg(filesObj.Get(k))
	}
	out, err := api.PackVolumes(files, vopl.LayoutCDC, vopl.PackCompZstd)
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toJS(out)
}

func unpackVoplpack(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return js.ValueOf("missing pack bytes")
	}
	files, err := api.UnpackPack(bytesArg(args[0]))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	// return an object mapping names->Uint8Array
	result := js.Global().Get("Object").New()
	for name, b := range files {
		result.Set(name, toJS(b))
	}
	return result
}

// applyUpdates(voplBytes, updateBytes)
func applyUpdates(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("usage: applyUpdates(vopl, updates)")
	}
	out, _, err := api.ApplyUpdates(bytesArg(args[0]), bytesArg(args[1]), vopl.EncodeOptions{})
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toJS(out)
}

// diffVopl(fromBytes, toBytes)
func diffVopl(this js.Value, args []js.Value) any {
	if len(args) < 2 {
		return js.ValueOf("usage: diffVopl(from, to)")
	}
	out, err := api.DiffVolumes(bytesArg(args[0]), bytesArg(args[1]))
	if err != nil {
		return js.ValueOf(err.Error())
	}
	return toJS(out)
}

func main() {
	js.Global().Set("rle2vopl", js.FuncOf(rle2vopl))
	js.Global().Set("vopl2glb", js.FuncOf(vopl2glb))
	js.Global().Set("packVopls", js.FuncOf(packVopls))
	js.Global().Set("unpackVoplpack", js.FuncOf(unpackVoplpack))
	js.Global().Set("applyUpdates", js.FuncOf(applyUpdates))
	js.Global().Set("diffVopl", js.FuncOf(diffVopl))
	select {}
}
