package voxel

// Voxel is a packed cell code: bits 0-23 hold a 0xRRGGBB material color and
// bit 24 marks liquid. 0 is air.
type Voxel uint32

const (
	ColorMask  Voxel = 0x00FFFFFF
	LiquidFlag Voxel = 1 << 24
	Air        Voxel = 0
)

// RGB packs an opaque material color.
func RGB(r, g, b uint8) Voxel {
	return Voxel(r)<<16 | Voxel(g)<<8 | Voxel(b)
}

// WithLiquid returns v with the liquid flag set.
func (v Voxel) WithLiquid() Voxel { return v | LiquidFlag }

// Empty reports whether v is air. A code of 0 is never solid, whatever the
// caller meant by the other bits.
func (v Voxel) Empty() bool { return v == 0 }

func (v Voxel) Liquid() bool { return v != 0 && v&LiquidFlag != 0 }

func (v Voxel) Color() uint32 { return uint32(v & ColorMask) }

// RGBA returns the material color as normalized floats with alpha 1.
func (v Voxel) RGBA() [4]float32 {
	c := v.Color()
	return [4]float32{
		float32((c>>16)&0xFF) / 255,
		float32((c>>8)&0xFF) / 255,
		float32(c&0xFF) / 255,
		1,
	}
}
