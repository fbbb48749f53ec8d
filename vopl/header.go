package vopl

// Header holds the fixed fields of a .vopl file. The encoding byte is kept
// apart because it describes the payload, not the volume.
type Header struct {
	Ver     uint8
	BPP     uint8
	W, H, D uint16
	X, Y, Z int32
	Palette []uint32 // entry 0 is always air
	PLen    uint32
}

const (
	magic   = "VOPL"
	version = 4

	// fixed part: magic, ver, enc, bpp, W/H/D, origin, palette count
	fixedHeaderLen = 4 + 1 + 1 + 1 + 3*2 + 3*4 + 2
)

// MaxDim is the largest extent a .vopl file can describe along one axis.
const MaxDim = 1<<16 - 1
