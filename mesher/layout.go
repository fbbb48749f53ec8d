package mesher

// Layout packs the per-cell face state for one mask slot:
//
//	bits 0-7  four 2-bit occlusion counts, corner k at bits 2k..2k+1
//	bit  8    back-face (face seen from the negative side of the sweep axis)
//	bit  9    flip (triangulate along the 1-3 diagonal)
//
// Two cells merge only when their layouts are identical.
type Layout uint16

const (
	layoutBackFace Layout = 1 << 8
	layoutFlip     Layout = 1 << 9

	// layoutConsumed marks slots already covered by an emitted quad.
	layoutConsumed Layout = 0xFFFF
)

// Occlusion returns the 0..3 count of corner k; 3 is fully open.
func (l Layout) Occlusion(k int) uint8 {
	return uint8(l>>(2*uint(k))) & 3
}

func (l Layout) BackFace() bool { return l&layoutBackFace != 0 }

func (l Layout) Flip() bool { return l&layoutFlip != 0 }

func (l Layout) withOcclusion(occ [4]uint8) Layout {
	l &^= 0xFF
	for k, o := range occ {
		l |= Layout(o&3) << (2 * uint(k))
	}
	return l
}

func (l Layout) withBackFace() Layout { return l | layoutBackFace }

func (l Layout) withFlip(flip bool) Layout {
	if flip {
		return l | layoutFlip
	}
	return l &^ layoutFlip
}

// flipFor picks the quad diagonal from the corner occlusions (corners 0..3
// are a00, a01, a11, a10) so the AO gradient interpolates without pinching.
func flipFor(occ [4]uint8) bool {
	a00, a01, a11, a10 := int(occ[0]), int(occ[1]), int(occ[2]), int(occ[3])
	if a00+a11 == a10+a01 {
		return max(a00, a11) < max(a10, a01)
	}
	return a00+a11 < a10+a01
}
