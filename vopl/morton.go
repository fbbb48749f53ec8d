package vopl

import (
	"sort"
	"sync"
)

// mortonCacheShapes is how many distinct volume shapes keep their order
// cached. Chunked worlds use a handful of shapes; anything else is rebuilt.
const mortonCacheShapes = 16

// mortonCache maps a volume shape to its linear cell indices sorted by
// Morton key. Payloads are written in this order so spatially close cells
// sit close together in the stream, which helps both sparse encodings and
// zlib.
var mortonCache = struct {
	sync.Mutex
	orders map[[3]int][]int
}{orders: make(map[[3]int][]int)}

func mortonOrder(w, h, d int) []int {
	key := [3]int{w, h, d}
	mortonCache.Lock()
	order, ok := mortonCache.orders[key]
	mortonCache.Unlock()
	if ok {
		return order
	}

	order = buildMortonOrder(w, h, d)

	mortonCache.Lock()
	defer mortonCache.Unlock()
	if cached, ok := mortonCache.orders[key]; ok {
		return cached
	}
	if len(mortonCache.orders) >= mortonCacheShapes {
		for k := range mortonCache.orders {
			delete(mortonCache.orders, k)
			break
		}
	}
	mortonCache.orders[key] = order
	return order
}

func buildMortonOrder(w, h, d int) []int {
	total := w * h * d
	type kv struct {
		key uint64
		i   int
	}
	idx := make([]kv, 0, total)
	i := 0
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx = append(idx, kv{Morton3D64(uint32(x), uint32(y), uint32(z)), i})
				i++
			}
		}
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a].key < idx[b].key })
	order := make([]int, total)
	for r := range idx {
		order[r] = idx[r].i
	}
	return order
}

func Morton3D64(x, y, z uint32) uint64 {
	return part1By2(uint64(x)) |
		(part1By2(uint64(y)) << 1) |
		(part1By2(uint64(z)) << 2)
}

func MortonDecode3D64(index uint64) (x, y, z uint32) {
	x = uint32(compact1By2(index))
	y = uint32(compact1By2(index >> 1))
	z = uint32(compact1By2(index >> 2))
	return
}

func part1By2(x uint64) uint64 {
	x &= 0x1fffff
	x = (x | (x << 32)) & 0x1f00000000ffff
	x = (x | (x << 16)) & 0x1f0000ff0000ff
	x = (x | (x << 8)) & 0x100f00f00f00f00f
	x = (x | (x << 4)) & 0x10c30c30c30c30c3
	x = (x | (x << 2)) & 0x1249249249249249
	return x
}

func compact1By2(x uint64) uint64 {
	x &= 0x1249249249249249
	x = (x ^ (x >> 2)) & 0x10c30c30c30c30c3
	x = (x ^ (x >> 4)) & 0x100f00f00f00f00f
	x = (x ^ (x >> 8)) & 0x1f0000ff0000ff
	x = (x ^ (x >> 16)) & 0x1f00000000ffff
	x = (x ^ (x >> 32)) & 0x1fffff
	return x
}
