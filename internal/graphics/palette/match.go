package palette

import (
	"math"
	"sort"

	"gfxcore/internal/graphics/device"
)

// NearestColor returns the index of the entry closest to (r, g, b) by squared
// distance. The first index wins ties. With ignoreReserved the Reserved
// entries at both ends are skipped.
func NearestColor(pal *Entries, r, g, b uint8, ignoreReserved bool) uint8 {
	start, end := 0, Size
	if ignoreReserved {
		start, end = Reserved, Size-Reserved
	}
	best, bestDist := start, math.MaxInt
	for i := start; i < end; i++ {
		dr := int(r) - int(pal[i].R)
		dg := int(g) - int(pal[i].G)
		db := int(b) - int(pal[i].B)
		if d := dr*dr + dg*dg + db*db; d < bestDist {
			bestDist = d
			best = i
		}
	}
	return uint8(best)
}

// RemapTable maps each source index to its nearest destination index.
func RemapTable(src, dst *Entries, preserveReserved bool) [Size]uint8 {
	var t [Size]uint8
	for i := range src {
		t[i] = NearestColor(dst, src[i].R, src[i].G, src[i].B, preserveReserved)
	}
	return t
}

// Remap rewrites a width x height indexed image from src palette to dst
// palette. Both buffers may carry row padding.
func Remap(dst []byte, dstPitch int, src []byte, srcPitch int, width, height int, srcPal, dstPal *Entries, preserveReserved bool) {
	t := RemapTable(srcPal, dstPal, preserveReserved)
	for y := 0; y < height; y++ {
		s := src[y*srcPitch : y*srcPitch+width]
		d := dst[y*dstPitch : y*dstPitch+width]
		for x, v := range s {
			d[x] = t[v]
		}
	}
}

// Histogram counts index usage in an indexed bitmap.
func Histogram(bitmap []byte) [Size]int {
	var h [Size]int
	for _, v := range bitmap {
		h[v]++
	}
	return h
}

// BuildReduced makes a palette that leaves room for the host's reserved
// colours: entries 0-7 and 247-255 come from sys, 8, 9 and 246 are black,
// and 10-245 hold the 236 most used source colours. Equal counts keep
// ascending source order.
func BuildReduced(hist *[Size]int, src, sys *Entries) Entries {
	order := make([]int, Size)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return hist[order[a]] > hist[order[b]] })

	var out Entries
	copy(out[:8], sys[:8])
	for i := 0; i < Size-2*Reserved; i++ {
		out[Reserved+i] = src[order[i]]
	}
	out[8], out[9], out[246] = device.RGB{}, device.RGB{}, device.RGB{}
	copy(out[247:], sys[247:])
	return out
}
