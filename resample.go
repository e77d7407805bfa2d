package scanify

import (
	"math"
	"sync"
)

// filter is a separable reconstruction kernel. support is its radius in
// source pixels when not minifying.
type filter struct {
	name    string
	support float64
	weight  func(t float64) float64
}

var triangleFilter = filter{
	name:    "triangle",
	support: 1,
	weight: func(t float64) float64 {
		return max(0, 1-math.Abs(t))
	},
}

// contribution lists the source samples feeding one output sample, starting
// at index first. Indices outside the source are clamped by the caller.
type contribution struct {
	first   int
	weights []float32
}

type contribKey struct {
	src, dst int
	filter   string
}

var contribCache sync.Map // contribKey -> []contribution

func contributions(src, dst int, f filter) []contribution {
	key := contribKey{src: src, dst: dst, filter: f.name}
	if c, ok := contribCache.Load(key); ok {
		return c.([]contribution)
	}

	scale := float64(src) / float64(dst)
	stretch := max(scale, 1)
	radius := f.support * stretch
	taps := int(math.Ceil(radius)) * 2

	out := make([]contribution, dst)
	for i := range out {
		center := (float64(i)+0.5)*scale - 0.5
		first := int(math.Floor(center-radius)) + 1
		w := make([]float32, taps)
		var sum float64
		for k := range w {
			v := f.weight((center - float64(first+k)) / stretch)
			w[k] = float32(v)
			sum += v
		}
		if sum != 0 {
			for k := range w {
				w[k] = float32(float64(w[k]) / sum)
			}
		}
		out[i] = contribution{first: first, weights: w}
	}
	contribCache.Store(key, out)
	return out
}

// resamplePlane scales a single-channel float plane, rows first.
func resamplePlane(src []float32, sw, sh, dw, dh int, f filter) []float32 {
	cols := contributions(sw, dw, f)
	rows := contributions(sh, dh, f)

	tmp := getFloat32(dw * sh)
	defer putFloat32(tmp)

	parallelFor(sh, func(start, end int) {
		for y := start; y < end; y++ {
			in := src[y*sw : (y+1)*sw]
			dst := tmp[y*dw : (y+1)*dw]
			for x, c := range cols {
				var acc float32
				for k, w := range c.weights {
					acc += in[clampInt(c.first+k, 0, sw-1)] * w
				}
				dst[x] = acc
			}
		}
	})

	out := make([]float32, dw*dh)
	parallelFor(dh, func(start, end int) {
		for y := start; y < end; y++ {
			c := rows[y]
			dst := out[y*dw : (y+1)*dw]
			for k, w := range c.weights {
				in := tmp[clampInt(c.first+k, 0, sh-1)*dw:]
				for x := range dst {
					dst[x] += in[x] * w
				}
			}
		}
	})
	return out
}
