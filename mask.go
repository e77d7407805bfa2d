package scanify

import "math"

// Mask is a single-channel multiplicative shading field.
// Values are expected in (0, 1]; Apply clamps the product, not the mask.
type Mask struct {
	Width  int
	Height int
	Val    []float32
}

func newMask(w, h int) *Mask {
	m := &Mask{Width: w, Height: h, Val: make([]float32, w*h)}
	for i := range m.Val {
		m.Val[i] = 1
	}
	return m
}

// scaleRow multiplies row y by f.
func (m *Mask) scaleRow(y int, f float32) {
	row := m.Val[y*m.Width : (y+1)*m.Width]
	for i := range row {
		row[i] *= f
	}
}

// scaleCol multiplies column x by f.
func (m *Mask) scaleCol(x int, f float32) {
	for y := 0; y < m.Height; y++ {
		m.Val[y*m.Width+x] *= f
	}
}

// Apply multiplies the mask into every channel of src.
func (m *Mask) Apply(src *Raster) *Raster {
	out := newRasterLike(src)
	parallelFor(src.Height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < src.Width; x++ {
				f := m.Val[y*m.Width+x]
				off := (y*src.Width + x) * 3
				out.Pix[off+0] = clampToByte(float32(src.Pix[off+0]) * f)
				out.Pix[off+1] = clampToByte(float32(src.Pix[off+1]) * f)
				out.Pix[off+2] = clampToByte(float32(src.Pix[off+2]) * f)
			}
		}
	})
	return out
}

// Blur returns a new mask convolved with kernel in both directions.
func (m *Mask) Blur(kernel []float32) *Mask {
	return &Mask{Width: m.Width, Height: m.Height, Val: convolvePlane(m.Val, m.Width, m.Height, kernel)}
}

// gaussianKernelSize builds a normalized kernel of odd size ksize. Sigma is
// derived from the size the way OpenCV does for sigma=0.
func gaussianKernelSize(ksize int) []float32 {
	if ksize <= 1 {
		return []float32{1}
	}
	if ksize%2 == 0 {
		ksize++
	}
	sigma := 0.3*(float64(ksize-1)*0.5-1) + 0.8
	return gaussianKernel(sigma, ksize/2)
}

// gaussianKernelRadius builds a normalized kernel for a blur radius used as
// sigma, covering three standard deviations.
func gaussianKernelRadius(radius float64) []float32 {
	if radius <= 0 {
		return []float32{1}
	}
	return gaussianKernel(radius, int(math.Ceil(radius*3)))
}

func gaussianKernel(sigma float64, half int) []float32 {
	size := half*2 + 1
	kernel := make([]float32, size)
	twoSigmaSq := 2 * sigma * sigma
	var sum float64
	for i := 0; i < size; i++ {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}
	if sum > 0 {
		inv := float32(1 / sum)
		for i := range kernel {
			kernel[i] *= inv
		}
	}
	return kernel
}

// convolvePlane applies a separable kernel with edge extension.
func convolvePlane(src []float32, w, h int, kernel []float32) []float32 {
	out := make([]float32, len(src))
	if len(kernel) <= 1 {
		copy(out, src)
		return out
	}
	half := len(kernel) / 2
	temp := getFloat32(len(src))

	parallelFor(h, func(start, end int) {
		for y := start; y < end; y++ {
			row := src[y*w : (y+1)*w]
			dst := temp[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				var sum float32
				for k, kv := range kernel {
					kx := x + k - half
					if kx < 0 {
						kx = 0
					} else if kx >= w {
						kx = w - 1
					}
					sum += row[kx] * kv
				}
				dst[x] = sum
			}
		}
	})

	parallelFor(h, func(start, end int) {
		for y := start; y < end; y++ {
			dst := out[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				var sum float32
				for k, kv := range kernel {
					ky := y + k - half
					if ky < 0 {
						ky = 0
					} else if ky >= h {
						ky = h - 1
					}
					sum += temp[ky*w+x] * kv
				}
				dst[x] = sum
			}
		}
	})

	putFloat32(temp)
	return out
}
