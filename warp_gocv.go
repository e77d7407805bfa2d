//go:build gocv

package scanify

import (
	"encoding/binary"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// GoCVRemap resamples with OpenCV's remap. It falls back to BilinearRemap if
// a Mat cannot be created.
type GoCVRemap struct{}

// Remap implements Remapper.
func (GoCVRemap) Remap(src *Raster, mapX, mapY []float32) *Raster {
	srcMat, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV8UC3, src.Pix)
	if err != nil {
		Logger().Warn("gocv remap: source mat", "error", err)
		return BilinearRemap{}.Remap(src, mapX, mapY)
	}
	defer srcMat.Close()

	mx, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV32F, float32Bytes(mapX))
	if err != nil {
		Logger().Warn("gocv remap: x map", "error", err)
		return BilinearRemap{}.Remap(src, mapX, mapY)
	}
	defer mx.Close()

	my, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV32F, float32Bytes(mapY))
	if err != nil {
		Logger().Warn("gocv remap: y map", "error", err)
		return BilinearRemap{}.Remap(src, mapX, mapY)
	}
	defer my.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Remap(srcMat, &dst, &mx, &my, gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{})

	out := newRasterLike(src)
	copy(out.Pix, dst.ToBytes())
	return out
}

func float32Bytes(v []float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func init() {
	defaultRemap = GoCVRemap{}
}
