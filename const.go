package scanify

const (
	// Epsilon is the intensity below which a stage is an identity transform.
	Epsilon = 0.01

	// DefaultMaxWorkingDim caps the larger raster dimension while stages run.
	DefaultMaxWorkingDim = 2200

	// MaxRasterPixels bounds the pixel count of a single raster.
	MaxRasterPixels = 1 << 28
)

const (
	defaultResolution         = 100
	defaultCompressionQuality = 50
	defaultSourceDPI          = 300
	maxResolution             = 1200
)

// Paper tone the tint stage blends toward.
var paperTone = [3]float32{248, 246, 238}

const (
	paperToneMaxWeight = 0.3
	noiseSigmaScale    = 12.0
	grainSigmaScale    = 15.0
	grainAmount        = 1.5
	bedMinBorder       = 5
	bedShadowRings     = 10
	bedShadowOffset    = 3
)
