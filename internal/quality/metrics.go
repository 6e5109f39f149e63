package quality

import (
	"image"
	"image/color"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Luma weights for RGB to grayscale conversion (ITU-R BT.601).
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// metricsCalculator implements MetricsCalculator with Gonum aggregation
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 4096)
			},
		},
	}
}

// Grayscale converts the image to 8-bit grayscale using the luma weights
// 0.299R + 0.587G + 0.114B.
func (mc *metricsCalculator) Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit channels; scale down before weighting
			v := lumaR*float64(r>>8) + lumaG*float64(g>>8) + lumaB*float64(b>>8)
			if v > 255 {
				v = 255
			}
			gray.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return gray
}

// LaplacianScore computes the mean squared response of the 4-neighbor
// discrete Laplacian over all interior pixels. Higher means sharper.
func (mc *metricsCalculator) LaplacianScore(gray *image.Gray) float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	// Get reusable slice from pool
	data := mc.slicePool.Get().([]float64)
	defer mc.slicePool.Put(data[:0])
	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}
	data = data[:0]

	// Kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]. Iterate in bounds coordinates
	// so cropped subimages with a nonzero origin score correctly.
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	if len(data) == 0 {
		return 0
	}
	return floats.Dot(data, data) / float64(len(data))
}

// Brightness computes the mean grayscale value, 0-255
func (mc *metricsCalculator) Brightness(gray *image.Gray) float64 {
	values := mc.grayValues(gray)
	if len(values) == 0 {
		return 0
	}
	defer mc.slicePool.Put(values[:0])
	return stat.Mean(values, nil)
}

// ContrastRange computes max-min over the grayscale values
func (mc *metricsCalculator) ContrastRange(gray *image.Gray) float64 {
	values := mc.grayValues(gray)
	if len(values) == 0 {
		return 0
	}
	defer mc.slicePool.Put(values[:0])
	return floats.Max(values) - floats.Min(values)
}

func (mc *metricsCalculator) grayValues(gray *image.Gray) []float64 {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	values := mc.slicePool.Get().([]float64)
	if cap(values) < width*height {
		values = make([]float64, 0, width*height)
	}
	values = values[:0]

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			values = append(values, float64(gray.GrayAt(x, y).Y))
		}
	}
	return values
}
