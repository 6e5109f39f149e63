package quality

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func uniformGray(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func checkerboardGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestNewMetricsCalculator(t *testing.T) {
	calc := NewMetricsCalculator()
	if calc == nil {
		t.Error("Expected non-nil metrics calculator")
	}
}

func TestGrayscale_UniformGrayColor(t *testing.T) {
	calc := NewMetricsCalculator()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}

	gray := calc.Grayscale(img)
	got := gray.GrayAt(5, 5).Y
	if got != 128 {
		t.Errorf("Expected gray value 128, got %d", got)
	}
}

func TestGrayscale_LumaWeights(t *testing.T) {
	calc := NewMetricsCalculator()

	// Pure red should map to roughly 0.299*255 = 76
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	gray := calc.Grayscale(img)
	got := float64(gray.GrayAt(1, 1).Y)
	if math.Abs(got-76) > 1 {
		t.Errorf("Expected red to map to ~76, got %f", got)
	}
}

func TestLaplacianScore_UniformIsZero(t *testing.T) {
	calc := NewMetricsCalculator()

	score := calc.LaplacianScore(uniformGray(50, 50, 128))
	if score != 0 {
		t.Errorf("Expected zero score for uniform image, got %f", score)
	}
}

func TestLaplacianScore_CheckerboardIsHigh(t *testing.T) {
	calc := NewMetricsCalculator()

	// Every interior pixel of a 0/255 checkerboard has the maximal
	// Laplacian response of +-1020.
	score := calc.LaplacianScore(checkerboardGray(50, 50))
	expected := 1020.0 * 1020.0
	if math.Abs(score-expected) > 1 {
		t.Errorf("Expected checkerboard score ~%f, got %f", expected, score)
	}
}

func TestLaplacianScore_SubimageWithNonzeroOrigin(t *testing.T) {
	calc := NewMetricsCalculator()

	full := checkerboardGray(300, 300)
	crop := full.SubImage(image.Rect(100, 100, 200, 200)).(*image.Gray)

	fullScore := calc.LaplacianScore(checkerboardGray(100, 100))
	cropScore := calc.LaplacianScore(crop)

	if cropScore == 0 {
		t.Fatal("Expected nonzero score for cropped checkerboard")
	}
	if math.Abs(cropScore-fullScore) > 1 {
		t.Errorf("Expected crop score ~%f, got %f", fullScore, cropScore)
	}
}

func TestLaplacianScore_TooSmall(t *testing.T) {
	calc := NewMetricsCalculator()

	if score := calc.LaplacianScore(uniformGray(2, 2, 100)); score != 0 {
		t.Errorf("Expected zero score for 2x2 image, got %f", score)
	}
}

func TestBrightness(t *testing.T) {
	calc := NewMetricsCalculator()

	if got := calc.Brightness(uniformGray(20, 20, 100)); math.Abs(got-100) > 0.01 {
		t.Errorf("Expected brightness 100, got %f", got)
	}

	// Half black, half white averages to ~127.5
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			v := uint8(0)
			if x >= 10 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	if got := calc.Brightness(img); math.Abs(got-127.5) > 0.01 {
		t.Errorf("Expected brightness 127.5, got %f", got)
	}
}

func TestContrastRange(t *testing.T) {
	calc := NewMetricsCalculator()

	if got := calc.ContrastRange(uniformGray(20, 20, 128)); got != 0 {
		t.Errorf("Expected zero contrast for uniform image, got %f", got)
	}
	if got := calc.ContrastRange(checkerboardGray(20, 20)); got != 255 {
		t.Errorf("Expected contrast 255 for checkerboard, got %f", got)
	}
}
