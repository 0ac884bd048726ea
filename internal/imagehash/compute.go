package imagehash

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

const (
	hashSide  = 8
	phashSide = hashSide * 4
)

// ErrEmptyImage is returned for images without a single pixel
var ErrEmptyImage = errors.New("image has no pixels")

// Decode reads an image, applying EXIF orientation. Zero-size images are
// rejected with ErrEmptyImage.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("decode image: %w", ErrEmptyImage)
	}
	return img, nil
}

// Compute returns the pHash, dHash and aHash of img. img must have at
// least one pixel; Decode guarantees that.
func Compute(img image.Image) Triplet {
	gray := imaging.Grayscale(img)
	return Triplet{
		P: pHash(gray),
		D: dHash(gray),
		A: aHash(gray),
	}
}

// luma samples img resized to w×h as row-major float64 luminance
func luma(img image.Image, w, h int) []float64 {
	small := imaging.Resize(img, w, h, imaging.Lanczos)
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = float64(small.Pix[y*small.Stride+x*4])
		}
	}
	return out
}

// fromBits packs row-major booleans, first bit most significant
func fromBits(set []bool) Hash {
	var h uint64
	for _, b := range set {
		h <<= 1
		if b {
			h |= 1
		}
	}
	return Hash(h)
}

func aHash(img image.Image) Hash {
	px := luma(img, hashSide, hashSide)
	var mean float64
	for _, v := range px {
		mean += v
	}
	mean /= float64(len(px))

	set := make([]bool, len(px))
	for i, v := range px {
		set[i] = v > mean
	}
	return fromBits(set)
}

func dHash(img image.Image) Hash {
	w := hashSide + 1
	px := luma(img, w, hashSide)

	set := make([]bool, 0, hashSide*hashSide)
	for y := 0; y < hashSide; y++ {
		for x := 0; x < hashSide; x++ {
			set = append(set, px[y*w+x+1] > px[y*w+x])
		}
	}
	return fromBits(set)
}

func pHash(img image.Image) Hash {
	px := luma(img, phashSide, phashSide)
	coeffs := dct2D(px, phashSide)

	low := make([]float64, 0, hashSide*hashSide)
	for y := 0; y < hashSide; y++ {
		for x := 0; x < hashSide; x++ {
			low = append(low, coeffs[y*phashSide+x])
		}
	}

	sorted := append([]float64(nil), low...)
	sort.Float64s(sorted)
	median := (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2

	set := make([]bool, len(low))
	for i, v := range low {
		set[i] = v > median
	}
	return fromBits(set)
}

var dctTable = func() [phashSide][phashSide]float64 {
	var t [phashSide][phashSide]float64
	for k := 0; k < phashSide; k++ {
		for n := 0; n < phashSide; n++ {
			t[k][n] = math.Cos(math.Pi / phashSide * (float64(n) + 0.5) * float64(k))
		}
	}
	return t
}()

// dct2D is an unnormalized separable DCT-II over an n×n row-major block
func dct2D(px []float64, n int) []float64 {
	rows := make([]float64, n*n)
	for y := 0; y < n; y++ {
		for k := 0; k < n; k++ {
			var s float64
			for x := 0; x < n; x++ {
				s += px[y*n+x] * dctTable[k][x]
			}
			rows[y*n+k] = s
		}
	}

	out := make([]float64, n*n)
	for x := 0; x < n; x++ {
		for k := 0; k < n; k++ {
			var s float64
			for y := 0; y < n; y++ {
				s += rows[y*n+x] * dctTable[k][y]
			}
			out[k*n+x] = s
		}
	}
	return out
}
