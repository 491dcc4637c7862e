// Package picture generates images and mangles photos for fun.
package picture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
)

const (
	maxSide     = 1280
	jpegQuality = 85
)

// Options control Distort. Zero values disable the matching effect.
type Options struct {
	// Swirl is the rotation in radians at the image centre, fading to zero at the edge.
	Swirl float64
	// WaveAmp is the wave amplitude as a fraction of the image size.
	WaveAmp  float64
	WaveFreq float64
	// Squash shrinks the image to this fraction of its width and height and blows it back up.
	Squash float64
}

func RandomOptions(rng *rand.Rand) Options {
	sign := 1.0
	if rng.Intn(2) == 0 {
		sign = -1
	}
	return Options{
		Swirl:    sign * (1.5 + rng.Float64()*2.5),
		WaveAmp:  0.01 + rng.Float64()*0.03,
		WaveFreq: 2 + rng.Float64()*4,
		Squash:   0.25 + rng.Float64()*0.35,
	}
}

// Distort applies swirl, wave and squash, then punches up contrast and saturation.
func Distort(src image.Image, o Options) image.Image {
	img := imaging.Clone(src)
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return img
	}

	if o.Swirl != 0 || o.WaveAmp != 0 {
		img = remap(img, w, h, o)
	}
	if o.Squash > 0 && o.Squash < 1 {
		sw := max(1, int(float64(w)*o.Squash))
		sh := max(1, int(float64(h)*o.Squash))
		img = imaging.Resize(img, sw, sh, imaging.Box)
		img = imaging.Resize(img, w, h, imaging.NearestNeighbor)
	}
	img = imaging.AdjustSaturation(img, 40)
	return imaging.AdjustContrast(img, 20)
}

func remap(src *image.NRGBA, w, h int, o Options) *image.NRGBA {
	dst := imaging.New(w, h, color.NRGBA{})
	cx, cy := float64(w)/2, float64(h)/2
	radius := math.Hypot(cx, cy)
	ampX, ampY := o.WaveAmp*float64(w), o.WaveAmp*float64(h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			sx, sy := float64(x), float64(y)
			if o.Swirl != 0 {
				dist := math.Hypot(dx, dy)
				angle := o.Swirl * (1 - dist/radius)
				sin, cos := math.Sincos(angle)
				sx = cx + dx*cos - dy*sin
				sy = cy + dx*sin + dy*cos
			}
			if o.WaveAmp != 0 {
				sx += ampX * math.Sin(2*math.Pi*o.WaveFreq*float64(y)/float64(h))
				sy += ampY * math.Sin(2*math.Pi*o.WaveFreq*float64(x)/float64(w))
			}
			ix := clamp(int(math.Round(sx)), 0, w-1)
			iy := clamp(int(math.Round(sy)), 0, h-1)
			dst.SetNRGBA(x, y, src.NRGBAAt(ix, iy))
		}
	}
	return dst
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// DistortBytes decodes a photo, downsizes it, distorts it and returns a JPEG.
func DistortBytes(data []byte, o Options) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := src.Bounds(); b.Dx() > maxSide || b.Dy() > maxSide {
		src = imaging.Fit(src, maxSide, maxSide, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, Distort(src, o), imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
