package picture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func TestDistortKeepsSizeAndChangesPixels(t *testing.T) {
	src := gradient(64, 48)
	out := Distort(src, Options{Swirl: 3, WaveAmp: 0.05, WaveFreq: 3, Squash: 0.5})
	assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())

	diff := 0
	dst := imaging.Clone(out)
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if dst.NRGBAAt(x, y) != src.NRGBAAt(x, y) {
				diff++
			}
		}
	}
	assert.Greater(t, diff, 64*48/2)
}

func TestDistortZeroOptionsOnlyAdjustsColours(t *testing.T) {
	src := imaging.New(8, 8, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	out := imaging.Clone(Distort(src, Options{}))
	assert.Equal(t, out.NRGBAAt(0, 0), out.NRGBAAt(7, 7))
}

func TestRandomOptionsInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		o := RandomOptions(rng)
		assert.GreaterOrEqual(t, abs(o.Swirl), 1.5)
		assert.Less(t, abs(o.Swirl), 4.0)
		assert.Greater(t, o.Squash, 0.0)
		assert.Less(t, o.Squash, 1.0)
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func TestDistortBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(2000, 100)))

	out, err := DistortBytes(buf.Bytes(), RandomOptions(rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, maxSide, img.Bounds().Dx())

	_, err = DistortBytes([]byte("not an image"), Options{})
	assert.Error(t, err)
}

type fakeImager struct {
	prompt string
	err    error
}

func (f *fakeImager) GenerateImage(_ context.Context, prompt string) ([]byte, string, error) {
	f.prompt = prompt
	return []byte("img"), "image/png", f.err
}

func TestGenerator(t *testing.T) {
	im := &fakeImager{}
	g := NewGenerator(im)
	img, err := g.Generate(context.Background(), "  кот в космосе ")
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), img)
	assert.Contains(t, im.prompt, "кот в космосе")

	_, err = g.Generate(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)

	_, err = NewGenerator(nil).Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoImager)

	im.err = errors.New("quota")
	_, err = g.Generate(context.Background(), "x")
	assert.Error(t, err)
}
