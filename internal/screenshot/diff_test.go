package screenshot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/blob"
)

func putPNG(t *testing.T, blobs *blob.MemoryProvider, ref string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, blobs.Put(context.Background(), ref, buf.Bytes()))
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDiffIdenticalCaptures(t *testing.T) {
	t.Parallel()

	blobs := blob.NewMemoryProvider()
	white := color.RGBA{255, 255, 255, 255}
	putPNG(t, blobs, "before.png", solid(captureWidth, captureHeight, white))
	putPNG(t, blobs, "after.png", solid(captureWidth, captureHeight, white))

	diff, err := NewDiffer(blobs).Diff(context.Background(), "before.png", "after.png")
	require.NoError(t, err)

	assert.Zero(t, diff.PixelsChanged)
	assert.NotEmpty(t, diff.Before)
	assert.NotEmpty(t, diff.After)
	assert.NotEmpty(t, diff.Diff)
}

func TestDiffPaintsChangedPixelsRed(t *testing.T) {
	t.Parallel()

	blobs := blob.NewMemoryProvider()
	white := color.RGBA{255, 255, 255, 255}
	before := solid(captureWidth, captureHeight, white)
	after := solid(captureWidth, captureHeight, white)
	after.SetRGBA(10, 20, color.RGBA{0, 0, 255, 255})
	after.SetRGBA(11, 20, color.RGBA{0, 0, 255, 255})
	putPNG(t, blobs, "before.png", before)
	putPNG(t, blobs, "after.png", after)

	diff, err := NewDiffer(blobs).Diff(context.Background(), "before.png", "after.png")
	require.NoError(t, err)
	assert.Equal(t, 2, diff.PixelsChanged)

	img, err := png.Decode(bytes.NewReader(diff.Diff))
	require.NoError(t, err)
	r, g, b, a := img.At(10, 20).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0, 0xffff}, []uint32{r, g, b, a}, "changed pixel is highlighted red")
	r, g, b, a = img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff, 0xffff}, []uint32{r, g, b, a}, "unchanged pixel keeps the after value")
}

func TestDiffNormalizesMismatchedSizes(t *testing.T) {
	t.Parallel()

	blobs := blob.NewMemoryProvider()
	white := color.RGBA{255, 255, 255, 255}
	putPNG(t, blobs, "before.png", solid(captureWidth, captureHeight, white))
	// Shorter page capture, same color everywhere. After scaling it must
	// still match pixel for pixel.
	putPNG(t, blobs, "after.png", solid(captureWidth/2, captureHeight/2, white))

	diff, err := NewDiffer(blobs).Diff(context.Background(), "before.png", "after.png")
	require.NoError(t, err)
	assert.Zero(t, diff.PixelsChanged)
}

func TestDiffMissingCapture(t *testing.T) {
	t.Parallel()

	blobs := blob.NewMemoryProvider()
	putPNG(t, blobs, "before.png", solid(captureWidth, captureHeight, color.RGBA{A: 255}))

	_, err := NewDiffer(blobs).Diff(context.Background(), "before.png", "gone.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone.png")
}
