package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/sitewatch/sitewatch/internal/blob"
	"github.com/sitewatch/sitewatch/internal/detect"
)

// Differ loads two stored captures and computes their pixel difference.
// Implements detect.VisualDiffer.
type Differ struct {
	blobs blob.Provider
}

// NewDiffer constructs a Differ over the given blob provider.
func NewDiffer(blobs blob.Provider) *Differ {
	return &Differ{blobs: blobs}
}

// Diff returns the normalized before and after captures plus a diff image
// in which changed pixels are painted red.
func (d *Differ) Diff(ctx context.Context, beforeRef, afterRef string) (detect.VisualDiff, error) {
	before, err := d.load(ctx, beforeRef)
	if err != nil {
		return detect.VisualDiff{}, err
	}
	after, err := d.load(ctx, afterRef)
	if err != nil {
		return detect.VisualDiff{}, err
	}

	beforeN := normalize(before)
	afterN := normalize(after)
	diff, changed := pixelDiff(beforeN, afterN)

	out := detect.VisualDiff{PixelsChanged: changed}
	if out.Before, err = encodePNG(beforeN); err != nil {
		return detect.VisualDiff{}, err
	}
	if out.After, err = encodePNG(afterN); err != nil {
		return detect.VisualDiff{}, err
	}
	if out.Diff, err = encodePNG(diff); err != nil {
		return detect.VisualDiff{}, err
	}
	return out, nil
}

func (d *Differ) load(ctx context.Context, ref string) (image.Image, error) {
	data, err := d.blobs.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("load capture %s: %w", ref, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode capture %s: %w", ref, err)
	}
	return img, nil
}

// normalize scales the image to the standard capture size using
// nearest-neighbor sampling, so captures of different heights compare.
func normalize(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, captureWidth, captureHeight))
	sb := src.Bounds()
	if sb.Dx() == captureWidth && sb.Dy() == captureHeight {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst
	}
	for y := 0; y < captureHeight; y++ {
		sy := sb.Min.Y + y*sb.Dy()/captureHeight
		for x := 0; x < captureWidth; x++ {
			sx := sb.Min.X + x*sb.Dx()/captureWidth
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

var diffHighlight = color.RGBA{R: 255, A: 255}

// pixelDiff keeps matching pixels from the after image and paints differing
// ones red. The second return value counts the differing pixels.
func pixelDiff(before, after *image.RGBA) (*image.RGBA, int) {
	out := image.NewRGBA(image.Rect(0, 0, captureWidth, captureHeight))
	changed := 0
	for y := 0; y < captureHeight; y++ {
		for x := 0; x < captureWidth; x++ {
			if before.RGBAAt(x, y) != after.RGBAAt(x, y) {
				out.SetRGBA(x, y, diffHighlight)
				changed++
			} else {
				out.SetRGBA(x, y, after.RGBAAt(x, y))
			}
		}
	}
	return out, changed
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
