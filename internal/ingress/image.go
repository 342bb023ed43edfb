package ingress

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// errTooManyPixels marks images whose header declares more pixels than the
// decoder is allowed to allocate.
var errTooManyPixels = errors.New("image exceeds pixel limit")

// reencode decodes data, flattens it to opaque RGB, bounds both sides by
// maxDim and re-encodes it as JPEG. Images declaring more than maxPixels are
// refused before any pixel buffer is allocated.
func reencode(data []byte, maxDim, quality, maxPixels int) ([]byte, image.Point, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, image.Point{}, fmt.Errorf("decode image: empty bounds %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, image.Point{}, fmt.Errorf("%w: %dx%d, limit %d", errTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, image.Point{}, fmt.Errorf("decode image: %w", err)
	}

	b := src.Bounds()
	size := fitWithin(b.Dx(), b.Dy(), maxDim)
	if size.X == 0 || size.Y == 0 {
		return nil, image.Point{}, fmt.Errorf("decode image: empty bounds %v", b)
	}

	// Transparent and paletted pixels are composited over white so JPEG gets
	// three plain channels.
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if size.X == b.Dx() && size.Y == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	// Orientation runs on the downscaled copy so it never touches the full
	// resolution buffer.
	out := orient(dst, exifOrientation(data))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: quality}); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode jpeg: %w", err)
	}
	ob := out.Bounds()
	return buf.Bytes(), image.Pt(ob.Dx(), ob.Dy()), nil
}

// fitWithin scales (w, h) down so neither side exceeds maxDim, keeping the
// aspect ratio. Sizes already within bounds are returned unchanged.
func fitWithin(w, h, maxDim int) image.Point {
	if w <= maxDim && h <= maxDim {
		return image.Pt(w, h)
	}
	scale := float64(maxDim) / float64(w)
	if s := float64(maxDim) / float64(h); s < scale {
		scale = s
	}
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	if nw > maxDim {
		nw = maxDim
	}
	if nh > maxDim {
		nh = maxDim
	}
	return image.Pt(nw, nh)
}

// exifOrientation returns the EXIF orientation tag (1-8), or 1 when the data
// carries none.
func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	o, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return o
}

// orient applies the EXIF orientation transform so the re-encoded JPEG, which
// carries no EXIF, displays upright.
func orient(src image.Image, o int) image.Image {
	if o < 2 || o > 8 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if o >= 5 {
		dw, dh = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch o {
			case 2: // mirror horizontal
				dx, dy = w-1-x, y
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 clockwise
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 90 counter-clockwise
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
