package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"

	"github.com/Lusbox/umasparkmaker/pkg/config"
)

// Format is an output encoding for optimised images.
type Format string

const (
	WebP Format = "webp"
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// ParseFormat accepts webp, jpeg (or jpg) and png in any case.
func ParseFormat(s string) (Format, error) {
	if err := config.ValidateFormat(s); err != nil {
		return "", err
	}
	return Format(config.NormalizeFormat(s)), nil
}

// Ext returns the file extension written for the format.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	default:
		return ".webp"
	}
}

// Optimize decodes data, downsizes it to fit MaxWidth x MaxHeight and
// re-encodes it in opts.Format. JPEG output is flattened onto white first.
func Optimize(data []byte, opts Options) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if opts.Format == JPEG {
		img = flatten(img)
	}

	b := img.Bounds()
	if (opts.MaxWidth > 0 && b.Dx() > opts.MaxWidth) || (opts.MaxHeight > 0 && b.Dy() > opts.MaxHeight) {
		w, h := opts.MaxWidth, opts.MaxHeight
		if w <= 0 {
			w = b.Dx()
		}
		if h <= 0 {
			h = b.Dy()
		}
		img = imaging.Fit(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch opts.Format {
	case JPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
	case PNG:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	case WebP:
		err = webp.Encode(&buf, img, webp.Options{Quality: opts.Quality})
	default:
		err = fmt.Errorf("unsupported format %q", opts.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", opts.Format, err)
	}
	return buf.Bytes(), nil
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
