// Package imageproc fits chapter illustrations to a reader screen size.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"narou2epub/model"
)

// JPEGQuality is used when a downscaled image is re-encoded as JPEG.
const JPEGQuality = 85

var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Image is a processed illustration ready to be embedded.
type Image struct {
	Data      []byte
	MediaType string
	// Extension includes the leading dot, e.g. ".jpg".
	Extension string
}

// Process fits data inside the profile's bounding box. ProfileOriginal and
// images that already fit are returned unchanged; images are never upscaled.
// Failures are *model.ImageProcessError without a URL.
func Process(data []byte, profile model.ImageSizeProfile) (*Image, error) {
	mt := mimetype.Detect(data)
	if !supported[mt.String()] {
		return nil, &model.ImageProcessError{Cause: fmt.Errorf("unsupported media type %s", mt.String())}
	}
	out := &Image{Data: data, MediaType: mt.String(), Extension: mt.Extension()}

	maxW, maxH, ok := profile.Bounds()
	if !ok {
		return out, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ImageProcessError{Cause: fmt.Errorf("failed to decode image header: %w", err)}
	}
	w, h := fit(cfg.Width, cfg.Height, maxW, maxH)
	if w == cfg.Width && h == cfg.Height {
		return out, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ImageProcessError{Cause: fmt.Errorf("failed to decode image: %w", err)}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if dst.Opaque() {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality})
		out.MediaType, out.Extension = "image/jpeg", ".jpg"
	} else {
		err = png.Encode(&buf, dst)
		out.MediaType, out.Extension = "image/png", ".png"
	}
	if err != nil {
		return nil, &model.ImageProcessError{Cause: fmt.Errorf("failed to encode image: %w", err)}
	}
	out.Data = buf.Bytes()
	return out, nil
}

// fit scales (w, h) down so it fits inside (maxW, maxH), keeping the aspect
// ratio. Sizes that already fit are returned as is.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Compare w/maxW with h/maxH without floating point.
	if w*maxH >= h*maxW {
		nh := max(h*maxW/w, 1)
		return maxW, nh
	}
	nw := max(w*maxH/h, 1)
	return nw, maxH
}
