package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narou2epub/model"
)

func encodePNG(t *testing.T, w, h int, alpha uint8) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 80, A: alpha})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessOriginalIsIdentity(t *testing.T) {
	data := encodePNG(t, 1500, 2000, 255)

	out, err := Process(data, model.ProfileOriginal)
	require.NoError(t, err)
	assert.Equal(t, data, out.Data)
	assert.Equal(t, "image/png", out.MediaType)
	assert.Equal(t, ".png", out.Extension)
}

func TestProcessDoesNotUpscale(t *testing.T) {
	data := encodePNG(t, 200, 300, 255)

	for _, profile := range []model.ImageSizeProfile{model.ProfileSmall, model.ProfileMedium, model.ProfileLarge} {
		out, err := Process(data, profile)
		require.NoError(t, err)
		assert.Equal(t, data, out.Data, "profile %s", profile)
	}
}

func TestProcessDownscalesIntoBox(t *testing.T) {
	data := encodePNG(t, 2000, 2000, 255)

	out, err := Process(data, model.ProfileSmall)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", out.MediaType)
	assert.Equal(t, ".jpg", out.Extension)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 1072, cfg.Width)
	assert.Equal(t, 1072, cfg.Height)
}

func TestProcessKeepsTransparency(t *testing.T) {
	data := encodePNG(t, 1000, 3000, 128)

	out, err := Process(data, model.ProfileSmall)
	require.NoError(t, err)
	assert.Equal(t, "image/png", out.MediaType)

	cfg, err := png.DecodeConfig(bytes.NewReader(out.Data))
	require.NoError(t, err)
	assert.Equal(t, 1448, cfg.Height)
	assert.Equal(t, 482, cfg.Width)
}

func TestProcessRejectsCorruptInput(t *testing.T) {
	var procErr *model.ImageProcessError

	_, err := Process([]byte("<html>not an image</html>"), model.ProfileOriginal)
	require.ErrorAs(t, err, &procErr)

	truncated := encodePNG(t, 2000, 2000, 255)[:64]
	_, err = Process(truncated, model.ProfileSmall)
	require.ErrorAs(t, err, &procErr)
}

func TestFit(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{100, 100, 1072, 1448, 100, 100},
		{2144, 1000, 1072, 1448, 1072, 500},
		{1000, 2896, 1072, 1448, 500, 1448},
		{1072, 1448, 1072, 1448, 1072, 1448},
	}
	for _, tt := range tests {
		w, h := fit(tt.w, tt.h, tt.maxW, tt.maxH)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}
