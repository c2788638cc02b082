package main

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOutputPath(t *testing.T) {
	tests := []struct {
		input, outDir, want string
	}{
		{"photos/a.jpg", "", "photos/a_with_hat.jpg"},
		{"photos/a.png", "out", "out/a_with_hat.png"},
		{"a.b.jpeg", "", "a.b_with_hat.jpeg"},
		{"/tmp/pic.webp", "", "/tmp/pic_with_hat.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultOutputPath(tt.input, tt.outDir))
	}
}

func TestIsOutputFile(t *testing.T) {
	assert.True(t, isOutputFile("dir/a_with_hat.jpg"))
	assert.False(t, isOutputFile("dir/a.jpg"))
	assert.False(t, isOutputFile("dir/with_hat_a.jpg"))
}

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp", "e.tiff", "f.bmp"} {
		assert.True(t, isImageFile(name), name)
	}
	for _, name := range []string{"a.txt", "b", "c.landmarks.json"} {
		assert.False(t, isImageFile(name), name)
	}
}

func TestEncodeDecodeFormats(t *testing.T) {
	dir := t.TempDir()
	img := solidCanvas(16, 12, color.RGBA{30, 60, 90, 255})
	for _, ext := range []string{".png", ".jpg", ".bmp", ".tiff", ".gif"} {
		path := filepath.Join(dir, "img"+ext)
		require.NoError(t, encodeImage(path, img), ext)
		decoded, _, err := decodeImage(path)
		require.NoError(t, err, ext)
		assert.Equal(t, image.Rect(0, 0, 16, 12), decoded.Bounds(), ext)
	}
}

func TestEncodeUnsupportedExtension(t *testing.T) {
	err := encodeImage(filepath.Join(t.TempDir(), "img.xyz"), solidCanvas(2, 2, color.RGBA{}))
	assert.ErrorIs(t, err, ErrorImageEncode)
}

func TestDecodeErrors(t *testing.T) {
	dir := t.TempDir()
	_, _, err := decodeImage(filepath.Join(dir, "nope.png"))
	assert.ErrorIs(t, err, ErrorImageDecode)

	text := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(text, []byte("hello"), 0644))
	_, mime, err := decodeImage(text)
	assert.ErrorIs(t, err, ErrorImageDecode)
	assert.NotEqual(t, "image/png", mime)

	// PNG头后面数据是坏的
	broken := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(broken, []byte("\x89PNG\r\n\x1a\n\x00\x00"), 0644))
	_, mime, err = decodeImage(broken)
	assert.ErrorIs(t, err, ErrorImageDecode)
	assert.Equal(t, "image/png", mime)
}

func TestLoadOverlayKeepsAlpha(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hat.png")
	writePNG(t, path, solidOverlay(4, 4, color.NRGBA{255, 0, 0, 100}))

	hat, err := loadOverlay(path)

	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 0, 0, 100}, hat.NRGBAAt(1, 1))
}
