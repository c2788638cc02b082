package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrorImageDecode = errors.New("cannot decode image")
	ErrorImageEncode = errors.New("cannot encode image")
)

const (
	outputSuffix = "_with_hat"
	jpegQuality  = 95
)

var acceptedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff", "image/webp"}

// decodeImage 读取并解码图片文件, 返回图片和嗅探到的MIME类型
func decodeImage(path string) (image.Image, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrorImageDecode, path, err)
	}
	mime := mimetype.Detect(data)
	if !slices.Contains(acceptedTypes, mime.String()) {
		return nil, mime.String(), fmt.Errorf("%w: %s: unsupported type %s", ErrorImageDecode, path, mime.String())
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mime.String(), fmt.Errorf("%w: %s: %w", ErrorImageDecode, path, err)
	}
	return img, mime.String(), nil
}

// loadBase 读原图, 转成3通道画布
func loadBase(path string) (*image.RGBA, error) {
	img, _, err := decodeImage(path)
	if err != nil {
		return nil, err
	}
	return toCanvas(img), nil
}

// loadOverlay 读带透明通道的帽子图
func loadOverlay(path string) (*image.NRGBA, error) {
	img, _, err := decodeImage(path)
	if err != nil {
		return nil, err
	}
	return toOverlay(img), nil
}

// encodeImage writes img to path in the format implied by the path's extension.
func encodeImage(path string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	var buf bytes.Buffer
	var err error
	switch ext {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case ".png":
		err = png.Encode(&buf, img)
	case ".gif":
		err = gif.Encode(&buf, img, nil)
	case ".bmp":
		err = bmp.Encode(&buf, img)
	case ".tif", ".tiff":
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %s: unsupported extension %q", ErrorImageEncode, path, ext)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrorImageEncode, path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrorImageEncode, path, err)
		}
	}
	if err = os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrorImageEncode, path, err)
	}
	return nil
}

// defaultOutputPath 在原文件名后面加上 _with_hat 后缀, outDir为空时放在原图同目录
func defaultOutputPath(input, outDir string) string {
	dir, name := filepath.Split(input)
	ext := filepath.Ext(name)
	if outDir != "" {
		dir = outDir
	}
	base := strings.TrimSuffix(name, ext)
	// webp只能解码, 结果改存png
	if strings.EqualFold(ext, ".webp") {
		ext = ".png"
	}
	return filepath.Join(dir, base+outputSuffix+ext)
}

// isOutputFile 监控目录时跳过自己生成的结果图
func isOutputFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), outputSuffix)
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}
