package main

import (
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeModel 固定返回预设的人脸框和关键点
type fakeModel struct {
	boxes     []FaceBox
	landmarks map[FaceBox]LandmarkSet
	detectErr error
	predicted []FaceBox
	closed    bool
}

func (f *fakeModel) DetectFaces(gray *image.Gray) ([]FaceBox, error) {
	return f.boxes, f.detectErr
}

func (f *fakeModel) PredictLandmarks(gray *image.Gray, box FaceBox) (LandmarkSet, error) {
	f.predicted = append(f.predicted, box)
	return f.landmarks[box], nil
}

func (f *fakeModel) Close() error {
	f.closed = true
	return nil
}

// browLandmarks 只设置眉毛上两个关键点
func browLandmarks(left, right image.Point) LandmarkSet {
	var l LandmarkSet
	l[browLeftIdx] = left
	l[browRightIdx] = right
	return l
}

func solidCanvas(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = 0xff
	}
	return img
}

func solidOverlay(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// gradientOverlay 颜色和透明度都随位置变化, 用来检查逐像素混合
func gradientOverlay(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 200,
				A: uint8((x + y) * 255 / (w + h)),
			})
		}
	}
	return img
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}

func requireSamePixels(t *testing.T, want, got *image.RGBA) {
	t.Helper()
	if want.Bounds() != got.Bounds() {
		t.Fatalf("bounds differ: want %v got %v", want.Bounds(), got.Bounds())
	}
	for i := range want.Pix {
		if want.Pix[i] != got.Pix[i] {
			t.Fatalf("pixel byte %d differs: want %d got %d", i, want.Pix[i], got.Pix[i])
		}
	}
}

var (
	colorBlack       = color.RGBA{0, 0, 0, 255}
	colorWhite       = color.RGBA{255, 255, 255, 255}
	colorWhiteOpaque = color.NRGBA{255, 255, 255, 255}
)
