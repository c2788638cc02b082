package main

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"lanczos3": resize.Lanczos3,
}

func parseInterpolation(name string) (resize.InterpolationFunction, error) {
	if name == "" {
		return resize.Bilinear, nil
	}
	interp, ok := interpolations[strings.ToLower(name)]
	if !ok {
		return resize.Bilinear, fmt.Errorf("unknown interpolation %q", name)
	}
	return interp, nil
}

// toCanvas 把任意图片转成原点为(0,0)的不透明RGBA, 透明通道直接丢掉(只保留颜色), 相当于3通道图。
func toCanvas(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

// toOverlay 帽子图统一成非预乘的NRGBA, 没有透明通道的图片alpha全是255
func toOverlay(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// toGray 亮度图, 系数和常见的BGR2GRAY一致
func toGray(src *image.RGBA) *image.Gray {
	gray := image.NewGray(src.Bounds())
	draw.Draw(gray, gray.Bounds(), src, src.Bounds().Min, draw.Src)
	return gray
}

// resizeOverlay 按目标尺寸缩放帽子, 宽高都必须大于0(nfnt的resize遇到0会按比例自动算另一边)
func resizeOverlay(hat *image.NRGBA, width, height int, interp resize.InterpolationFunction) *image.NRGBA {
	resized := resize.Resize(uint(width), uint(height), hat, interp)
	return toOverlay(resized)
}

// clipPlacement 计算摆放矩形和画布的交集, 返回画布上的区域和对应的帽子图起点
func clipPlacement(canvas image.Rectangle, placed image.Rectangle) (dst image.Rectangle, srcMin image.Point, ok bool) {
	dst = placed.Intersect(canvas)
	if dst.Empty() {
		return image.Rectangle{}, image.Point{}, false
	}
	return dst, dst.Min.Sub(placed.Min), true
}

// alphaBlend 在clip后的区域内做 over 混合:
// base = (1 - a) * base + a * overlay, a = alpha / 255
func alphaBlend(base *image.RGBA, overlay *image.NRGBA, origin image.Point) bool {
	placed := overlay.Bounds().Sub(overlay.Bounds().Min).Add(origin)
	dst, srcMin, ok := clipPlacement(base.Bounds(), placed)
	if !ok {
		return false
	}
	for y := 0; y < dst.Dy(); y++ {
		for x := 0; x < dst.Dx(); x++ {
			bi := base.PixOffset(dst.Min.X+x, dst.Min.Y+y)
			oi := overlay.PixOffset(overlay.Rect.Min.X+srcMin.X+x, overlay.Rect.Min.Y+srcMin.Y+y)
			a := float64(overlay.Pix[oi+3]) / 255.0
			for c := 0; c < 3; c++ {
				base.Pix[bi+c] = blendChannel(base.Pix[bi+c], overlay.Pix[oi+c], a)
			}
		}
	}
	return true
}

func blendChannel(base, over uint8, a float64) uint8 {
	v := (1-a)*float64(base) + a*float64(over)
	if v >= 255 {
		return 255
	}
	if v <= 0 {
		return 0
	}
	return uint8(v)
}
