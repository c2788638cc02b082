package main

import (
	"image"
)

const (
	landmarkCount = 68
	// 68点标注里左右眉毛的中间点, 帽子就挂在这两个点连线的上方
	browLeftIdx  = 19
	browRightIdx = 24

	defaultHatWidthFactor = 1.5
)

// FaceBox 是检测到的人脸框, 坐标基于原图像素。
type FaceBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

func (b FaceBox) Width() int  { return b.Right - b.Left }
func (b FaceBox) Height() int { return b.Bottom - b.Top }

// Valid reports whether the box has positive extent.
func (b FaceBox) Valid() bool {
	return b.Right > b.Left && b.Bottom > b.Top
}

func (b FaceBox) Rect() image.Rectangle {
	return image.Rect(b.Left, b.Top, b.Right, b.Bottom)
}

func (b FaceBox) Translate(dx, dy int) FaceBox {
	return FaceBox{Left: b.Left + dx, Top: b.Top + dy, Right: b.Right + dx, Bottom: b.Bottom + dy}
}

// LandmarkSet holds the 68 facial landmarks of one face, in detection image coordinates.
type LandmarkSet [landmarkCount]image.Point

func (l LandmarkSet) Part(i int) image.Point {
	return l[i]
}

func (l LandmarkSet) Translate(dx, dy int) LandmarkSet {
	d := image.Pt(dx, dy)
	for i := range l {
		l[i] = l[i].Add(d)
	}
	return l
}

// PlacementGeometry 帽子在原图上的摆放位置与尺寸
type PlacementGeometry struct {
	CenterX      int
	TopY         int
	TargetWidth  int
	TargetHeight int
	OriginX      int
	OriginY      int
}

// Rect is the placed overlay rectangle, possibly partly or fully off-canvas.
func (g PlacementGeometry) Rect() image.Rectangle {
	return image.Rect(g.OriginX, g.OriginY, g.OriginX+g.TargetWidth, g.OriginY+g.TargetHeight)
}

// Empty 目标尺寸为0时无法缩放, 该人脸直接跳过
func (g PlacementGeometry) Empty() bool {
	return g.TargetWidth <= 0 || g.TargetHeight <= 0
}

// computePlacement 根据眉毛关键点和人脸框算出帽子的位置和缩放尺寸。
// 帽子宽度 = 脸宽 * widthFactor, 高度按帽子原图比例缩放, 底边贴着眉毛最高点。
func computePlacement(landmarks LandmarkSet, box FaceBox, hatSize image.Point, widthFactor float64) PlacementGeometry {
	left := landmarks.Part(browLeftIdx)
	right := landmarks.Part(browRightIdx)

	g := PlacementGeometry{
		CenterX: floorDiv(left.X+right.X, 2),
		TopY:    min(left.Y, right.Y),
	}

	faceWidth := box.Width()
	g.TargetWidth = int(float64(faceWidth) * widthFactor)
	if hatSize.X > 0 {
		scale := float64(g.TargetWidth) / float64(hatSize.X)
		g.TargetHeight = int(float64(hatSize.Y) * scale)
	}

	g.OriginX = g.CenterX - floorDiv(g.TargetWidth, 2)
	g.OriginY = g.TopY - g.TargetHeight
	return g
}

// floorDiv 向下取整的整数除法, 负数坐标时和Go的截断除法不一样
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
