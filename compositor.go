package main

import (
	"fmt"
	"image"

	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"
)

// HatCompositor 给照片里的每张人脸戴上帽子。
// 检测器由外部传入, 一个合成器可以连续处理多张图片。
type HatCompositor struct {
	model       FaceModel
	widthFactor float64
	interp      resize.InterpolationFunction
	log         *logrus.Logger
}

// ComposeResult 一张图片的处理结果
type ComposeResult struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Faces  int    `json:"faces"`
	Placed int    `json:"placed"`
}

// sourceAware 需要知道当前图片路径的检测器(比如读取旁边关键点文件的)
type sourceAware interface {
	SetSource(imagePath string) error
}

func newHatCompositor(model FaceModel, cfg HatST, logger *logrus.Logger) (*HatCompositor, error) {
	interp, err := parseInterpolation(cfg.Interpolation)
	if err != nil {
		return nil, err
	}
	factor := cfg.WidthFactor
	if factor <= 0 {
		factor = defaultHatWidthFactor
	}
	return &HatCompositor{model: model, widthFactor: factor, interp: interp, log: logger}, nil
}

// Compose 在base上原地叠加帽子, 返回检测到的人脸数和实际画上帽子的人脸数。
// 没检测到人脸不算错误, base保持不变。
func (c *HatCompositor) Compose(base *image.RGBA, hat *image.NRGBA) (faces, placed int, err error) {
	gray := toGray(base)
	boxes, err := c.model.DetectFaces(gray)
	if err != nil {
		return 0, 0, fmt.Errorf("detect faces: %w", err)
	}
	if len(boxes) == 0 {
		c.log.Warn("no face detected, keeping the original image")
		return 0, 0, nil
	}
	c.log.Infof("detected %d face(s)", len(boxes))

	hatSize := hat.Bounds().Size()
	// 按检测顺序逐个叠加, 重叠的地方后面的人脸盖住前面的
	for i, box := range boxes {
		landmarks, err := c.model.PredictLandmarks(gray, box)
		if err != nil {
			return len(boxes), placed, fmt.Errorf("predict landmarks for face %d: %w", i, err)
		}
		g := computePlacement(landmarks, box, hatSize, c.widthFactor)
		fields := logrus.Fields{"face": i, "origin_x": g.OriginX, "origin_y": g.OriginY, "width": g.TargetWidth, "height": g.TargetHeight}
		if g.Empty() {
			c.log.WithFields(fields).Debug("hat too small, skipped")
			continue
		}
		scaled := resizeOverlay(hat, g.TargetWidth, g.TargetHeight, c.interp)
		if !alphaBlend(base, scaled, image.Pt(g.OriginX, g.OriginY)) {
			c.log.WithFields(fields).Debug("hat entirely off-canvas, skipped")
			continue
		}
		c.log.WithFields(fields).Debug("hat placed")
		placed++
	}
	return len(boxes), placed, nil
}

// ComposeFile 读图, 叠加, 写结果。没有人脸时也照样输出原图。
func (c *HatCompositor) ComposeFile(input string, hat *image.NRGBA, output string) (ComposeResult, error) {
	result := ComposeResult{Input: input, Output: output}
	base, err := loadBase(input)
	if err != nil {
		return result, err
	}
	if s, ok := c.model.(sourceAware); ok {
		if err = s.SetSource(input); err != nil {
			return result, err
		}
	}
	result.Faces, result.Placed, err = c.Compose(base, hat)
	if err != nil {
		return result, err
	}
	if err = encodeImage(output, base); err != nil {
		return result, err
	}
	c.log.WithFields(logrus.Fields{"faces": result.Faces, "placed": result.Placed}).Infof("result saved to %s", output)
	return result, nil
}
