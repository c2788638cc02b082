//go:build opencv

package main

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// yunetModel OpenCV的FaceDetectorYN, 每个人脸给出框和5个关键点(两眼, 鼻尖, 两个嘴角)
type yunetModel struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex
	eyes     map[FaceBox][2]image.Point
	log      *logrus.Logger
}

func newYuNetModel(params YuNetST, logger *logrus.Logger) (FaceModel, error) {
	if _, err := os.Stat(params.Model); err != nil {
		return nil, fmt.Errorf("%w: yunet model %s: %w", ErrorModelLoad, params.Model, err)
	}
	detector := gocv.NewFaceDetectorYNWithParams(
		params.Model,
		"",
		image.Pt(320, 320), // 检测时按实际图片尺寸重新设置
		float32(params.ScoreThreshold),
		float32(params.NMSThreshold),
		params.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &yunetModel{detector: detector, log: logger}, nil
}

func (m *yunetModel) DetectFaces(gray *image.Gray) ([]FaceBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mono, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("gray to mat: %w", err)
	}
	defer mono.Close()
	// YuNet要3通道输入
	img := gocv.NewMat()
	defer img.Close()
	gocv.CvtColor(mono, &img, gocv.ColorGrayToBGR)

	m.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))
	faces := gocv.NewMat()
	defer faces.Close()
	m.detector.Detect(img, &faces)

	// 每行15列: 0-3 框, 4-13 五个关键点, 14 置信度
	at := func(r, c int) int {
		return int(math.Round(float64(faces.GetFloatAt(r, c))))
	}
	m.eyes = make(map[FaceBox][2]image.Point, faces.Rows())
	boxes := make([]FaceBox, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x, y, w, h := at(r, 0), at(r, 1), at(r, 2), at(r, 3)
		box := FaceBox{Left: x, Top: y, Right: x + w, Bottom: y + h}
		if !box.Valid() {
			continue
		}
		if _, dup := m.eyes[box]; dup {
			m.log.WithField("box", box).Warn("skipping face with duplicate box")
			continue
		}
		l, rt := orderEyes(image.Pt(at(r, 4), at(r, 5)), image.Pt(at(r, 6), at(r, 7)))
		m.eyes[box] = [2]image.Point{l, rt}
		boxes = append(boxes, box)
	}
	m.log.WithField("faces", len(boxes)).Debug("yunet detection done")
	return boxes, nil
}

func (m *yunetModel) PredictLandmarks(gray *image.Gray, box FaceBox) (LandmarkSet, error) {
	m.mu.Lock()
	eyes, ok := m.eyes[box]
	m.mu.Unlock()
	if !ok || eyes[0] == eyes[1] {
		return fitTemplateToBox(box), nil
	}
	return fitTemplateToEyes(eyes[0], eyes[1]), nil
}

func (m *yunetModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detector.Close()
	return nil
}
