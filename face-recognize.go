//go:build dlib

package main

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/Kagami/go-face"
	"github.com/sirupsen/logrus"
)

// dlibModel 基于go-face(dlib HOG检测+5点关键点), 5点里的眼角求出眼睛中心再对齐成68点
type dlibModel struct {
	recognizer *face.Recognizer
	mu         sync.Mutex
	shapes     map[FaceBox][]image.Point
	log        *logrus.Logger
}

func newDlibModel(params DlibST, logger *logrus.Logger) (FaceModel, error) {
	rec, err := face.NewRecognizer(params.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: dlib models %s: %w", ErrorModelLoad, params.ModelsDir, err)
	}
	return &dlibModel{recognizer: rec, log: logger}, nil
}

// DetectFaces go-face只接受JPEG数据, 亮度图先编码一遍
func (m *dlibModel) DetectFaces(gray *image.Gray) ([]FaceBox, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gray, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode gray frame: %w", err)
	}
	faces, err := m.recognizer.Recognize(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("dlib recognize: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.shapes = make(map[FaceBox][]image.Point, len(faces))
	boxes := make([]FaceBox, 0, len(faces))
	for _, f := range faces {
		box := FaceBox{
			Left:   f.Rectangle.Min.X,
			Top:    f.Rectangle.Min.Y,
			Right:  f.Rectangle.Max.X,
			Bottom: f.Rectangle.Max.Y,
		}
		if !box.Valid() {
			continue
		}
		if _, dup := m.shapes[box]; dup {
			m.log.WithField("box", box).Warn("skipping face with duplicate box")
			continue
		}
		m.shapes[box] = f.Shapes
		boxes = append(boxes, box)
	}
	m.log.WithField("faces", len(boxes)).Debug("dlib detection done")
	return boxes, nil
}

func (m *dlibModel) PredictLandmarks(gray *image.Gray, box FaceBox) (LandmarkSet, error) {
	m.mu.Lock()
	shapes := m.shapes[box]
	m.mu.Unlock()
	if len(shapes) < 4 {
		return fitTemplateToBox(box), nil
	}
	l, r := eyesFromFivePoints(shapes[0], shapes[1], shapes[2], shapes[3])
	if l == r {
		return fitTemplateToBox(box), nil
	}
	return fitTemplateToEyes(l, r), nil
}

func (m *dlibModel) Close() error {
	m.recognizer.Close()
	return nil
}
