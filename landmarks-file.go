package main

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const landmarksSidecarExt = ".landmarks.json"

// 外部工具(比如dlib的68点模型)预先算好的关键点文件
type landmarksFileST struct {
	Faces []struct {
		Box       [4]int   `json:"box"`
		Landmarks [][2]int `json:"landmarks"`
	} `json:"faces"`
}

// landmarksFileModel 直接读取已经算好的68点关键点, File为空时读每张图旁边的 <图片>.landmarks.json
type landmarksFileModel struct {
	file  string
	mu    sync.Mutex
	boxes []FaceBox
	sets  map[FaceBox]LandmarkSet
	log   *logrus.Logger
}

func newLandmarksFileModel(params LandmarksST, logger *logrus.Logger) (*landmarksFileModel, error) {
	m := &landmarksFileModel{file: params.File, log: logger}
	if params.File != "" {
		if err := m.load(params.File); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func sidecarPath(imagePath string) string {
	return imagePath + landmarksSidecarExt
}

// SetSource 处理每张图之前由合成器调用, 固定文件模式下什么都不做
func (m *landmarksFileModel) SetSource(imagePath string) error {
	if m.file != "" {
		return nil
	}
	return m.load(sidecarPath(imagePath))
}

func (m *landmarksFileModel) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: landmarks %s: %w", ErrorModelLoad, path, err)
	}
	var doc landmarksFileST
	if err = json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: landmarks %s: %w", ErrorModelLoad, path, err)
	}

	boxes := make([]FaceBox, 0, len(doc.Faces))
	sets := make(map[FaceBox]LandmarkSet, len(doc.Faces))
	for i, f := range doc.Faces {
		if len(f.Landmarks) != landmarkCount {
			return fmt.Errorf("%w: landmarks %s: face %d has %d points, want %d", ErrorModelLoad, path, i, len(f.Landmarks), landmarkCount)
		}
		box := FaceBox{Left: f.Box[0], Top: f.Box[1], Right: f.Box[2], Bottom: f.Box[3]}
		if !box.Valid() {
			m.log.WithFields(logrus.Fields{"file": path, "face": i}).Warn("skipping face with empty box")
			continue
		}
		// 关键点按人脸框查找, 同一个框只能对应一组
		if _, dup := sets[box]; dup {
			m.log.WithFields(logrus.Fields{"file": path, "face": i}).Warn("skipping face with duplicate box")
			continue
		}
		var set LandmarkSet
		for j, p := range f.Landmarks {
			set[j] = image.Pt(p[0], p[1])
		}
		boxes = append(boxes, box)
		sets[box] = set
	}

	m.mu.Lock()
	m.boxes, m.sets = boxes, sets
	m.mu.Unlock()
	return nil
}

func (m *landmarksFileModel) DetectFaces(gray *image.Gray) ([]FaceBox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FaceBox(nil), m.boxes...), nil
}

func (m *landmarksFileModel) PredictLandmarks(gray *image.Gray, box FaceBox) (LandmarkSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[box]
	if !ok {
		return fitTemplateToBox(box), nil
	}
	return set, nil
}

func (m *landmarksFileModel) Close() error {
	return nil
}
