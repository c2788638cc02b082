package main

import (
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

// PigoST pigo检测器参数
type PigoST struct {
	Cascade      string  `json:"cascade"`
	Puploc       string  `json:"puploc"`
	MinSize      int     `json:"min_size"`
	MaxSize      int     `json:"max_size"`
	ShiftFactor  float64 `json:"shift_factor"`
	ScaleFactor  float64 `json:"scale_factor"`
	IoUThreshold float64 `json:"iou_threshold"`
	MinQuality   float32 `json:"min_quality"`
	Upsample     int     `json:"upsample"`
	Perturbs     int     `json:"perturbs"`
}

func defaultPigoST() PigoST {
	return PigoST{
		Cascade:      "cascade/facefinder",
		Puploc:       "cascade/puploc",
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
		Upsample:     1,
		Perturbs:     63,
	}
}

// pigoModel 纯Go的人脸检测, facefinder找人脸, puploc找瞳孔, 再用瞳孔把平均形状对齐成68点
type pigoModel struct {
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	params     PigoST
	log        *logrus.Logger
}

func newPigoModel(params PigoST, logger *logrus.Logger) (*pigoModel, error) {
	classifier, err := getFaceDetectClassifier(params.Cascade)
	if err != nil {
		return nil, err
	}
	m := &pigoModel{classifier: classifier, params: params, log: logger}
	if params.Puploc != "" {
		m.puploc, err = getPuplocCascade(params.Puploc)
		if err != nil {
			// 没有瞳孔模型也能用, 只是关键点直接按人脸框估计
			logger.WithError(err).Warn("puploc cascade unavailable, landmarks fitted to face box")
		}
	}
	return m, nil
}

// 解析模型文件，返回解析后得到的模型对象。
func getFaceDetectClassifier(modelPath string) (*pigo.Pigo, error) {
	cascadeFile, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: facefinder %s: %w", ErrorModelLoad, modelPath, err)
	}

	p := pigo.NewPigo()
	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	classifier, err := p.Unpack(cascadeFile)
	if err != nil {
		return nil, fmt.Errorf("%w: facefinder %s: %w", ErrorModelLoad, modelPath, err)
	}
	return classifier, nil
}

func getPuplocCascade(modelPath string) (*pigo.PuplocCascade, error) {
	puplocFile, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: puploc %s: %w", ErrorModelLoad, modelPath, err)
	}
	plc, err := pigo.NewPuplocCascade().UnpackCascade(puplocFile)
	if err != nil {
		return nil, fmt.Errorf("%w: puploc %s: %w", ErrorModelLoad, modelPath, err)
	}
	return plc, nil
}

// grayParams pigo要求像素按行紧密排列, stride不等于宽度时复制一份
func grayParams(gray *image.Gray) pigo.ImageParams {
	b := gray.Bounds()
	pixels := gray.Pix
	if gray.Stride != b.Dx() || b.Min != (image.Point{}) {
		tight := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(tight, tight.Bounds(), gray, b.Min, draw.Src)
		pixels = tight.Pix
	}
	return pigo.ImageParams{
		Pixels: pixels,
		Rows:   b.Dy(),
		Cols:   b.Dx(),
		Dim:    b.Dx(),
	}
}

// upsampleGray 每一次上采样把图放大一倍, 方便找到小脸
func upsampleGray(gray *image.Gray, times int) (*image.Gray, int) {
	factor := 1 << times
	if times <= 0 {
		return gray, 1
	}
	b := gray.Bounds()
	up := resize.Resize(uint(b.Dx()*factor), uint(b.Dy()*factor), gray, resize.Bilinear)
	if g, ok := up.(*image.Gray); ok {
		return g, factor
	}
	g := image.NewGray(up.Bounds())
	draw.Draw(g, g.Bounds(), up, up.Bounds().Min, draw.Src)
	return g, factor
}

// detectionToBox pigo的结果是中心点+边长, 换算回原图坐标的人脸框
func detectionToBox(det pigo.Detection, factor int) FaceBox {
	half := det.Scale / 2
	return FaceBox{
		Left:   floorDiv(det.Col-half, factor),
		Top:    floorDiv(det.Row-half, factor),
		Right:  floorDiv(det.Col+half, factor),
		Bottom: floorDiv(det.Row+half, factor),
	}
}

// DetectFaces 使用特定的模型对象来检测图片中的人脸。计算出人脸在图片的位置与置信度。
func (m *pigoModel) DetectFaces(gray *image.Gray) ([]FaceBox, error) {
	angle := 0.0 // cascade rotation angle. 0.0 is 0 radians and 1.0 is 2*pi radians

	src, factor := upsampleGray(gray, m.params.Upsample)
	cParams := pigo.CascadeParams{
		MinSize:     m.params.MinSize,
		MaxSize:     m.params.MaxSize * factor,
		ShiftFactor: m.params.ShiftFactor,
		ScaleFactor: m.params.ScaleFactor,
		ImageParams: grayParams(src),
	}
	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := m.classifier.RunCascade(cParams, angle)

	// Calculate the intersection over union (IoU) of two clusters.
	dets = m.classifier.ClusterDetections(dets, m.params.IoUThreshold)

	boxes := make([]FaceBox, 0, len(dets))
	for _, det := range dets {
		if det.Q < m.params.MinQuality {
			continue
		}
		box := detectionToBox(det, factor)
		if !box.Valid() {
			continue
		}
		boxes = append(boxes, box)
	}
	m.log.WithFields(logrus.Fields{"raw": len(dets), "faces": len(boxes), "upsample": factor}).Debug("pigo detection done")
	return boxes, nil
}

// PredictLandmarks 找到两个瞳孔就按瞳孔对齐, 否则按人脸框估计
func (m *pigoModel) PredictLandmarks(gray *image.Gray, box FaceBox) (LandmarkSet, error) {
	if m.puploc == nil {
		return fitTemplateToBox(box), nil
	}
	imgParams := grayParams(gray)
	row := (box.Top + box.Bottom) / 2
	col := (box.Left + box.Right) / 2
	scale := float32(box.Width())

	leftEye := m.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: m.params.Perturbs,
	}, imgParams, 0.0, false)
	rightEye := m.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: m.params.Perturbs,
	}, imgParams, 0.0, false)

	if leftEye == nil || rightEye == nil || leftEye.Row <= 0 || leftEye.Col <= 0 || rightEye.Row <= 0 || rightEye.Col <= 0 {
		return fitTemplateToBox(box), nil
	}
	l, r := orderEyes(image.Pt(leftEye.Col, leftEye.Row), image.Pt(rightEye.Col, rightEye.Row))
	if l == r {
		return fitTemplateToBox(box), nil
	}
	return fitTemplateToEyes(l, r), nil
}

func (m *pigoModel) Close() error {
	return nil
}
