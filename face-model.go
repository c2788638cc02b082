package main

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrorModelLoad = errors.New("cannot load face model")

// FaceModel 人脸检测和关键点定位的能力, 换不同的检测器不影响合成逻辑。
type FaceModel interface {
	// DetectFaces 在亮度图上找人脸, 没找到返回空切片而不是错误
	DetectFaces(gray *image.Gray) ([]FaceBox, error)
	// PredictLandmarks 返回某个人脸框对应的68个关键点
	PredictLandmarks(gray *image.Gray, box FaceBox) (LandmarkSet, error)
	Close() error
}

// newFaceModel 按配置生成检测器, 由调用方负责Close
func newFaceModel(cfg DetectorST, logger *logrus.Logger) (FaceModel, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "pigo":
		m, err := newPigoModel(cfg.Pigo, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "dlib":
		return newDlibModel(cfg.Dlib, logger)
	case "yunet":
		return newYuNetModel(cfg.YuNet, logger)
	case "landmarks":
		m, err := newLandmarksFileModel(cfg.Landmarks, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrorModelLoad, cfg.Backend)
}

// meanShape 68点正脸平均形状, 坐标按关键点外接框归一化到[0,1]附近。
// 只有框或者只有几个点的检测器用它补全68点。
var meanShape = [landmarkCount][2]float64{
	// 下巴轮廓 0-16
	{0.0792, 0.3392}, {0.0829, 0.4570}, {0.0968, 0.5756}, {0.1221, 0.6919},
	{0.1687, 0.8003}, {0.2398, 0.8957}, {0.3257, 0.9771}, {0.4223, 1.0433},
	{0.5318, 1.0608}, {0.6413, 1.0398}, {0.7381, 0.9723}, {0.8244, 0.8896},
	{0.8948, 0.7925}, {0.9394, 0.6815}, {0.9611, 0.5622}, {0.9706, 0.4418},
	{0.9712, 0.3221},
	// 眉毛 17-26
	{0.1638, 0.2492}, {0.2178, 0.2043}, {0.2913, 0.1924}, {0.3675, 0.2036},
	{0.4393, 0.2331}, {0.5864, 0.2281}, {0.6602, 0.1959}, {0.7375, 0.1824},
	{0.8132, 0.1928}, {0.8708, 0.2353},
	// 鼻子 27-35
	{0.5153, 0.3186}, {0.5162, 0.3962}, {0.5171, 0.4738}, {0.5182, 0.5532},
	{0.4337, 0.6041}, {0.4755, 0.6208}, {0.5207, 0.6343}, {0.5659, 0.6188},
	{0.6071, 0.6016},
	// 眼睛 36-47
	{0.2524, 0.3311}, {0.2987, 0.3026}, {0.3557, 0.3030}, {0.4037, 0.3387},
	{0.3525, 0.3500}, {0.2968, 0.3505}, {0.6313, 0.3341}, {0.6791, 0.2965},
	{0.7360, 0.2947}, {0.7829, 0.3213}, {0.7403, 0.3418}, {0.6850, 0.3437},
	// 嘴 48-67
	{0.3532, 0.7462}, {0.4146, 0.7191}, {0.4777, 0.7068}, {0.5227, 0.7171},
	{0.5698, 0.7054}, {0.6352, 0.7157}, {0.6995, 0.7394}, {0.6394, 0.8052},
	{0.5764, 0.8354}, {0.5254, 0.8417}, {0.4764, 0.8375}, {0.4138, 0.8100},
	{0.3801, 0.7500}, {0.4780, 0.7451}, {0.5234, 0.7489}, {0.5711, 0.7433},
	{0.6724, 0.7442}, {0.5725, 0.7766}, {0.5240, 0.7834}, {0.4776, 0.7785},
}

func templateEyeCenters() (left, right complex128) {
	for i := 36; i < 42; i++ {
		left += complex(meanShape[i][0], meanShape[i][1])
	}
	for i := 42; i < 48; i++ {
		right += complex(meanShape[i][0], meanShape[i][1])
	}
	return left / 6, right / 6
}

// fitTemplateToBox 没有其他信息时把平均形状直接拉伸到人脸框里
func fitTemplateToBox(box FaceBox) LandmarkSet {
	var l LandmarkSet
	w, h := float64(box.Width()), float64(box.Height())
	for i, p := range meanShape {
		l[i] = image.Pt(
			box.Left+int(math.Round(p[0]*w)),
			box.Top+int(math.Round(p[1]*h)),
		)
	}
	return l
}

// fitTemplateToEyes 用两个眼睛中心做相似变换(缩放+旋转+平移)把平均形状对齐到人脸上。
// leftEye 是图片里靠左的那只眼睛。
func fitTemplateToEyes(leftEye, rightEye image.Point) LandmarkSet {
	tl, tr := templateEyeCenters()
	el := complex(float64(leftEye.X), float64(leftEye.Y))
	er := complex(float64(rightEye.X), float64(rightEye.Y))
	s := (er - el) / (tr - tl)

	var l LandmarkSet
	for i, p := range meanShape {
		z := el + s*(complex(p[0], p[1])-tl)
		l[i] = image.Pt(int(math.Round(real(z))), int(math.Round(imag(z))))
	}
	return l
}

// orderEyes 保证左眼在左
func orderEyes(a, b image.Point) (left, right image.Point) {
	if a.X <= b.X {
		return a, b
	}
	return b, a
}

// eyesFromFivePoints 五点模型(两只眼睛各两个点+其他)求两个眼睛中心, 顺序不同的模型都能用
func eyesFromFivePoints(a0, a1, b0, b1 image.Point) (left, right image.Point) {
	ea := image.Pt((a0.X+a1.X)/2, (a0.Y+a1.Y)/2)
	eb := image.Pt((b0.X+b1.X)/2, (b0.Y+b1.Y)/2)
	return orderEyes(ea, eb)
}
