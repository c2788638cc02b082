//go:build !opencv

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func newYuNetModel(params YuNetST, logger *logrus.Logger) (FaceModel, error) {
	return nil, fmt.Errorf("%w: built without OpenCV support (use -tags opencv)", ErrorModelLoad)
}
