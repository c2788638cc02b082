//go:build !dlib

package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func newDlibModel(params DlibST, logger *logrus.Logger) (FaceModel, error) {
	return nil, fmt.Errorf("%w: built without dlib support (use -tags dlib)", ErrorModelLoad)
}
