package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// landmarksJSON 生成一个人脸的关键点文件, 第i个点是 (x0+i, y0+i)
func landmarksJSON(box [4]int, x0, y0, n int) string {
	points := make([]string, n)
	for i := range points {
		points[i] = fmt.Sprintf("[%d,%d]", x0+i, y0+i)
	}
	return fmt.Sprintf(`{"faces":[{"box":[%d,%d,%d,%d],"landmarks":[%s]}]}`,
		box[0], box[1], box[2], box[3], strings.Join(points, ","))
}

func TestLandmarksFileModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.json")
	require.NoError(t, os.WriteFile(path, []byte(landmarksJSON([4]int{10, 20, 110, 140}, 5, 7, landmarkCount)), 0644))

	m, err := newLandmarksFileModel(LandmarksST{File: path}, newTestLogger())
	require.NoError(t, err)

	boxes, err := m.DetectFaces(nil)
	require.NoError(t, err)
	want := FaceBox{Left: 10, Top: 20, Right: 110, Bottom: 140}
	assert.Equal(t, []FaceBox{want}, boxes)

	l, err := m.PredictLandmarks(nil, want)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(5+browLeftIdx, 7+browLeftIdx), l.Part(browLeftIdx))
	assert.Equal(t, image.Pt(5+browRightIdx, 7+browRightIdx), l.Part(browRightIdx))

	// 固定文件模式下 SetSource 不换文件
	require.NoError(t, m.SetSource("whatever.jpg"))
	boxes, _ = m.DetectFaces(nil)
	assert.Len(t, boxes, 1)
}

func TestLandmarksFileWrongPointCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.json")
	require.NoError(t, os.WriteFile(path, []byte(landmarksJSON([4]int{0, 0, 10, 10}, 0, 0, 5)), 0644))

	_, err := newLandmarksFileModel(LandmarksST{File: path}, newTestLogger())
	assert.ErrorIs(t, err, ErrorModelLoad)
}

func TestLandmarksFileMissing(t *testing.T) {
	_, err := newLandmarksFileModel(LandmarksST{File: filepath.Join(t.TempDir(), "none.json")}, newTestLogger())
	assert.ErrorIs(t, err, ErrorModelLoad)
}

func TestLandmarksFileSkipsEmptyBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.json")
	require.NoError(t, os.WriteFile(path, []byte(landmarksJSON([4]int{10, 10, 10, 30}, 0, 0, landmarkCount)), 0644))

	m, err := newLandmarksFileModel(LandmarksST{File: path}, newTestLogger())
	require.NoError(t, err)
	boxes, err := m.DetectFaces(nil)
	require.NoError(t, err)
	assert.Empty(t, boxes)
}

func TestLandmarksSidecarThroughCompositor(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "group.png")
	writePNG(t, input, solidCanvas(200, 200, colorBlack))
	// 眉毛点 19 = (119, 119), 24 = (124, 124); 脸宽 40 -> 帽子 60x60
	require.NoError(t, os.WriteFile(sidecarPath(input), []byte(landmarksJSON([4]int{100, 100, 140, 160}, 100, 100, landmarkCount)), 0644))

	m, err := newLandmarksFileModel(LandmarksST{}, newTestLogger())
	require.NoError(t, err)
	c := newTestCompositor(t, m)

	result, err := c.ComposeFile(input, solidOverlay(10, 10, colorWhiteOpaque), filepath.Join(dir, "out.png"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Faces)
	assert.Equal(t, 1, result.Placed)

	out := readRGBA(t, filepath.Join(dir, "out.png"))
	// center_x = 121, top_y = 119, origin = (91, 59)
	assert.Equal(t, colorWhite, out.RGBAAt(91, 59))
	assert.Equal(t, colorWhite, out.RGBAAt(150, 118))
	assert.Equal(t, colorBlack, out.RGBAAt(151, 118))
	assert.Equal(t, colorBlack, out.RGBAAt(91, 119))
}

func TestLandmarksSidecarMissing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "lonely.png")
	writePNG(t, input, solidCanvas(10, 10, colorBlack))

	m, err := newLandmarksFileModel(LandmarksST{}, newTestLogger())
	require.NoError(t, err)

	_, err = newTestCompositor(t, m).ComposeFile(input, solidOverlay(2, 2, colorWhiteOpaque), filepath.Join(dir, "out.png"))
	assert.ErrorIs(t, err, ErrorModelLoad)
}

func TestLandmarksFileSkipsDuplicateBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.json")
	first := strings.TrimSuffix(strings.TrimPrefix(landmarksJSON([4]int{10, 10, 50, 50}, 0, 0, landmarkCount), `{"faces":[`), `]}`)
	second := strings.TrimSuffix(strings.TrimPrefix(landmarksJSON([4]int{10, 10, 50, 50}, 100, 100, landmarkCount), `{"faces":[`), `]}`)
	require.NoError(t, os.WriteFile(path, []byte(`{"faces":[`+first+`,`+second+`]}`), 0644))

	m, err := newLandmarksFileModel(LandmarksST{File: path}, newTestLogger())
	require.NoError(t, err)

	box := FaceBox{Left: 10, Top: 10, Right: 50, Bottom: 50}
	boxes, err := m.DetectFaces(nil)
	require.NoError(t, err)
	assert.Equal(t, []FaceBox{box}, boxes)

	// 第一组关键点不会被后面同一个框的覆盖
	l, err := m.PredictLandmarks(nil, box)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(browLeftIdx, browLeftIdx), l.Part(browLeftIdx))
}
