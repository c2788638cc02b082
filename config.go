package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrorConfigEnv = errors.New("invalid environment override")

// 生成配置文件结构
type configST struct {
	Hat      HatST      `json:"hat"`
	Detector DetectorST `json:"detector"`
	Watch    WatchST    `json:"watch"`
	MQTT     MQTTST     `json:"mqtt"`
	Log      LogST      `json:"log"`
}

type HatST struct {
	Image         string  `json:"image"`
	WidthFactor   float64 `json:"width_factor"`
	Interpolation string  `json:"interpolation"`
	OutputDir     string  `json:"output_dir"`
}

type DetectorST struct {
	Backend   string      `json:"backend"` // pigo, dlib, yunet, landmarks
	Pigo      PigoST      `json:"pigo"`
	Dlib      DlibST      `json:"dlib"`
	YuNet     YuNetST     `json:"yunet"`
	Landmarks LandmarksST `json:"landmarks"`
}

type DlibST struct {
	ModelsDir string `json:"models_dir"`
}

type YuNetST struct {
	Model          string  `json:"model"`
	ScoreThreshold float64 `json:"score_threshold"`
	NMSThreshold   float64 `json:"nms_threshold"`
	TopK           int     `json:"top_k"`
}

type LandmarksST struct {
	File string `json:"file"`
}

type WatchST struct {
	Dir string `json:"dir"`
}

type MQTTST struct {
	Address  string `json:"address"`
	UserName string `json:"user_name"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
	QoS      byte   `json:"qos"`
}

type LogST struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

func defaultConfig() *configST {
	return &configST{
		Hat: HatST{
			Image:         "resources/christmas_hat.png",
			WidthFactor:   defaultHatWidthFactor,
			Interpolation: "bilinear",
		},
		Detector: DetectorST{
			Backend: "pigo",
			Pigo:    defaultPigoST(),
			Dlib:    DlibST{ModelsDir: "models"},
			YuNet: YuNetST{
				Model:          "models/face_detection_yunet.onnx",
				ScoreThreshold: 0.6,
				NMSThreshold:   0.3,
				TopK:           5000,
			},
		},
		MQTT: MQTTST{
			ClientID: "face-hat",
			Topic:    "face-hat/composed",
		},
		Log: LogST{Level: "info"},
	}
}

// loadConfig 本质还不就是把配置文件从磁盘加载到内存里, 再用 .env 和环境变量覆盖。
// 配置文件不存在时用默认值。
func loadConfig(path string) (*configST, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err = json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// .env 可有可无
	_ = godotenv.Load()
	if err = cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 环境变量覆盖配置, 数值写错直接报错, 不悄悄用默认值
func (c *configST) applyEnv() error {
	readEnvString("FACEHAT_HAT_IMAGE", &c.Hat.Image)
	readEnvString("FACEHAT_INTERPOLATION", &c.Hat.Interpolation)
	readEnvString("FACEHAT_OUTPUT_DIR", &c.Hat.OutputDir)
	readEnvString("FACEHAT_DETECTOR", &c.Detector.Backend)
	readEnvString("FACEHAT_PIGO_CASCADE", &c.Detector.Pigo.Cascade)
	readEnvString("FACEHAT_PIGO_PUPLOC", &c.Detector.Pigo.Puploc)
	readEnvString("FACEHAT_DLIB_MODELS", &c.Detector.Dlib.ModelsDir)
	readEnvString("FACEHAT_YUNET_MODEL", &c.Detector.YuNet.Model)
	readEnvString("FACEHAT_LANDMARKS_FILE", &c.Detector.Landmarks.File)
	readEnvString("FACEHAT_WATCH_DIR", &c.Watch.Dir)
	readEnvString("FACEHAT_MQTT_ADDRESS", &c.MQTT.Address)
	readEnvString("FACEHAT_MQTT_USER", &c.MQTT.UserName)
	readEnvString("FACEHAT_MQTT_PASSWORD", &c.MQTT.Password)
	readEnvString("FACEHAT_MQTT_TOPIC", &c.MQTT.Topic)
	readEnvString("FACEHAT_LOG_LEVEL", &c.Log.Level)
	readEnvString("FACEHAT_LOG_FILE", &c.Log.File)

	if err := readEnvFloat("FACEHAT_HAT_WIDTH_FACTOR", &c.Hat.WidthFactor); err != nil {
		return err
	}
	return readEnvInt("FACEHAT_UPSAMPLE", &c.Detector.Pigo.Upsample)
}

func readEnvString(name string, value *string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	*value = v
}

func readEnvFloat(name string, value *float64) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrorConfigEnv, name, v, err)
	}
	*value = f
	return nil
}

func readEnvInt(name string, value *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrorConfigEnv, name, v, err)
	}
	*value = i
	return nil
}
