package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.json", "config file")
	hatPath := flag.String("hat", "", "overlay image with alpha channel (overrides config)")
	outPath := flag.String("out", "", "output file, only with a single input image")
	watchDir := flag.String("watch", "", "watch a directory and process new images")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "运行出错:", err)
		return
	}
	if *hatPath != "" {
		cfg.Hat.Image = *hatPath
	}
	if *watchDir != "" {
		cfg.Watch.Dir = *watchDir
	}
	logger := newLogger(cfg.Log)

	// 出错只打日志, 不单独定义退出码
	if err = run(cfg, flag.Args(), *outPath, logger); err != nil {
		logger.WithError(err).Error("运行出错")
	}
}

func run(cfg *configST, inputs []string, outPath string, logger *logrus.Logger) error {
	if len(inputs) == 0 && cfg.Watch.Dir == "" {
		return fmt.Errorf("no input images and no watch directory")
	}
	if outPath != "" && len(inputs) != 1 {
		return fmt.Errorf("-out needs exactly one input image, got %d", len(inputs))
	}

	hat, err := loadOverlay(cfg.Hat.Image)
	if err != nil {
		return err
	}

	// 生成人脸检测器
	model, err := newFaceModel(cfg.Detector, logger)
	if err != nil {
		return err
	}
	defer model.Close()

	compositor, err := newHatCompositor(model, cfg.Hat, logger)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(cfg.MQTT, logger)
	if err != nil {
		logger.WithError(err).Warn("notifications disabled")
		notifier = nopNotifier{}
	}
	defer notifier.Close()

	failed := processBatch(inputs, outPath, cfg.Hat.OutputDir, compositor, hat, notifier, logger)

	if cfg.Watch.Dir != "" {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return watch(ctx, cfg, compositor, hat, notifier, logger)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(inputs))
	}
	return nil
}

// processBatch 同一个检测器依次处理所有图片, 一张出错不影响其他的
func processBatch(inputs []string, outPath, outDir string, compositor *HatCompositor, hat *image.NRGBA, notifier Notifier, logger *logrus.Logger) (failed int) {
	for _, input := range inputs {
		output := outPath
		if output == "" {
			output = defaultOutputPath(input, outDir)
		}
		result, err := compositor.ComposeFile(input, hat, output)
		if err != nil {
			logger.WithError(err).WithField("file", input).Error("compose failed")
			failed++
			continue
		}
		if err = notifier.Notify(result); err != nil {
			logger.WithError(err).Warn("notify failed")
		}
	}
	return failed
}

// watch 一直运行到ctx结束。返回前等处理协程把手上的图片做完, 调用方随后才会关闭模型和通知连接
func watch(ctx context.Context, cfg *configST, compositor *HatCompositor, hat *image.NRGBA, notifier Notifier, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan imageJob, 20)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		processImgQueue(ctx, jobs, compositor, hat, notifier, logger)
	}()

	logger.Info("Server Start Awaiting Signal")
	err := watchAndPutNewImgToChan(ctx, cfg.Watch.Dir, cfg.Hat.OutputDir, jobs, logger)
	// 监控出错退出时也要让处理协程停下
	cancel()
	wg.Wait()
	logger.Info("Exiting")
	return err
}
