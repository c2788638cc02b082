package main

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// imageJob 监控到的一张待处理图片
type imageJob struct {
	input  string
	output string
}

// watchAndPutNewImgToChan 监控目录, 新写入的图片放进队列, 自己输出的结果图不处理。
func watchAndPutNewImgToChan(ctx context.Context, dir, outDir string, jobs chan<- imageJob, logger *logrus.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err = watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logger.Infof("watching %s for new images", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isImageFile(event.Name) || isOutputFile(event.Name) {
				continue
			}
			job := imageJob{input: event.Name, output: defaultOutputPath(event.Name, outDir)}
			select {
			case jobs <- job:
			default:
				logger.WithField("file", event.Name).Warn("img queue is full, dropping")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Error("watcher error")
		}
	}
}

// processImgQueue 串行处理队列里的图片。同一个文件连续的写事件会合并掉, 只要还排在队列里就只处理一次。
func processImgQueue(ctx context.Context, jobs <-chan imageJob, compositor *HatCompositor, hat *image.NRGBA, notifier Notifier, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			pending := map[string]imageJob{job.input: job}
			order := []string{job.input}
		drain:
			for {
				select {
				case next := <-jobs:
					if _, seen := pending[next.input]; !seen {
						order = append(order, next.input)
					}
					pending[next.input] = next
				default:
					break drain
				}
			}
			for _, name := range order {
				// 收到退出信号后, 正在做的这张做完, 剩下的不再处理
				if ctx.Err() != nil {
					return
				}
				runJob(pending[name], compositor, hat, notifier, logger)
			}
		}
	}
}

func runJob(job imageJob, compositor *HatCompositor, hat *image.NRGBA, notifier Notifier, logger *logrus.Logger) {
	// 文件可能已经被删掉了
	if _, err := os.Stat(job.input); err != nil {
		logger.WithError(err).WithField("file", job.input).Warn("image vanished before processing")
		return
	}
	result, err := compositor.ComposeFile(job.input, hat, job.output)
	if err != nil {
		logger.WithError(err).WithField("file", job.input).Error("compose failed")
		return
	}
	if err = notifier.Notify(result); err != nil {
		logger.WithError(err).Warn("notify failed")
	}
}
