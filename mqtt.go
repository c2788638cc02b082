package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yosssi/gmq/mqtt/client"
)

// Notifier 每处理完一张图发一条通知
type Notifier interface {
	Notify(result ComposeResult) error
	Close()
}

type nopNotifier struct{}

func (nopNotifier) Notify(ComposeResult) error { return nil }
func (nopNotifier) Close()                      {}

// mqttNotifier 把处理结果以JSON发布到MQTT主题上
type mqttNotifier struct {
	cli   *client.Client
	topic string
	qos   byte
	log   *logrus.Logger
}

// newNotifier 没配MQTT地址就什么都不发
func newNotifier(cfg MQTTST, logger *logrus.Logger) (Notifier, error) {
	if cfg.Address == "" {
		return nopNotifier{}, nil
	}
	// 同一个clientID重复连接会把之前的连接踢掉, 加个随机后缀
	clientID := cfg.ClientID + "-" + uuid.NewString()[:8]
	cli, err := createMQTTClient(cfg.Address, clientID, cfg.UserName, cfg.Password, logger)
	if err != nil {
		return nil, err
	}
	return &mqttNotifier{cli: cli, topic: cfg.Topic, qos: cfg.QoS, log: logger}, nil
}

// 建立到MQTT代理服务器的连接
func createMQTTClient(brokerAddr string, clientID string, userName string, password string, logger *logrus.Logger) (*client.Client, error) {
	// Create an MQTT Client.
	cli := client.New(&client.Options{
		// Define the processing of the error handler.
		ErrorHandler: func(err error) {
			logger.WithError(err).Error("mqtt client error")
		},
	})

	// Connect to the MQTT Server.
	err := cli.Connect(&client.ConnectOptions{
		Network:  "tcp",
		Address:  brokerAddr,
		UserName: []byte(userName),
		Password: []byte(password),
		ClientID: []byte(clientID),
	})
	if err != nil {
		cli.Terminate()
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerAddr, err)
	}
	return cli, nil
}

func notificationMessage(result ComposeResult) ([]byte, error) {
	return json.Marshal(result)
}

// Notify 在一个连接中发布主题消息
func (n *mqttNotifier) Notify(result ComposeResult) error {
	message, err := notificationMessage(result)
	if err != nil {
		return err
	}
	err = n.cli.Publish(&client.PublishOptions{
		QoS:       n.qos,
		TopicName: []byte(n.topic),
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("mqtt publish %s: %w", n.topic, err)
	}
	return nil
}

func (n *mqttNotifier) Close() {
	if err := n.cli.Disconnect(); err != nil {
		n.log.WithError(err).Warn("mqtt disconnect")
	}
	n.cli.Terminate()
}
