package logger

import (
	"os"

	"github.com/sirupsen/logrus"

	"lunchbreak/config"
)

func Setup(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)

	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

func WithOrder(orderID, storeID int64) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"store_id": storeID,
	})
}
