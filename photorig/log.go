package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/itohio/photorig/pkg/config"
)

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return log
}
