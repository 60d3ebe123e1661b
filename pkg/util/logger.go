package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

func init() {
	Logger = buildLogger("stdout")
}

// InitFileLogger redirects the global logger to a file. Called once at
// startup when the configuration sets a log filename.
func InitFileLogger(filename string) {
	if filename == "" {
		return
	}
	Logger = buildLogger(filename)
}

func buildLogger(output string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.OutputPaths = []string{output}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
