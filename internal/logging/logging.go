package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autolumiku/whatsapp-backend/internal/config"
)

// Setup builds the global zap logger from environment settings and
// installs it with zap.ReplaceGlobals. When LOG_DIR is set, a rotating
// JSON file core is teed with the console core.
func Setup() *zap.Logger {
	var zapConfig zap.Config
	if config.GetenvBool("DEV_MODE", false) {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	level := zapConfig.Level
	if raw := config.Getenv("LOG_LEVEL", ""); raw != "" {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level = zap.NewAtomicLevelAt(parsed)
			zapConfig.Level = level
		}
	}

	var logger *zap.Logger
	if dir := config.Getenv("LOG_DIR", ""); dir != "" {
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "whatsapp-backend.log"),
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(fileLogger),
				level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
	return logger
}
