// Package clilog builds the zap logger used by pklbridge command.
//
// Records go to stderr in console format and, if configured, also to a
// size-rotated file managed by lumberjack.
package clilog

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultMaxSize = 100 // MB

// Config describes where and how much to log.
type Config struct {
	// Level is one of debug, info, warn, error. Empty means warn.
	Level string

	// File, if not empty, is the path of the log file.
	File string

	// MaxSize is the size in megabytes after which the log file is rotated.
	MaxSize int

	// MaxBackups is how many rotated files to keep. Zero keeps all.
	MaxBackups int

	// MaxDays is how many days to keep rotated files. Zero keeps them forever.
	MaxDays int
}

// New returns logger writing to stderr and, optionally, to cfg.File.
//
// The returned close func flushes the logger and closes the log file.
func New(cfg Config, stderr io.Writer) (_ *zap.Logger, close func() error, _ error) {
	if cfg.Level == "" {
		cfg.Level = "warn"
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrap(err, "log level")
	}

	outputs := []zapcore.WriteSyncer{zapcore.AddSync(stderr)}
	var file *lumberjack.Logger
	if cfg.File != "" {
		file, err = openFile(cfg)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, zapcore.AddSync(file))
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zap.CombineWriteSyncers(outputs...),
		level,
	)
	lg := zap.New(core, zap.ErrorOutput(zapcore.AddSync(stderr)))

	close = func() error {
		_ = lg.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return lg, close, nil
}

func openFile(cfg Config) (*lumberjack.Logger, error) {
	if st, err := os.Stat(cfg.File); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %s is a directory", cfg.File)
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultMaxSize
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}
