// Package utils предоставляет файловый логгер и graceful shutdown для CLI.
//
// Логгер создаёт .log файл с timestamp в имени и пишет в него
// структурированные строки через zap. Вывод для оператора (баннеры,
// итоги) идёт отдельно, в stdout, и через логгер не проходит.
// Thread-safe.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMu   sync.Mutex
	logFile *os.File
	base    = zap.NewNop()
	sugar   = base.Sugar()
)

// LoggerOptions — параметры InitLogger.
type LoggerOptions struct {
	// Dir — директория для .log файла ("" = текущая)
	Dir string

	// Prefix — префикс имени файла (по умолчанию "goose")
	Prefix string

	// Debug включает уровень DEBUG
	Debug bool
}

// InitLogger создает/открывает .log файл и возвращает путь к нему.
//
// Имя файла: goose-YYYY-MM-DD-HH-MM.log. Повторный вызов ничего не делает
// и возвращает путь уже открытого файла.
func InitLogger(opts LoggerOptions) (string, error) {
	logMu.Lock()
	defer logMu.Unlock()

	if logFile != nil {
		return logFile.Name(), nil
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "goose"
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create log dir: %w", err)
		}
	}

	filename := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", prefix, time.Now().Format("2006-01-02-15-04")))
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open log file: %w", err)
	}

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.CallerKey = ""

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(f), level)

	logFile = f
	base = zap.New(core)
	sugar = base.Sugar()

	sugar.Infow("Logger initialized", "file", filename, "debug", opts.Debug)
	return filename, nil
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	current().Infow(msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	current().Errorw(msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	current().Debugw(msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	current().Warnw(msg, keyvals...)
}

// Logger возвращает текущий zap логгер (Nop до InitLogger).
func Logger() *zap.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	return base
}

func current() *zap.SugaredLogger {
	logMu.Lock()
	defer logMu.Unlock()
	return sugar
}

// Close сбрасывает буферы и закрывает лог-файл.
//
// Вызывается через defer в main().
func Close() {
	logMu.Lock()
	defer logMu.Unlock()

	_ = base.Sync()
	if logFile != nil {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
		}
		logFile = nil
	}
	base = zap.NewNop()
	sugar = base.Sugar()
}
