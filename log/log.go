package log

import (
	"github.com/hatlonely/odb/log/logger"
	"github.com/pkg/errors"
)

var defaultLogger logger.Logger

func init() {
	// 创建默认的SLog实例，向终端输出text格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

func Default() logger.Logger {
	return defaultLogger
}

// NewLoggerWithOptions 根据配置创建日志器，options 为空时返回默认日志器
func NewLoggerWithOptions(options *logger.SLogOptions) (logger.Logger, error) {
	if options == nil {
		return Default(), nil
	}
	l, err := logger.NewSLogWithOptions(options)
	if err != nil {
		return nil, errors.WithMessage(err, "logger.NewSLogWithOptions failed")
	}
	return l, nil
}

// Discard 丢弃所有输出的日志器
func Discard() logger.Logger {
	l, _ := logger.NewSLogWithOptions(&logger.SLogOptions{Output: "discard"})
	return l
}
