package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 项目统一日志接口，键值对形式的结构化字段
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
	With(kv ...any) Logger
}

// Options 日志初始化选项
type Options struct {
	Level   string
	Writers []string // console / file
	File    string
}

type zl struct {
	l zerolog.Logger
}

// New 根据选项构建 zerolog 日志器
func New(opts Options) Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(opts.Level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	var ws []io.Writer
	for _, w := range opts.Writers {
		switch strings.ToLower(w) {
		case "console":
			ws = append(ws, zerolog.ConsoleWriter{Out: os.Stderr})
		case "file":
			f := opts.File
			if f == "" {
				f = "tagscope.log"
			}
			ws = append(ws, &lumberjack.Logger{Filename: f, MaxSize: 32, MaxBackups: 3})
		}
	}
	if len(ws) == 0 {
		ws = append(ws, os.Stderr)
	}
	l := zerolog.New(zerolog.MultiLevelWriter(ws...)).Level(lvl).With().Timestamp().Logger()
	return &zl{l: l}
}

func (z *zl) Debug(msg string, kv ...any)          { emit(z.l.Debug(), msg, kv) }
func (z *zl) Info(msg string, kv ...any)           { emit(z.l.Info(), msg, kv) }
func (z *zl) Warn(msg string, kv ...any)           { emit(z.l.Warn(), msg, kv) }
func (z *zl) Err(err error, msg string, kv ...any) { emit(z.l.Error().Err(err), msg, kv) }

func (z *zl) With(kv ...any) Logger {
	c := z.l.With()
	for i := 0; i+1 < len(kv); i += 2 {
		c = c.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	return &zl{l: c.Logger()}
}

func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	ev.Msg(msg)
}

type nop struct{}

// NewNop 返回丢弃全部输出的日志器，测试用
func NewNop() Logger { return nop{} }

func (nop) Debug(string, ...any)      {}
func (nop) Info(string, ...any)       {}
func (nop) Warn(string, ...any)       {}
func (nop) Err(error, string, ...any) {}
func (nop) With(...any) Logger        { return nop{} }
