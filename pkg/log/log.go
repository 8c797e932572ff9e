package log

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = zap.DebugLevel
	InfoLevel  = zap.InfoLevel
	WarnLevel  = zap.WarnLevel
	ErrorLevel = zap.ErrorLevel
	FatalLevel = zap.FatalLevel
)

var (
	mu       sync.Mutex
	log      *zap.SugaredLogger
	logLevel *zap.AtomicLevel
)

type stackTracer interface {
	StackTrace() errors.StackTrace
}

type causer interface {
	Cause() error
}

func logger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if log != nil {
		return log
	}
	var err error
	log, logLevel, err = NewLogger("info", []string{"stdout"})
	if err != nil {
		panic(err)
	}
	return log
}

// Init replaces the default logger. Commands call it once after the
// configuration has been read.
func Init(levelStr string, outputs []string) error {
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}
	l, lvl, err := NewLogger(levelStr, outputs)
	if err != nil {
		return err
	}

	mu.Lock()
	log, logLevel = l, lvl
	mu.Unlock()
	return nil
}

// NewLogger creates a console logger with the given level. outputs holds
// "stdout", "stderr" or file paths.
func NewLogger(levelStr string, outputs []string) (*zap.SugaredLogger, *zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		return nil, nil, fmt.Errorf("error on setting log level: %s", err)
	}

	cfg := zap.Config{
		Level:            level,
		Encoding:         "console",
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "message",

			LevelKey:    "level",
			EncodeLevel: zapcore.CapitalColorLevelEncoder,

			TimeKey: "timestamp",
			EncodeTime: func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
				encoder.AppendString(ts.Local().Format(time.RFC3339))
			},
			EncodeDuration: zapcore.StringDurationEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			LineEnding: zapcore.DefaultLineEnding,
		},
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, nil, err
	}
	return l.Sugar(), &level, nil
}

// With returns a child logger carrying the given key/value pairs. Used to
// tag every line of one transaction build with its action name.
func With(kv ...interface{}) *zap.SugaredLogger {
	return logger().Desugar().WithOptions(zap.AddCallerSkip(-1)).Sugar().With(kv...)
}

func Debug(args ...interface{}) {
	logger().Debug(args...)
}

func Info(args ...interface{}) {
	logger().Info(args...)
}

func Warn(args ...interface{}) {
	logger().Warn(appendStackTraceMaybeArgs(args)...)
}

func Error(args ...interface{}) {
	logger().Error(appendStackTraceMaybeArgs(args)...)
}

func Fatal(args ...interface{}) {
	logger().Fatal(appendStackTraceMaybeArgs(args)...)
}

func Infof(template string, args ...interface{}) {
	logger().Infof(template, args...)
}

func Errorf(template string, args ...interface{}) {
	logger().Errorf(template, args...)
}

// Debugw calls log.Debugw
func Debugw(msg string, kv ...interface{}) {
	logger().Debugw(msg, kv...)
}

// Infow calls log.Infow
func Infow(msg string, kv ...interface{}) {
	logger().Infow(msg, kv...)
}

// Warnw calls log.Warnw and appends the stack trace of an error value, if any
func Warnw(msg string, kv ...interface{}) {
	logger().Warnw(appendStackTraceMaybeKV(msg, kv), kv...)
}

// Errorw calls log.Errorw and appends the stack trace of an error value, if any
func Errorw(msg string, kv ...interface{}) {
	logger().Errorw(appendStackTraceMaybeKV(msg, kv), kv...)
}

// SetLevelStr sets level of default logger from level name
// Valid values: debug, info, warn, error, dpanic, panic, fatal
func SetLevelStr(levelStr string) {
	l := logger()
	if err := logLevel.UnmarshalText([]byte(levelStr)); err != nil {
		l.Error("can't change log level: invalid string value provided")
	}
}

func sprintStackTrace(st []errors.Frame) string {
	builder := strings.Builder{}
	// the deepest two frames belong to the go runtime
	if len(st) > 1 {
		st = st[:len(st)-2]
	}
	for _, f := range st {
		builder.WriteString(fmt.Sprintf("\n%+v", f))
	}
	builder.WriteString("\n")
	return builder.String()
}

func appendStackTraceMaybeArgs(args []interface{}) []interface{} {
	for i := range args {
		err, ok := args[i].(error)
		if !ok {
			continue
		}
		if st, ok := causeWithStackTrace(err).(stackTracer); ok {
			return append(args, sprintStackTrace(st.StackTrace()))
		}
	}
	return args
}

func appendStackTraceMaybeKV(msg string, kv []interface{}) string {
	for i := 1; i < len(kv); i += 2 {
		err, ok := kv[i].(error)
		if !ok {
			continue
		}
		if st, ok := causeWithStackTrace(err).(stackTracer); ok {
			return fmt.Sprintf("%v: %v%v", msg, err, sprintStackTrace(st.StackTrace()))
		}
	}
	return msg
}

// causeWithStackTrace walks the cause chain and returns the deepest error that
// still carries a stack trace.
func causeWithStackTrace(err error) error {
	for err != nil {
		c, ok := err.(causer)
		if !ok {
			break
		}
		cause := c.Cause()
		if _, ok := cause.(stackTracer); !ok {
			break
		}
		err = cause
	}
	return err
}
