package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

var logger *dappLogger

// nolint:gochecknoinits
func init() {
	logger = newLogger(os.Stderr)
}

type dappLogger struct {
	*logrus.Logger
}

func newLogger(out io.Writer) *dappLogger {
	return &dappLogger{&logrus.Logger{
		Out:   out,
		Level: logrus.InfoLevel,
		Hooks: make(logrus.LevelHooks),
		Formatter: &easy.Formatter{
			TimestampFormat: "01-02 15:04:05.000",
			LogFormat:       "[%lvl%]   [%time%]   -   %msg%\r\n",
		},
		ExitFunc: os.Exit,
	}}
}

// SetOutput redirects every log line, tests use it to capture output.
func SetOutput(out io.Writer) {
	logger.SetOutput(out)
}

// SetLevel
// DebugLevel = 0
// InfoLevel = 1
// WarnLevel = 2
// ErrorLevel = 3
func SetLevel(lvl int) {
	switch lvl {
	case 0:
		logger.Level = logrus.DebugLevel
	case 2:
		logger.Level = logrus.WarnLevel
	case 3:
		logger.Level = logrus.ErrorLevel
	default:
		logger.Level = logrus.InfoLevel
	}
	Infof("log level set to %s.", strings.ToUpper(logger.Level.String()))
}

// Level returns the numeric level understood by SetLevel.
func Level() int {
	switch logger.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return 0
	case logrus.WarnLevel:
		return 2
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return 3
	default:
		return 1
	}
}

func Debug(content interface{}) {
	logger.Debug(content)
}

func Debugf(format string, args ...interface{}) {
	logger.Debug(fmt.Sprintf(format, args...))
}

func Info(content interface{}) {
	logger.Info(content)
}

func Infof(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...))
}

func Warn(content interface{}) {
	logger.Warn(content)
}

func Warnf(format string, args ...interface{}) {
	logger.Warn(fmt.Sprintf(format, args...))
}

func Error(content interface{}) {
	logger.Error(content)
}

func Errorf(format string, args ...interface{}) {
	logger.Error(fmt.Sprintf(format, args...))
}

func Fatal(content interface{}) {
	logger.Fatal(content)
}

func Fatalf(format string, args ...interface{}) {
	logger.Fatal(fmt.Sprintf(format, args...))
}
