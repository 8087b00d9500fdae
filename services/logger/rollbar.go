package logsvc

import (
	"io"
	"os"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trezcool/sciencegpt/core"
	"github.com/trezcool/sciencegpt/core/user"
)

// log file rotation
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 5
	logFileMaxAgeDays = 30
)

var levels = map[string]zerolog.Level{
	"DEBUG":    zerolog.DebugLevel,
	"INFO":     zerolog.InfoLevel,
	"WARNING":  zerolog.WarnLevel,
	"ERROR":    zerolog.ErrorLevel,
	"CRITICAL": zerolog.FatalLevel,
}

// RollbarLogger reports to Rollbar and writes structured logs to the console and the log file.
type RollbarLogger struct {
	zl   zerolog.Logger
	file io.Closer
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	var (
		writers []io.Writer
		file    *lumberjack.Logger
	)
	if conf.Debug {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stderr)
	}
	if conf.LogFile != "" && !conf.IsTesting() {
		file = &lumberjack.Logger{
			Filename:   conf.LogFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, file)
	}

	l := newLogger(zerolog.MultiLevelWriter(writers...), conf.LogLevel)
	l.zl = l.zl.With().Str("app", conf.AppName).Str("env", conf.Env).Logger()
	if file != nil {
		l.file = file
	}
	return l
}

func newLogger(w io.Writer, level string) *RollbarLogger {
	lvl, ok := levels[level]
	if !ok {
		lvl = zerolog.InfoLevel
	}
	return &RollbarLogger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close flushes pending Rollbar items and closes the log file.
func (l *RollbarLogger) Close() error {
	rollbar.Wait()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l *RollbarLogger) print(lvl zerolog.Level, msg string, args []interface{}) {
	evt := l.zl.WithLevel(lvl)
	var errSet bool
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			if !errSet {
				evt = evt.Err(a)
				errSet = true
			} else {
				evt = evt.AnErr("cause", a)
			}
		case map[string]interface{}:
			evt = evt.Fields(a)
		case user.User:
			evt = evt.Str("user_id", a.ID).Str("username", a.Username)
		default:
			evt = evt.Interface("extra", a)
		}
	}
	evt.Msg(msg)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.print(zerolog.DebugLevel, msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print(zerolog.InfoLevel, msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print(zerolog.WarnLevel, msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print(zerolog.ErrorLevel, msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print(zerolog.FatalLevel, msg, args)
	_ = l.Close()
	os.Exit(1)
}
