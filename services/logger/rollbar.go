package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/youpass/youpass/core"
	"github.com/youpass/youpass/core/user"
)

// RollbarLogger writes every entry to zap and reports it to Rollbar when enabled.
type RollbarLogger struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(conf *core.Config) (*RollbarLogger, error) {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	zapConf := zap.NewProductionConfig()
	if conf.Debug {
		zapConf = zap.NewDevelopmentConfig()
	}
	if conf.TestMode {
		zapConf.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}
	zl, err := zapConf.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	l := &RollbarLogger{sugar: zl.Sugar().With("app", conf.AppName)}
	l.Enable(conf.RollbarToken != "" && !conf.Debug && !conf.TestMode)
	return l, nil
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Sync flushes both sinks.
func (l *RollbarLogger) Sync() {
	rollbar.Wait()
	_ = l.sugar.Sync()
}

// prepare splits args into Rollbar arguments and zap key/value pairs.
// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []interface{}) {
	var usrSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	var kvs []interface{}
	for i, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if !usrSet { // only set one User
				rollbar.SetPerson(v.ID, v.Name, v.Email)
				kvs = append(kvs, "user", v.ID)
				usrSet = true
			}
		case *user.User:
			if v != nil && !usrSet {
				rollbar.SetPerson(v.ID, v.Name, v.Email)
				kvs = append(kvs, "user", v.ID)
				usrSet = true
			}
		case error:
			rbArgs = append(rbArgs, v)
			kvs = append(kvs, "error", fmt.Sprintf("%+v", v))
		case map[string]interface{}:
			rbArgs = append(rbArgs, v)
			for k, val := range v {
				kvs = append(kvs, k, val)
			}
		default:
			rbArgs = append(rbArgs, v)
			kvs = append(kvs, fmt.Sprintf("arg%d", i), v)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs, kvs
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.sugar.Debugw(msg, kvs...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.sugar.Infow(msg, kvs...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.sugar.Warnw(msg, kvs...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.sugar.Errorw(msg, kvs...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, kvs := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.sugar.Fatalw(msg, kvs...)
}
