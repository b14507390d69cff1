// Package logrusadapter bridges core.Logger to a logrus logger so the
// scheduling core shares the application's log output and formatting.
package logrusadapter

import (
	"github.com/sirupsen/logrus"

	"github.com/lumaview/taskcore/core"
)

// Adapter forwards core.Logger calls to a logrus.FieldLogger.
type Adapter struct {
	logger logrus.FieldLogger
}

var _ core.Logger = (*Adapter)(nil)

// New wraps logger. A nil logger falls back to logrus.StandardLogger.
func New(logger logrus.FieldLogger) *Adapter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Debug(msg string, fields ...core.Field) {
	a.entry(fields).Debug(msg)
}

func (a *Adapter) Info(msg string, fields ...core.Field) {
	a.entry(fields).Info(msg)
}

func (a *Adapter) Warn(msg string, fields ...core.Field) {
	a.entry(fields).Warn(msg)
}

func (a *Adapter) Error(msg string, fields ...core.Field) {
	a.entry(fields).Error(msg)
}

func (a *Adapter) entry(fields []core.Field) logrus.FieldLogger {
	if len(fields) == 0 {
		return a.logger
	}
	logrusFields := make(logrus.Fields, len(fields))
	for _, f := range fields {
		logrusFields[f.Key] = f.Value
	}
	return a.logger.WithFields(logrusFields)
}
