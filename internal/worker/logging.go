package worker

import (
	"fmt"

	"go.uber.org/zap"
)

// asynqLogger routes asynq's internal logging through zap
type asynqLogger struct {
	logger *zap.SugaredLogger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.Named("asynq").Sugar()}
}

func (a *asynqLogger) Debug(args ...interface{}) {
	a.logger.Debug(fmt.Sprint(args...))
}

func (a *asynqLogger) Info(args ...interface{}) {
	a.logger.Info(fmt.Sprint(args...))
}

func (a *asynqLogger) Warn(args ...interface{}) {
	a.logger.Warn(fmt.Sprint(args...))
}

func (a *asynqLogger) Error(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
}

// Fatal must not return; asynq expects the process to stop.
func (a *asynqLogger) Fatal(args ...interface{}) {
	a.logger.Error(fmt.Sprint(args...))
	panic(fmt.Sprint(args...))
}
