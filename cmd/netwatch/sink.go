package main

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/netwatch/internal/domain"
)

// logSink writes each new-connection event as a structured log line. It is
// the default sink for foreground runs; the encrypted journal can be layered
// on with --journal.
type logSink struct {
	logger *zap.Logger
}

func newLogSink(logger *zap.Logger) *logSink {
	return &logSink{logger: logger}
}

func (s *logSink) Publish(event domain.ConnEvent) error {
	s.logger.Info("new outbound connection",
		zap.Int32("pid", event.PID),
		zap.String("process", event.Process),
		zap.String("local", event.Local.String()),
		zap.String("remote", event.Remote.String()))
	return nil
}

// PublishReachability is a no-op: the monitor already logs transitions.
func (s *logSink) PublishReachability(reachable bool) error {
	return nil
}

var _ domain.EventSink = (*logSink)(nil)
