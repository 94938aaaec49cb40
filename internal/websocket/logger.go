package websocket

import (
	"shopdesk-realtime/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// connLogger tags socket events with the identity and connection id.
type connLogger struct {
	logger *zap.Logger
}

func newConnLogger(base *logger.Logger) *connLogger {
	if base == nil {
		base = logger.NewNop()
	}
	return &connLogger{logger: base.Logger.With(zap.String("component", "websocket"))}
}

func (l *connLogger) Info(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, fields...)
	l.logger.Info("websocket_event", allFields...)
}

func (l *connLogger) Warn(event string, userID uuid.UUID, clientID string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
		zap.Error(err),
	}, fields...)
	l.logger.Warn("websocket_warning", allFields...)
}
