package notify

import "go.uber.org/zap"

// LogNotifier writes messages to a zap logger at warn level.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger, fields ...zap.Field) *LogNotifier {
	return &LogNotifier{log: log.With(fields...)}
}

func (l *LogNotifier) Notify(message string) {
	l.log.Warn("cart notification", zap.String("message", message))
}
