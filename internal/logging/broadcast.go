package logging

import "log/slog"

// BroadcastLogger records every fan-out through a dedicated component
// logger, one line per broadcast regardless of subscriber count.
type BroadcastLogger struct {
	logger *slog.Logger
}

func NewBroadcastLogger(logger *slog.Logger) *BroadcastLogger {
	return &BroadcastLogger{logger: logger}
}

func (b *BroadcastLogger) Log(shop string, subscribers, delivered, payloadSize int) {
	b.logger.Info("broadcast",
		"shop", shop,
		"subscribers", subscribers,
		"delivered", delivered,
		"payload_size", payloadSize,
	)
}
