package observability

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaLoggers returns info and error loggers for kafka-go writers and
// readers that delegate to zerolog with a "component":"kafka" field.
func KafkaLoggers(logger zerolog.Logger) (info kafka.Logger, errLog kafka.Logger) {
	l := logger.With().Str("component", "kafka").Logger()
	info = kafka.LoggerFunc(func(msg string, args ...interface{}) {
		l.Debug().Msg(fmt.Sprintf(msg, args...))
	})
	errLog = kafka.LoggerFunc(func(msg string, args ...interface{}) {
		l.Error().Msg(fmt.Sprintf(msg, args...))
	})
	return info, errLog
}
