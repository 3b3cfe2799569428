package audit

import (
	"context"

	"github.com/dmitrijs2005/authgate/internal/logging"
)

// LogListener writes every op to the structured logger.
type LogListener struct {
	logger logging.Logger
}

var _ Listener = (*LogListener)(nil)

func NewLogListener(logger logging.Logger) *LogListener {
	return &LogListener{logger: logger.With("module", "audit")}
}

func (l *LogListener) AuthOp(ctx context.Context, op Op) {
	l.logger.Info(ctx, "auth op",
		"action", string(op.Action),
		"user_key", op.UserKey,
		"response", op.Response,
		"ip_address", op.IPAddress,
		"timestamp_millis", op.TimestampMillis,
	)
}
