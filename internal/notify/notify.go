// Package notify defines the confirmation-notice sender the transition
// service invokes after converting a pending application. Delivery is
// fire-and-forget: a failed notice never rolls back a transition.
package notify

import (
	"context"
	"log/slog"

	id "cairn/pkg/domain"
)

// Confirmation describes a converted application worth notifying about.
type Confirmation struct {
	PersonID id.PersonID
	GroupID  id.GroupID
	RoleKind id.RoleKind
}

// Sender dispatches confirmation notices. Implementations live outside
// the core (mail gateway, queue producer); LogSender is the in-tree
// default.
type Sender interface {
	SendConfirmation(ctx context.Context, c Confirmation) error
}

// LogSender records confirmations on the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendConfirmation(ctx context.Context, c Confirmation) error {
	s.logger.InfoContext(ctx, "membership confirmation notice",
		"person_id", c.PersonID.String(),
		"group_id", c.GroupID.String(),
		"role_kind", string(c.RoleKind),
	)
	return nil
}
