// Package service orchestrates membership state derivation and the
// atomic membership transitions triggered by payments and terminations.
package service

import (
	"context"
	"log/slog"
	"time"

	"cairn/internal/household"
	"cairn/internal/membership/lock"
	membershipmetrics "cairn/internal/membership/metrics"
	"cairn/internal/membership/models"
	"cairn/internal/notify"
	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
	"cairn/pkg/requestcontext"
)

// RoleStore is the persistence port for roles. Reads inside RunInTx see
// a consistent snapshot; writes commit or roll back as one unit.
type RoleStore interface {
	FindByPerson(ctx context.Context, personID id.PersonID) ([]*models.Role, error)
	FindByID(ctx context.Context, roleID id.RoleID) (*models.Role, error)
	Create(ctx context.Context, r *models.Role) error
	Update(ctx context.Context, r *models.Role) error
	Delete(ctx context.Context, roleID id.RoleID) error
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransitionService decides and applies membership transitions,
// fanning each one out to the whole household.
type TransitionService struct {
	roles      RoleStore
	households household.Directory
	locks      lock.Locker
	notifier   notify.Sender
	logger     *slog.Logger
	metrics    *membershipmetrics.Metrics
}

type Option func(s *TransitionService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *TransitionService) {
		s.logger = logger
	}
}

func WithNotifier(sender notify.Sender) Option {
	return func(s *TransitionService) {
		s.notifier = sender
	}
}

func WithMetrics(m *membershipmetrics.Metrics) Option {
	return func(s *TransitionService) {
		s.metrics = m
	}
}

// New constructs a TransitionService. The locker defaults to an
// in-process keyed mutex; multi-node deployments pass the Redis locker.
func New(roles RoleStore, households household.Directory, locks lock.Locker, opts ...Option) *TransitionService {
	s := &TransitionService{
		roles:      roles,
		households: households,
		locks:      locks,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = lock.NewInMemory()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// State derives the membership state of one person for the
// request-scoped reference date.
func (s *TransitionService) State(ctx context.Context, personID id.PersonID, referenceDate time.Time) (*models.MembershipState, error) {
	roles, err := s.roles.FindByPerson(ctx, personID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles")
	}
	return models.DeriveState(personID, roles, referenceDate), nil
}

func (s *TransitionService) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *TransitionService) incrementTransition(branch TransitionBranch) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(branch))
	}
}

func (s *TransitionService) incrementConflict() {
	if s.metrics != nil {
		s.metrics.IncrementConflict()
	}
}

func (s *TransitionService) observeTransition(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(start)
	}
}
