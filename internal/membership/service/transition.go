package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"cairn/internal/household"
	"cairn/internal/membership/models"
	"cairn/internal/notify"
	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
	"cairn/pkg/platform/sentinel"
	"cairn/pkg/requestcontext"
)

// TransitionBranch names the branch a transition resolved to.
type TransitionBranch string

const (
	// BranchNone means no branch precondition held; the call was a no-op.
	BranchNone TransitionBranch = "none"
	// BranchExtend pushed an active membership's end date forward.
	BranchExtend TransitionBranch = "extend"
	// BranchRenewAfterLapse created a new cycle for a lapsed membership
	// paid late.
	BranchRenewAfterLapse TransitionBranch = "renew_after_lapse"
	// BranchConvertPendingHome converted a paid home-section application
	// into an active membership.
	BranchConvertPendingHome TransitionBranch = "convert_pending_home"
	// BranchConvertPendingAdditional converted a paid additional-section
	// application.
	BranchConvertPendingAdditional TransitionBranch = "convert_pending_additional"
)

// TransitionResult reports what one Apply call did.
type TransitionResult struct {
	Branch          TransitionBranch
	AffectedPersons []id.PersonID
	CreatedRoles    []id.RoleID
	ExtendedRoles   []id.RoleID
	DeletedRoles    []id.RoleID
}

// Apply decides and applies exactly one of four transitions for
// (person, target group, membership year), inside one atomic unit of
// work. Household fan-out is part of the same unit: either every role
// mutation commits or none does.
//
// Branch preconditions are checked in order: extend an active
// membership, renew a lapsed one, convert a pending home application,
// convert a pending additional-section application. When none holds the
// call is a no-op and the result reports BranchNone.
//
// Errors: CodeTransitionConflict when the household lock is held or the
// store detects a conflicting concurrent transition (retry the whole
// call); CodeValidation/CodeInvariantViolation with person context when
// a role mutation fails; CodeInternal otherwise.
func (s *TransitionService) Apply(ctx context.Context, personID id.PersonID, targetGroup id.GroupID, year int) (*TransitionResult, error) {
	start := time.Now()
	defer s.observeTransition(start)

	person, hh, err := s.resolveHousehold(ctx, personID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, lockKey(person))
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			s.incrementConflict()
			return nil, dErrors.New(dErrors.CodeTransitionConflict, "another transition is running for this household")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire household lock")
	}
	defer release()

	var (
		result        *TransitionResult
		confirmations []notify.Confirmation
	)
	err = s.roles.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		result, confirmations, txErr = s.applyLocked(txCtx, person, hh, targetGroup, year)
		return txErr
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.incrementConflict()
			return nil, dErrors.New(dErrors.CodeTransitionConflict, "conflicting concurrent transition detected")
		}
		return nil, err
	}

	if result.Branch != BranchNone {
		s.incrementTransition(result.Branch)
		s.logAudit(ctx, "membership transition applied",
			"person_id", personID.String(),
			"group_id", targetGroup.String(),
			"year", year,
			"branch", string(result.Branch),
			"affected_persons", len(result.AffectedPersons),
		)
	}

	// Notices are dispatched after commit and never awaited; a failed
	// notice must not affect the transition.
	s.dispatchConfirmations(ctx, confirmations)

	return result, nil
}

// applyLocked runs with the household lock held and a consistent store
// snapshot. The affected persons are computed up front; every branch
// applies the same mutation to each of them.
func (s *TransitionService) applyLocked(ctx context.Context, person *household.Person, hh *household.Household, targetGroup id.GroupID, year int) (*TransitionResult, []notify.Confirmation, error) {
	today := requestcontext.Now(ctx)
	roles, err := s.roles.FindByPerson(ctx, person.ID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles")
	}
	state := models.DeriveState(person.ID, roles, today)

	dependents := s.fanOutDependents(person, hh)

	switch {
	case state.Active() && state.Home.GroupID == targetGroup:
		result, err := s.extend(ctx, person, dependents, roles, state, year)
		return result, nil, err

	case !state.Active() && expiredInGroup(person.ID, roles, targetGroup, year) != nil:
		result, err := s.renewAfterLapse(ctx, person, dependents, roles, targetGroup, year, today)
		return result, nil, err

	case state.PendingHome != nil && state.PendingHome.GroupID == targetGroup:
		return s.convertPendingHome(ctx, person, dependents, state.PendingHome, year, today)

	default:
		if pending := pendingAdditionalFor(state, targetGroup); pending != nil {
			return s.convertPendingAdditional(ctx, person, dependents, state, pending, year, today)
		}
		return &TransitionResult{Branch: BranchNone, AffectedPersons: []id.PersonID{person.ID}}, nil, nil
	}
}

// extend pushes every relevant role to at least Dec 31 of the paid
// year: the home role, active additional-section roles, any other
// prolongable role, and the family-bundled roles of every dependent.
func (s *TransitionService) extend(ctx context.Context, person *household.Person, dependents []*household.Person, roles []*models.Role, state *models.MembershipState, year int) (*TransitionResult, error) {
	until := models.YearEnd(year)
	result := &TransitionResult{Branch: BranchExtend, AffectedPersons: []id.PersonID{person.ID}}

	for _, r := range relevantRoles(roles, state) {
		if err := s.prolongRole(ctx, r, until, person.ID); err != nil {
			return nil, err
		}
		result.ExtendedRoles = append(result.ExtendedRoles, r.ID)
	}

	if person.MainPerson && state.Home.FeeCategory == id.FeeCategoryFamilyMain {
		for _, dep := range dependents {
			depRoles, err := s.roles.FindByPerson(ctx, dep.ID)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household member roles")
			}
			for _, r := range depRoles {
				if !r.Kind.Prolongable() || r.Deleted() || !r.FeeCategory.Family() {
					continue
				}
				if err := s.prolongRole(ctx, r, until, dep.ID); err != nil {
					return nil, err
				}
				result.ExtendedRoles = append(result.ExtendedRoles, r.ID)
			}
			result.AffectedPersons = append(result.AffectedPersons, dep.ID)
		}
	}
	return result, nil
}

// renewAfterLapse creates a new cycle: a fresh role of the same kind
// and group as the expired one, dated from today through Dec 31 of the
// paid year, for the person and each family-bundled household member.
func (s *TransitionService) renewAfterLapse(ctx context.Context, person *household.Person, dependents []*household.Person, roles []*models.Role, targetGroup id.GroupID, year int, today time.Time) (*TransitionResult, error) {
	expired := expiredInGroup(person.ID, roles, targetGroup, year)
	result := &TransitionResult{Branch: BranchRenewAfterLapse, AffectedPersons: []id.PersonID{person.ID}}

	created, err := s.createRenewedRole(ctx, expired, today, year)
	if err != nil {
		return nil, err
	}
	result.CreatedRoles = append(result.CreatedRoles, created.ID)

	if person.MainPerson && expired.FeeCategory == id.FeeCategoryFamilyMain {
		for _, dep := range dependents {
			depRoles, err := s.roles.FindByPerson(ctx, dep.ID)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household member roles")
			}
			depExpired := expiredInGroup(dep.ID, depRoles, targetGroup, year)
			if depExpired == nil || !depExpired.FeeCategory.Family() {
				continue
			}
			depCreated, err := s.createRenewedRole(ctx, depExpired, today, year)
			if err != nil {
				return nil, err
			}
			result.CreatedRoles = append(result.CreatedRoles, depCreated.ID)
			result.AffectedPersons = append(result.AffectedPersons, dep.ID)
		}
	}
	return result, nil
}

// convertPendingHome destroys the pending application and creates the
// active home-section role in its place, carrying over the fee
// category. The person's confirmation timestamp is stamped if unset.
func (s *TransitionService) convertPendingHome(ctx context.Context, person *household.Person, dependents []*household.Person, pending *models.Role, year int, today time.Time) (*TransitionResult, []notify.Confirmation, error) {
	result := &TransitionResult{Branch: BranchConvertPendingHome, AffectedPersons: []id.PersonID{person.ID}}
	var confirmations []notify.Confirmation

	created, err := s.replacePending(ctx, pending, id.RoleKindHomeMember, today, models.YearEnd(year))
	if err != nil {
		return nil, nil, err
	}
	result.DeletedRoles = append(result.DeletedRoles, pending.ID)
	result.CreatedRoles = append(result.CreatedRoles, created.ID)

	if err := s.households.MarkConfirmed(ctx, person.ID, today); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to stamp confirmation")
	}
	confirmations = append(confirmations, notify.Confirmation{
		PersonID: person.ID, GroupID: created.GroupID, RoleKind: created.Kind,
	})

	if person.MainPerson {
		for _, dep := range dependents {
			depRoles, err := s.roles.FindByPerson(ctx, dep.ID)
			if err != nil {
				return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household member roles")
			}
			depState := models.DeriveState(dep.ID, depRoles, today)
			if depState.PendingHome == nil {
				continue
			}
			if !household.BracketAt(dep.BirthDate, today).AcquiresRole() {
				continue
			}
			depCreated, err := s.replacePending(ctx, depState.PendingHome, id.RoleKindHomeMember, today, models.YearEnd(year))
			if err != nil {
				return nil, nil, err
			}
			if err := s.households.MarkConfirmed(ctx, dep.ID, today); err != nil {
				return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to stamp confirmation")
			}
			result.DeletedRoles = append(result.DeletedRoles, depState.PendingHome.ID)
			result.CreatedRoles = append(result.CreatedRoles, depCreated.ID)
			result.AffectedPersons = append(result.AffectedPersons, dep.ID)
			confirmations = append(confirmations, notify.Confirmation{
				PersonID: dep.ID, GroupID: depCreated.GroupID, RoleKind: depCreated.Kind,
			})
		}
	}
	return result, confirmations, nil
}

// convertPendingAdditional converts an additional-section application.
// The new role's window is clipped to the home role's end and Dec 31 of
// the paid year. When that window has already elapsed the role starts
// at the window end, producing a zero-length role on purpose (the
// late-payment edge case). For a family-main person the conversion
// repeats for every household member's own pending application in the
// same section, each clipped to that member's own home role.
func (s *TransitionService) convertPendingAdditional(ctx context.Context, person *household.Person, dependents []*household.Person, state *models.MembershipState, pending *models.Role, year int, today time.Time) (*TransitionResult, []notify.Confirmation, error) {
	created, err := s.convertAdditionalRole(ctx, state, pending, year, today)
	if err != nil {
		return nil, nil, err
	}
	result := &TransitionResult{
		Branch:          BranchConvertPendingAdditional,
		AffectedPersons: []id.PersonID{person.ID},
		DeletedRoles:    []id.RoleID{pending.ID},
		CreatedRoles:    []id.RoleID{created.ID},
	}
	confirmations := []notify.Confirmation{{
		PersonID: person.ID, GroupID: created.GroupID, RoleKind: created.Kind,
	}}

	if person.MainPerson {
		for _, dep := range dependents {
			depRoles, err := s.roles.FindByPerson(ctx, dep.ID)
			if err != nil {
				return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household member roles")
			}
			depState := models.DeriveState(dep.ID, depRoles, today)
			depPending := pendingAdditionalFor(depState, pending.GroupID)
			if depPending == nil {
				continue
			}
			if !household.BracketAt(dep.BirthDate, today).AcquiresRole() {
				continue
			}
			depCreated, err := s.convertAdditionalRole(ctx, depState, depPending, year, today)
			if err != nil {
				return nil, nil, err
			}
			result.DeletedRoles = append(result.DeletedRoles, depPending.ID)
			result.CreatedRoles = append(result.CreatedRoles, depCreated.ID)
			result.AffectedPersons = append(result.AffectedPersons, dep.ID)
			confirmations = append(confirmations, notify.Confirmation{
				PersonID: dep.ID, GroupID: depCreated.GroupID, RoleKind: depCreated.Kind,
			})
		}
	}
	return result, confirmations, nil
}

// convertAdditionalRole replaces one pending additional-section role,
// clipping the window to the owner's home role end.
func (s *TransitionService) convertAdditionalRole(ctx context.Context, state *models.MembershipState, pending *models.Role, year int, today time.Time) (*models.Role, error) {
	windowEnd := models.YearEnd(year)
	if state.Home != nil {
		if homeEnd, ok := state.Home.EndOn(); ok && homeEnd.Before(windowEnd) {
			windowEnd = homeEnd
		}
	}
	start := models.DateOf(today)
	if windowEnd.Before(start) {
		start = windowEnd
	}
	return s.replacePending(ctx, pending, id.RoleKindAdditionalMember, start, windowEnd)
}

// Terminate formally requests the end of the person's home-section
// membership: the role stays valid until the cutoff and is marked with
// the reason.
func (s *TransitionService) Terminate(ctx context.Context, personID id.PersonID, reason string, endOn time.Time) (*models.Role, error) {
	person, _, err := s.resolveHousehold(ctx, personID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, lockKey(person))
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			s.incrementConflict()
			return nil, dErrors.New(dErrors.CodeTransitionConflict, "another transition is running for this household")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire household lock")
	}
	defer release()

	var terminated *models.Role
	err = s.roles.RunInTx(ctx, func(txCtx context.Context) error {
		today := requestcontext.Now(txCtx)
		roles, err := s.roles.FindByPerson(txCtx, personID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roles")
		}
		state := models.DeriveState(personID, roles, today)
		if !state.Active() {
			return dErrors.New(dErrors.CodeValidation, "no active home-section membership to terminate")
		}
		if err := state.Home.Terminate(reason, endOn); err != nil {
			return err
		}
		if err := s.roles.Update(txCtx, state.Home); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist termination")
		}
		terminated = state.Home
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "membership terminated",
		"person_id", personID.String(),
		"role_id", terminated.ID.String(),
		"reason", reason,
	)
	return terminated, nil
}

// lockKey scopes the transition lock to the household so concurrent
// payments for any two members of the same household serialize. Persons
// without a household key lock on their own ID.
func lockKey(person *household.Person) string {
	if person.HouseholdKey != "" {
		return "household:" + person.HouseholdKey
	}
	return "person:" + person.ID.String()
}

func (s *TransitionService) resolveHousehold(ctx context.Context, personID id.PersonID) (*household.Person, *household.Household, error) {
	person, err := s.households.FindPerson(ctx, personID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "person not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load person")
	}
	hh, err := s.households.HouseholdOf(ctx, personID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load household")
	}
	return person, hh, nil
}

func (s *TransitionService) prolongRole(ctx context.Context, r *models.Role, until time.Time, personID id.PersonID) error {
	if err := r.Prolong(until); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "cannot prolong role of person "+personID.String())
	}
	if err := s.roles.Update(ctx, r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist prolongation for person "+personID.String())
	}
	return nil
}

func (s *TransitionService) createRenewedRole(ctx context.Context, expired *models.Role, today time.Time, year int) (*models.Role, error) {
	created, err := models.NewRole(id.RoleID(uuid.New()), expired.PersonID, expired.GroupID, expired.Kind, expired.FeeCategory, models.DateOf(today))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "cannot renew role of person "+expired.PersonID.String())
	}
	until := models.YearEnd(year)
	created.PlannedEndOn = &until
	if err := s.roles.Create(ctx, created); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create renewed role for person "+expired.PersonID.String())
	}
	return created, nil
}

// replacePending destroys a pending-applicant role and creates the
// active role in its place, inside the surrounding transaction.
func (s *TransitionService) replacePending(ctx context.Context, pending *models.Role, kind id.RoleKind, start, end time.Time) (*models.Role, error) {
	if err := s.roles.Delete(ctx, pending.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove pending role of person "+pending.PersonID.String())
	}
	created, err := models.NewRole(id.RoleID(uuid.New()), pending.PersonID, pending.GroupID, kind, pending.FeeCategory, start)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "cannot convert pending role of person "+pending.PersonID.String())
	}
	e := end
	created.PlannedEndOn = &e
	if err := s.roles.Create(ctx, created); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create converted role for person "+pending.PersonID.String())
	}
	return created, nil
}

func (s *TransitionService) fanOutDependents(person *household.Person, hh *household.Household) []*household.Person {
	if hh == nil || !person.MainPerson {
		return nil
	}
	return hh.Dependents()
}

func (s *TransitionService) dispatchConfirmations(ctx context.Context, confirmations []notify.Confirmation) {
	if s.notifier == nil || len(confirmations) == 0 {
		return
	}
	// Detached from request cancellation: the transition is already
	// committed when notices go out.
	notifyCtx := context.WithoutCancel(ctx)
	go func() {
		for _, c := range confirmations {
			if err := s.notifier.SendConfirmation(notifyCtx, c); err != nil {
				s.logger.WarnContext(notifyCtx, "confirmation notice failed",
					"person_id", c.PersonID.String(),
					"error", err,
				)
			}
		}
	}()
}

// relevantRoles selects the person's own roles a renewal payment
// prolongs: the home role, every active additional-section role, and
// any other prolongable role.
func relevantRoles(roles []*models.Role, state *models.MembershipState) []*models.Role {
	seen := map[id.RoleID]bool{}
	var out []*models.Role
	add := func(r *models.Role) {
		if r == nil || seen[r.ID] {
			return
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	add(state.Home)
	for _, r := range state.Additional {
		add(r)
	}
	for _, r := range roles {
		if r.Kind.Prolongable() && !r.Deleted() && r.ActiveOn(state.ReferenceDate) {
			add(r)
		}
	}
	return out
}

func expiredInGroup(personID id.PersonID, roles []*models.Role, group id.GroupID, year int) *models.Role {
	expired := models.ExpiredHomeRole(personID, roles, year)
	if expired == nil || expired.GroupID != group {
		return nil
	}
	return expired
}

func pendingAdditionalFor(state *models.MembershipState, group id.GroupID) *models.Role {
	for _, r := range state.PendingAdditional {
		if r.GroupID == group {
			return r
		}
	}
	return nil
}
