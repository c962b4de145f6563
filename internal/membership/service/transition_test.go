package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"cairn/internal/household"
	householdstore "cairn/internal/household/store"
	"cairn/internal/membership/lock"
	"cairn/internal/membership/models"
	rolestore "cairn/internal/membership/store/role"
	id "cairn/pkg/domain"
	dErrors "cairn/pkg/domain-errors"
	"cairn/pkg/requestcontext"
)

type TransitionSuite struct {
	suite.Suite
	roles      *rolestore.InMemory
	households *householdstore.InMemory
	locks      *lock.InMemory
	svc        *TransitionService

	today time.Time
	ctx   context.Context
}

func (s *TransitionSuite) SetupTest() {
	s.roles = rolestore.NewInMemory()
	s.households = householdstore.NewInMemory()
	s.roles.JoinTx(s.households)
	s.locks = lock.NewInMemory()
	s.svc = New(s.roles, s.households, s.locks)

	s.today = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.today)
}

func TestTransitionSuite(t *testing.T) {
	suite.Run(t, new(TransitionSuite))
}

func (s *TransitionSuite) seedPerson(householdKey string, main bool, birthDate time.Time) *household.Person {
	p := &household.Person{
		ID:           id.PersonID(uuid.New()),
		HouseholdKey: householdKey,
		MainPerson:   main,
		BirthDate:    birthDate,
	}
	s.households.Put(p)
	return p
}

func (s *TransitionSuite) seedAdult(householdKey string, main bool) *household.Person {
	return s.seedPerson(householdKey, main, time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC))
}

func (s *TransitionSuite) seedRole(personID id.PersonID, groupID id.GroupID, kind id.RoleKind, category id.FeeCategory, createdAt time.Time, endOn *time.Time) *models.Role {
	r, err := models.NewRole(id.RoleID(uuid.New()), personID, groupID, kind, category, createdAt)
	s.Require().NoError(err)
	r.PlannedEndOn = endOn
	s.Require().NoError(s.roles.Create(s.ctx, r))
	return r
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func (s *TransitionSuite) TestExtend() {
	group := id.GroupID(uuid.New())

	s.Run("extends an active home membership to the paid year's end", func() {
		person := s.seedAdult("", false)
		role := s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))

		result, err := s.svc.Apply(s.ctx, person.ID, group, 2026)
		s.Require().NoError(err)
		s.Equal(BranchExtend, result.Branch)
		s.Equal([]id.RoleID{role.ID}, result.ExtendedRoles)

		stored, err := s.roles.FindByID(s.ctx, role.ID)
		s.Require().NoError(err)
		s.Require().NotNil(stored.PlannedEndOn)
		s.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *stored.PlannedEndOn)
	})

	s.Run("a second invocation for the same year changes nothing", func() {
		person := s.seedAdult("", false)
		role := s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))

		first, err := s.svc.Apply(s.ctx, person.ID, group, 2026)
		s.Require().NoError(err)
		second, err := s.svc.Apply(s.ctx, person.ID, group, 2026)
		s.Require().NoError(err)

		s.Equal(first.Branch, second.Branch)
		stored, err := s.roles.FindByID(s.ctx, role.ID)
		s.Require().NoError(err)
		s.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *stored.PlannedEndOn)

		all, err := s.roles.FindByPerson(s.ctx, person.ID)
		s.Require().NoError(err)
		s.Len(all, 1, "no extra role may be created by a repeated payment")
	})

	s.Run("never shortens an end date already past the paid year", func() {
		person := s.seedAdult("", false)
		role := s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2026, 12, 31))

		_, err := s.svc.Apply(s.ctx, person.ID, group, 2025)
		s.Require().NoError(err)

		stored, err := s.roles.FindByID(s.ctx, role.ID)
		s.Require().NoError(err)
		s.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *stored.PlannedEndOn)
	})

	s.Run("extends active additional-section roles alongside the home role", func() {
		person := s.seedAdult("", false)
		otherGroup := id.GroupID(uuid.New())
		home := s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))
		additional := s.seedRole(person.ID, otherGroup, id.RoleKindAdditionalMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))

		result, err := s.svc.Apply(s.ctx, person.ID, group, 2026)
		s.Require().NoError(err)
		s.ElementsMatch([]id.RoleID{home.ID, additional.ID}, result.ExtendedRoles)

		stored, err := s.roles.FindByID(s.ctx, additional.ID)
		s.Require().NoError(err)
		s.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *stored.PlannedEndOn)
	})

	s.Run("family payment carries dependent roles along", func() {
		main := s.seedAdult("hh-extend", true)
		dependent := s.seedPerson("hh-extend", false, time.Date(2012, 5, 1, 0, 0, 0, 0, time.UTC))

		mainRole := s.seedRole(main.ID, group, id.RoleKindHomeMember, id.FeeCategoryFamilyMain,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))
		depRole := s.seedRole(dependent.ID, group, id.RoleKindHomeMember, id.FeeCategoryFamilyDependent,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))

		result, err := s.svc.Apply(s.ctx, main.ID, group, 2026)
		s.Require().NoError(err)
		s.ElementsMatch([]id.PersonID{main.ID, dependent.ID}, result.AffectedPersons)
		s.ElementsMatch([]id.RoleID{mainRole.ID, depRole.ID}, result.ExtendedRoles)

		stored, err := s.roles.FindByID(s.ctx, depRole.ID)
		s.Require().NoError(err)
		s.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), *stored.PlannedEndOn)
	})
}

func (s *TransitionSuite) TestRenewAfterLapse() {
	group := id.GroupID(uuid.New())

	s.Run("creates a fresh cycle for a membership that lapsed this year", func() {
		person := s.seedAdult("", false)
		lapsed := s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 3, 31))

		result, err := s.svc.Apply(s.ctx, person.ID, group, 2025)
		s.Require().NoError(err)
		s.Equal(BranchRenewAfterLapse, result.Branch)
		s.Require().Len(result.CreatedRoles, 1)
		s.Empty(result.DeletedRoles, "the lapsed role stays for history")

		created, err := s.roles.FindByID(s.ctx, result.CreatedRoles[0])
		s.Require().NoError(err)
		s.Equal(lapsed.Kind, created.Kind)
		s.Equal(lapsed.GroupID, created.GroupID)
		s.Equal(lapsed.FeeCategory, created.FeeCategory)
		s.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), created.StartOn())
		s.Require().NotNil(created.PlannedEndOn)
		s.Equal(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), *created.PlannedEndOn)

		state, err := s.svc.State(s.ctx, person.ID, s.today)
		s.Require().NoError(err)
		s.True(state.Active())
	})

	s.Run("fans out to household members whose family role lapsed too", func() {
		main := s.seedAdult("hh-renew", true)
		dependent := s.seedPerson("hh-renew", false, time.Date(2010, 9, 2, 0, 0, 0, 0, time.UTC))

		s.seedRole(main.ID, group, id.RoleKindHomeMember, id.FeeCategoryFamilyMain,
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 3, 31))
		s.seedRole(dependent.ID, group, id.RoleKindHomeMember, id.FeeCategoryFamilyDependent,
			time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 3, 31))

		result, err := s.svc.Apply(s.ctx, main.ID, group, 2025)
		s.Require().NoError(err)
		s.Equal(BranchRenewAfterLapse, result.Branch)
		s.Len(result.CreatedRoles, 2)
		s.ElementsMatch([]id.PersonID{main.ID, dependent.ID}, result.AffectedPersons)
	})

	s.Run("ignores roles that expired before the paid year started", func() {
		person := s.seedAdult("", false)
		s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2023, 12, 31))

		result, err := s.svc.Apply(s.ctx, person.ID, group, 2025)
		s.Require().NoError(err)
		s.Equal(BranchNone, result.Branch)
	})
}

func (s *TransitionSuite) TestConvertPendingHome() {
	group := id.GroupID(uuid.New())

	s.Run("replaces the application with an active membership", func() {
		person := s.seedAdult("", false)
		pending := s.seedRole(person.ID, group, id.RoleKindPendingHomeApplicant, id.FeeCategoryAdult,
			time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

		result, err := s.svc.Apply(s.ctx, person.ID, group, 2025)
		s.Require().NoError(err)
		s.Equal(BranchConvertPendingHome, result.Branch)
		s.Equal([]id.RoleID{pending.ID}, result.DeletedRoles)
		s.Require().Len(result.CreatedRoles, 1)

		state, err := s.svc.State(s.ctx, person.ID, s.today)
		s.Require().NoError(err)
		s.True(state.Active())
		s.Nil(state.PendingHome)

		created, err := s.roles.FindByID(s.ctx, result.CreatedRoles[0])
		s.Require().NoError(err)
		s.Equal(id.RoleKindHomeMember, created.Kind)
		s.Equal(pending.FeeCategory, created.FeeCategory)
		s.Equal(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), *created.PlannedEndOn)

		stored, err := s.households.FindPerson(s.ctx, person.ID)
		s.Require().NoError(err)
		s.NotNil(stored.ConfirmedAt, "conversion stamps the confirmation time")
	})

	s.Run("converts dependents' own applications except pre-school children", func() {
		main := s.seedAdult("hh-convert", true)
		youth := s.seedPerson("hh-convert", false, time.Date(2007, 2, 1, 0, 0, 0, 0, time.UTC))
		child := s.seedPerson("hh-convert", false, time.Date(2021, 11, 20, 0, 0, 0, 0, time.UTC))

		s.seedRole(main.ID, group, id.RoleKindPendingHomeApplicant, id.FeeCategoryFamilyMain,
			time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)
		s.seedRole(youth.ID, group, id.RoleKindPendingHomeApplicant, id.FeeCategoryFamilyDependent,
			time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)
		childPending := s.seedRole(child.ID, group, id.RoleKindPendingHomeApplicant, id.FeeCategoryFamilyDependent,
			time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

		result, err := s.svc.Apply(s.ctx, main.ID, group, 2025)
		s.Require().NoError(err)
		s.Equal(BranchConvertPendingHome, result.Branch)

		// Main person plus the youth: the pre-school child is covered by
		// the family membership without a role of their own.
		s.Len(result.CreatedRoles, 2)
		s.ElementsMatch([]id.PersonID{main.ID, youth.ID}, result.AffectedPersons)

		untouched, err := s.roles.FindByID(s.ctx, childPending.ID)
		s.Require().NoError(err)
		s.Equal(id.RoleKindPendingHomeApplicant, untouched.Kind)
	})
}

func (s *TransitionSuite) TestConvertPendingAdditional() {
	homeGroup := id.GroupID(uuid.New())
	sectionGroup := id.GroupID(uuid.New())

	s.Run("clips the new role's window to the home role's end", func() {
		person := s.seedAdult("", false)
		s.seedRole(person.ID, homeGroup, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 8, 31))
		pending := s.seedRole(person.ID, sectionGroup, id.RoleKindPendingAdditionalApplicant, id.FeeCategoryAdult,
			time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

		result, err := s.svc.Apply(s.ctx, person.ID, sectionGroup, 2025)
		s.Require().NoError(err)
		s.Equal(BranchConvertPendingAdditional, result.Branch)
		s.Equal([]id.RoleID{pending.ID}, result.DeletedRoles)
		s.Require().Len(result.CreatedRoles, 1)

		created, err := s.roles.FindByID(s.ctx, result.CreatedRoles[0])
		s.Require().NoError(err)
		s.Equal(id.RoleKindAdditionalMember, created.Kind)
		s.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), created.StartOn())
		s.Equal(time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC), *created.PlannedEndOn)
	})

	s.Run("produces a zero-length role when paid after the window closed", func() {
		person := s.seedAdult("", false)
		s.seedRole(person.ID, homeGroup, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 3, 31))
		s.seedRole(person.ID, sectionGroup, id.RoleKindPendingAdditionalApplicant, id.FeeCategoryAdult,
			time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), nil)

		result, err := s.svc.Apply(s.ctx, person.ID, sectionGroup, 2025)
		s.Require().NoError(err)
		s.Equal(BranchConvertPendingAdditional, result.Branch)

		created, err := s.roles.FindByID(s.ctx, result.CreatedRoles[0])
		s.Require().NoError(err)
		s.Equal(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), created.StartOn())
		s.Equal(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), *created.PlannedEndOn)
	})
}

func (s *TransitionSuite) TestConvertPendingAdditionalFansOutToHousehold() {
	homeGroup := id.GroupID(uuid.New())
	sectionGroup := id.GroupID(uuid.New())
	otherGroup := id.GroupID(uuid.New())

	main := s.seedAdult("hh-add", true)
	s.seedRole(main.ID, homeGroup, id.RoleKindHomeMember, id.FeeCategoryFamilyMain,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))
	mainPending := s.seedRole(main.ID, sectionGroup, id.RoleKindPendingAdditionalApplicant, id.FeeCategoryFamilyMain,
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

	// Adult dependent with a pending application for the same section;
	// their home role ends earlier than the main person's.
	dep := s.seedAdult("hh-add", false)
	s.seedRole(dep.ID, homeGroup, id.RoleKindHomeMember, id.FeeCategoryFamilyDependent,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 7, 31))
	depPending := s.seedRole(dep.ID, sectionGroup, id.RoleKindPendingAdditionalApplicant, id.FeeCategoryFamilyDependent,
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

	// A pending application for a different section is not touched.
	sibling := s.seedAdult("hh-add", false)
	s.seedRole(sibling.ID, homeGroup, id.RoleKindHomeMember, id.FeeCategoryFamilyDependent,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))
	siblingPending := s.seedRole(sibling.ID, otherGroup, id.RoleKindPendingAdditionalApplicant, id.FeeCategoryFamilyDependent,
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

	// A pre-school child acquires no role, pending or not.
	child := s.seedPerson("hh-add", false, time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC))
	childPending := s.seedRole(child.ID, sectionGroup, id.RoleKindPendingAdditionalApplicant, id.FeeCategoryYouth,
		time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), nil)

	result, err := s.svc.Apply(s.ctx, main.ID, sectionGroup, 2025)
	s.Require().NoError(err)
	s.Equal(BranchConvertPendingAdditional, result.Branch)
	s.ElementsMatch([]id.RoleID{mainPending.ID, depPending.ID}, result.DeletedRoles)
	s.Require().Len(result.CreatedRoles, 2)
	s.ElementsMatch([]id.PersonID{main.ID, dep.ID}, result.AffectedPersons)

	depRoles, err := s.roles.FindByPerson(s.ctx, dep.ID)
	s.Require().NoError(err)
	var depCreated *models.Role
	for _, r := range depRoles {
		if r.Kind == id.RoleKindAdditionalMember {
			depCreated = r
		}
	}
	s.Require().NotNil(depCreated)
	s.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), depCreated.StartOn())
	s.Equal(time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC), *depCreated.PlannedEndOn)

	_, err = s.roles.FindByID(s.ctx, siblingPending.ID)
	s.NoError(err, "pending application for another section must survive")
	_, err = s.roles.FindByID(s.ctx, childPending.ID)
	s.NoError(err, "pre-school child's pending application must survive")
}

func (s *TransitionSuite) TestNoBranch() {
	s.Run("no precondition held", func() {
		person := s.seedAdult("", false)
		result, err := s.svc.Apply(s.ctx, person.ID, id.GroupID(uuid.New()), 2025)
		s.Require().NoError(err)
		s.Equal(BranchNone, result.Branch)
		s.Empty(result.CreatedRoles)
		s.Empty(result.ExtendedRoles)
		s.Empty(result.DeletedRoles)
	})

	s.Run("unknown person", func() {
		_, err := s.svc.Apply(s.ctx, id.PersonID(uuid.New()), id.GroupID(uuid.New()), 2025)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *TransitionSuite) TestHouseholdLockConflict() {
	person := s.seedAdult("hh-locked", false)
	s.seedRole(person.ID, id.GroupID(uuid.New()), id.RoleKindHomeMember, id.FeeCategoryAdult,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))

	release, err := s.locks.Acquire(s.ctx, "household:hh-locked")
	s.Require().NoError(err)
	defer release()

	_, err = s.svc.Apply(s.ctx, person.ID, id.GroupID(uuid.New()), 2026)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTransitionConflict))
}

func (s *TransitionSuite) TestTerminate() {
	group := id.GroupID(uuid.New())

	s.Run("marks the home role terminated with a cutoff", func() {
		person := s.seedAdult("", false)
		role := s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2026, 12, 31))

		cutoff := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
		terminated, err := s.svc.Terminate(s.ctx, person.ID, "moved abroad", cutoff)
		s.Require().NoError(err)
		s.Equal(role.ID, terminated.ID)

		stored, err := s.roles.FindByID(s.ctx, role.ID)
		s.Require().NoError(err)
		s.True(stored.Terminated)
		s.Equal("moved abroad", stored.TerminationReason)
		s.Equal(cutoff, *stored.PlannedEndOn)
		s.True(stored.ActiveOn(s.today), "terminated roles stay valid until the cutoff")
	})

	s.Run("rejects termination without an active membership", func() {
		person := s.seedAdult("", false)
		_, err := s.svc.Terminate(s.ctx, person.ID, "never joined", s.today)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("a renewal payment clears a requested termination", func() {
		person := s.seedAdult("", false)
		role := s.seedRole(person.ID, group, id.RoleKindHomeMember, id.FeeCategoryAdult,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), datePtr(2025, 12, 31))
		_, err := s.svc.Terminate(s.ctx, person.ID, "reconsidering", time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
		s.Require().NoError(err)

		result, err := s.svc.Apply(s.ctx, person.ID, group, 2026)
		s.Require().NoError(err)
		s.Equal(BranchExtend, result.Branch)

		stored, err := s.roles.FindByID(s.ctx, role.ID)
		s.Require().NoError(err)
		s.False(stored.Terminated)
		s.Empty(stored.TerminationReason)
	})
}
