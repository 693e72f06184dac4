package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	regmodels "gatepass/internal/registration/models"
	regstore "gatepass/internal/registration/store"
	"gatepass/internal/visitor/models"
	visitorstore "gatepass/internal/visitor/store"
	id "gatepass/pkg/domain"
	dErrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/fielddata"
	"gatepass/pkg/platform/audit"
	auditmemory "gatepass/pkg/platform/audit/store/memory"
	"gatepass/pkg/requestcontext"
)

type VisitorServiceSuite struct {
	suite.Suite
	visitors      *visitorstore.InMemory
	registrations *regstore.InMemory
	auditStore    *auditmemory.InMemoryStore
	service       *Service
	ctx           context.Context
	now           time.Time
}

func (s *VisitorServiceSuite) SetupTest() {
	s.visitors = visitorstore.NewInMemory()
	s.registrations = regstore.NewInMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.service = New(s.visitors, s.registrations, audit.NewPublisher(s.auditStore), nil)
	s.now = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestVisitorServiceSuite(t *testing.T) {
	suite.Run(t, new(VisitorServiceSuite))
}

func (s *VisitorServiceSuite) addRegistration(visitorID id.VisitorID, exhibitionID id.ExhibitionID, number string, at time.Time) *regmodels.Registration {
	reg := &regmodels.Registration{
		ID:                 id.NewRegistrationID(),
		RegistrationNumber: number,
		VisitorID:          visitorID,
		ExhibitionID:       exhibitionID,
		RegistrationDate:   at,
		Status:             regmodels.StatusConfirmed,
		CreatedAt:          at,
		UpdatedAt:          at,
	}
	s.Require().NoError(s.registrations.Insert(s.ctx, reg))
	return reg
}

func (s *VisitorServiceSuite) TestResolveOrCreate() {
	s.Run("new phone creates a visitor", func() {
		v, created, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{
			Phone: "+919876543210", Name: "Asha", Email: "asha@example.com",
		})
		s.Require().NoError(err)
		s.True(created)
		s.Equal("+919876543210", v.Phone)
		s.Equal("Asha", v.Name)
	})

	s.Run("same phone matches the existing visitor", func() {
		v, created, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{
			Phone: "+919876543210", Name: "Different Name",
		})
		s.Require().NoError(err)
		s.False(created)
		// Populated fields are never overwritten.
		s.Equal("Asha", v.Name)
	})

	s.Run("match fills only empty fields", func() {
		v, created, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{
			Phone: "+919876543210", Company: "Acme", Email: "other@example.com",
		})
		s.Require().NoError(err)
		s.False(created)
		s.Equal("Acme", v.Company)
		s.Equal("asha@example.com", v.Email)

		stored, err := s.visitors.FindByPhone(s.ctx, "+919876543210")
		s.Require().NoError(err)
		s.Equal("Acme", stored.Company)
	})

	s.Run("empty phone always creates", func() {
		first, created, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{Name: "Anon One"})
		s.Require().NoError(err)
		s.True(created)

		second, created, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{Name: "Anon Two"})
		s.Require().NoError(err)
		s.True(created)
		s.NotEqual(first.ID, second.ID)
	})
}

// TestConcurrentResolve: many concurrent submissions with one phone must
// converge on a single visitor row.
func (s *VisitorServiceSuite) TestConcurrentResolve() {
	const n = 50

	ids := make(chan id.VisitorID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{Phone: "+15550001111"})
			s.NoError(err)
			ids <- v.ID
		}()
	}
	wg.Wait()
	close(ids)

	unique := make(map[id.VisitorID]bool)
	for visitorID := range ids {
		unique[visitorID] = true
	}
	s.Len(unique, 1)

	all, err := s.visitors.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *VisitorServiceSuite) TestMergeDuplicate() {
	exhibitionA := id.ExhibitionID(uuid.New())
	exhibitionB := id.ExhibitionID(uuid.New())

	keep, _, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{Phone: "+15550002222", Name: "Keeper"})
	s.Require().NoError(err)
	loser, _, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{Name: "", Email: "dupe@example.com", Company: "Dupe Co"})
	s.Require().NoError(err)

	s.addRegistration(keep.ID, exhibitionA, "REG-20250114-0001", s.now.Add(-24*time.Hour))
	s.addRegistration(loser.ID, exhibitionB, "REG-20250115-0001", s.now)

	s.Run("merge moves registrations and fills fields", func() {
		merged, err := s.service.MergeDuplicate(s.ctx, keep.ID, loser.ID)
		s.Require().NoError(err)

		s.Equal("Keeper", merged.Name)
		s.Equal("dupe@example.com", merged.Email)
		s.Equal("Dupe Co", merged.Company)

		regs, err := s.registrations.ListByVisitor(s.ctx, keep.ID)
		s.Require().NoError(err)
		s.Len(regs, 2)

		s.Equal(int64(2), merged.TotalRegistrations)
		s.Require().NotNil(merged.LastRegistrationDate)
		s.True(merged.LastRegistrationDate.Equal(s.now))
		s.ElementsMatch([]id.ExhibitionID{exhibitionA, exhibitionB}, merged.RegisteredExhibitions)
	})

	s.Run("merged visitor is gone", func() {
		_, err := s.service.FindByID(s.ctx, loser.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("repeating the merge reports not found, acts zero times", func() {
		_, err := s.service.MergeDuplicate(s.ctx, keep.ID, loser.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		regs, err := s.registrations.ListByVisitor(s.ctx, keep.ID)
		s.Require().NoError(err)
		s.Len(regs, 2)
	})

	s.Run("merge is audited", func() {
		events, err := s.auditStore.ListBySubject(s.ctx, keep.ID.String())
		s.Require().NoError(err)
		var found bool
		for _, e := range events {
			if e.Action == string(audit.EventVisitorMerged) {
				found = true
				s.Equal(audit.CategoryIntegrity, e.Category)
			}
		}
		s.True(found)
	})

	s.Run("self merge rejected", func() {
		_, err := s.service.MergeDuplicate(s.ctx, keep.ID, keep.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// TestMergeDuplicateSamePhone: when both rows carry the same phone the loser
// holds it under the uniqueness constraint, and the survivor's rewrite must
// not collide with the row being merged away.
func (s *VisitorServiceSuite) TestMergeDuplicateSamePhone() {
	exhibition := id.ExhibitionID(uuid.New())

	loser, _, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{Phone: "+15550005555", Name: "First In"})
	s.Require().NoError(err)

	// Pre-constraint historical duplicate: same phone, stored second, so the
	// loser remains the row the phone lookup resolves to.
	keep := &models.Visitor{
		ID:        id.NewVisitorID(),
		Phone:     "+15550005555",
		Email:     "survivor@example.com",
		CreatedAt: s.now.Add(-48 * time.Hour),
		UpdatedAt: s.now.Add(-48 * time.Hour),
	}
	s.visitors.Seed(keep)

	s.addRegistration(keep.ID, exhibition, "REG-20250113-0002", s.now.Add(-24*time.Hour))
	s.addRegistration(loser.ID, exhibition, "REG-20250115-0002", s.now)

	merged, err := s.service.MergeDuplicate(s.ctx, keep.ID, loser.ID)
	s.Require().NoError(err)
	s.Equal("First In", merged.Name)
	s.Equal(int64(2), merged.TotalRegistrations)

	_, err = s.service.FindByID(s.ctx, loser.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// The survivor now owns the phone.
	owner, err := s.visitors.FindByPhone(s.ctx, "+15550005555")
	s.Require().NoError(err)
	s.Equal(keep.ID, owner.ID)
}

func (s *VisitorServiceSuite) TestSurvivor() {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(created time.Time) *models.Visitor {
		return &models.Visitor{ID: id.NewVisitorID(), Phone: "+15550003333", CreatedAt: created}
	}
	s.Run("more referencing registrations wins", func() {
		a := mk(base)
		b := mk(base.Add(time.Hour))
		keep, losers, err := Survivor([]*models.Visitor{a, b},
			map[id.VisitorID]int64{a.ID: 1, b.ID: 3})
		s.Require().NoError(err)
		s.Equal(b.ID, keep.ID)
		s.Len(losers, 1)
		s.Equal(a.ID, losers[0].ID)
	})

	s.Run("stored aggregate never outranks actual references", func() {
		a := mk(base)
		a.TotalRegistrations = 0 // drifted low
		b := mk(base.Add(time.Hour))
		b.TotalRegistrations = 5 // drifted high
		keep, losers, err := Survivor([]*models.Visitor{a, b},
			map[id.VisitorID]int64{a.ID: 3, b.ID: 1})
		s.Require().NoError(err)
		s.Equal(a.ID, keep.ID)
		s.Len(losers, 1)
		s.Equal(b.ID, losers[0].ID)
	})

	s.Run("equal references, earliest created wins", func() {
		a := mk(base)
		b := mk(base.Add(time.Hour))
		keep, _, err := Survivor([]*models.Visitor{b, a},
			map[id.VisitorID]int64{a.ID: 2, b.ID: 2})
		s.Require().NoError(err)
		s.Equal(a.ID, keep.ID)
	})

	s.Run("full tie is ambiguous, never auto-resolved", func() {
		a := mk(base)
		b := mk(base)
		_, _, err := Survivor([]*models.Visitor{a, b},
			map[id.VisitorID]int64{a.ID: 2, b.ID: 2})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeMergeAmbiguous))
	})

	s.Run("three-way group picks one survivor and two losers", func() {
		a := mk(base)
		b := mk(base.Add(time.Hour))
		c := mk(base.Add(2 * time.Hour))
		keep, losers, err := Survivor([]*models.Visitor{a, b, c},
			map[id.VisitorID]int64{a.ID: 5, b.ID: 1, c.ID: 2})
		s.Require().NoError(err)
		s.Equal(a.ID, keep.ID)
		s.Len(losers, 2)
	})
}

func (s *VisitorServiceSuite) TestReconcileCustomFields() {
	exhibition := id.ExhibitionID(uuid.New())
	v, _, err := s.service.ResolveOrCreate(s.ctx, ResolveInput{Phone: "+15550004444", Name: "Existing Name"})
	s.Require().NoError(err)

	reg := s.addRegistration(v.ID, exhibition, "REG-20250115-0100", s.now)
	s.Require().NoError(s.registrations.UpdateCustomFields(s.ctx, reg.ID, fielddata.Map{
		"Name":        "Form Name",
		"email":       "form@example.com",
		"City":        "Mumbai",
		"tshirt_size": "L",
	}, s.now))

	s.Run("canonical keys move to the visitor without overwriting", func() {
		changed, err := s.service.ReconcileCustomFields(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.True(changed)

		got, err := s.visitors.FindByID(s.ctx, v.ID)
		s.Require().NoError(err)
		// Populated core field untouched, empty one filled.
		s.Equal("Existing Name", got.Name)
		s.Equal("form@example.com", got.Email)
		s.Equal("Mumbai", got.Attributes["city"])

		after, err := s.registrations.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.NotContains(after.CustomFields, "Name")
		s.NotContains(after.CustomFields, "email")
		s.NotContains(after.CustomFields, "City")
		// Non-canonical keys stay on the registration.
		s.Equal("L", after.CustomFields["tshirt_size"])
	})

	s.Run("second run is a no-op", func() {
		before, err := s.auditStore.ListAll(s.ctx)
		s.Require().NoError(err)

		changed, err := s.service.ReconcileCustomFields(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.False(changed)

		after, err := s.auditStore.ListAll(s.ctx)
		s.Require().NoError(err)
		s.Len(after, len(before))
	})

	s.Run("unknown registration reports not found", func() {
		_, err := s.service.ReconcileCustomFields(s.ctx, id.NewRegistrationID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
