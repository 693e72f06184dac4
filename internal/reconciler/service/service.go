// Package service implements the integrity sweeps: orphan removal, visitor
// deduplication, duplicate-registration detection, aggregate recomputation
// and canonical custom-field reconciliation.
//
// Every sweep is idempotent. Running one against a store that already holds
// the invariants changes nothing and emits no integrity audit events, so
// sweeps can run on a schedule without conditioning.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	exmodels "gatepass/internal/exhibition/models"
	"gatepass/internal/reconciler/metrics"
	regmodels "gatepass/internal/registration/models"
	visitormodels "gatepass/internal/visitor/models"
	visitorservice "gatepass/internal/visitor/service"
	id "gatepass/pkg/domain"
	derrors "gatepass/pkg/domain-errors"
	"gatepass/pkg/platform/audit"
	"gatepass/pkg/platform/sentinel"
	"gatepass/pkg/requestcontext"
)

// orphanVisitorGrace shields freshly-created visitors whose first
// registration insert is still in flight from the orphan sweep.
const orphanVisitorGrace = time.Hour

// recomputeConcurrency bounds the aggregate fan-out.
const recomputeConcurrency = 8

type VisitorStore interface {
	List(ctx context.Context) ([]*visitormodels.Visitor, error)
	FindByID(ctx context.Context, visitorID id.VisitorID) (*visitormodels.Visitor, error)
	Update(ctx context.Context, v *visitormodels.Visitor) error
	Delete(ctx context.Context, visitorID id.VisitorID) error
}

type RegistrationStore interface {
	List(ctx context.Context) ([]*regmodels.Registration, error)
	ListByVisitor(ctx context.Context, visitorID id.VisitorID) ([]*regmodels.Registration, error)
	FindByID(ctx context.Context, registrationID id.RegistrationID) (*regmodels.Registration, error)
	Delete(ctx context.Context, registrationID id.RegistrationID) error
}

type ExhibitionStore interface {
	List(ctx context.Context) ([]*exmodels.Exhibition, error)
	SetCount(ctx context.Context, exhibitionID id.ExhibitionID, count int64) error
}

// CountCache mirrors exhibition counts; may be nil.
type CountCache interface {
	Set(ctx context.Context, exhibitionID id.ExhibitionID, count int64) error
}

// Merger is the slice of the visitor service the sweeps delegate to.
type Merger interface {
	MergeDuplicate(ctx context.Context, keepID, mergeID id.VisitorID) (*visitormodels.Visitor, error)
	ReconcileCustomFields(ctx context.Context, registrationID id.RegistrationID) (bool, error)
}

type Service struct {
	visitors      VisitorStore
	registrations RegistrationStore
	exhibitions   ExhibitionStore
	countCache    CountCache
	merger        Merger
	audit         *audit.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func New(
	visitors VisitorStore,
	registrations RegistrationStore,
	exhibitions ExhibitionStore,
	countCache CountCache,
	merger Merger,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		visitors:      visitors,
		registrations: registrations,
		exhibitions:   exhibitions,
		countCache:    countCache,
		merger:        merger,
		audit:         auditor,
		metrics:       m,
		logger:        logger,
	}
}

// Report summarizes one sweep. Findings the sweep will not touch on its own
// (ambiguous merges, duplicate registrations) are listed for an operator.
type Report struct {
	OrphanRegistrationsRemoved []string         `json:"orphan_registrations_removed"`
	OrphanVisitorsRemoved      []string         `json:"orphan_visitors_removed"`
	VisitorsMerged             int              `json:"visitors_merged"`
	AmbiguousPhones            []string         `json:"ambiguous_phones"`
	DuplicateRegistrations     []DuplicateGroup `json:"duplicate_registrations"`
	CustomFieldsReconciled     int              `json:"custom_fields_reconciled"`
	VisitorAggregatesFixed     int              `json:"visitor_aggregates_fixed"`
	ExhibitionCountsFixed      int              `json:"exhibition_counts_fixed"`
}

// DuplicateGroup is a set of active registrations sharing one
// (visitor, exhibition) pair. Keep is the earliest-created number; the rest
// are removal candidates awaiting operator confirmation.
type DuplicateGroup struct {
	VisitorID    string   `json:"visitor_id"`
	ExhibitionID string   `json:"exhibition_id"`
	Keep         string   `json:"keep"`
	Candidates   []string `json:"candidates"`
}

// Run executes the full sweep in dependency order: orphans first so later
// passes never chase dangling references, then merges, then custom fields,
// then the aggregate rebuilds that everything earlier may have invalidated.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	report := &Report{}

	err := s.run(ctx, report)
	s.metrics.SweepSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.RunsTotal.WithLabelValues("error").Inc()
		return report, err
	}
	s.metrics.RunsTotal.WithLabelValues("ok").Inc()
	return report, nil
}

func (s *Service) run(ctx context.Context, report *Report) error {
	if err := s.RemoveOrphans(ctx, report); err != nil {
		return err
	}
	if err := s.DeduplicateVisitors(ctx, report); err != nil {
		return err
	}
	if err := s.FindDuplicateRegistrations(ctx, report); err != nil {
		return err
	}
	if err := s.ReconcileAllCustomFields(ctx, report); err != nil {
		return err
	}
	if err := s.RecomputeVisitorAggregates(ctx, report); err != nil {
		return err
	}
	return s.RecomputeExhibitionCounts(ctx, report)
}

// RemoveOrphans deletes registrations whose visitor is gone and visitors
// outside the grace window with no registrations at all.
func (s *Service) RemoveOrphans(ctx context.Context, report *Report) error {
	return s.sweepOrphans(ctx, report, false)
}

// FindOrphans lists what RemoveOrphans would delete without touching
// anything. Dry-run findings are not audited; there is no mutation to
// attribute.
func (s *Service) FindOrphans(ctx context.Context, report *Report) error {
	return s.sweepOrphans(ctx, report, true)
}

func (s *Service) sweepOrphans(ctx context.Context, report *Report, dryRun bool) error {
	regs, err := s.registrations.List(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "list registrations")
	}
	referenced := make(map[id.VisitorID]bool, len(regs))
	for _, reg := range regs {
		if _, err := s.visitors.FindByID(ctx, reg.VisitorID); err == nil {
			referenced[reg.VisitorID] = true
			continue
		} else if !sentinelNotFound(err) {
			return derrors.Wrap(err, derrors.CodeUnavailable, "find visitor for registration")
		}
		if !dryRun {
			if err := s.registrations.Delete(ctx, reg.ID); err != nil && !sentinelNotFound(err) {
				return derrors.Wrap(err, derrors.CodeUnavailable, "delete orphan registration")
			}
			if err := s.emit(ctx, audit.EventOrphanRegistrationGone, reg.RegistrationNumber,
				fmt.Sprintf("visitor %s does not exist", reg.VisitorID)); err != nil {
				return err
			}
			s.metrics.RepairsTotal.WithLabelValues("orphan_registration").Inc()
		}
		report.OrphanRegistrationsRemoved = append(report.OrphanRegistrationsRemoved, reg.RegistrationNumber)
	}

	visitors, err := s.visitors.List(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "list visitors")
	}
	cutoff := requestcontext.Now(ctx).Add(-orphanVisitorGrace)
	for _, v := range visitors {
		if referenced[v.ID] || v.CreatedAt.After(cutoff) {
			continue
		}
		owned, err := s.registrations.ListByVisitor(ctx, v.ID)
		if err != nil {
			return derrors.Wrap(err, derrors.CodeUnavailable, "list registrations for visitor")
		}
		if len(owned) > 0 {
			continue
		}
		if !dryRun {
			if err := s.visitors.Delete(ctx, v.ID); err != nil && !sentinelNotFound(err) {
				return derrors.Wrap(err, derrors.CodeUnavailable, "delete orphan visitor")
			}
			if err := s.emit(ctx, audit.EventOrphanVisitorGone, v.ID.String(), "no registrations reference this visitor"); err != nil {
				return err
			}
			s.metrics.RepairsTotal.WithLabelValues("orphan_visitor").Inc()
		}
		report.OrphanVisitorsRemoved = append(report.OrphanVisitorsRemoved, v.ID.String())
	}

	s.metrics.DriftFound.WithLabelValues("orphan_registration").Set(float64(len(report.OrphanRegistrationsRemoved)))
	s.metrics.DriftFound.WithLabelValues("orphan_visitor").Set(float64(len(report.OrphanVisitorsRemoved)))
	return nil
}

// DeduplicateVisitors merges same-phone visitor groups. Groups where no
// survivor can be picked deterministically are reported, never auto-merged.
func (s *Service) DeduplicateVisitors(ctx context.Context, report *Report) error {
	visitors, err := s.visitors.List(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "list visitors")
	}
	byPhone := make(map[string][]*visitormodels.Visitor)
	for _, v := range visitors {
		if v.Phone == "" {
			continue
		}
		byPhone[v.Phone] = append(byPhone[v.Phone], v)
	}
	for phone, group := range byPhone {
		if len(group) < 2 {
			continue
		}
		// Rank by how many registrations actually reference each candidate.
		// The TotalRegistrations aggregate is recomputed after this pass, so
		// at this point it may carry arbitrary drift.
		references := make(map[id.VisitorID]int64, len(group))
		for _, v := range group {
			owned, err := s.registrations.ListByVisitor(ctx, v.ID)
			if err != nil {
				return derrors.Wrap(err, derrors.CodeUnavailable, "list registrations for visitor")
			}
			references[v.ID] = int64(len(owned))
		}
		keep, losers, err := visitorservice.Survivor(group, references)
		if err != nil {
			if derrors.HasCode(err, derrors.CodeMergeAmbiguous) {
				if err := s.emit(ctx, audit.EventMergeAmbiguous, phone,
					fmt.Sprintf("%d visitors tie, operator decision required", len(group))); err != nil {
					return err
				}
				report.AmbiguousPhones = append(report.AmbiguousPhones, phone)
				continue
			}
			return err
		}
		for _, loser := range losers {
			if _, err := s.merger.MergeDuplicate(ctx, keep.ID, loser.ID); err != nil {
				if derrors.HasCode(err, derrors.CodeNotFound) {
					// Already merged by a concurrent sweep.
					continue
				}
				return err
			}
			s.metrics.RepairsTotal.WithLabelValues("visitor_merge").Inc()
			report.VisitorsMerged++
		}
	}
	slices.Sort(report.AmbiguousPhones)
	s.metrics.DriftFound.WithLabelValues("visitor_merge").Set(float64(report.VisitorsMerged))
	s.metrics.DriftFound.WithLabelValues("merge_ambiguous").Set(float64(len(report.AmbiguousPhones)))
	return nil
}

// FindDuplicateRegistrations reports groups of active registrations sharing
// a (visitor, exhibition) pair. Report-only: a duplicate here may be a
// legitimate re-registration, so deletion requires explicit confirmation.
func (s *Service) FindDuplicateRegistrations(ctx context.Context, report *Report) error {
	regs, err := s.registrations.List(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "list registrations")
	}
	type pair struct {
		visitor    id.VisitorID
		exhibition id.ExhibitionID
	}
	groups := make(map[pair][]*regmodels.Registration)
	for _, reg := range regs {
		if !reg.Active() {
			continue
		}
		key := pair{reg.VisitorID, reg.ExhibitionID}
		groups[key] = append(groups[key], reg)
	}
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		slices.SortFunc(group, func(a, b *regmodels.Registration) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
		candidates := make([]string, 0, len(group)-1)
		for _, reg := range group[1:] {
			candidates = append(candidates, reg.RegistrationNumber)
		}
		report.DuplicateRegistrations = append(report.DuplicateRegistrations, DuplicateGroup{
			VisitorID:    key.visitor.String(),
			ExhibitionID: key.exhibition.String(),
			Keep:         group[0].RegistrationNumber,
			Candidates:   candidates,
		})
	}
	slices.SortFunc(report.DuplicateRegistrations, func(a, b DuplicateGroup) int {
		if a.VisitorID != b.VisitorID {
			if a.VisitorID < b.VisitorID {
				return -1
			}
			return 1
		}
		return 0
	})
	s.metrics.DriftFound.WithLabelValues("duplicate_registration").Set(float64(len(report.DuplicateRegistrations)))
	return nil
}

// RemoveConfirmedDuplicates deletes explicitly named registrations after
// re-checking each is still a duplicate: another active registration for the
// same (visitor, exhibition) pair must still exist.
func (s *Service) RemoveConfirmedDuplicates(ctx context.Context, registrationIDs []id.RegistrationID) ([]string, error) {
	var removed []string
	for _, registrationID := range registrationIDs {
		reg, err := s.registrations.FindByID(ctx, registrationID)
		if sentinelNotFound(err) {
			continue
		}
		if err != nil {
			return removed, derrors.Wrap(err, derrors.CodeUnavailable, "find registration")
		}
		siblings, err := s.registrations.ListByVisitor(ctx, reg.VisitorID)
		if err != nil {
			return removed, derrors.Wrap(err, derrors.CodeUnavailable, "list sibling registrations")
		}
		stillDuplicate := false
		for _, sibling := range siblings {
			if sibling.ID != reg.ID && sibling.ExhibitionID == reg.ExhibitionID && sibling.Active() {
				stillDuplicate = true
				break
			}
		}
		if !stillDuplicate {
			return removed, derrors.New(derrors.CodeConflict,
				fmt.Sprintf("registration %s is no longer a duplicate", reg.RegistrationNumber))
		}
		if err := s.registrations.Delete(ctx, reg.ID); err != nil && !sentinelNotFound(err) {
			return removed, derrors.Wrap(err, derrors.CodeUnavailable, "delete duplicate registration")
		}
		if err := s.emit(ctx, audit.EventDuplicateRegistrationGone, reg.RegistrationNumber,
			"operator confirmed duplicate removal"); err != nil {
			return removed, err
		}
		s.metrics.RepairsTotal.WithLabelValues("duplicate_registration").Inc()
		removed = append(removed, reg.RegistrationNumber)
	}
	return removed, nil
}

// ReconcileAllCustomFields sweeps every registration through canonical
// custom-field reconciliation.
func (s *Service) ReconcileAllCustomFields(ctx context.Context, report *Report) error {
	regs, err := s.registrations.List(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "list registrations")
	}
	for _, reg := range regs {
		changed, err := s.merger.ReconcileCustomFields(ctx, reg.ID)
		if err != nil {
			if derrors.HasCode(err, derrors.CodeNotFound) || derrors.HasCode(err, derrors.CodeConflict) {
				s.logger.WarnContext(ctx, "custom field reconciliation skipped",
					"registration", reg.RegistrationNumber, "error", err)
				continue
			}
			return err
		}
		if changed {
			s.metrics.RepairsTotal.WithLabelValues("custom_fields").Inc()
			report.CustomFieldsReconciled++
		}
	}
	s.metrics.DriftFound.WithLabelValues("custom_fields").Set(float64(report.CustomFieldsReconciled))
	return nil
}

// RecomputeVisitorAggregates rebuilds every visitor's derived fields from
// the registrations collection, fanning out across visitors.
func (s *Service) RecomputeVisitorAggregates(ctx context.Context, report *Report) error {
	visitors, err := s.visitors.List(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "list visitors")
	}

	fixed := make([]bool, len(visitors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(recomputeConcurrency)
	for i, v := range visitors {
		i, v := i, v
		g.Go(func() error {
			regs, err := s.registrations.ListByVisitor(gctx, v.ID)
			if err != nil {
				return derrors.Wrap(err, derrors.CodeUnavailable, "list registrations for visitor")
			}
			rebuilt := v.Clone()
			visitorservice.RecomputeAggregates(rebuilt, regs)
			if aggregatesEqual(v, rebuilt) {
				return nil
			}
			rebuilt.UpdatedAt = requestcontext.Now(gctx)
			if err := s.visitors.Update(gctx, rebuilt); err != nil {
				return derrors.Wrap(err, derrors.CodeUnavailable, "update visitor aggregates")
			}
			fixed[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, f := range fixed {
		if f {
			s.metrics.RepairsTotal.WithLabelValues("visitor_aggregates").Inc()
			report.VisitorAggregatesFixed++
		}
	}
	if report.VisitorAggregatesFixed > 0 {
		if err := s.emit(ctx, audit.EventAggregatesRecomputed, "visitors",
			fmt.Sprintf("rebuilt aggregates for %d visitors", report.VisitorAggregatesFixed)); err != nil {
			return err
		}
	}
	s.metrics.DriftFound.WithLabelValues("visitor_aggregates").Set(float64(report.VisitorAggregatesFixed))
	return nil
}

// CountingStore counts active registrations per exhibition.
type CountingStore interface {
	CountActiveByExhibition(ctx context.Context, exhibitionID id.ExhibitionID) (int64, error)
}

// RecomputeExhibitionCounts rebuilds each exhibition's mirrored registration
// count from the registrations collection and rewrites the cache.
func (s *Service) RecomputeExhibitionCounts(ctx context.Context, report *Report) error {
	counter, ok := s.registrations.(CountingStore)
	if !ok {
		return derrors.New(derrors.CodeInternal, "registration store cannot count by exhibition")
	}
	exhibitions, err := s.exhibitions.List(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "list exhibitions")
	}
	for _, e := range exhibitions {
		actual, err := counter.CountActiveByExhibition(ctx, e.ID)
		if err != nil {
			return derrors.Wrap(err, derrors.CodeUnavailable, "count registrations for exhibition")
		}
		if actual != e.CurrentRegistrationsCount {
			if err := s.exhibitions.SetCount(ctx, e.ID, actual); err != nil {
				return derrors.Wrap(err, derrors.CodeUnavailable, "set exhibition count")
			}
			s.metrics.RepairsTotal.WithLabelValues("exhibition_count").Inc()
			report.ExhibitionCountsFixed++
		}
		if s.countCache != nil {
			if err := s.countCache.Set(ctx, e.ID, actual); err != nil {
				s.logger.WarnContext(ctx, "cached exhibition count rewrite failed",
					"exhibition_id", e.ID, "error", err)
			}
		}
	}
	if report.ExhibitionCountsFixed > 0 {
		if err := s.emit(ctx, audit.EventAggregatesRecomputed, "exhibitions",
			fmt.Sprintf("rebuilt counts for %d exhibitions", report.ExhibitionCountsFixed)); err != nil {
			return err
		}
	}
	s.metrics.DriftFound.WithLabelValues("exhibition_count").Set(float64(report.ExhibitionCountsFixed))
	return nil
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, subject, reason string) error {
	err := s.audit.Emit(ctx, audit.Event{
		Subject:   subject,
		Action:    string(action),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.Operator(ctx),
		Timestamp: requestcontext.Now(ctx),
	})
	if err != nil {
		return derrors.Wrap(err, derrors.CodeUnavailable, "record integrity audit event")
	}
	return nil
}

func aggregatesEqual(a, b *visitormodels.Visitor) bool {
	if a.TotalRegistrations != b.TotalRegistrations {
		return false
	}
	switch {
	case a.LastRegistrationDate == nil && b.LastRegistrationDate != nil,
		a.LastRegistrationDate != nil && b.LastRegistrationDate == nil:
		return false
	case a.LastRegistrationDate != nil && !a.LastRegistrationDate.Equal(*b.LastRegistrationDate):
		return false
	}
	left := slices.Clone(a.RegisteredExhibitions)
	right := slices.Clone(b.RegisteredExhibitions)
	cmp := func(x, y id.ExhibitionID) int {
		return slices.Compare(x[:], y[:])
	}
	slices.SortFunc(left, cmp)
	slices.SortFunc(right, cmp)
	return slices.Equal(left, right)
}

func sentinelNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}
