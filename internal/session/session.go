// Package session drives the trip-planning workflow: generate an itinerary,
// populate per-day details, optionally auto-pick meals, export. It owns the
// in-memory workflow state and keeps it recoverable from partial failure; the
// presentation layer reads snapshots and never mutates.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jask/cityroute/internal/planner"
	"github.com/jask/cityroute/internal/prefs"
)

// ErrNotReady reports an operation invoked while another is in flight or
// before its precondition state (e.g. auto-pick before any summary exists).
// Callers should prevent it by disabling the corresponding action; it is not
// a user-facing runtime condition.
var ErrNotReady = errors.New("session not ready")

// Phase is the workflow position. Generating, Populating and Exporting are
// transient: they are only observable while their operation is in flight.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseGenerating Phase = "generating"
	PhaseReady      Phase = "ready"
	PhasePopulating Phase = "populating"
	PhaseExporting  Phase = "exporting"
)

// State is the aggregate workflow state. Days holds details only for days
// fetched so far; partial population is a valid, expected state. Invariant:
// keys of Days are always a subset of Summary.DayIDs, and replacing the
// summary clears Days.
type State struct {
	Summary  *planner.ItinerarySummary
	Days     map[string]planner.DayDetail
	Busy     bool
	Message  string
	Warnings []string
}

// Session is the stateful workflow orchestrator. One workflow operation may
// be in flight at a time; concurrent invocations fail with ErrNotReady rather
// than queue. An in-flight operation always runs to completion before the
// busy flag clears.
type Session struct {
	id  string
	svc planner.Service

	mu    sync.Mutex
	phase Phase
	state State
}

// New creates an idle session over the given planning service boundary.
func New(svc planner.Service) *Session {
	return &Session{
		id:    uuid.NewString(),
		svc:   svc,
		phase: PhaseIdle,
		state: State{Days: make(map[string]planner.DayDetail)},
	}
}

// ID identifies this session (one per UI instance).
func (s *Session) ID() string { return s.id }

// Phase returns the current workflow phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a deep copy of the current state for the presentation
// layer. A snapshot taken mid-auto-pick may show some days populated and
// others not; each individual day is always complete.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := State{
		Busy:     s.state.Busy,
		Message:  s.state.Message,
		Warnings: append([]string(nil), s.state.Warnings...),
		Days:     make(map[string]planner.DayDetail, len(s.state.Days)),
	}
	if s.state.Summary != nil {
		sum := *s.state.Summary
		sum.DayIDs = append([]string(nil), sum.DayIDs...)
		sum.Warnings = append([]string(nil), sum.Warnings...)
		snap.Summary = &sum
	}
	for id, d := range s.state.Days {
		d.VisitIDs = append([]string(nil), d.VisitIDs...)
		snap.Days[id] = d
	}
	return snap
}

// Generate validates preferences, requests a new itinerary and on success
// replaces the summary and clears all day details atomically. On failure the
// prior state is left untouched so the user can retry without re-entering
// preferences.
func (s *Session) Generate(ctx context.Context, city string, in prefs.Input) error {
	p, prefWarns := prefs.Normalize(in)

	prev, err := s.begin(PhaseGenerating, false)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	sum, err := s.svc.Generate(ctx, city, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Busy = false
	if err != nil {
		s.phase = prev
		s.state.Message = "Generate failed: " + err.Error()
		return err
	}
	s.phase = PhaseReady
	s.state.Summary = &sum
	s.state.Days = make(map[string]planner.DayDetail)
	s.state.Message = "Generated " + sum.ItineraryID + "."
	s.state.Warnings = nil
	for _, w := range prefWarns {
		s.state.Warnings = append(s.state.Warnings, string(w))
	}
	s.state.Warnings = append(s.state.Warnings, sum.Warnings...)
	return nil
}

// AutoPick asks the service to assign meals, then re-fetches every affected
// day. The set of days to fetch is unknown until the first call resolves, so
// this is a dependent chain; the per-day fetches run concurrently and each
// day's detail is applied atomically. A failed day keeps its previous state
// while succeeded days stay committed; partial success is a valid outcome and
// is not rolled back.
func (s *Session) AutoPick(ctx context.Context, detourLimitMinutes float64) ([]string, error) {
	if _, err := s.begin(PhasePopulating, true); err != nil {
		return nil, fmt.Errorf("auto-pick: %w", err)
	}
	s.mu.Lock()
	itID := s.state.Summary.ItineraryID
	known := make(map[string]bool, len(s.state.Summary.DayIDs))
	order := make(map[string]int, len(s.state.Summary.DayIDs))
	for i, id := range s.state.Summary.DayIDs {
		known[id] = true
		order[id] = i
	}
	s.mu.Unlock()

	affected, err := s.svc.AutoPickMeals(ctx, itID, planner.AutoPickOptions{DetourLimitMin: detourLimitMinutes})
	if err != nil {
		s.finish("Auto-pick failed: " + err.Error())
		return nil, err
	}

	var (
		resMu   sync.Mutex
		updated []string
		dayErrs []error
		wg      sync.WaitGroup
	)
	for _, dayID := range affected {
		if !known[dayID] {
			// never track a day the current summary does not list
			continue
		}
		wg.Add(1)
		go func(dayID string) {
			defer wg.Done()
			detail, err := s.svc.Day(ctx, dayID)
			if err != nil {
				resMu.Lock()
				dayErrs = append(dayErrs, fmt.Errorf("day %s: %w", dayID, err))
				resMu.Unlock()
				return
			}
			s.mu.Lock()
			s.state.Days[dayID] = detail
			s.mu.Unlock()
			resMu.Lock()
			updated = append(updated, dayID)
			resMu.Unlock()
		}(dayID)
	}
	wg.Wait()

	sortByOrder(updated, order)
	if len(dayErrs) > 0 {
		err := errors.Join(dayErrs...)
		s.finish("Auto-pick failed: " + err.Error())
		return updated, err
	}
	s.finish(fmt.Sprintf("Auto-picked meals for %d day(s).", len(updated)))
	return updated, nil
}

// Export materializes the itinerary in the given format and hands the blob to
// the caller for persistence. State is not mutated.
func (s *Session) Export(ctx context.Context, format string) (planner.ExportBlob, error) {
	if _, err := s.begin(PhaseExporting, true); err != nil {
		return planner.ExportBlob{}, fmt.Errorf("export: %w", err)
	}
	s.mu.Lock()
	itID := s.state.Summary.ItineraryID
	s.mu.Unlock()

	blob, err := s.svc.Export(ctx, itID, format)
	if err != nil {
		s.finish("Export failed: " + err.Error())
		return planner.ExportBlob{}, err
	}
	s.finish("Exported " + blob.Filename + ".")
	return blob, nil
}

// Reload re-fetches the current summary by id and replaces it wholesale,
// clearing day details (the same replacement rule as Generate).
func (s *Session) Reload(ctx context.Context) error {
	if _, err := s.begin(PhaseGenerating, true); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	s.mu.Lock()
	itID := s.state.Summary.ItineraryID
	s.mu.Unlock()

	sum, err := s.svc.Itinerary(ctx, itID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Busy = false
	s.phase = PhaseReady
	if err != nil {
		s.state.Message = "Reload failed: " + err.Error()
		return err
	}
	s.state.Summary = &sum
	s.state.Days = make(map[string]planner.DayDetail)
	s.state.Message = "Reloaded " + sum.ItineraryID + "."
	s.state.Warnings = append([]string(nil), sum.Warnings...)
	return nil
}

// begin claims the busy flag and enters a transient phase. With needSummary
// it also checks the summary precondition. Returns the phase to restore on
// failure paths that must not advance the workflow.
func (s *Session) begin(next Phase, needSummary bool) (Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy {
		return s.phase, fmt.Errorf("%w: operation in flight", ErrNotReady)
	}
	if needSummary && s.state.Summary == nil {
		return s.phase, fmt.Errorf("%w: no itinerary generated yet", ErrNotReady)
	}
	prev := s.phase
	s.phase = next
	s.state.Busy = true
	return prev, nil
}

// finish clears the busy flag, returns to Ready and records a message.
func (s *Session) finish(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Busy = false
	s.phase = PhaseReady
	s.state.Message = message
}

func sortByOrder(ids []string, order map[string]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && order[ids[j]] < order[ids[j-1]]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}
