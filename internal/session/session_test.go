package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/cityroute/internal/planner"
	"github.com/jask/cityroute/internal/prefs"
)

// mockService lets each test wire only the calls it expects.
type mockService struct {
	generate  func(ctx context.Context, city string, p prefs.TripPreferences) (planner.ItinerarySummary, error)
	itinerary func(ctx context.Context, id string) (planner.ItinerarySummary, error)
	day       func(ctx context.Context, id string) (planner.DayDetail, error)
	autoPick  func(ctx context.Context, id string, opts planner.AutoPickOptions) ([]string, error)
	export    func(ctx context.Context, id, format string) (planner.ExportBlob, error)
	lookup    func(ctx context.Context, kind string, ids []string) (map[string]string, error)
}

func (m *mockService) Generate(ctx context.Context, city string, p prefs.TripPreferences) (planner.ItinerarySummary, error) {
	return m.generate(ctx, city, p)
}

func (m *mockService) Itinerary(ctx context.Context, id string) (planner.ItinerarySummary, error) {
	return m.itinerary(ctx, id)
}

func (m *mockService) Day(ctx context.Context, id string) (planner.DayDetail, error) {
	return m.day(ctx, id)
}

func (m *mockService) AutoPickMeals(ctx context.Context, id string, opts planner.AutoPickOptions) ([]string, error) {
	return m.autoPick(ctx, id, opts)
}

func (m *mockService) Export(ctx context.Context, id, format string) (planner.ExportBlob, error) {
	return m.export(ctx, id, format)
}

func (m *mockService) Lookup(ctx context.Context, kind string, ids []string) (map[string]string, error) {
	return m.lookup(ctx, kind, ids)
}

func summaryService(sum planner.ItinerarySummary) *mockService {
	return &mockService{
		generate: func(context.Context, string, prefs.TripPreferences) (planner.ItinerarySummary, error) {
			return sum, nil
		},
	}
}

func readySession(t *testing.T, svc *mockService, sum planner.ItinerarySummary) *Session {
	t.Helper()
	svc.generate = func(context.Context, string, prefs.TripPreferences) (planner.ItinerarySummary, error) {
		return sum, nil
	}
	s := New(svc)
	require.NoError(t, s.Generate(context.Background(), "Pittsburgh", prefs.Input{Days: "3"}))
	return s
}

func TestGenerateReplacesSummaryAndClearsDays(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1", "day2"}})

	svc.day = func(_ context.Context, id string) (planner.DayDetail, error) {
		return planner.DayDetail{DayID: id, VisitIDs: []string{"poi1"}}, nil
	}
	svc.autoPick = func(context.Context, string, planner.AutoPickOptions) ([]string, error) {
		return []string{"day1"}, nil
	}
	_, err := s.AutoPick(context.Background(), 15)
	require.NoError(t, err)
	require.Len(t, s.Snapshot().Days, 1)

	svc.generate = func(context.Context, string, prefs.TripPreferences) (planner.ItinerarySummary, error) {
		return planner.ItinerarySummary{ItineraryID: "it-002", DayIDs: []string{"day4"}}, nil
	}
	require.NoError(t, s.Generate(context.Background(), "Pittsburgh", prefs.Input{}))

	snap := s.Snapshot()
	require.Equal(t, "it-002", snap.Summary.ItineraryID)
	require.Empty(t, snap.Days, "stale details must not survive a new summary")
	require.Equal(t, PhaseReady, s.Phase())
}

func TestGenerateFailureKeepsPriorState(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1"}})

	svc.generate = func(context.Context, string, prefs.TripPreferences) (planner.ItinerarySummary, error) {
		return planner.ItinerarySummary{}, &planner.ServiceError{Status: 500, Message: "boom"}
	}
	err := s.Generate(context.Background(), "Pittsburgh", prefs.Input{})
	require.Error(t, err)

	snap := s.Snapshot()
	require.Equal(t, "it-001", snap.Summary.ItineraryID)
	require.False(t, snap.Busy)
	require.Contains(t, snap.Message, "Generate failed")
	require.Equal(t, PhaseReady, s.Phase())
}

func TestGenerateSurfacesNormalizationAndServerWarnings(t *testing.T) {
	t.Parallel()

	svc := summaryService(planner.ItinerarySummary{
		ItineraryID: "it-001",
		DayIDs:      []string{"day1"},
		Warnings:    []string{"POIs were trimmed to max_pois_total=40."},
	})
	s := New(svc)
	require.NoError(t, s.Generate(context.Background(), "Pittsburgh", prefs.Input{Days: "0", MaxPoisTotal: "99"}))

	snap := s.Snapshot()
	require.Len(t, snap.Warnings, 3)
	require.Contains(t, snap.Warnings[2], "trimmed")
}

func TestOperationsBeforeGenerateAreNotReady(t *testing.T) {
	t.Parallel()

	s := New(&mockService{})
	_, err := s.AutoPick(context.Background(), 15)
	require.ErrorIs(t, err, ErrNotReady)

	_, err = s.Export(context.Background(), planner.FormatJSON)
	require.ErrorIs(t, err, ErrNotReady)

	require.ErrorIs(t, s.Reload(context.Background()), ErrNotReady)
	require.Equal(t, PhaseIdle, s.Phase())
}

func TestConcurrentOperationIsRejected(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	svc := &mockService{
		generate: func(context.Context, string, prefs.TripPreferences) (planner.ItinerarySummary, error) {
			close(started)
			<-release
			return planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1"}}, nil
		},
	}
	s := New(svc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, s.Generate(context.Background(), "Pittsburgh", prefs.Input{}))
	}()

	<-started
	require.True(t, s.Snapshot().Busy)
	_, err := s.Export(context.Background(), planner.FormatJSON)
	require.ErrorIs(t, err, ErrNotReady)

	close(release)
	wg.Wait()
	require.False(t, s.Snapshot().Busy)
}

func TestAutoPickFetchesAffectedDays(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1", "day2", "day3"}})

	svc.autoPick = func(_ context.Context, id string, opts planner.AutoPickOptions) ([]string, error) {
		require.Equal(t, "it-001", id)
		require.Equal(t, 20.0, opts.DetourLimitMin)
		return []string{"day3", "day1"}, nil
	}
	svc.day = func(_ context.Context, id string) (planner.DayDetail, error) {
		return planner.DayDetail{DayID: id, LunchID: "rest1"}, nil
	}

	updated, err := s.AutoPick(context.Background(), 20)
	require.NoError(t, err)
	require.Equal(t, []string{"day1", "day3"}, updated, "updated ids follow summary order")

	snap := s.Snapshot()
	require.Len(t, snap.Days, 2)
	require.Equal(t, "rest1", snap.Days["day1"].LunchID)
	require.NotContains(t, snap.Days, "day2")
}

func TestAutoPickPartialFailureCommitsSucceededDays(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1", "day2", "day3"}})

	svc.autoPick = func(context.Context, string, planner.AutoPickOptions) ([]string, error) {
		return []string{"day1", "day2", "day3"}, nil
	}
	svc.day = func(_ context.Context, id string) (planner.DayDetail, error) {
		if id == "day2" {
			return planner.DayDetail{}, &planner.ServiceError{Status: 404, Message: "Day not found"}
		}
		return planner.DayDetail{DayID: id, DinnerID: "rest4"}, nil
	}

	updated, err := s.AutoPick(context.Background(), 15)
	require.Error(t, err)
	require.Contains(t, err.Error(), "day2")
	require.Equal(t, []string{"day1", "day3"}, updated)

	snap := s.Snapshot()
	require.Len(t, snap.Days, 2)
	require.NotContains(t, snap.Days, "day2")
	require.False(t, snap.Busy)
	require.Equal(t, PhaseReady, s.Phase())
}

func TestAutoPickSkipsDaysOutsideSummary(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1"}})

	svc.autoPick = func(context.Context, string, planner.AutoPickOptions) ([]string, error) {
		return []string{"day1", "day9"}, nil
	}
	svc.day = func(_ context.Context, id string) (planner.DayDetail, error) {
		require.Equal(t, "day1", id)
		return planner.DayDetail{DayID: id}, nil
	}

	updated, err := s.AutoPick(context.Background(), 15)
	require.NoError(t, err)
	require.Equal(t, []string{"day1"}, updated)
	require.NotContains(t, s.Snapshot().Days, "day9")
}

func TestExportDoesNotMutateState(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1"}})
	before := s.Snapshot()

	svc.export = func(_ context.Context, id, format string) (planner.ExportBlob, error) {
		require.Equal(t, "it-001", id)
		require.Equal(t, planner.FormatCSV, format)
		return planner.ExportBlob{Filename: "it-001_days.csv", ContentType: "text/csv", Data: []byte("day_id\n")}, nil
	}

	blob, err := s.Export(context.Background(), planner.FormatCSV)
	require.NoError(t, err)
	require.Equal(t, "it-001_days.csv", blob.Filename)

	after := s.Snapshot()
	require.Equal(t, before.Summary, after.Summary)
	require.Equal(t, before.Days, after.Days)
	require.Contains(t, after.Message, "Exported")
}

func TestReloadReplacesSummaryWholesale(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1", "day2"}})

	svc.autoPick = func(context.Context, string, planner.AutoPickOptions) ([]string, error) {
		return []string{"day1"}, nil
	}
	svc.day = func(_ context.Context, id string) (planner.DayDetail, error) {
		return planner.DayDetail{DayID: id}, nil
	}
	_, err := s.AutoPick(context.Background(), 15)
	require.NoError(t, err)

	svc.itinerary = func(_ context.Context, id string) (planner.ItinerarySummary, error) {
		require.Equal(t, "it-001", id)
		return planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1", "day2"}, HotelID: "hotel2"}, nil
	}
	require.NoError(t, s.Reload(context.Background()))

	snap := s.Snapshot()
	require.Equal(t, "hotel2", snap.Summary.HotelID)
	require.Empty(t, snap.Days)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1"}})

	snap := s.Snapshot()
	snap.Summary.DayIDs[0] = "mutated"
	snap.Days["day9"] = planner.DayDetail{DayID: "day9"}

	fresh := s.Snapshot()
	require.Equal(t, []string{"day1"}, fresh.Summary.DayIDs)
	require.NotContains(t, fresh.Days, "day9")
}

func TestErrorsAreJoinedAcrossFailedDays(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	s := readySession(t, svc, planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1", "day2"}})

	svc.autoPick = func(context.Context, string, planner.AutoPickOptions) ([]string, error) {
		return []string{"day1", "day2"}, nil
	}
	dayErr := &planner.ServiceError{Status: 503, Message: "unavailable"}
	svc.day = func(context.Context, string) (planner.DayDetail, error) {
		return planner.DayDetail{}, dayErr
	}

	_, err := s.AutoPick(context.Background(), 15)
	require.Error(t, err)
	var svcErr *planner.ServiceError
	require.True(t, errors.As(err, &svcErr))
	require.Contains(t, err.Error(), "day1")
	require.Contains(t, err.Error(), "day2")
}
