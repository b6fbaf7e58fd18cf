package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/jask/cityroute/internal/catalog"
	"github.com/jask/cityroute/internal/config"
	"github.com/jask/cityroute/internal/planner"
	"github.com/jask/cityroute/internal/prefs"
	"github.com/jask/cityroute/internal/session"
)

// stubService answers every planner call with fixed data.
type stubService struct {
	summary planner.ItinerarySummary
	day     planner.DayDetail
	blob    planner.ExportBlob
}

func (s *stubService) Generate(context.Context, string, prefs.TripPreferences) (planner.ItinerarySummary, error) {
	return s.summary, nil
}

func (s *stubService) Itinerary(context.Context, string) (planner.ItinerarySummary, error) {
	return s.summary, nil
}

func (s *stubService) Day(_ context.Context, id string) (planner.DayDetail, error) {
	d := s.day
	d.DayID = id
	return d, nil
}

func (s *stubService) AutoPickMeals(context.Context, string, planner.AutoPickOptions) ([]string, error) {
	return s.summary.DayIDs, nil
}

func (s *stubService) Export(context.Context, string, string) (planner.ExportBlob, error) {
	return s.blob, nil
}

func (s *stubService) Lookup(context.Context, string, []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func testApp(svc planner.Service) *App {
	cfg := config.Config{}
	cfg.UI.DefaultCity = "Pittsburgh"
	cfg.UI.DefaultDays = 3
	cfg.UI.DefaultDetourMin = 15
	cfg.UI.ShowNames = true
	cat := catalog.New(catalog.Seeds{
		Places:  map[string]string{"poi1": "Point State Park"},
		Lodging: map[string]string{"hotel1": "Priory Hotel"},
		Dining:  map[string]string{"rest1": "Primanti Bros."},
	})
	return New(context.Background(), cfg, session.New(svc), cat)
}

func TestSearchMatchesBySubsequence(t *testing.T) {
	t.Parallel()

	a := testApp(&stubService{})
	matches := a.registry.Search("expjson", a)
	require.NotEmpty(t, matches)
	require.Equal(t, "export:json", matches[0].Command.ID)
}

func TestSearchRanksEnabledFirst(t *testing.T) {
	t.Parallel()

	a := testApp(&stubService{})
	matches := a.registry.Search("", a)
	require.NotEmpty(t, matches)

	seenDisabled := false
	for _, m := range matches {
		if !m.Enabled {
			seenDisabled = true
		} else {
			require.False(t, seenDisabled, "enabled commands must sort before disabled ones")
		}
	}
}

func TestItineraryCommandsDisabledBeforeGenerate(t *testing.T) {
	t.Parallel()

	a := testApp(&stubService{})
	for _, id := range []string{"plan:auto-pick", "plan:reload", "export:json", "export:csv", "export:csv2"} {
		enabled, reason := a.registry.byID[id].Enabled(a)
		require.False(t, enabled, id)
		require.Equal(t, "Generate an itinerary first.", reason)
	}
	enabled, _ := a.registry.byID["plan:generate"].Enabled(a)
	require.True(t, enabled)
}

func TestFuzzyMatchRejectsNonSubsequence(t *testing.T) {
	t.Parallel()

	matched, _ := fuzzyMatchScore("Generate Itinerary", "xyz")
	require.False(t, matched)

	matched, prefixScore := fuzzyMatchScore("Generate Itinerary", "gen")
	require.True(t, matched)
	matched, looseScore := fuzzyMatchScore("Toggle Must-Go Only", "gen")
	require.True(t, matched)
	require.Greater(t, prefixScore, looseScore)
}

func TestDispatchWhileNotReadyShowsReason(t *testing.T) {
	t.Parallel()

	a := testApp(&stubService{})
	model, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlA})
	require.Nil(t, cmd)
	got := model.(*App)
	require.True(t, got.isErr)
	require.Equal(t, "Generate an itinerary first.", got.status)
}

func TestGenerateKeyRunsWorkflow(t *testing.T) {
	t.Parallel()

	svc := &stubService{summary: planner.ItinerarySummary{ItineraryID: "it-001", DayIDs: []string{"day1"}}}
	a := testApp(svc)

	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyCtrlG})
	require.NotNil(t, cmd)

	msg := drainBatch(t, cmd)
	done, ok := msg.(generateDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	model, _ := a.Update(done)
	got := model.(*App)
	require.Contains(t, got.status, "it-001")
	require.NotNil(t, got.sess.Snapshot().Summary)
}

// drainBatch executes a command tree and returns the first workflow message.
func drainBatch(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if m := drainBatch(t, c); m != nil {
				switch m.(type) {
				case generateDoneMsg, autoPickDoneMsg, exportDoneMsg, reloadDoneMsg, errMsg, statusMsg:
					return m
				}
			}
		}
		t.Fatal("no workflow message in batch")
	}
	return msg
}
