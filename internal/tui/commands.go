package tui

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	tea "github.com/charmbracelet/bubbletea"
)

// Command is a palette entry. Enabled gates execution and supplies the reason
// shown when the entry cannot run in the current workflow state.
type Command struct {
	ID          string
	Label       string
	Description string
	Enabled     func(a *App) (bool, string)
	Execute     func(a *App) tea.Cmd
}

type CommandMatch struct {
	Command        Command
	Score          int
	Enabled        bool
	DisabledReason string
}

type CommandRegistry struct {
	commands []Command
	byID     map[string]Command
}

func commandAlwaysEnabled(*App) (bool, string) { return true, "" }

// commandNeedsItinerary gates entries that operate on a generated itinerary.
func commandNeedsItinerary(a *App) (bool, string) {
	snap := a.sess.Snapshot()
	if snap.Busy {
		return false, "An operation is already running."
	}
	if snap.Summary == nil {
		return false, "Generate an itinerary first."
	}
	return true, ""
}

func commandNotBusy(a *App) (bool, string) {
	if a.sess.Snapshot().Busy {
		return false, "An operation is already running."
	}
	return true, ""
}

func newCommandRegistry() *CommandRegistry {
	r := &CommandRegistry{}
	r.commands = []Command{
		{
			ID:          "plan:generate",
			Label:       "Generate Itinerary",
			Description: "Plan a new trip from the current preferences",
			Enabled:     commandNotBusy,
			Execute:     func(a *App) tea.Cmd { return a.generateCmd() },
		},
		{
			ID:          "plan:auto-pick",
			Label:       "Auto-Pick Meals",
			Description: "Assign lunch and dinner stops within the detour limit",
			Enabled:     commandNeedsItinerary,
			Execute:     func(a *App) tea.Cmd { return a.autoPickCmd() },
		},
		{
			ID:          "plan:reload",
			Label:       "Reload Itinerary",
			Description: "Re-fetch the current itinerary from the planning service",
			Enabled:     commandNeedsItinerary,
			Execute:     func(a *App) tea.Cmd { return a.reloadCmd() },
		},
		{
			ID:          "export:json",
			Label:       "Export JSON",
			Description: "Save the full itinerary as a JSON file",
			Enabled:     commandNeedsItinerary,
			Execute:     func(a *App) tea.Cmd { return a.exportCmd("json") },
		},
		{
			ID:          "export:csv",
			Label:       "Export CSV (days)",
			Description: "Save one row per day with its visit ids",
			Enabled:     commandNeedsItinerary,
			Execute:     func(a *App) tea.Cmd { return a.exportCmd("csv") },
		},
		{
			ID:          "export:csv2",
			Label:       "Export CSV (stops)",
			Description: "Save one row per stop across all days",
			Enabled:     commandNeedsItinerary,
			Execute:     func(a *App) tea.Cmd { return a.exportCmd("csv2") },
		},
		{
			ID:          "view:toggle-names",
			Label:       "Toggle Names",
			Description: "Switch between bare ids and resolved labels",
			Enabled:     commandAlwaysEnabled,
			Execute: func(a *App) tea.Cmd {
				a.showNames = !a.showNames
				return nil
			},
		},
		{
			ID:          "prefs:toggle-must-go",
			Label:       "Toggle Must-Go Only",
			Description: "Restrict planning to must-go places",
			Enabled:     commandAlwaysEnabled,
			Execute: func(a *App) tea.Cmd {
				a.onlyMustGo = !a.onlyMustGo
				return nil
			},
		},
		{
			ID:          "settings:save",
			Label:       "Save Settings",
			Description: "Persist the current defaults to the config file",
			Enabled:     commandAlwaysEnabled,
			Execute:     func(a *App) tea.Cmd { return a.saveSettingsCmd() },
		},
		{
			ID:          "app:quit",
			Label:       "Quit",
			Description: "Exit the application",
			Enabled:     commandAlwaysEnabled,
			Execute:     func(a *App) tea.Cmd { return tea.Quit },
		},
	}
	r.byID = make(map[string]Command, len(r.commands))
	for _, c := range r.commands {
		r.byID[c.ID] = c
	}
	return r
}

// Search returns palette entries ranked for the query. Enabled entries sort
// first, then by score, then label.
func (r *CommandRegistry) Search(query string, a *App) []CommandMatch {
	if r == nil {
		return nil
	}
	q := strings.TrimSpace(query)
	out := make([]CommandMatch, 0, len(r.commands))
	for _, cmd := range r.commands {
		matched, score := commandMatchScore(cmd, q)
		if !matched {
			continue
		}
		enabled, reason := cmd.Enabled(a)
		out = append(out, CommandMatch{
			Command:        cmd,
			Score:          score,
			Enabled:        enabled,
			DisabledReason: reason,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Enabled != out[j].Enabled {
			return out[i].Enabled
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		li := strings.ToLower(out[i].Command.Label)
		lj := strings.ToLower(out[j].Command.Label)
		if li != lj {
			return li < lj
		}
		return out[i].Command.ID < out[j].Command.ID
	})
	return out
}

func commandMatchScore(cmd Command, query string) (bool, int) {
	if query == "" {
		return true, 0
	}
	best := -1
	for _, field := range []string{cmd.Label, cmd.ID, cmd.Description} {
		matched, score := fuzzyMatchScore(field, query)
		if !matched {
			continue
		}
		if strings.EqualFold(field, query) {
			score += 15
		}
		if score > best {
			best = score
		}
	}
	if best < 0 {
		return false, 0
	}
	return true, best
}

// fuzzyMatchScore requires the query to appear as a subsequence of the label,
// rewarding prefix and adjacency, then nudges the score by edit distance so
// near-exact labels outrank loose subsequence hits.
func fuzzyMatchScore(label, query string) (bool, int) {
	labelLower := strings.ToLower(label)
	queryLower := strings.ToLower(query)

	matchIdx := make([]int, 0, len(queryLower))
	searchFrom := 0
	for i := 0; i < len(queryLower); i++ {
		ch := queryLower[i]
		found := false
		for j := searchFrom; j < len(labelLower); j++ {
			if labelLower[j] == ch {
				matchIdx = append(matchIdx, j)
				searchFrom = j + 1
				found = true
				break
			}
		}
		if !found {
			return false, 0
		}
	}

	score := len(queryLower)
	if len(matchIdx) > 0 && matchIdx[0] == 0 {
		score += 10
	}
	for i := 1; i < len(matchIdx); i++ {
		if matchIdx[i] == matchIdx[i-1]+1 {
			score += 3
		}
	}
	dist := levenshtein.ComputeDistance(labelLower, queryLower)
	if dist < len(labelLower) {
		score += (len(labelLower) - dist) / 4
	}
	return true, score
}
