// Package tui is the terminal front-end: a preference form, the rendered
// itinerary, and a fuzzy command palette. All workflow state lives in the
// session; the TUI holds only presentation state.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/cityroute/internal/catalog"
	"github.com/jask/cityroute/internal/config"
	"github.com/jask/cityroute/internal/prefs"
	"github.com/jask/cityroute/internal/session"
)

// preference form field order
const (
	fieldCity = iota
	fieldDays
	fieldDetour
	fieldMaxPois
	fieldDiet
	fieldPrice
	fieldCount
)

type keyMap struct {
	Generate    key.Binding
	AutoPick    key.Binding
	ExportJSON  key.Binding
	ExportCSV   key.Binding
	Reload      key.Binding
	ToggleNames key.Binding
	MustGo      key.Binding
	Palette     key.Binding
	NextField   key.Binding
	PrevField   key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Generate:    key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "generate")),
		AutoPick:    key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "auto-pick meals")),
		ExportJSON:  key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "export json")),
		ExportCSV:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "export csv")),
		Reload:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		ToggleNames: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "names on/off")),
		MustGo:      key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "must-go only")),
		Palette:     key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "palette")),
		NextField:   key.NewBinding(key.WithKeys("tab", "enter"), key.WithHelp("tab", "next field")),
		PrevField:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// App ties the preference form, session and catalog together.
type App struct {
	ctx        context.Context
	cfg        config.Config
	sess       *session.Session
	cat        *catalog.Catalog
	keys       keyMap
	registry   *CommandRegistry
	inputs     [fieldCount]textinput.Model
	focus      int
	onlyMustGo bool
	showNames  bool
	spin       spinner.Model
	status     string
	isErr      bool
	width      int
	height     int

	// palette overlay
	paletteOpen   bool
	paletteInput  textinput.Model
	paletteCursor int
	matches       []CommandMatch
}

func New(ctx context.Context, cfg config.Config, sess *session.Session, cat *catalog.Catalog) *App {
	a := &App{
		ctx:       ctx,
		cfg:       cfg,
		sess:      sess,
		cat:       cat,
		keys:      newKeyMap(),
		showNames: cfg.UI.ShowNames,
	}
	a.registry = newCommandRegistry()

	labels := [fieldCount]struct{ placeholder, initial string }{
		fieldCity:    {"Pittsburgh", cfg.UI.DefaultCity},
		fieldDays:    {"3", strconv.Itoa(cfg.UI.DefaultDays)},
		fieldDetour:  {"15", strconv.FormatFloat(cfg.UI.DefaultDetourMin, 'f', -1, 64)},
		fieldMaxPois: {"40", ""},
		fieldDiet:    {"vegetarian|halal", ""},
		fieldPrice:   {"$, $$ or $$$", ""},
	}
	for i := range a.inputs {
		inp := textinput.New()
		inp.Prompt = ""
		inp.Placeholder = labels[i].placeholder
		inp.SetValue(labels[i].initial)
		inp.CharLimit = 64
		a.inputs[i] = inp
	}
	a.inputs[fieldCity].Focus()

	a.spin = spinner.New()
	a.spin.Spinner = spinner.Dot

	a.paletteInput = textinput.New()
	a.paletteInput.Prompt = "cmd> "
	a.paletteInput.Placeholder = "Search commands"

	return a
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		return a, nil

	case tea.KeyMsg:
		if a.paletteOpen {
			return a.handlePaletteKey(m)
		}
		switch {
		case key.Matches(m, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(m, a.keys.Palette):
			a.openPalette()
			return a, textinput.Blink
		case key.Matches(m, a.keys.Generate):
			return a.dispatch("plan:generate")
		case key.Matches(m, a.keys.AutoPick):
			return a.dispatch("plan:auto-pick")
		case key.Matches(m, a.keys.ExportJSON):
			return a.dispatch("export:json")
		case key.Matches(m, a.keys.ExportCSV):
			return a.dispatch("export:csv")
		case key.Matches(m, a.keys.Reload):
			return a.dispatch("plan:reload")
		case key.Matches(m, a.keys.ToggleNames):
			a.showNames = !a.showNames
			return a, nil
		case key.Matches(m, a.keys.MustGo):
			a.onlyMustGo = !a.onlyMustGo
			return a, nil
		case key.Matches(m, a.keys.NextField):
			a.setFocus((a.focus + 1) % fieldCount)
			return a, nil
		case key.Matches(m, a.keys.PrevField):
			a.setFocus((a.focus - 1 + fieldCount) % fieldCount)
			return a, nil
		}
		var cmd tea.Cmd
		a.inputs[a.focus], cmd = a.inputs[a.focus].Update(m)
		return a, cmd

	case spinner.TickMsg:
		if !a.sess.Snapshot().Busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(m)
		return a, cmd

	case generateDoneMsg:
		if m.err != nil {
			a.setError(m.err)
			return a, nil
		}
		snap := a.sess.Snapshot()
		a.setStatus(fmt.Sprintf("Generated %s with %d day(s).", snap.Summary.ItineraryID, len(snap.Summary.DayIDs)))
		return a, nil

	case autoPickDoneMsg:
		if m.err != nil {
			a.setError(m.err)
			return a, nil
		}
		a.setStatus(fmt.Sprintf("Auto-picked meals for %d day(s).", len(m.updated)))
		return a, nil

	case exportDoneMsg:
		if m.err != nil {
			a.setError(m.err)
			return a, nil
		}
		a.setStatus("Saved " + m.path)
		return a, nil

	case reloadDoneMsg:
		if m.err != nil {
			a.setError(m.err)
			return a, nil
		}
		a.setStatus("Itinerary reloaded.")
		return a, nil

	case statusMsg:
		a.setStatus(string(m))
		return a, nil

	case errMsg:
		a.setError(m.error)
		return a, nil
	}
	return a, nil
}

func (a *App) dispatch(id string) (tea.Model, tea.Cmd) {
	cmd, ok := a.registry.byID[id]
	if !ok {
		return a, nil
	}
	if enabled, reason := cmd.Enabled(a); !enabled {
		a.status = reason
		a.isErr = true
		return a, nil
	}
	return a, tea.Batch(cmd.Execute(a), a.spin.Tick)
}

func (a *App) setFocus(i int) {
	a.inputs[a.focus].Blur()
	a.focus = i
	a.inputs[a.focus].Focus()
}

func (a *App) setStatus(s string) {
	a.status = s
	a.isErr = false
}

func (a *App) setError(err error) {
	a.status = err.Error()
	a.isErr = true
}

// prefInput collects the raw form values. Validation and clamping happen in
// the session, not here; the form accepts whatever the user typed.
func (a *App) prefInput() prefs.Input {
	return prefs.Input{
		Days:               a.inputs[fieldDays].Value(),
		DetourLimitMinutes: a.inputs[fieldDetour].Value(),
		OnlyMustGo:         a.onlyMustGo,
		MaxPoisTotal:       a.inputs[fieldMaxPois].Value(),
		DietTags:           a.inputs[fieldDiet].Value(),
		PriceRange:         a.inputs[fieldPrice].Value(),
	}
}

// commands
func (a *App) generateCmd() tea.Cmd {
	city := strings.TrimSpace(a.inputs[fieldCity].Value())
	if city == "" {
		city = a.cfg.UI.DefaultCity
	}
	in := a.prefInput()
	a.setStatus("Generating itinerary for " + city + "...")
	return func() tea.Msg {
		return generateDoneMsg{err: a.sess.Generate(a.ctx, city, in)}
	}
}

func (a *App) autoPickCmd() tea.Cmd {
	detour := float64(prefs.DefaultDetourMin)
	if v, err := strconv.ParseFloat(strings.TrimSpace(a.inputs[fieldDetour].Value()), 64); err == nil && v > 0 {
		detour = v
	}
	a.setStatus("Auto-picking meals...")
	return func() tea.Msg {
		updated, err := a.sess.AutoPick(a.ctx, detour)
		return autoPickDoneMsg{updated: updated, err: err}
	}
}

func (a *App) exportCmd(format string) tea.Cmd {
	dir := a.cfg.Export.Dir
	a.setStatus("Exporting " + format + "...")
	return func() tea.Msg {
		blob, err := a.sess.Export(a.ctx, format)
		if err != nil {
			return exportDoneMsg{format: format, err: err}
		}
		path, err := saveBlob(dir, blob.Filename, blob.Data)
		return exportDoneMsg{path: path, format: format, err: err}
	}
}

func (a *App) reloadCmd() tea.Cmd {
	a.setStatus("Reloading itinerary...")
	return func() tea.Msg {
		return reloadDoneMsg{err: a.sess.Reload(a.ctx)}
	}
}

func (a *App) saveSettingsCmd() tea.Cmd {
	cfg := a.cfg
	cfg.UI.ShowNames = a.showNames
	cfg.UI.DefaultCity = strings.TrimSpace(a.inputs[fieldCity].Value())
	if days, err := strconv.Atoi(strings.TrimSpace(a.inputs[fieldDays].Value())); err == nil && days > 0 {
		cfg.UI.DefaultDays = days
	}
	if detour, err := strconv.ParseFloat(strings.TrimSpace(a.inputs[fieldDetour].Value()), 64); err == nil && detour > 0 {
		cfg.UI.DefaultDetourMin = detour
	}
	return func() tea.Msg {
		if err := config.Save(cfg); err != nil {
			return errMsg{err}
		}
		return statusMsg("Settings saved.")
	}
}

// saveBlob writes an export payload into dir and returns the final path.
func saveBlob(dir, filename string, data []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir export dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// palette
func (a *App) openPalette() {
	a.paletteOpen = true
	a.paletteCursor = 0
	a.paletteInput.SetValue("")
	a.paletteInput.Focus()
	a.inputs[a.focus].Blur()
	a.matches = a.registry.Search("", a)
}

func (a *App) closePalette() {
	a.paletteOpen = false
	a.paletteInput.Blur()
	a.matches = nil
	a.inputs[a.focus].Focus()
}

func (a *App) handlePaletteKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc", "ctrl+p":
		a.closePalette()
		return a, nil
	case "ctrl+c":
		return a, tea.Quit
	case "up":
		if a.paletteCursor > 0 {
			a.paletteCursor--
		}
		return a, nil
	case "down":
		if a.paletteCursor < len(a.matches)-1 {
			a.paletteCursor++
		}
		return a, nil
	case "enter":
		if len(a.matches) == 0 {
			a.closePalette()
			return a, nil
		}
		match := a.matches[a.paletteCursor]
		a.closePalette()
		if !match.Enabled {
			a.status = match.DisabledReason
			a.isErr = true
			return a, nil
		}
		return a, tea.Batch(match.Command.Execute(a), a.spin.Tick)
	}
	var cmd tea.Cmd
	a.paletteInput, cmd = a.paletteInput.Update(m)
	a.matches = a.registry.Search(a.paletteInput.Value(), a)
	if a.paletteCursor >= len(a.matches) {
		a.paletteCursor = 0
	}
	return a, cmd
}

// messages
type generateDoneMsg struct {
	err error
}

type autoPickDoneMsg struct {
	updated []string
	err     error
}

type exportDoneMsg struct {
	path   string
	format string
	err    error
}

type reloadDoneMsg struct {
	err error
}

type statusMsg string

type errMsg struct{ error }
