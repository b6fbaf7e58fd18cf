package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/cityroute/internal/catalog"
	"github.com/jask/cityroute/internal/planner"
	"github.com/jask/cityroute/internal/session"
)

// styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(20)
	focusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dayCardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	paletteStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CityRoute"))
	b.WriteString("\n\n")
	b.WriteString(a.renderForm())
	b.WriteString("\n")

	snap := a.sess.Snapshot()
	if len(snap.Warnings) > 0 {
		for _, w := range snap.Warnings {
			b.WriteString(warnStyle.Render("! "+w) + "\n")
		}
		b.WriteString("\n")
	}
	if snap.Summary != nil {
		b.WriteString(a.renderItinerary(snap))
		b.WriteString("\n")
	}
	b.WriteString(a.renderStatusBar(snap))

	out := b.String()
	if a.paletteOpen {
		out += "\n\n" + a.renderPalette()
	}
	return out
}

func (a *App) renderForm() string {
	names := [fieldCount]string{
		fieldCity:    "City",
		fieldDays:    "Days",
		fieldDetour:  "Detour limit (min)",
		fieldMaxPois: "Max POIs total",
		fieldDiet:    "Diet tags (a|b)",
		fieldPrice:   "Price range",
	}
	var b strings.Builder
	for i := range a.inputs {
		label := labelStyle.Render(names[i])
		if i == a.focus && !a.paletteOpen {
			label = focusStyle.Render(fmt.Sprintf("%-20s", names[i]))
		}
		b.WriteString(label + a.inputs[i].View() + "\n")
	}
	toggle := func(on bool) string {
		if on {
			return "[x]"
		}
		return "[ ]"
	}
	b.WriteString(labelStyle.Render("Must-go only") + toggle(a.onlyMustGo) + "  " +
		labelStyle.Render("Show names") + toggle(a.showNames) + "\n")
	return b.String()
}

func (a *App) renderItinerary(snap session.State) string {
	sum := snap.Summary
	var b strings.Builder

	header := "Itinerary " + sum.ItineraryID
	if sum.HotelID != "" {
		header += "  ·  Hotel: " + a.cat.LabelFor(catalog.KindLodging, sum.HotelID, a.showNames)
	}
	b.WriteString(titleStyle.Render(header) + "\n")

	for i, dayID := range sum.DayIDs {
		detail, ok := snap.Days[dayID]
		b.WriteString(a.renderDayCard(i+1, dayID, detail, ok) + "\n")
	}
	return b.String()
}

func (a *App) renderDayCard(n int, dayID string, d planner.DayDetail, fetched bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Day %d (%s)\n", n, dayID)
	if !fetched {
		b.WriteString(disabledStyle.Render("not fetched yet"))
		return dayCardStyle.Render(b.String())
	}

	visits := make([]string, 0, len(d.VisitIDs))
	for _, id := range d.VisitIDs {
		visits = append(visits, a.cat.LabelFor(catalog.KindPlace, id, a.showNames))
	}
	route := strings.Join(visits, " -> ")
	if route == "" {
		route = disabledStyle.Render("no stops")
	}
	b.WriteString(a.fit(route) + "\n")

	if d.LunchID != "" {
		b.WriteString("Lunch:  " + a.cat.LabelFor(catalog.KindDining, d.LunchID, a.showNames) + "\n")
	}
	if d.DinnerID != "" {
		b.WriteString("Dinner: " + a.cat.LabelFor(catalog.KindDining, d.DinnerID, a.showNames) + "\n")
	}
	if d.TotalTimeMinutes != nil {
		fmt.Fprintf(&b, "Total: %.0f min", *d.TotalTimeMinutes)
	}
	return dayCardStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (a *App) renderStatusBar(snap session.State) string {
	var parts []string
	if snap.Busy {
		parts = append(parts, a.spin.View()+"working...")
	}
	if a.status != "" {
		if a.isErr {
			parts = append(parts, errStyle.Render(a.status))
		} else {
			parts = append(parts, a.status)
		}
	} else if snap.Message != "" {
		parts = append(parts, snap.Message)
	}
	parts = append(parts, statusStyle.Render("ctrl+g generate · ctrl+a meals · ctrl+e/x export · ctrl+p palette · ctrl+c quit"))
	return a.fit(strings.Join(parts, "  "))
}

func (a *App) renderPalette() string {
	var b strings.Builder
	b.WriteString(a.paletteInput.View() + "\n")
	if len(a.matches) == 0 {
		b.WriteString(disabledStyle.Render("no matching commands"))
		return paletteStyle.Render(b.String())
	}
	for i, m := range a.matches {
		line := m.Command.Label + "  " + disabledStyle.Render(m.Command.Description)
		if !m.Enabled {
			line = disabledStyle.Render(m.Command.Label + "  (" + m.DisabledReason + ")")
		}
		if i == a.paletteCursor {
			line = selectedStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(a.fit(line) + "\n")
	}
	return paletteStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// fit truncates a rendered line to the terminal width, ANSI-aware.
func (a *App) fit(s string) string {
	if a.width <= 0 {
		return s
	}
	return ansi.Truncate(s, a.width-2, "…")
}
