// Package prefs normalizes raw trip preferences before they are sent to the
// planning service. Normalization never fails: out-of-range or unparseable
// values are corrected to safe defaults and reported as warnings, because the
// server performs the authoritative validation.
package prefs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultDays      = 3
	DefaultDetourMin = 15
	DefaultTravel    = "drive"

	MinPoisTotal = 1
	MaxPoisTotal = 40
)

// TripPreferences is the prefs object transmitted to the planning service.
// Field names and omission rules match the service's generate contract.
type TripPreferences struct {
	Days               int      `json:"days"`
	TravelMode         string   `json:"travel_mode"`
	DetourLimitMinutes float64  `json:"detour_limit_minutes"`
	OnlyMustGo         bool     `json:"only_must_go"`
	MaxPoisTotal       int      `json:"max_pois_total"`
	DietTags           []string `json:"diet_tags,omitempty"`
	PriceRange         string   `json:"price_range,omitempty"`
}

// Input holds raw, UI-shaped preference values. Numeric fields arrive as
// strings straight from text inputs.
type Input struct {
	Days               string
	TravelMode         string
	DetourLimitMinutes string
	OnlyMustGo         bool
	MaxPoisTotal       string
	DietTags           string // delimiter-separated, e.g. "vegetarian|vegan"
	PriceRange         string // "$", "$$", "$$$" or empty
}

// Warning describes a silent adjustment made during normalization. Warnings
// are informational and never block a request.
type Warning string

var travelModes = map[string]bool{
	"drive":   true,
	"walk":    true,
	"transit": true,
}

var priceRanges = map[string]bool{
	"$":   true,
	"$$":  true,
	"$$$": true,
}

// Normalize coerces and clamps raw input into valid TripPreferences.
func Normalize(in Input) (TripPreferences, []Warning) {
	var warns []Warning

	days, ok := parseInt(in.Days)
	switch {
	case !ok:
		days = DefaultDays
		if strings.TrimSpace(in.Days) != "" {
			warns = append(warns, Warning(fmt.Sprintf("days %q is not a number; using %d", in.Days, DefaultDays)))
		}
	case days < 1:
		warns = append(warns, Warning(fmt.Sprintf("days %d raised to 1", days)))
		days = 1
	}

	detour, ok := parseFloat(in.DetourLimitMinutes)
	switch {
	case !ok:
		detour = DefaultDetourMin
		if strings.TrimSpace(in.DetourLimitMinutes) != "" {
			warns = append(warns, Warning(fmt.Sprintf("detour limit %q is not a number; using %d", in.DetourLimitMinutes, DefaultDetourMin)))
		}
	case detour < 0:
		warns = append(warns, Warning("negative detour limit raised to 0"))
		detour = 0
	}

	maxPois, w := clampPoisTotal(in.MaxPoisTotal)
	warns = append(warns, w...)

	mode := strings.ToLower(strings.TrimSpace(in.TravelMode))
	if mode == "" {
		mode = DefaultTravel
	} else if !travelModes[mode] {
		warns = append(warns, Warning(fmt.Sprintf("unknown travel mode %q; using %s", in.TravelMode, DefaultTravel)))
		mode = DefaultTravel
	}

	price := strings.TrimSpace(in.PriceRange)
	if price != "" && !priceRanges[price] {
		warns = append(warns, Warning(fmt.Sprintf("unknown price range %q dropped", in.PriceRange)))
		price = ""
	}

	return TripPreferences{
		Days:               days,
		TravelMode:         mode,
		DetourLimitMinutes: detour,
		OnlyMustGo:         in.OnlyMustGo,
		MaxPoisTotal:       maxPois,
		DietTags:           splitDietTags(in.DietTags),
		PriceRange:         price,
	}, warns
}

// clampPoisTotal applies floor-then-clamp to [MinPoisTotal, MaxPoisTotal].
// Non-finite input defaults to MaxPoisTotal.
func clampPoisTotal(raw string) (int, []Warning) {
	f, ok := parseFloat(raw)
	if !ok {
		if strings.TrimSpace(raw) != "" {
			return MaxPoisTotal, []Warning{Warning(fmt.Sprintf("max POIs %q is not a number; using %d", raw, MaxPoisTotal))}
		}
		return MaxPoisTotal, nil
	}
	n := int(math.Floor(f))
	switch {
	case n < MinPoisTotal:
		return MinPoisTotal, []Warning{Warning(fmt.Sprintf("max POIs %d raised to %d", n, MinPoisTotal))}
	case n > MaxPoisTotal:
		return MaxPoisTotal, []Warning{Warning(fmt.Sprintf("max POIs %d capped at %d", n, MaxPoisTotal))}
	}
	return n, nil
}

// splitDietTags splits a "|"-separated tag string into trimmed, de-duplicated
// tags. Returns nil when nothing survives so the field is omitted from the
// transmitted payload.
func splitDietTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]bool)
	var tags []string
	for _, part := range strings.Split(raw, "|") {
		tag := strings.TrimSpace(part)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func parseInt(s string) (int, bool) {
	f, ok := parseFloat(s)
	if !ok {
		return 0, false
	}
	return int(math.Floor(f)), true
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
