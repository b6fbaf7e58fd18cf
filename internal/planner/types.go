package planner

import (
	"context"
	"fmt"

	"github.com/jask/cityroute/internal/prefs"
)

// ItinerarySummary is the ids-only view returned by generate. Immutable once
// created; a new generate replaces it wholesale.
type ItinerarySummary struct {
	ItineraryID string   `json:"itinerary_id"`
	DayIDs      []string `json:"day_ids"`
	HotelID     string   `json:"hotel_id,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// DayDetail is the per-day view. Absent until fetched; replaced wholesale on
// re-fetch, never merged field-by-field.
type DayDetail struct {
	DayID            string   `json:"id"`
	VisitIDs         []string `json:"visit_ids"`
	LunchID          string   `json:"lunch_id,omitempty"`
	DinnerID         string   `json:"dinner_id,omitempty"`
	TotalTimeMinutes *float64 `json:"total_time_minutes,omitempty"`
}

// AutoPickOptions tunes the meal auto-pick call. Zero DayIDs means all days.
type AutoPickOptions struct {
	DayIDs         []string
	DetourLimitMin float64
}

// Export formats accepted by the planning service.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatCSV2 = "csv2"
)

// ExportBlob is a named payload handed to the host environment for saving.
// The core never writes it to disk itself.
type ExportBlob struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service is the typed boundary to the remote planning service. All
// implementations normalize failures into *ServiceError and never retry.
type Service interface {
	Generate(ctx context.Context, city string, p prefs.TripPreferences) (ItinerarySummary, error)
	Itinerary(ctx context.Context, itineraryID string) (ItinerarySummary, error)
	Day(ctx context.Context, dayID string) (DayDetail, error)
	AutoPickMeals(ctx context.Context, itineraryID string, opts AutoPickOptions) ([]string, error)
	Export(ctx context.Context, itineraryID, format string) (ExportBlob, error)
	Lookup(ctx context.Context, kind string, ids []string) (map[string]string, error)
}

// ServiceError is the single error shape for every remote-call failure:
// transport errors, timeouts, and 4xx/5xx responses alike. Status is zero for
// transport-level failures.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("planning service (%d): %s", e.Status, e.Message)
	}
	return "planning service: " + e.Message
}
