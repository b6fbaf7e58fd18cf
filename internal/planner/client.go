// Package planner is the typed HTTP boundary to the remote planning service.
// Each operation is a single request/response exchange; retry policy, if any,
// belongs to the caller.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/cityroute/internal/prefs"
)

// Client talks to the planning service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a planning service client. Transport-level timeouts live
// here and surface as ordinary ServiceErrors.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	City  string                `json:"city"`
	Prefs prefs.TripPreferences `json:"prefs"`
}

// Generate requests a new itinerary. A success always carries a non-empty
// itinerary id; server-side pref adjustments arrive in Warnings.
func (c *Client) Generate(ctx context.Context, city string, p prefs.TripPreferences) (ItinerarySummary, error) {
	var out ItinerarySummary
	if err := c.post(ctx, "/itinerary/generate", generateRequest{City: city, Prefs: p}, &out); err != nil {
		return ItinerarySummary{}, err
	}
	if out.ItineraryID == "" {
		return ItinerarySummary{}, &ServiceError{Message: "generate returned no itinerary id"}
	}
	return out, nil
}

// Itinerary re-fetches an existing summary by id.
func (c *Client) Itinerary(ctx context.Context, itineraryID string) (ItinerarySummary, error) {
	var out struct {
		ID       string   `json:"id"`
		DayIDs   []string `json:"day_ids"`
		HotelID  string   `json:"hotel_id"`
		Warnings []string `json:"warnings"`
	}
	if err := c.get(ctx, "/itineraries/"+url.PathEscape(itineraryID), &out); err != nil {
		return ItinerarySummary{}, err
	}
	return ItinerarySummary{
		ItineraryID: out.ID,
		DayIDs:      out.DayIDs,
		HotelID:     out.HotelID,
		Warnings:    out.Warnings,
	}, nil
}

// Day fetches the detail for one day id.
func (c *Client) Day(ctx context.Context, dayID string) (DayDetail, error) {
	var out DayDetail
	if err := c.get(ctx, "/days/"+url.PathEscape(dayID), &out); err != nil {
		return DayDetail{}, err
	}
	return out, nil
}

type autoPickRequest struct {
	ItineraryID    string   `json:"itinerary_id"`
	DayIDs         []string `json:"day_ids,omitempty"`
	DetourLimitMin float64  `json:"detour_limit_min"`
}

// AutoPickMeals asks the service to assign meals and returns the ids of the
// days whose meals changed. It deliberately does not return day detail; the
// caller re-fetches each affected day so detail stays canonical-from-server.
func (c *Client) AutoPickMeals(ctx context.Context, itineraryID string, opts AutoPickOptions) ([]string, error) {
	req := autoPickRequest{
		ItineraryID:    itineraryID,
		DayIDs:         opts.DayIDs,
		DetourLimitMin: opts.DetourLimitMin,
	}
	var out struct {
		Days []struct {
			ID string `json:"id"`
		} `json:"days"`
	}
	if err := c.post(ctx, "/restaurants/auto_pick", req, &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Days))
	for _, d := range out.Days {
		if d.ID != "" {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

type exportRequest struct {
	ItineraryID string `json:"itinerary_id"`
	Format      string `json:"format"`
}

// Export materializes the itinerary in the requested format. CSV variants
// carry the server's text plus a filename, defaulted client-side when the
// server omits one; JSON carries the pretty-printed structured view.
func (c *Client) Export(ctx context.Context, itineraryID, format string) (ExportBlob, error) {
	req := exportRequest{ItineraryID: itineraryID, Format: format}
	switch format {
	case FormatCSV, FormatCSV2:
		var out struct {
			Filename    string `json:"filename"`
			ContentType string `json:"content_type"`
			CSVText     string `json:"csv_text"`
		}
		if err := c.post(ctx, "/export", req, &out); err != nil {
			return ExportBlob{}, err
		}
		if out.Filename == "" {
			out.Filename = defaultCSVFilename(itineraryID, format)
		}
		if out.ContentType == "" {
			out.ContentType = "text/csv"
		}
		return ExportBlob{Filename: out.Filename, ContentType: out.ContentType, Data: []byte(out.CSVText)}, nil
	default:
		var raw json.RawMessage
		if err := c.post(ctx, "/export", req, &raw); err != nil {
			return ExportBlob{}, err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			return ExportBlob{}, &ServiceError{Message: "export returned invalid JSON: " + err.Error()}
		}
		return ExportBlob{
			Filename:    itineraryID + ".json",
			ContentType: "application/json",
			Data:        pretty.Bytes(),
		}, nil
	}
}

func defaultCSVFilename(itineraryID, format string) string {
	if format == FormatCSV2 {
		return itineraryID + "_stops.csv"
	}
	return itineraryID + "_days.csv"
}

// Lookup resolves names for ids of one wire kind ("poi", "hotel",
// "restaurant"). Ids the service cannot name are omitted from the result.
func (c *Client) Lookup(ctx context.Context, kind string, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	path := "/lookup/" + url.PathEscape(kind) + "?ids=" + url.QueryEscape(strings.Join(ids, ","))
	var out struct {
		Items []struct {
			ID   string  `json:"id"`
			Name *string `json:"name"`
		} `json:"items"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(out.Items))
	for _, item := range out.Items {
		if item.Name != nil && *item.Name != "" {
			names[item.ID] = *item.Name
		}
	}
	return names, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &ServiceError{Message: "encode request: " + err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &ServiceError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &ServiceError{Message: err.Error()}
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServiceError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ServiceError{Message: "decode response: " + err.Error()}
	}
	return nil
}

// errorMessage extracts a human-readable message from an error response,
// preferring the service's {"detail": ...} body.
func errorMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("%s %s: %s", resp.Request.Method, resp.Request.URL.Path, http.StatusText(resp.StatusCode))
}
