// Package suggest talks to the external destination-suggestion service.
// Its behavior is opaque; this package only shapes requests and degrades
// to a built-in sample list when the service is unavailable.
package suggest

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

	"github.com/globaltrotter/globaltrotter/internal/app/system/limits"
	"github.com/globaltrotter/globaltrotter/internal/domain/apperr"
	"go.uber.org/zap"
)

// Source values on Suggestion.
const (
	SourceService = "service"
	SourceSample  = "sample"
)

// Request is what the service is asked for: a location and the kinds of
// activity the traveler likes. Days and Budget are optional hints.
type Request struct {
	Location   string   `json:"location" validate:"required,max=200"`
	Activities []string `json:"activities" validate:"max=10,dive,max=50"`
	Days       int      `json:"days,omitempty" validate:"gte=0,lte=365"`
	Budget     float64  `json:"budget,omitempty" validate:"gte=0"`
}

// Suggestion is one candidate stop. Name, Budget, Activities and ImageURL
// are what the service returns; the rest is filled in locally.
type Suggestion struct {
	Name        string   `json:"name"`
	Budget      float64  `json:"budget"`
	Activities  []string `json:"activities"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Description string   `json:"description,omitempty"`
	DaysToStay  int      `json:"days_to_stay,omitempty"`
	Source      string   `json:"source"`
}

// Client returns suggestions for a request.
type Client interface {
	Suggest(ctx context.Context, req Request) ([]Suggestion, error)
}

/*─────────────────────────────────────────────────────────────────────────────*
| HTTP client                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// HTTPClient posts requests to <BaseURL>/suggestions.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient returns an HTTPClient. Each call makes one attempt; the
// caller decides whether to fall back or retry.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Suggest implements Client. Failures match apperr.ErrUpstreamUnavailable.
func (c *HTTPClient) Suggest(ctx context.Context, req Request) ([]Suggestion, error) {
	if req.Activities == nil {
		req.Activities = []string{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("suggest: encode request: %w", err)
	}

	raw, err := c.do(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest: %v", apperr.ErrUpstreamUnavailable, err)
	}
	out, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: suggest: %v", apperr.ErrUpstreamUnavailable, err)
	}
	for i := range out {
		out[i].Source = SourceService
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/suggestions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limits.MaxJSONBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return raw, nil
}

// Decode parses a service response. The service answers with a bare list
// of suggestions; a {"suggestions": [...]} envelope is accepted too.
// Entries without a name are dropped and Activities is never nil.
func Decode(raw []byte) ([]Suggestion, error) {
	raw = bytes.TrimSpace(raw)
	var list []Suggestion
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	} else {
		var env struct {
			Suggestions []Suggestion `json:"suggestions"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		list = env.Suggestions
	}

	out := make([]Suggestion, 0, len(list))
	for _, s := range list {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			continue
		}
		if s.Budget < 0 {
			s.Budget = 0
		}
		if s.Activities == nil {
			s.Activities = []string{}
		}
		if !isWebURL(s.ImageURL) {
			s.ImageURL = ""
		}
		out = append(out, s)
	}
	return out, nil
}

func isWebURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| Fallback                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// Fallback wraps a Client and serves Samples when it fails or returns
// nothing. It never returns an error except for a cancelled context.
type Fallback struct {
	Primary Client // may be nil when no service is configured
	Log     *zap.Logger
}

// Suggest implements Client.
func (f Fallback) Suggest(ctx context.Context, req Request) ([]Suggestion, error) {
	if f.Primary != nil {
		out, err := f.Primary.Suggest(ctx, req)
		if err == nil && len(out) > 0 {
			return out, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			f.Log.Warn("suggestion service unavailable; using sample list",
				zap.String("location", req.Location),
				zap.Error(err))
		}
	}
	return Samples(req), nil
}

// Samples returns a generic itinerary scaled to the request's days and
// budget. Days and budget default to 5 and 1000.
func Samples(req Request) []Suggestion {
	dest := strings.TrimSpace(req.Location)
	if dest == "" {
		dest = "your destination"
	}
	days := req.Days
	if days <= 0 {
		days = 5
	}
	budget := req.Budget
	if budget <= 0 {
		budget = 1000
	}

	type share struct {
		name, desc string
		days, cost float64
		activities []string
	}
	plan := []share{
		{"Arrival & city walk in " + dest, "Settle in and explore the historic center.", 0.2, 0.15, []string{"walking", "sightseeing"}},
		{"Museums and local culture", "Top museums, galleries and a guided tour.", 0.3, 0.25, []string{"museums", "culture"}},
		{"Food and markets", "Street food, markets and a cooking class.", 0.2, 0.25, []string{"food", "shopping"}},
		{"Day trip outside " + dest, "Nature or a nearby town by train or tour.", 0.3, 0.35, []string{"nature", "hiking"}},
	}

	out := make([]Suggestion, 0, len(plan))
	remaining := days
	for i, p := range plan {
		d := int(float64(days)*p.days + 0.5)
		if d < 1 {
			d = 1
		}
		if i == len(plan)-1 || d > remaining {
			d = max(remaining, 1)
		}
		remaining -= d
		out = append(out, Suggestion{
			Name:        p.name,
			Description: p.desc,
			Activities:  append([]string(nil), p.activities...),
			Budget:      round2(budget * p.cost),
			DaysToStay:  d,
			Source:      SourceSample,
		})
		if remaining <= 0 {
			break
		}
	}
	return out
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
