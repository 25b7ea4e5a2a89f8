package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Kind selects which dosing check the advisory service runs.
type Kind string

const (
	KindRenal     Kind = "renal"
	KindWeight    Kind = "weight"
	KindPediatric Kind = "pediatric"
)

// ParseKind accepts the three supported check kinds.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindRenal, KindWeight, KindPediatric:
		return k, nil
	}
	return "", fmt.Errorf("unknown advisory check %q", s)
}

// Request is the payload for every check kind. PatientMetric carries the
// eGFR, weight or age depending on the kind.
type Request struct {
	Drug          string `json:"drug"`
	Dose          string `json:"dose"`
	Frequency     string `json:"frequency"`
	PatientMetric string `json:"patient_metric"`
	MonographText string `json:"monograph_text"`
}

// Finding is a structured advisory result. Nil means no finding.
type Finding struct {
	RequiresAdjustment *bool  `json:"requires_adjustment,omitempty"`
	IsSafe             *bool  `json:"is_safe,omitempty"`
	Status             string `json:"status,omitempty"`
	Message            string `json:"message,omitempty"`
}

var ErrMalformed = errors.New("advisory: malformed response")

// Client calls the external advisory service.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: client}
}

// Evaluate posts req to the kind's check endpoint. A nil finding with a nil
// error means the service had nothing to report.
func (c *Client) Evaluate(ctx context.Context, kind Kind, req Request) (*Finding, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/checks/" + string(kind))
	if err != nil {
		return nil, fmt.Errorf("advisory %s check: %w", kind, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("advisory %s check: status %d", kind, resp.StatusCode())
	}
	return parseFinding(resp.Body())
}

// parseFinding reads the loosely shaped service response. Any of
// requiresAdjustment, isSafe or status makes a finding; message falls back
// to recommendation.
func parseFinding(body []byte) (*Finding, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw == nil {
		return nil, nil
	}

	var f Finding
	found := false
	if v, ok := raw["requiresAdjustment"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: requiresAdjustment is %T", ErrMalformed, v)
		}
		f.RequiresAdjustment = &b
		found = true
	}
	if v, ok := raw["isSafe"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: isSafe is %T", ErrMalformed, v)
		}
		f.IsSafe = &b
		found = true
	}
	if v, ok := raw["status"].(string); ok && strings.TrimSpace(v) != "" {
		f.Status = strings.TrimSpace(v)
		found = true
	}
	if !found {
		return nil, nil
	}
	for _, key := range []string{"message", "recommendation"} {
		if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
			f.Message = strings.TrimSpace(s)
			break
		}
	}
	return &f, nil
}
