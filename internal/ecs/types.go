package ecs

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ecs-alert/ecs-alert/internal/alerts"
)

// flexString accepts a JSON string, number or bool and keeps its text form.
// ECS releases differ in how they encode ids and timestamps.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(data)
	return nil
}

// flexBool accepts true/false as JSON booleans or strings
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = false
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(string(s)))
	if err != nil {
		return err
	}
	*f = flexBool(b)
	return nil
}

type alertEntry struct {
	ID           flexString `json:"id"`
	Acknowledged flexBool   `json:"acknowledged"`
	Description  string     `json:"description"`
	Namespace    string     `json:"namespace"`
	Severity     string     `json:"severity"`
	SymptomCode  flexString `json:"symptomCode"`
	Timestamp    flexString `json:"timestamp"`
}

type alertsResponse struct {
	Alerts     []alertEntry `json:"alert"`
	NextMarker string       `json:"NextMarker"`
}

func (r *alertsResponse) page() *alerts.Page {
	page := &alerts.Page{
		Alerts:     make([]alerts.RawAlert, 0, len(r.Alerts)),
		NextMarker: r.NextMarker,
	}
	for _, a := range r.Alerts {
		page.Alerts = append(page.Alerts, alerts.RawAlert{
			ID:           string(a.ID),
			Acknowledged: bool(a.Acknowledged),
			Description:  a.Description,
			Namespace:    a.Namespace,
			Severity:     a.Severity,
			SymptomCode:  string(a.SymptomCode),
			Timestamp:    string(a.Timestamp),
		})
	}
	return page
}

type vdcResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
