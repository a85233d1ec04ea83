package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for ticket timestamps. Backends that store naive
// datetimes send them without a zone; those are read as local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp reads RFC 3339 or a zone-less ISO datetime.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

type wireTime struct {
	value *time.Time
}

func (w *wireTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		w.value = nil
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		w.value = nil
		return nil
	}
	t, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}
	w.value = &t
	return nil
}

func (t *Ticket) UnmarshalJSON(data []byte) error {
	type Alias Ticket
	aux := struct {
		*Alias
		CreatedAt     wireTime `json:"fecha_creacion"`
		EstimatedTime wireTime `json:"hora_estimada"`
		StartedAt     wireTime `json:"hora_inicio"`
		CompletedAt   wireTime `json:"hora_fin"`
	}{Alias: (*Alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.CreatedAt = time.Time{}
	if aux.CreatedAt.value != nil {
		t.CreatedAt = *aux.CreatedAt.value
	}
	t.EstimatedTime = aux.EstimatedTime.value
	t.StartedAt = aux.StartedAt.value
	t.CompletedAt = aux.CompletedAt.value
	return nil
}
