package engine

import (
	"encoding/json"
	"strings"
)

// memberEntry is the structured per-freelancer entry stored inside a
// membership record. Legacy records store a bare comma-delimited name
// list instead; decodeMembers accepts both and every write path
// re-encodes structured, so legacy rows age out as they are touched.
type memberEntry struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AssignedCount int64  `json:"assigned_count"`
}

// decodeMembers parses a membership column value. A value that parses
// as a JSON array is taken as structured; anything else is treated as
// the legacy delimited form, yielding entries with a zero ID and a
// zero assigned count.
func decodeMembers(raw string) []memberEntry {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var entries []memberEntry
		if err := json.Unmarshal([]byte(trimmed), &entries); err == nil {
			return entries
		}
	}
	var entries []memberEntry
	for _, part := range strings.Split(trimmed, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		entries = append(entries, memberEntry{Name: name})
	}
	return entries
}

// encodeMembers serializes entries in the structured form. An empty
// slice encodes as "[]" rather than "" so the row stays unambiguously
// structured.
func encodeMembers(entries []memberEntry) (string, error) {
	if entries == nil {
		entries = []memberEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// sameMember reports whether two entries denote the same freelancer:
// by ID when both carry one, by exact name otherwise. A legacy entry
// with a zero ID matches a structured entry of the same name.
func sameMember(a, b memberEntry) bool {
	if a.ID != 0 && b.ID != 0 {
		return a.ID == b.ID
	}
	return a.Name == b.Name
}

// mergeMembers folds extra entries into base, deduplicating with
// sameMember. When a match is found the richer identity wins (a real
// ID replaces a zero one, a non-empty name fills an empty one) and
// assigned counts are summed. Order is first appearance.
func mergeMembers(base, extra []memberEntry) []memberEntry {
	out := append([]memberEntry(nil), base...)
	for _, e := range extra {
		matched := false
		for i := range out {
			if !sameMember(out[i], e) {
				continue
			}
			if out[i].ID == 0 {
				out[i].ID = e.ID
			}
			if out[i].Name == "" {
				out[i].Name = e.Name
			}
			out[i].AssignedCount += e.AssignedCount
			matched = true
			break
		}
		if !matched {
			out = append(out, e)
		}
	}
	return out
}
