// Package scholarship holds the scholarship listings shown on the site and
// imports them from a published spreadsheet CSV.
package scholarship

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DateLayout is the format of deadlines in JSON and CSV.
const DateLayout = "2006-01-02"

// ErrInvalid marks listings that fail validation.
var ErrInvalid = errors.New("invalid scholarship")

// Scholarship is one listing.
type Scholarship struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Provider    string   `json:"provider,omitempty"`
	URL         string   `json:"url"`
	Amount      string   `json:"amount,omitempty"`
	Deadline    string   `json:"deadline,omitempty"`
	Eligibility string   `json:"eligibility,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// DeadlineTime parses Deadline. ok is false when there is no deadline.
func (s Scholarship) DeadlineTime() (t time.Time, ok bool) {
	if s.Deadline == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s.Deadline)
	return t, err == nil
}

// Open reports whether applications are still accepted on day now.
// Listings without a deadline are always open.
func (s Scholarship) Open(now time.Time) bool {
	d, ok := s.DeadlineTime()
	if !ok {
		return true
	}
	y, m, day := now.Date()
	today := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return !d.Before(today)
}

// Filter narrows a listing query.
type Filter struct {
	Tag      string
	OpenOnly bool
	Now      time.Time
}

// Query returns the listings matching f, soonest deadline first, with
// undated listings last.
func Query(all []Scholarship, f Filter) []Scholarship {
	out := make([]Scholarship, 0, len(all))
	for _, s := range all {
		if f.Tag != "" && !slices.ContainsFunc(s.Tags, func(t string) bool { return strings.EqualFold(t, f.Tag) }) {
			continue
		}
		if f.OpenOnly && !s.Open(f.Now) {
			continue
		}
		out = append(out, s)
	}
	slices.SortStableFunc(out, func(a, b Scholarship) int {
		da, oka := a.DeadlineTime()
		db, okb := b.DeadlineTime()
		switch {
		case oka && okb:
			return da.Compare(db)
		case oka:
			return -1
		case okb:
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Load reads listings from a JSON file.
func Load(path string) ([]Scholarship, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scholarships: %w", err)
	}
	var list []Scholarship
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return list, nil
}

// Save writes listings to path atomically.
func Save(path string, list []Scholarship) error {
	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scholarships: %w", err)
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".scholarships-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write scholarships: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write scholarships: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
