package scholarship

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/onnwee/viewfinder/internal/validate"
)

// maxCSVBytes bounds a sheet.
const maxCSVBytes = 10 << 20

// ErrCSVTooLarge is returned for a sheet over maxCSVBytes.
var ErrCSVTooLarge = errors.New("csv exceeds 10 MiB")

// columns maps accepted header spellings to fields. Headers are matched
// case-insensitively after trimming.
var columns = map[string]string{
	"id":           "id",
	"name":         "name",
	"title":        "name",
	"scholarship":  "name",
	"provider":     "provider",
	"organization": "provider",
	"url":          "url",
	"link":         "url",
	"amount":       "amount",
	"award":        "amount",
	"deadline":     "deadline",
	"due":          "deadline",
	"eligibility":  "eligibility",
	"description":  "description",
	"notes":        "description",
	"tags":         "tags",
	"category":     "tags",
}

// deadlineLayouts lists the date spellings sheets commonly use.
var deadlineLayouts = []string{
	DateLayout,
	"1/2/2006",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// RowError describes a rejected CSV row.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ImportResult is the outcome of ParseCSV.
type ImportResult struct {
	Scholarships []Scholarship
	Skipped      []*RowError
}

// ParseCSV reads a sheet export. The first row is the header and must name
// at least a name and a url column. Blank rows are ignored; invalid rows are
// reported in Skipped. IDs default to a slug of the name, made unique.
func ParseCSV(r io.Reader) (ImportResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return ImportResult{}, errors.New("csv is empty")
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := columns[h]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	for _, required := range []string{"name", "url"} {
		if _, ok := index[required]; !ok {
			return ImportResult{}, fmt.Errorf("csv header is missing a %s column", required)
		}
	}

	var (
		res   ImportResult
		taken = make(map[string]bool)
	)
	for row := 2; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ImportResult{}, fmt.Errorf("failed to read csv: %w", err)
		}
		get := func(field string) string {
			i, ok := index[field]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		if blank(record) {
			continue
		}

		s, err := rowToScholarship(get)
		if err != nil {
			res.Skipped = append(res.Skipped, &RowError{Row: row, Err: err})
			continue
		}
		s.ID = uniqueID(s.ID, taken)
		res.Scholarships = append(res.Scholarships, s)
	}
	return res, nil
}

// uniqueID returns id, or id-N with the smallest N from 2 that is not yet
// taken, and marks the result taken.
func uniqueID(id string, taken map[string]bool) string {
	out := id
	for n := 2; taken[out]; n++ {
		out = fmt.Sprintf("%s-%d", id, n)
	}
	taken[out] = true
	return out
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func rowToScholarship(get func(string) string) (Scholarship, error) {
	name, err := validate.Title(get("name"))
	if err != nil {
		return Scholarship{}, fmt.Errorf("%w: name: %w", ErrInvalid, err)
	}
	u, err := validate.URL(get("url"), validate.URLConstraints{
		AllowedSchemes: []string{"https", "http"},
		MaxLength:      2048,
	})
	if err != nil {
		return Scholarship{}, fmt.Errorf("%w: url: %w", ErrInvalid, err)
	}
	desc, err := validate.Description(get("description"))
	if err != nil {
		return Scholarship{}, fmt.Errorf("%w: description: %w", ErrInvalid, err)
	}
	deadline, err := normalizeDeadline(get("deadline"))
	if err != nil {
		return Scholarship{}, fmt.Errorf("%w: deadline: %w", ErrInvalid, err)
	}

	id := get("id")
	if id == "" {
		id = slug(name)
	}
	if id, err = validate.Identifier(id); err != nil {
		return Scholarship{}, fmt.Errorf("%w: id: %w", ErrInvalid, err)
	}

	return Scholarship{
		ID:          id,
		Name:        name,
		Provider:    validate.CollapseSpace(get("provider")),
		URL:         u.String(),
		Amount:      validate.CollapseSpace(get("amount")),
		Deadline:    deadline,
		Eligibility: validate.CollapseSpace(get("eligibility")),
		Description: desc,
		Tags:        splitTags(get("tags")),
	}, nil
}

// normalizeDeadline rewrites a sheet date to DateLayout. Free-text values
// such as "rolling" mean no deadline.
func normalizeDeadline(v string) (string, error) {
	switch strings.ToLower(v) {
	case "", "rolling", "ongoing", "n/a", "tbd":
		return "", nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognised date %q", v)
}

func splitTags(v string) []string {
	var tags []string
	for _, t := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' || r == '|' }) {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > 64 {
		out = strings.TrimSuffix(out[:64], "-")
	}
	if out == "" {
		out = "scholarship"
	}
	return out
}

// OpenCSV opens src, which is either a local path or an http(s) URL such
// as a published Google Sheet export link. A sheet over 10 MiB fails with
// ErrCSVTooLarge instead of being cut short.
func OpenCSV(ctx context.Context, client *http.Client, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		f, err := os.Open(src)
		if err != nil {
			return nil, fmt.Errorf("failed to open csv: %w", err)
		}
		if info, err := f.Stat(); err == nil && info.Size() > maxCSVBytes {
			f.Close()
			return nil, ErrCSVTooLarge
		}
		return f, nil
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build csv request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download csv: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download csv: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCSVBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to download csv: %w", err)
	}
	if len(data) > maxCSVBytes {
		return nil, ErrCSVTooLarge
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
