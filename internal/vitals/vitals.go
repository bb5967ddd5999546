// Package vitals ingests Core Web Vitals reports sent by the site's pages,
// exports them as Prometheus histograms and optionally stores raw samples.
package vitals

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/onnwee/viewfinder/internal/validate"
)

// Metric names reported by the web-vitals library.
const (
	CLS  = "CLS"
	FCP  = "FCP"
	FID  = "FID"
	INP  = "INP"
	LCP  = "LCP"
	TTFB = "TTFB"
)

// Ratings.
const (
	RatingGood             = "good"
	RatingNeedsImprovement = "needs-improvement"
	RatingPoor             = "poor"
)

// MaxBatch is the largest number of reports accepted in one request.
const MaxBatch = 25

// ErrInvalidReport marks reports that fail validation.
var ErrInvalidReport = errors.New("invalid vitals report")

// thresholds holds the good and poor boundaries for each metric. Timing
// metrics are in milliseconds, CLS is unitless.
var thresholds = map[string][2]float64{
	CLS:  {0.1, 0.25},
	FCP:  {1800, 3000},
	FID:  {100, 300},
	INP:  {200, 500},
	LCP:  {2500, 4000},
	TTFB: {800, 1800},
}

// ceilings rejects values no real page produces.
var ceilings = map[string]float64{
	CLS:  100,
	FCP:  600_000,
	FID:  600_000,
	INP:  600_000,
	LCP:  600_000,
	TTFB: 600_000,
}

// Names returns the accepted metric names.
func Names() []string {
	return []string{CLS, FCP, FID, INP, LCP, TTFB}
}

// Report is one web-vitals measurement as posted by the browser.
type Report struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Value          float64 `json:"value"`
	Delta          float64 `json:"delta"`
	Rating         string  `json:"rating"`
	NavigationType string  `json:"navigationType,omitempty"`
	Page           string  `json:"page,omitempty"`
}

// Sample is a validated report ready to record.
type Sample struct {
	Report
	ReceivedAt time.Time
	UserAgent  string
}

// Rate returns the rating for value under metric's thresholds.
func Rate(metric string, value float64) string {
	t, ok := thresholds[metric]
	switch {
	case !ok:
		return ""
	case value <= t[0]:
		return RatingGood
	case value <= t[1]:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}

// Validate checks r and fills in a missing rating. The returned report is
// normalized: the name is upper-cased and the page is reduced to a path.
func Validate(r Report) (Report, error) {
	r.Name = strings.ToUpper(strings.TrimSpace(r.Name))
	ceiling, ok := ceilings[r.Name]
	if !ok {
		return Report{}, fmt.Errorf("%w: unknown metric %q", ErrInvalidReport, r.Name)
	}
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) || r.Value < 0 || r.Value > ceiling {
		return Report{}, fmt.Errorf("%w: %s value %v out of range", ErrInvalidReport, r.Name, r.Value)
	}
	if math.IsNaN(r.Delta) || math.IsInf(r.Delta, 0) {
		return Report{}, fmt.Errorf("%w: delta is not finite", ErrInvalidReport)
	}

	id, err := validate.Identifier(r.ID)
	if err != nil {
		return Report{}, fmt.Errorf("%w: id: %w", ErrInvalidReport, err)
	}
	r.ID = id

	switch r.Rating {
	case "":
		r.Rating = Rate(r.Name, r.Value)
	case RatingGood, RatingNeedsImprovement, RatingPoor:
	default:
		return Report{}, fmt.Errorf("%w: unknown rating %q", ErrInvalidReport, r.Rating)
	}

	if r.NavigationType != "" {
		if r.NavigationType, err = validate.String(r.NavigationType, validate.StringConstraints{MaxLength: 32}); err != nil {
			return Report{}, fmt.Errorf("%w: navigationType: %w", ErrInvalidReport, err)
		}
	}
	r.Page = normalizePage(r.Page)
	return r, nil
}

// normalizePage keeps only the path of page, dropping query strings that
// may carry personal data. Anything that is not a path becomes "".
func normalizePage(page string) string {
	page = strings.TrimSpace(strings.ToValidUTF8(page, ""))
	if i := strings.IndexAny(page, "?#"); i >= 0 {
		page = page[:i]
	}
	if !strings.HasPrefix(page, "/") || strings.HasPrefix(page, "//") || len(page) > 256 {
		return ""
	}
	return page
}

// clip drops invalid UTF-8 from s and shortens it to at most n bytes without
// splitting a rune. Postgres rejects invalid UTF-8 for the whole COPY batch.
func clip(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Decode parses a request body holding a single report or an array of
// reports.
func Decode(raw []byte) ([]Report, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidReport)
	}
	if trimmed[0] == '[' {
		var batch []Report
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
		}
		if len(batch) == 0 {
			return nil, fmt.Errorf("%w: empty batch", ErrInvalidReport)
		}
		if len(batch) > MaxBatch {
			return nil, fmt.Errorf("%w: batch of %d exceeds %d", ErrInvalidReport, len(batch), MaxBatch)
		}
		return batch, nil
	}
	var one Report
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return []Report{one}, nil
}
