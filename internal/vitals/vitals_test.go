package vitals

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRate(t *testing.T) {
	tests := []struct {
		metric string
		value  float64
		want   string
	}{
		{LCP, 2500, RatingGood},
		{LCP, 2501, RatingNeedsImprovement},
		{LCP, 4001, RatingPoor},
		{CLS, 0.05, RatingGood},
		{CLS, 0.2, RatingNeedsImprovement},
		{CLS, 0.3, RatingPoor},
		{INP, 150, RatingGood},
		{TTFB, 1000, RatingNeedsImprovement},
		{FID, 301, RatingPoor},
		{FCP, 0, RatingGood},
		{"XYZ", 1, ""},
	}

	for _, tt := range tests {
		if got := Rate(tt.metric, tt.value); got != tt.want {
			t.Errorf("Rate(%s, %v) = %q, want %q", tt.metric, tt.value, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := Report{ID: "v4-1700000000000-123", Name: "LCP", Value: 1200, Delta: 1200, Rating: RatingGood}

	tests := []struct {
		name    string
		mutate  func(r *Report)
		want    func(r *Report)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Report) {}},
		{
			name:   "lower-case name normalized",
			mutate: func(r *Report) { r.Name = " lcp " },
		},
		{
			name:   "missing rating derived",
			mutate: func(r *Report) { r.Rating = ""; r.Value = 5000 },
			want:   func(r *Report) { r.Rating = RatingPoor; r.Value = 5000 },
		},
		{
			name:   "page keeps path only",
			mutate: func(r *Report) { r.Page = "/galleria/street?email=a@b.example#top" },
			want:   func(r *Report) { r.Page = "/galleria/street" },
		},
		{
			name:   "absolute page dropped",
			mutate: func(r *Report) { r.Page = "https://evil.example/x" },
			want:   func(r *Report) { r.Page = "" },
		},
		{
			name:   "protocol-relative page dropped",
			mutate: func(r *Report) { r.Page = "//evil.example/x" },
			want:   func(r *Report) { r.Page = "" },
		},
		{name: "unknown metric", mutate: func(r *Report) { r.Name = "FPS" }, wantErr: true},
		{name: "negative value", mutate: func(r *Report) { r.Value = -1 }, wantErr: true},
		{name: "NaN value", mutate: func(r *Report) { r.Value = math.NaN() }, wantErr: true},
		{name: "absurd value", mutate: func(r *Report) { r.Value = 1e9 }, wantErr: true},
		{name: "infinite delta", mutate: func(r *Report) { r.Delta = math.Inf(1) }, wantErr: true},
		{name: "missing id", mutate: func(r *Report) { r.ID = "" }, wantErr: true},
		{name: "id with markup", mutate: func(r *Report) { r.ID = "<img>" }, wantErr: true},
		{name: "unknown rating", mutate: func(r *Report) { r.Rating = "great" }, wantErr: true},
		{name: "long navigation type", mutate: func(r *Report) { r.NavigationType = strings.Repeat("n", 33) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			got, err := Validate(in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReport) {
					t.Fatalf("expected ErrInvalidReport, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := valid
			if tt.want != nil {
				tt.want(&want)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantN   int
		wantErr bool
	}{
		{"single", `{"id":"a","name":"CLS","value":0.01}`, 1, false},
		{"batch", `[{"id":"a","name":"CLS","value":0.01},{"id":"b","name":"LCP","value":900}]`, 2, false},
		{"leading whitespace", "\n  [{\"id\":\"a\"}]", 1, false},
		{"empty body", "  ", 0, true},
		{"empty batch", `[]`, 0, true},
		{"malformed", `{"id":`, 0, true},
		{"too many", "[" + strings.TrimSuffix(strings.Repeat(`{"id":"x"},`, MaxBatch+1), ",") + "]", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.wantN {
				t.Errorf("expected %d reports, got %d", tt.wantN, len(got))
			}
		})
	}
}
