package color

import (
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    RGB
		wantErr bool
	}{
		{in: "#ffffff", want: RGB{255, 255, 255}},
		{in: "#FF8800", want: RGB{255, 136, 0}},
		{in: " #0b0b0c ", want: RGB{11, 11, 12}},
		{in: "#f80", want: RGB{255, 136, 0}},
		{in: "ff8800", wantErr: true},
		{in: "#ff88", wantErr: true},
		{in: "#gg0000", wantErr: true},
		{in: "#ff8800ff", wantErr: true},
		{in: "", wantErr: true},
		{in: "#<script>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHex) {
					t.Errorf("expected ErrInvalidHex, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestRGB_Hex(t *testing.T) {
	if got := (RGB{255, 136, 0}).Hex(); got != "#ff8800" {
		t.Errorf("expected #ff8800, got %s", got)
	}
}

func TestContrast(t *testing.T) {
	black, white := RGB{0, 0, 0}, RGB{255, 255, 255}

	tests := []struct {
		name string
		a, b RGB
		want float64
	}{
		{"black on white", black, white, 21},
		{"order does not matter", white, black, 21},
		{"same color", RGB{120, 40, 200}, RGB{120, 40, 200}, 1},
		{"mid grey on white", RGB{0x76, 0x76, 0x76}, white, 4.54},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Contrast(tt.a, tt.b); math.Abs(got-tt.want) > 0.01 {
				t.Errorf("expected %.2f, got %.2f", tt.want, got)
			}
		})
	}
}

func TestLuminance_Bounds(t *testing.T) {
	if l := Luminance(RGB{}); l != 0 {
		t.Errorf("black should have luminance 0, got %v", l)
	}
	if l := Luminance(RGB{255, 255, 255}); math.Abs(l-1) > 1e-9 {
		t.Errorf("white should have luminance 1, got %v", l)
	}
}

func TestAccent(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "empty", in: "", want: ""},
		{name: "amber", in: "#FFB000", want: "#ffb000"},
		{name: "short form", in: "#0af", want: "#00aaff"},
		{name: "too dark", in: "#202020", wantErr: ErrLowContrast},
		{name: "deep blue", in: "#1a1aa0", wantErr: ErrLowContrast},
		{name: "not hex", in: "orange", wantErr: ErrInvalidHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accent(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
