package cmd

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    orb.Bound
		wantErr bool
	}{
		{
			name:    "valid bbox",
			input:   "9.7,52.3,9.9,52.4",
			want:    orb.Bound{Min: orb.Point{9.7, 52.3}, Max: orb.Point{9.9, 52.4}},
			wantErr: false,
		},
		{
			name:    "valid bbox with spaces",
			input:   "9.7, 52.3, 9.9, 52.4",
			want:    orb.Bound{Min: orb.Point{9.7, 52.3}, Max: orb.Point{9.9, 52.4}},
			wantErr: false,
		},
		{
			name:    "negative coordinates",
			input:   "-122.5,37.7,-122.3,37.9",
			want:    orb.Bound{Min: orb.Point{-122.5, 37.7}, Max: orb.Point{-122.3, 37.9}},
			wantErr: false,
		},
		{
			name:    "too few values",
			input:   "9.7,52.3,9.9",
			wantErr: true,
		},
		{
			name:    "too many values",
			input:   "9.7,52.3,9.9,52.4,10.0",
			wantErr: true,
		},
		{
			name:    "invalid number",
			input:   "abc,52.3,9.9,52.4",
			wantErr: true,
		},
		{
			name:    "minLon >= maxLon",
			input:   "10.0,52.3,9.9,52.4",
			wantErr: true,
		},
		{
			name:    "minLat >= maxLat",
			input:   "9.7,52.5,9.9,52.4",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseBBox(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("parseBBox(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("parseBBox(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    orb.Point
		wantErr bool
	}{
		{name: "valid point", input: "9.73,52.37", want: orb.Point{9.73, 52.37}},
		{name: "with spaces", input: " -122.4 , 37.8 ", want: orb.Point{-122.4, 37.8}},
		{name: "too many values", input: "1,2,3", wantErr: true},
		{name: "latitude out of range", input: "9.7,91", wantErr: true},
		{name: "invalid number", input: "x,1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePoint(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parsePoint(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parsePoint(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parsePoint(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
