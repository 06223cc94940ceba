package source

import (
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/trackmap/internal/feature"
	"github.com/MeKo-Tech/trackmap/internal/track"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// File is the YAML trajectory format:
//
//	type: bus
//	step: 50
//	segments:
//	  - - {lng: 9.73, lat: 52.37, speed: 12}
//	    - {lng: 9.74, lat: 52.37, speed: 14}
type File struct {
	Type     string                 `yaml:"type,omitempty"`
	Step     float64                `yaml:"step,omitempty" validate:"gte=0"`
	Segments [][]feature.Attributes `yaml:"segments" validate:"required,min=1,dive,min=1"`
}

var validate = validator.New()

// ReadYAML decodes and validates a YAML trajectory.
func ReadYAML(r io.Reader) (track.Track, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return track.Track{}, fmt.Errorf("failed to decode yaml track: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return track.Track{}, fmt.Errorf("%w: %v", track.ErrInvalidTrack, err)
	}
	return track.Track{Type: f.Type, Segments: f.Segments, Step: f.Step}, nil
}

// LoadYAML reads a YAML trajectory file.
func LoadYAML(path string) (track.Track, error) {
	fh, err := os.Open(path)
	if err != nil {
		return track.Track{}, fmt.Errorf("failed to open track file: %w", err)
	}
	defer fh.Close()
	return ReadYAML(fh)
}

// WriteYAML encodes a trajectory in the YAML format.
func WriteYAML(w io.Writer, t track.Track) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(File{Type: t.Type, Step: t.Step, Segments: t.Segments}); err != nil {
		return fmt.Errorf("failed to encode yaml track: %w", err)
	}
	return enc.Close()
}

// SaveYAML writes a trajectory to a YAML file.
func SaveYAML(path string, t track.Track) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create track file: %w", err)
	}
	if err := WriteYAML(fh, t); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
