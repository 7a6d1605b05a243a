package params

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/DenizUgur/solarpaper/internal/orbit"
)

// Duration is a time.Duration that also accepts a trailing "d" (days) or
// "w" (weeks) unit in YAML.
type Duration time.Duration

// ParseDuration parses s as a Go duration or a whole/fractional number of
// days or weeks.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'd':
		unit = day
	case 'w':
		unit = 7 * day
	default:
		return time.ParseDuration(s)
	}
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(n * float64(unit)), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

type fileLayer struct {
	Span          *Duration `yaml:"span" validate:"omitempty,gt=0"`
	Step          *Duration `yaml:"step" validate:"omitempty,gte=60000000000"`
	Center        *string   `yaml:"center" validate:"omitempty,numeric"`
	Enabled       *bool     `yaml:"enabled"`
	TrailDuration *Duration `yaml:"trail_duration" validate:"omitempty,gt=0"`
}

type fileCategory struct {
	Default    *fileLayer           `yaml:"default"`
	Individual map[string]fileLayer `yaml:"individual" validate:"dive"`
}

type file struct {
	Default fileLayer               `yaml:"default"`
	Objects map[string]fileCategory `yaml:"objects" validate:"dive"`
}

func (f fileLayer) layer() Layer {
	var l Layer
	if f.Span != nil {
		l.Span = ptr(time.Duration(*f.Span))
	}
	if f.Step != nil {
		l.Step = ptr(time.Duration(*f.Step))
	}
	if f.TrailDuration != nil {
		l.TrailDuration = ptr(time.Duration(*f.TrailDuration))
	}
	l.Center = f.Center
	l.Enabled = f.Enabled
	return l
}

// Load reads a YAML parameter file. Fields missing from the file's global
// default fall back to the built-in default; the file's categories replace
// the built-in ones.
func Load(path string, now time.Time) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading params file: %w", err)
	}
	return Parse(data, now)
}

// Parse decodes and validates a YAML parameter document.
func Parse(data []byte, now time.Time) (Config, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding params: %w", err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Config{}, fmt.Errorf("invalid params: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return Config{}, fmt.Errorf("invalid params: %w", err)
	}

	cfg := DefaultConfig(now)
	cfg.Default = cfg.Default.merge(ptr(f.Default.layer()))

	if f.Objects != nil {
		cfg.Objects = make(map[orbit.Category]CategoryConfig, len(f.Objects))
		for name, fc := range f.Objects {
			c, err := orbit.Parse(name)
			if err != nil {
				return Config{}, fmt.Errorf("invalid params: objects: %w", err)
			}
			var cc CategoryConfig
			if fc.Default != nil {
				cc.Default = ptr(fc.Default.layer())
			}
			if len(fc.Individual) > 0 {
				cc.Individual = make(map[string]Layer, len(fc.Individual))
				for id, fl := range fc.Individual {
					cc.Individual[id] = fl.layer()
				}
			}
			cfg.Objects[c] = cc
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid params: %w", err)
	}
	return cfg, nil
}
