package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// fileSettings reads typed geoload settings from a parsed config file. A setting is
// found under its snake_case name or the matching flag spelling (think_min or
// think-min). Missing settings leave the destination untouched.
type fileSettings struct {
	v *viper.Viper
}

func (s fileSettings) lookup(name string) (interface{}, bool) {
	if s.v == nil {
		return nil, false
	}
	for _, key := range []string{name, strings.ReplaceAll(name, "_", "-")} {
		if s.v.IsSet(key) {
			return s.v.Get(key), true
		}
	}
	return nil, false
}

// section returns the nested settings under name, such as tracing.
func (s fileSettings) section(name string) fileSettings {
	if s.v == nil {
		return s
	}
	return fileSettings{v: s.v.Sub(name)}
}

func (s fileSettings) str(name string, dst *string) error {
	raw, ok := s.lookup(name)
	if !ok {
		return nil
	}
	val, err := cast.ToStringE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = strings.TrimSpace(val)
	return nil
}

func (s fileSettings) integer(name string, dst *int) error {
	raw, ok := s.lookup(name)
	if !ok {
		return nil
	}
	val, err := cast.ToIntE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

func (s fileSettings) float(name string, dst *float64) error {
	raw, ok := s.lookup(name)
	if !ok {
		return nil
	}
	val, err := cast.ToFloat64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

func (s fileSettings) boolean(name string, dst *bool) error {
	raw, ok := s.lookup(name)
	if !ok {
		return nil
	}
	val, err := cast.ToBoolE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

func (s fileSettings) list(name string, dst *[]string) error {
	raw, ok := s.lookup(name)
	if !ok {
		return nil
	}
	val, err := cast.ToStringSliceE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = val
	return nil
}

// duration accepts Go duration strings ("1500ms") or bare numbers of seconds.
func (s fileSettings) duration(name string, dst *time.Duration) error {
	raw, ok := s.lookup(name)
	if !ok {
		return nil
	}
	if text, isText := raw.(string); isText {
		text = strings.TrimSpace(text)
		if text == "" {
			*dst = 0
			return nil
		}
		d, err := time.ParseDuration(text)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}
	secs, err := cast.ToFloat64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = time.Duration(secs * float64(time.Second))
	return nil
}
