package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/neuralline/cyre-go/internal/cyrecore"
)

// DecodeChannelFile reads path and decodes it as a single-channel YAML
// configuration.
func DecodeChannelFile(path string) (ChannelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ChannelConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return DecodeChannelYAML(data)
}

// wireChannel is the YAML-decodable shape of a channel configuration: only
// the declarative fields a file on disk can express. Func-valued fields
// (Schema/Condition/Selector/Transform) are registration-time-only and have
// no wire representation; a decoded config's StageOrder falls back to the
// canonical field order at compile time.
type wireChannel struct {
	ID          string   `yaml:"id" mapstructure:"id"`
	Name        string   `yaml:"name" mapstructure:"name"`
	Type        string   `yaml:"type" mapstructure:"type"`
	Description string   `yaml:"description" mapstructure:"description"`
	Tags        []string `yaml:"tags" mapstructure:"tags"`
	Version     string   `yaml:"version" mapstructure:"version"`

	Path  string `yaml:"path" mapstructure:"path"`
	Group string `yaml:"group" mapstructure:"group"`

	Required      string `yaml:"required" mapstructure:"required"`
	DetectChanges bool   `yaml:"detectChanges" mapstructure:"detectChanges"`

	Throttle string `yaml:"throttle" mapstructure:"throttle"`
	Debounce string `yaml:"debounce" mapstructure:"debounce"`
	MaxWait  string `yaml:"maxWait" mapstructure:"maxWait"`
	Block    bool   `yaml:"block" mapstructure:"block"`
	Priority string `yaml:"priority" mapstructure:"priority"`

	Delay    string `yaml:"delay" mapstructure:"delay"`
	Interval string `yaml:"interval" mapstructure:"interval"`
	Repeat   any    `yaml:"repeat" mapstructure:"repeat"`

	Extra map[string]any `yaml:",inline" mapstructure:",remain"`
}

// DecodeChannelYAML decodes a single-channel YAML document into a
// ChannelConfig. Unknown keys land in Extra rather than failing decode, so
// the compiler can warn on them instead of the loader rejecting the file
// outright.
func DecodeChannelYAML(data []byte) (ChannelConfig, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ChannelConfig{}, fmt.Errorf("config: decode yaml: %w", err)
	}

	var w wireChannel
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &w,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return ChannelConfig{}, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return ChannelConfig{}, fmt.Errorf("config: decode channel: %w", err)
	}

	if w.ID == "" {
		return ChannelConfig{}, fmt.Errorf("config: channel file missing required 'id' field")
	}

	cfg := ChannelConfig{
		ID:            w.ID,
		Name:          w.Name,
		Type:          w.Type,
		Description:   w.Description,
		Tags:          w.Tags,
		Version:       w.Version,
		Path:          w.Path,
		Group:         w.Group,
		Required:      cyrecore.Required(w.Required),
		DetectChanges: w.DetectChanges,
		Block:         w.Block,
		Priority:      cyrecore.Priority(w.Priority),
		Extra:         w.Extra,
	}

	var parseErr error
	cfg.Throttle, parseErr = parseDurationField(w.Throttle, parseErr)
	cfg.Debounce, parseErr = parseDurationField(w.Debounce, parseErr)
	cfg.MaxWait, parseErr = parseDurationField(w.MaxWait, parseErr)
	cfg.Delay, parseErr = parseDurationField(w.Delay, parseErr)
	cfg.Interval, parseErr = parseDurationField(w.Interval, parseErr)
	if parseErr != nil {
		return ChannelConfig{}, parseErr
	}

	switch v := w.Repeat.(type) {
	case nil:
		// no repeat configured
	case bool:
		if v {
			cfg.Repeat = RepeatForever()
		} else {
			cfg.Repeat = RepeatN(0)
		}
	case int:
		cfg.Repeat = RepeatN(v)
	case int64:
		cfg.Repeat = RepeatN(int(v))
	case float64:
		cfg.Repeat = RepeatN(int(v))
	default:
		return ChannelConfig{}, fmt.Errorf("config: invalid 'repeat' value %v", v)
	}

	return cfg, nil
}

func parseDurationField(raw string, prior error) (time.Duration, error) {
	if prior != nil || raw == "" {
		return 0, prior
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	return d, nil
}
