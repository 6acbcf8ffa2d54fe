package training

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresets []byte

// Preset describes the recommended routine for a difficulty level.
type Preset struct {
	Name          string `yaml:"name" json:"name"`
	NameEn        string `yaml:"name_en" json:"name_en"`
	ContractTime  int    `yaml:"contract_time" json:"contract_time"`
	RelaxTime     int    `yaml:"relax_time" json:"relax_time"`
	RepsPerSet    int    `yaml:"reps_per_set" json:"reps_per_set"`
	SetsCount     int    `yaml:"sets_count" json:"sets_count"`
	DailySessions int    `yaml:"daily_sessions" json:"daily_sessions"`
	Description   string `yaml:"description" json:"description"`
	DescriptionEn string `yaml:"description_en" json:"description_en"`
}

// Presets maps difficulty to its routine.
type Presets map[Difficulty]Preset

// DefaultPresets returns the built-in catalog.
func DefaultPresets() Presets {
	presets, err := ParsePresets(defaultPresets)
	if err != nil {
		panic(fmt.Sprintf("training: embedded presets: %v", err))
	}
	return presets
}

// LoadPresets reads a catalog from a YAML file. An empty path returns the
// built-in catalog.
func LoadPresets(path string) (Presets, error) {
	if path == "" {
		return DefaultPresets(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes and validates a YAML catalog.
func ParsePresets(data []byte) (Presets, error) {
	var presets Presets
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(presets) == 0 {
		return nil, fmt.Errorf("parse presets: no difficulties defined")
	}
	for name, p := range presets {
		if p.ContractTime <= 0 || p.RelaxTime <= 0 || p.RepsPerSet <= 0 || p.SetsCount <= 0 {
			return nil, fmt.Errorf("preset %s: timings, reps and sets must be positive", name)
		}
	}
	return presets, nil
}

// Has reports whether d is a configured difficulty.
func (p Presets) Has(d Difficulty) bool {
	_, ok := p[d]
	return ok
}

// Names returns the configured difficulties in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for d := range p {
		names = append(names, string(d))
	}
	sort.Strings(names)
	return names
}
