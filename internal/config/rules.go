package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/fuelclean/internal/cleaning"
	"github.com/JonMunkholm/fuelclean/internal/pipeline"
)

// ErrEmptyFuelTypes is returned when a rules file lists an empty fuel_types.
var ErrEmptyFuelTypes = errors.New("fuel_types must not be empty when present")

// Rules is the optional YAML rules file.
//
//	fuel_types: [gas, diesel, LNG]
//	states:
//	  DC: District of Columbia
type Rules struct {
	FuelTypes []string          `yaml:"fuel_types"`
	States    map[string]string `yaml:"states"`
}

// LoadRules reads a rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if r.FuelTypes != nil && len(r.FuelTypes) == 0 {
		return nil, ErrEmptyFuelTypes
	}
	return &r, nil
}

// PipelineOptions builds the run options. FUEL_TYPES wins over the rules
// file, which wins over the built-in list. Rules file states are merged
// over the 50-state table.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	opts.IDColumn = c.Pipeline.IDColumn
	opts.PriceColumn = c.Pipeline.PriceColumn
	opts.CategoryColumn = c.Pipeline.CategoryColumn
	opts.AddressColumn = c.Pipeline.AddressColumn
	opts.OutputDir = c.Pipeline.OutputDir

	if c.Pipeline.RulesFile != "" {
		rules, err := LoadRules(c.Pipeline.RulesFile)
		if err != nil {
			return pipeline.Options{}, err
		}
		if len(rules.FuelTypes) > 0 {
			opts.FuelTypes = rules.FuelTypes
		}
		if len(rules.States) > 0 {
			opts.States = cleaning.DefaultStates().Merge(rules.States)
		}
	}

	if len(c.Pipeline.FuelTypes) > 0 {
		opts.FuelTypes = append([]string(nil), c.Pipeline.FuelTypes...)
	}
	return opts, nil
}
