package plans

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLSource loads the plan catalog from a YAML file so deployments can
// override pricing and limits without a rebuild.
//
// Expected shape:
//
//	plans:
//	  standard:
//	    tier: standard
//	    name: Standard
//	    limits:
//	      catalogues: 3
//	    prices:
//	      monthly: {amount: 1900, currency: USD}
type YAMLSource struct {
	path string
}

// NewYAMLSource returns a Source reading the given file on Load.
func NewYAMLSource(path string) *YAMLSource {
	return &YAMLSource{path: path}
}

func (s *YAMLSource) Load(_ context.Context) (map[Tier]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var doc struct {
		Plans map[Tier]Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("parse %s: %w", s.path, err))
	}
	if len(doc.Plans) == 0 {
		return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("%s contains no plans", s.path))
	}

	return doc.Plans, nil
}
