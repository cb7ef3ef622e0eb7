// Package parser turns raw site pages into candidate articles. Selection
// strategies are registered by the selector_type field of the site list.
package parser

import (
	"fmt"

	"github.com/dcrobot-keen/it-news-mail/internal/domain"
)

// Strategy captures a single candidate-selection implementation.
type Strategy interface {
	Name() string
	Extract(rawHTML []byte, rule domain.SiteRule) ([]domain.Candidate, error)
}

// Registry keeps a mapping from selector types to their strategies.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(s Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[s.Name()] = s
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if s, ok := r.strategies[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("selector type %s is not registered", name)
}

// Extract dispatches to the strategy named by the rule's selector type,
// satisfying ports.Extractor.
func (r *Registry) Extract(rawHTML []byte, rule domain.SiteRule) ([]domain.Candidate, error) {
	strategy, err := r.Resolve(rule.SelectorType)
	if err != nil {
		return nil, err
	}
	return strategy.Extract(rawHTML, rule)
}
