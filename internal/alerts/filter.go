package alerts

import (
	"strings"

	"github.com/samber/lo"

	"github.com/ecs-alert/ecs-alert/internal/config"
)

// FilterPolicy decides which alerts are worth storing. An empty set admits
// every value for that dimension; both dimensions must pass.
type FilterPolicy struct {
	severities   map[string]struct{}
	symptomCodes map[string]struct{}
}

// NewFilterPolicy builds the membership sets. Values are matched exactly;
// surrounding whitespace from the config file is dropped.
func NewFilterPolicy(severities, symptomCodes []string) *FilterPolicy {
	return &FilterPolicy{
		severities:   toSet(severities),
		symptomCodes: toSet(symptomCodes),
	}
}

// FilterPolicyFromConfig builds the policy from the filter section
func FilterPolicyFromConfig(cfg config.FilterConfig) *FilterPolicy {
	return NewFilterPolicy(cfg.Severities, cfg.SymptomCodes)
}

func toSet(values []string) map[string]struct{} {
	values = lo.Filter(lo.Map(values, func(v string, _ int) string {
		return strings.TrimSpace(v)
	}), func(v string, _ int) bool {
		return v != ""
	})
	return lo.Associate(values, func(v string) (string, struct{}) {
		return v, struct{}{}
	})
}

// Admits reports whether an alert with this severity and symptom code passes
func (p *FilterPolicy) Admits(severity, symptomCode string) bool {
	return matches(p.severities, severity) && matches(p.symptomCodes, symptomCode)
}

func matches(set map[string]struct{}, value string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[value]
	return ok
}
