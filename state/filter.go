package state

import (
	"strings"

	"github.com/gigapi/gigapi-explorer/core"
)

// Logic combines the rules of a filter group.
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// FilterRule is one column condition. A rule without values is never sent.
type FilterRule struct {
	Column string         `json:"c"`
	Op     core.Operation `json:"o"`
	Values []string       `json:"v"`
}

// FilterGroup is a flat list of rules joined by a single operator.
// Nested groups are not supported.
type FilterGroup struct {
	Logic Logic        `json:"l"`
	Rules []FilterRule `json:"r"`
}

// Build assembles a filter group from the rules collected in the editor.
// It returns nil when no rule carries a value, so an empty filter and no
// filter compile identically.
func Build(rules []FilterRule, logic Logic) *FilterGroup {
	kept := make([]FilterRule, 0, len(rules))
	for _, r := range rules {
		if len(r.Values) == 0 {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return nil
	}
	return &FilterGroup{Logic: Logic(strings.ToUpper(string(logic))), Rules: kept}
}

// Active returns the rules that carry at least one value.
func (g *FilterGroup) Active() []FilterRule {
	if g == nil {
		return nil
	}
	var out []FilterRule
	for _, r := range g.Rules {
		if len(r.Values) > 0 {
			out = append(out, r)
		}
	}
	return out
}
