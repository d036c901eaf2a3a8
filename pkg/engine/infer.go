package engine

import (
	"regexp"
)

// inferenceRule maps an action-name pattern to the parameter key the prior
// step's raw result should be seeded under, when a step's own input is
// empty. Grounded on §9's design note ("prefer a small registry of
// action_regex -> arg_extractor rules") rather than the source's hard-coded
// keyword switch.
type inferenceRule struct {
	pattern *regexp.Regexp
	argKey  string
}

var inferenceRules = []inferenceRule{
	{regexp.MustCompile(`(?i)tweet|post`), "content"},
	{regexp.MustCompile(`(?i)search|query|find`), "query"},
	{regexp.MustCompile(`(?i)get|fetch|lookup`), "id"},
	{regexp.MustCompile(`(?i)summar`), "text"},
	{regexp.MustCompile(`(?i)send|message|reply`), "message"},
}

// inferArgKey returns the parameter key a step's prior-result should be
// seeded under, based on its action name. Returns "" if no rule matches,
// in which case the engine falls back to the generic "input" key.
func inferArgKey(action string) string {
	for _, rule := range inferenceRules {
		if rule.pattern.MatchString(action) {
			return rule.argKey
		}
	}
	return "input"
}
