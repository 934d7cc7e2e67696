// Package security rejects shell commands that are too dangerous to run
// unattended.
package security

import (
	"fmt"
	"regexp"
)

// Rule is a blacklist entry.
type Rule struct {
	Pattern string
	Reason  string
}

// DefaultRules are the rules used when none are configured.
var DefaultRules = []Rule{
	{Pattern: `\brm\s+(?:-\S+\s+)*-(?:[a-z]*r[a-z]*|-recursive)\s+(?:-\S+\s+)*(?:/|~|\$home\b|\$\{home\})`, Reason: "recursive delete of root, an absolute path or home"},
	{Pattern: `\bdd\s+(?:\S+\s+)*if=`, Reason: "raw disk copy"},
	{Pattern: `\bmkfs\b`, Reason: "filesystem format"},
	{Pattern: `>\s*/dev/(?:sd[a-z]|hd[a-z]|vd[a-z]|xvd[a-z]|nvme\d|mmcblk\d|disk\d)`, Reason: "write to a block device"},
	{Pattern: `:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`, Reason: "fork bomb"},
	{Pattern: `\b(?:curl|wget)\b[^|]*\|\s*(?:sudo\s+)?(?:ba|z|da)?sh\b`, Reason: "remote script piped to a shell"},
	{Pattern: `\|\s*(?:sudo|bash)\b`, Reason: "output piped to bash or sudo"},
}

type compiledRule struct {
	re   *regexp.Regexp
	rule Rule
}

// Filter is a case insensitive regex blacklist of commands.
type Filter struct {
	rules []compiledRule
}

// NewFilter compiles the rules, without rules it uses DefaultRules.
func NewFilter(rules []Rule) (*Filter, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid rule pattern %q: %w", r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{re: re, rule: r})
	}

	return &Filter{rules: compiled}, nil
}

// Check returns the reason of the first rule the command matches, ok is false
// when the command must not run.
func (f *Filter) Check(command string) (reason string, ok bool) {
	for _, r := range f.rules {
		if r.re.MatchString(command) {
			return r.rule.Reason, false
		}
	}

	return "", true
}
