// Package rules evaluates code-health checks over a merged fact set.
package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/facts"
)

type Severity int

const (
	Info Severity = iota
	Warn
	Deny
)

func (s Severity) String() string {
	switch s {
	case Warn:
		return "Warn"
	case Deny:
		return "Deny"
	default:
		return "Info"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "info":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "deny", "error":
		return Deny, nil
	}
	return Info, fmt.Errorf("unknown severity %q", raw)
}

type Finding struct {
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Location facts.Location `json:"location"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Rule is a total check over the merged facts. Run must not fail; a rule
// with nothing to report returns nil.
type Rule interface {
	Code() string
	Name() string
	Run(set *facts.Set) []Finding
}

// Registry holds rules in registration order. Codes are unique.
type Registry struct {
	rules []Rule
	codes map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{codes: make(map[string]struct{})}
}

// DefaultRegistry returns the built-in rules in their reporting order.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rule := range []Rule{
		UndocumentedPublicAPI{},
		UnwrapInPublicAPI{},
		StdInNoStdCrate{},
		PanicMacrosInPublicAPI{},
	} {
		_ = r.Register(rule)
	}
	return r
}

func (r *Registry) Register(rule Rule) error {
	code := rule.Code()
	if strings.TrimSpace(code) == "" {
		return kerrors.New(kerrors.CodeValidationError, "rule code must not be empty")
	}
	if _, dup := r.codes[code]; dup {
		return (&kerrors.DomainError{
			Code:    kerrors.CodeValidationError,
			Message: "duplicate rule code",
		}).WithContext("code", code)
	}
	r.codes[code] = struct{}{}
	r.rules = append(r.rules, rule)
	return nil
}

func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Runner runs a registry's rules, skipping disabled codes.
type Runner struct {
	registry *Registry
	disabled map[string]struct{}
}

func NewRunner(registry *Registry, disabled ...string) *Runner {
	d := make(map[string]struct{}, len(disabled))
	for _, code := range disabled {
		d[strings.ToUpper(strings.TrimSpace(code))] = struct{}{}
	}
	return &Runner{registry: registry, disabled: d}
}

// Enabled lists the rules that Run evaluates.
func (r *Runner) Enabled() []Rule {
	var out []Rule
	for _, rule := range r.registry.rules {
		if _, off := r.disabled[strings.ToUpper(rule.Code())]; !off {
			out = append(out, rule)
		}
	}
	return out
}

// Run concatenates each enabled rule's findings in registration order.
func (r *Runner) Run(set *facts.Set) []Finding {
	var all []Finding
	for _, rule := range r.Enabled() {
		all = append(all, rule.Run(set)...)
	}
	return all
}

// HasDeny reports whether any finding blocks.
func HasDeny(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == Deny {
			return true
		}
	}
	return false
}

// CountByCode tallies findings per rule code.
func CountByCode(findings []Finding) map[string]int {
	out := make(map[string]int)
	for _, f := range findings {
		out[f.Code]++
	}
	return out
}
