package rules

import (
	"fmt"
	"strings"

	"klepto/internal/engine/facts"
	"klepto/internal/engine/query"
)

type UndocumentedPublicAPI struct{}

func (UndocumentedPublicAPI) Code() string { return "KLEP001" }
func (UndocumentedPublicAPI) Name() string { return "Undocumented public API" }

func (r UndocumentedPublicAPI) Run(set *facts.Set) []Finding {
	var out []Finding
	for _, f := range set.Functions {
		if !f.Public || f.HasDocs {
			continue
		}
		out = append(out, Finding{
			Severity: Warn,
			Code:     r.Code(),
			Message:  "public function missing docs: " + f.FQName,
			Location: f.Location,
			Extra:    map[string]any{"signature": f.Signature},
		})
	}
	return out
}

// UnwrapInPublicAPI flags unwrap and expect calls made directly inside a
// public function.
type UnwrapInPublicAPI struct{}

func (UnwrapInPublicAPI) Code() string { return "KLEP002" }
func (UnwrapInPublicAPI) Name() string { return "unwrap/expect in public API" }

func (r UnwrapInPublicAPI) Run(set *facts.Set) []Finding {
	var out []Finding
	for _, c := range set.Calls {
		if !c.InPublicFn() {
			continue
		}
		if !query.IsAccessorCall(c.Callee, "unwrap") && !query.IsAccessorCall(c.Callee, "expect") {
			continue
		}
		out = append(out, Finding{
			Severity: Warn,
			Code:     r.Code(),
			Message:  fmt.Sprintf("panic-ish call inside public fn %s: %s", c.Fn(), c.Callee),
			Location: c.Location,
			Extra:    map[string]any{"enclosing_fn": c.Fn(), "callee": c.Callee},
		})
	}
	return out
}

var panicMacros = map[string]struct{}{
	"panic":       {},
	"todo":        {},
	"unreachable": {},
}

type PanicMacrosInPublicAPI struct{}

func (PanicMacrosInPublicAPI) Code() string { return "KLEP003" }
func (PanicMacrosInPublicAPI) Name() string { return "panic/todo/unreachable in public API" }

func (r PanicMacrosInPublicAPI) Run(set *facts.Set) []Finding {
	var out []Finding
	for _, m := range set.MacroInvocations {
		if !m.InPublicFn() {
			continue
		}
		if _, ok := panicMacros[m.Name]; !ok {
			continue
		}
		out = append(out, Finding{
			Severity: Warn,
			Code:     r.Code(),
			Message:  fmt.Sprintf("macro %s! inside public fn %s", m.Name, m.Fn()),
			Location: m.Location,
			Extra:    map[string]any{"enclosing_fn": m.Fn(), "macro": m.Name},
		})
	}
	return out
}

// StdInNoStdCrate only reports when some unit declared #![no_std].
type StdInNoStdCrate struct{}

func (StdInNoStdCrate) Code() string { return "KLEP004" }
func (StdInNoStdCrate) Name() string { return "std usage in no_std crate" }

func (r StdInNoStdCrate) Run(set *facts.Set) []Finding {
	if !set.NoStd {
		return nil
	}
	var out []Finding
	for _, imp := range set.Imports {
		if imp.Root != "std" {
			continue
		}
		out = append(out, Finding{
			Severity: Deny,
			Code:     r.Code(),
			Message:  "std import in no_std crate: " + imp.FullPath,
			Location: imp.Location,
			Extra:    map[string]any{"import": imp.FullPath},
		})
	}
	for _, p := range set.Paths {
		if p.Path != "std" && !strings.HasPrefix(p.Path, "std::") {
			continue
		}
		out = append(out, Finding{
			Severity: Deny,
			Code:     r.Code(),
			Message:  "std path in no_std crate: " + p.Path,
			Location: p.Location,
			Extra:    map[string]any{"path": p.Path, "module": strings.Join(p.ModulePath, "::")},
		})
	}
	return out
}
