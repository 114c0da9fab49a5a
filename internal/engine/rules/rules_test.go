package rules

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/extract"
	"klepto/internal/engine/facts"
	"klepto/internal/engine/parser"
)

func factsOf(t *testing.T, src string) *facts.Set {
	t.Helper()
	p, err := parser.NewParser(parser.NewGrammarLoader())
	require.NoError(t, err)
	unit, err := p.ParseSource("src/lib.rs", time.Time{}, []byte(src))
	require.NoError(t, err)
	defer unit.Close()

	set, _ := extract.New("crate", extract.Options{}).Extract(unit)
	return &set
}

func codes(findings []Finding) []string {
	out := []string{}
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}

func TestUndocumentedPublicAPI_SingleFinding(t *testing.T) {
	set := factsOf(t, "pub fn exposed() {}\n\n/// Documented.\npub fn fine() {}\nfn private() {}\n")

	got := UndocumentedPublicAPI{}.Run(set)
	require.Len(t, got, 1)
	assert.Equal(t, Warn, got[0].Severity)
	assert.Equal(t, "KLEP001", got[0].Code)
	assert.Equal(t, "public function missing docs: crate::exposed", got[0].Message)
	assert.Contains(t, got[0].Message, "crate::exposed")
	assert.Equal(t, "fn exposed()", got[0].Extra["signature"])
	assert.Equal(t, 1, *got[0].Location.Line)
}

func TestStdInNoStdCrate_SingleImport(t *testing.T) {
	set := factsOf(t, "#![no_std]\nuse std::sync::Arc;\n")

	got := StdInNoStdCrate{}.Run(set)
	require.Len(t, got, 1)
	assert.Equal(t, Deny, got[0].Severity)
	assert.Contains(t, got[0].Message, "std::sync::Arc")
	assert.Equal(t, "std import in no_std crate: std::sync::Arc", got[0].Message)
}

func TestStdInNoStdCrate_PathsAndGate(t *testing.T) {
	src := "fn f() -> usize { std::mem::size_of::<u8>() + core::mem::align_of::<u8>() }\n"

	assert.Empty(t, StdInNoStdCrate{}.Run(factsOf(t, src)))

	got := StdInNoStdCrate{}.Run(factsOf(t, "#![no_std]\n"+src))
	require.Len(t, got, 1)
	assert.Equal(t, "std path in no_std crate: std::mem::size_of", got[0].Message)
}

func TestUnwrapInPublicAPI(t *testing.T) {
	set := factsOf(t, `
pub fn load(path: &str) -> String {
    let raw = read(path).unwrap();
    raw.parse::<u8>().expect("number");
    raw.unwrap_or_default();
    raw
}

fn private(v: Option<u8>) -> u8 {
    v.unwrap()
}

pub fn outer() {
    fn nested(v: Option<u8>) -> u8 { v.unwrap() }
}
`)

	got := UnwrapInPublicAPI{}.Run(set)
	require.Len(t, got, 2)
	assert.Equal(t, "panic-ish call inside public fn crate::load: unwrap", got[0].Message)
	assert.Equal(t, "panic-ish call inside public fn crate::load: expect", got[1].Message)
	assert.Equal(t, "crate::load", got[1].Extra["enclosing_fn"])
	assert.Equal(t, "expect", got[1].Extra["callee"])
}

func TestPanicMacrosInPublicAPI(t *testing.T) {
	set := factsOf(t, `
pub fn api(x: u8) -> u8 {
    match x {
        0 => panic!("zero"),
        1 => unreachable!(),
        _ => { println!("ok"); todo!() }
    }
}

fn hidden() { panic!("private") }

pub trait Service {
    fn call(&self) { todo!() }
}
`)

	got := PanicMacrosInPublicAPI{}.Run(set)
	require.Len(t, got, 4)
	assert.Equal(t, "macro panic! inside public fn crate::api", got[0].Message)
	assert.Equal(t, "macro unreachable! inside public fn crate::api", got[1].Message)
	assert.Equal(t, "macro todo! inside public fn crate::api", got[2].Message)
	assert.Equal(t, "macro todo! inside public fn crate::Service::call", got[3].Message)
}

func TestDefaultRegistry_OrderAndDisable(t *testing.T) {
	set := factsOf(t, `#![no_std]
use std::vec::Vec;

pub fn api(v: Option<u8>) -> u8 {
    todo!();
    v.unwrap()
}
`)

	reg := DefaultRegistry()
	var regCodes []string
	for _, r := range reg.Rules() {
		regCodes = append(regCodes, r.Code())
	}
	assert.Equal(t, []string{"KLEP001", "KLEP002", "KLEP004", "KLEP003"}, regCodes)

	all := NewRunner(reg).Run(set)
	assert.Equal(t, []string{"KLEP001", "KLEP002", "KLEP004", "KLEP003"}, codes(all))
	assert.True(t, HasDeny(all))
	assert.Equal(t, map[string]int{"KLEP001": 1, "KLEP002": 1, "KLEP003": 1, "KLEP004": 1}, CountByCode(all))

	filtered := NewRunner(reg, "klep004", " KLEP001 ").Run(set)
	assert.Equal(t, []string{"KLEP002", "KLEP003"}, codes(filtered))
	assert.False(t, HasDeny(filtered))
}

type customRule struct{ code string }

func (c customRule) Code() string { return c.code }
func (c customRule) Name() string { return "custom" }
func (c customRule) Run(set *facts.Set) []Finding {
	if len(set.MacroDefs) == 0 {
		return nil
	}
	return []Finding{{Severity: Info, Code: c.code, Message: "macro_rules! defined", Location: set.MacroDefs[0].Location}}
}

func TestRegistry_CustomRules(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(customRule{code: "X001"}))

	err := reg.Register(customRule{code: "X001"})
	assert.True(t, kerrors.IsCode(err, kerrors.CodeValidationError))
	err = reg.Register(customRule{code: " "})
	assert.True(t, kerrors.IsCode(err, kerrors.CodeValidationError))

	got := NewRunner(reg).Run(factsOf(t, "macro_rules! m { () => {} }\n"))
	require.Len(t, got, 1)
	assert.Equal(t, Info, got[0].Severity)
	assert.Empty(t, NewRunner(reg).Run(&facts.Set{}))
}

func TestSeverityJSON(t *testing.T) {
	data, err := json.Marshal(Finding{Severity: Deny, Code: "KLEP004"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"Deny"`)

	var f Finding
	require.NoError(t, json.Unmarshal(data, &f))
	assert.Equal(t, Deny, f.Severity)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}
