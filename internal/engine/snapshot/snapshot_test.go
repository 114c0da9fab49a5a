package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/extract"
	"klepto/internal/engine/facts"
	"klepto/internal/engine/parser"
)

func snapshotOf(t *testing.T, src string) Snapshot {
	t.Helper()
	p, err := parser.NewParser(parser.NewGrammarLoader())
	require.NoError(t, err)
	unit, err := p.ParseSource("src/lib.rs", time.Time{}, []byte(src))
	require.NoError(t, err)
	defer unit.Close()

	set, _ := extract.New("crate", extract.Options{}).Extract(unit)
	return New("demo", &set)
}

func fn(fq, sig string, line int) FnFingerprint {
	return FnFingerprint{FQName: fq, SigHash: HashSignature(sig), Signature: sig, Location: facts.At("src/lib.rs", line, 1)}
}

func export(as, src string) ExportFingerprint {
	return ExportFingerprint{ExportedAs: as, SourcePath: src, Location: facts.At("src/lib.rs", 1, 1)}
}

func TestNew_CapturesProjections(t *testing.T) {
	s := snapshotOf(t, `#![no_std]
use core::mem;
use core::mem;
use alloc::vec::Vec;
pub use crate::inner::Thing as Public;

pub fn f(x: u8) -> u8 { x }
`)
	assert.Equal(t, "demo", s.CrateName)
	assert.True(t, s.NoStd)
	assert.Equal(t, []string{"alloc::vec::Vec", "core::mem", "crate::inner::Thing"}, s.Imports)
	require.Len(t, s.Exports, 1)
	assert.Equal(t, "Public", s.Exports[0].ExportedAs)
	assert.Equal(t, "crate::inner::Thing", s.Exports[0].SourcePath)
	require.Len(t, s.Functions, 1)
	assert.Equal(t, "crate::f", s.Functions[0].FQName)
	assert.Equal(t, "fn f(x: u8) -> u8", s.Functions[0].Signature)
	assert.Equal(t, HashSignature("fn f(x: u8) -> u8"), s.Functions[0].SigHash)
	assert.Len(t, s.Functions[0].SigHash, 64)
}

func TestCompare_SelfDiffIsEmpty(t *testing.T) {
	s := Snapshot{
		Functions: []FnFingerprint{fn("c::a", "fn a()", 1), fn("c::b", "fn b()", 2)},
		Exports:   []ExportFingerprint{export("A", "c::a")},
		Imports:   []string{"std::io"},
	}
	d := Compare(s, s)
	assert.True(t, d.Empty())
	assert.Empty(t, d.ChangedSignatures)

	assert.True(t, Compare(Snapshot{}, Snapshot{}).Empty())
}

func TestCompare_ScenarioReturnTypeChange(t *testing.T) {
	before := snapshotOf(t, "mod a {\n    pub fn f() -> u8 { 0 }\n}\n")
	after := snapshotOf(t, "mod a {\n\n    pub fn f() -> u16 { 0 }\n}\n")

	d := Compare(before, after)
	require.Len(t, d.ChangedSignatures, 1)
	assert.Equal(t, "crate::a::f", d.ChangedSignatures[0].Old.FQName)
	assert.Equal(t, "fn f() -> u8", d.ChangedSignatures[0].Old.Signature)
	assert.Equal(t, "fn f() -> u16", d.ChangedSignatures[0].New.Signature)
	assert.Empty(t, d.AddedFunctions)
	assert.Empty(t, d.RemovedFunctions)
	assert.Equal(t, 1, d.Changes())
}

func TestCompare_LocationDriftIsNotAChange(t *testing.T) {
	old := Snapshot{Functions: []FnFingerprint{fn("c::a", "fn a()", 1)}, Exports: []ExportFingerprint{export("A", "c::a")}}
	moved := Snapshot{Functions: []FnFingerprint{fn("c::a", "fn a()", 40)}}
	moved.Exports = []ExportFingerprint{{ExportedAs: "A", SourcePath: "c::a", Location: facts.At("src/other.rs", 3, 3)}}

	assert.True(t, Compare(old, moved).Empty())
}

func TestCompare_SymmetryAndOrdering(t *testing.T) {
	old := Snapshot{
		Functions: []FnFingerprint{fn("c::z", "fn z()", 1), fn("c::keep", "fn keep()", 2), fn("c::sig", "fn sig()", 3), fn("c::gone", "fn gone()", 4)},
		Exports:   []ExportFingerprint{export("B", "c::b"), export("A", "c::a")},
		Imports:   []string{"std::io", "serde::Serialize"},
	}
	next := Snapshot{
		Functions: []FnFingerprint{fn("c::sig", "fn sig(x: u8)", 3), fn("c::new2", "fn new2()", 9), fn("c::keep", "fn keep()", 2), fn("c::new1", "fn new1()", 8)},
		Exports:   []ExportFingerprint{export("A", "c::a"), export("A", "c::other")},
		Imports:   []string{"tokio::spawn", "std::io", "anyhow::Result"},
	}

	fwd := Compare(old, next)
	rev := Compare(next, old)

	fqs := func(fns []FnFingerprint) []string {
		out := []string{}
		for _, f := range fns {
			out = append(out, f.FQName)
		}
		return out
	}

	assert.Equal(t, []string{"c::new1", "c::new2"}, fqs(fwd.AddedFunctions))
	assert.Equal(t, []string{"c::gone", "c::z"}, fqs(fwd.RemovedFunctions))
	assert.Equal(t, fqs(fwd.AddedFunctions), fqs(rev.RemovedFunctions))
	assert.Equal(t, fqs(fwd.RemovedFunctions), fqs(rev.AddedFunctions))

	require.Len(t, fwd.ChangedSignatures, 1)
	require.Len(t, rev.ChangedSignatures, 1)
	assert.Equal(t, fwd.ChangedSignatures[0].Old, rev.ChangedSignatures[0].New)
	assert.Equal(t, fwd.ChangedSignatures[0].New, rev.ChangedSignatures[0].Old)

	assert.Equal(t, []ExportFingerprint{export("A", "c::other")}, fwd.AddedExports)
	assert.Equal(t, []ExportFingerprint{export("B", "c::b")}, fwd.RemovedExports)
	assert.Equal(t, fwd.AddedExports, rev.RemovedExports)
	assert.Equal(t, fwd.RemovedExports, rev.AddedExports)

	assert.Equal(t, []string{"anyhow::Result", "tokio::spawn"}, fwd.AddedImports)
	assert.Equal(t, []string{"serde::Serialize"}, fwd.RemovedImports)
	assert.Equal(t, fwd.AddedImports, rev.RemovedImports)
	assert.Equal(t, fwd.RemovedImports, rev.AddedImports)

	shuffled := next
	shuffled.Functions = []FnFingerprint{next.Functions[3], next.Functions[1], next.Functions[0], next.Functions[2]}
	assert.Equal(t, fwd, Compare(old, shuffled))
}

func TestCompare_RepeatedFQNamesCompareAsMultiset(t *testing.T) {
	fromA := FnFingerprint{FQName: "crate::X::from", SigHash: HashSignature("fn from(a: A) -> Self"), Signature: "fn from(a: A) -> Self", Location: facts.At("src/a.rs", 3, 5)}
	fromB := FnFingerprint{FQName: "crate::X::from", SigHash: HashSignature("fn from(b: B) -> Self"), Signature: "fn from(b: B) -> Self", Location: facts.At("src/b.rs", 7, 5)}
	fromC := FnFingerprint{FQName: "crate::X::from", SigHash: HashSignature("fn from(c: C) -> Self"), Signature: "fn from(c: C) -> Self", Location: facts.At("src/b.rs", 7, 5)}

	old := Snapshot{Functions: []FnFingerprint{fromA, fromB}}
	reordered := Snapshot{Functions: []FnFingerprint{fromB, fromA}}
	assert.True(t, Compare(old, reordered).Empty())
	assert.True(t, Compare(reordered, old).Empty())

	edited := Snapshot{Functions: []FnFingerprint{fromA, fromC}}
	d := Compare(old, edited)
	require.Len(t, d.ChangedSignatures, 1)
	assert.Equal(t, fromB, d.ChangedSignatures[0].Old)
	assert.Equal(t, fromC, d.ChangedSignatures[0].New)
	assert.Empty(t, d.AddedFunctions)
	assert.Empty(t, d.RemovedFunctions)
	assert.Equal(t, d, Compare(Snapshot{Functions: []FnFingerprint{fromB, fromA}}, Snapshot{Functions: []FnFingerprint{fromC, fromA}}))

	extra := Snapshot{Functions: []FnFingerprint{fromB, fromC, fromA}}
	grown := Compare(old, extra)
	assert.Empty(t, grown.ChangedSignatures)
	assert.Equal(t, []FnFingerprint{fromC}, grown.AddedFunctions)

	shrunk := Compare(extra, old)
	assert.Equal(t, []FnFingerprint{fromC}, shrunk.RemovedFunctions)
	assert.Empty(t, shrunk.AddedFunctions)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	s := Snapshot{
		CrateName: "demo",
		Functions: []FnFingerprint{fn("demo::run", "fn run()", 3)},
		Exports:   []ExportFingerprint{},
		Imports:   []string{"std::io"},
	}
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
	assert.True(t, Compare(s, loaded).Empty())

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.True(t, kerrors.IsCode(err, kerrors.CodeNotFound))

	_, err = Decode([]byte("{not json"))
	assert.True(t, kerrors.IsCode(err, kerrors.CodeValidationError))
}
