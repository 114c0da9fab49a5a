package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klepto/internal/engine/analysis"
	"klepto/internal/engine/facts"
	"klepto/internal/engine/rules"
)

func TestModel_UpdateMsgPopulatesList(t *testing.T) {
	m := initialModel()
	msg := updateMsg{
		findings: []rules.Finding{
			{Severity: rules.Deny, Code: "KLEP004", Message: "std import in no_std crate: std::fmt", Location: facts.At("src/lib.rs", 2, 5)},
			{Severity: rules.Warn, Code: "KLEP001", Message: "public function missing docs: demo::f", Location: facts.At("src/lib.rs", 4, 1)},
		},
		coverage:  analysis.DocCoverage{PublicTotal: 1, Percent: 0},
		fileCount: 1,
		crateName: "demo",
		at:        time.Now(),
	}

	next, _ := m.Update(msg)
	updated, ok := next.(model)
	require.True(t, ok)

	items := updated.list.Items()
	require.Len(t, items, 2)
	first := items[0].(item)
	assert.Equal(t, "Deny KLEP004", first.Title())
	assert.Contains(t, first.Description(), "src/lib.rs")
	assert.Equal(t, rules.Deny, first.severity)

	deny, warn := updated.counts()
	assert.Equal(t, 1, deny)
	assert.Equal(t, 1, warn)

	view := updated.View()
	assert.Contains(t, view, "1 Deny")
	assert.Contains(t, view, "demo")
}

func TestModel_CleanView(t *testing.T) {
	next, _ := initialModel().Update(updateMsg{crateName: "demo", at: time.Now()})
	assert.Contains(t, next.View(), "No findings")
}

func TestModel_QuitKeys(t *testing.T) {
	m := initialModel()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
