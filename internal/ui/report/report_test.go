package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/facts"
	"klepto/internal/engine/rules"
	"klepto/internal/engine/snapshot"
)

func sampleData() Data {
	return Data{
		CrateName: "demo",
		Findings: []rules.Finding{{
			Severity: rules.Warn,
			Code:     "KLEP001",
			Message:  "public function missing docs: crate::f",
			Location: facts.At("src/lib.rs", 1, 1),
		}},
		HasCoverage: true,
		DocCoverage: 0,
	}
}

func TestRender_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatTable, "SEV  CODE    LOCATION"},
		{"", "SEV  CODE    LOCATION"},
		{"JSON", `"crate": "demo"`},
		{FormatMarkdown, "# Klepto Report"},
		{FormatSARIF, `"version": "2.1.0"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := Render(tt.format, sampleData(), Options{Registry: rules.DefaultRegistry()})
			require.NoError(t, err)
			assert.Contains(t, string(out), tt.want)
		})
	}
}

func TestRender_TableWithDiff(t *testing.T) {
	data := sampleData()
	diff := snapshot.Diff{AddedImports: []string{"alloc::vec::Vec"}}
	data.Diff = &diff

	out, err := Render(FormatTable, data, Options{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "## API Changes")
	assert.Contains(t, string(out), "- `alloc::vec::Vec`")
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render("xml", sampleData(), Options{})
	require.Error(t, err)
	assert.True(t, kerrors.IsCode(err, kerrors.CodeNotSupported))
}

func TestWriteAndWriteFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, sampleData(), Options{}))
	assert.True(t, strings.HasPrefix(buf.String(), "SEV"))

	path := filepath.Join(t.TempDir(), "out", "report.md")
	require.NoError(t, WriteFile(path, FormatMarkdown, sampleData(), Options{}))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "public function missing docs: crate::f")
}

func TestInjectSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	initial := "# Demo\n<!-- klepto:findings:start -->\nold\n<!-- klepto:findings:end -->\ntail\n"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	require.NoError(t, InjectSection(path, "findings", "new body\n"))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Demo\n<!-- klepto:findings:start -->\nnew body\n<!-- klepto:findings:end -->\ntail\n", string(content))

	assert.Error(t, InjectSection(path, "missing", "x"))
	assert.Error(t, InjectSection(path, " ", "x"))
}

func TestReplaceBetweenMarkers_CRLF(t *testing.T) {
	in := "a\r\n<!-- klepto:m:start -->\r\nx\r\n<!-- klepto:m:end -->\r\n"
	out, err := ReplaceBetweenMarkers(in, "m", "y")
	require.NoError(t, err)
	assert.Equal(t, "a\r\n<!-- klepto:m:start -->\r\ny\r\n<!-- klepto:m:end -->\r\n", out)

	_, err = ReplaceBetweenMarkers("<!-- klepto:m:end --><!-- klepto:m:start -->", "m", "y")
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	out := Summary(sampleData())
	assert.True(t, strings.HasPrefix(out, "**demo**: 1 finding(s), doc coverage 0.0%\n\n```text\nSEV"))
	assert.True(t, strings.HasSuffix(out, "crate::f\n```\n"))

	assert.True(t, strings.HasPrefix(Summary(Data{}), "**crate**: 0 finding(s)\n"))
}
