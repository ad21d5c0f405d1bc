package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	e := NewCSVExporter()
	out, err := e.Render(Dataset{
		Headers: []string{"Code", "Title"},
		Rows: []map[string]string{
			{"Code": "CS101", "Title": "Intro, with comma"},
			{"Code": "MA101"},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Code,Title", lines[0])
	assert.Equal(t, `CS101,"Intro, with comma"`, lines[1])
	assert.Equal(t, "MA101,", lines[2])
}

func TestCSVExporterRenderRequiresHeaders(t *testing.T) {
	e := NewCSVExporter()
	_, err := e.Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	e := NewPDFExporter()
	out, err := e.Render(Dataset{
		Headers: []string{"Code", "Title"},
		Rows:    []map[string]string{{"Code": "CS101", "Title": "Intro"}},
	}, "Section Summary")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestPDFExporterRenderSections(t *testing.T) {
	e := NewPDFExporter()
	out, err := e.RenderSections(SectionedDataset{
		Headers: []string{"Course", "Grade"},
		Sections: []Section{
			{Heading: "Fall 2026", Rows: []map[string]string{{"Course": "CS101", "Grade": "A"}}, Summary: "Term GPA: 4.00"},
		},
		Footer: "Cumulative GPA: 4.00",
	}, "Transcript")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}
