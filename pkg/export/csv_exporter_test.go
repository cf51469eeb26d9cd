package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRenderOrderedRows(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(Table{
		Title:   "Attendance Report",
		Columns: []string{"Date", "Group", "Checked In"},
		Rows: [][]string{
			{"2026-03-01", "Sunday Kids", "18"},
			{"2026-03-08", "Sunday Kids", "21"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Date,Group,Checked In\n2026-03-01,Sunday Kids,18\n2026-03-08,Sunday Kids,21\n", string(out))
}

func TestCSVRenderRejectsRaggedRow(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Table{
		Columns: []string{"Date", "Group"},
		Rows:    [][]string{{"2026-03-01"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}

func TestCSVRenderRequiresColumns(t *testing.T) {
	exporter := NewCSVExporter()

	_, err := exporter.Render(Table{})
	require.Error(t, err)
}
