package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Materia", "Calificación"},
		Rows: []map[string]string{
			{"Materia": "Cálculo", "Calificación": "65"},
			{"Materia": "Física, II", "Calificación": ""},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter(false).Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Materia,Calificación\nCálculo,65\n\"Física, II\",\n", string(out))
}

func TestCSVExporterBOM(t *testing.T) {
	out, err := NewCSVExporter(true).Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, utf8BOM))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter(false).Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(Document{
		Title:    "Reporte académico",
		Subtitle: "Ana Torres",
		Table:    sampleDataset(),
		Notes:    []string{"Promedio general: 65.00/100"},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Document{Title: "x"})
	assert.Error(t, err)
}
