package inspect

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// buildPDF renders a minimal document with the given number of pages.
func buildPDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Cell(40, 10, "installation manual")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func TestInspect_ReportsPageCount(t *testing.T) {
	inspector := NewInspector(arbor.NewLogger())

	data := buildPDF(t, 3)
	info, err := inspector.Inspect(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, 3, info.PageCount)
	assert.Equal(t, int64(len(data)), info.FileSize)
	assert.False(t, info.Encrypted)
}

func TestInspect_RejectsGarbage(t *testing.T) {
	inspector := NewInspector(arbor.NewLogger())

	_, err := inspector.Inspect(context.Background(), []byte("definitely not a pdf"))
	assert.Error(t, err)
}
