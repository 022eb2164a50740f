// -----------------------------------------------------------------------
// Report Service - renders a processing job as a downloadable PDF report
// -----------------------------------------------------------------------

package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/vellumdocs/vellum/internal/interfaces"
	"github.com/vellumdocs/vellum/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Service implements interfaces.ReportService. The report is composed as
// markdown first, then typeset to PDF, so the same content could be
// served as plain markdown later without touching the composition.
type Service struct {
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ReportService = (*Service)(nil)

// NewService creates a new report service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// RenderJobReport produces a PDF summary of the job: outcome, per-step
// timeline, result metadata, and the detail trail.
func (s *Service) RenderJobReport(job models.Job) ([]byte, error) {
	markdown := composeMarkdown(job)

	s.logger.Debug().
		Str("job_id", job.ID).
		Int("markdown_len", len(markdown)).
		Msg("Rendering job report")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle(fmt.Sprintf("Processing report %s", job.ID), false)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table),
	)
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{
		pdf:    pdf,
		source: source,
		font:   "Arial",
		size:   9,
	}
	if err := renderer.render(doc); err != nil {
		return nil, fmt.Errorf("failed to render job report: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write job report: %w", err)
	}

	s.logger.Debug().Str("job_id", job.ID).Int("pdf_size", buf.Len()).Msg("Job report rendered")
	return buf.Bytes(), nil
}

// composeMarkdown builds the report body from a job snapshot.
func composeMarkdown(job models.Job) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Processing Report: %s\n\n", job.Filename)

	b.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Job ID | %s |\n", job.ID)
	fmt.Fprintf(&b, "| Status | %s |\n", job.Status)
	fmt.Fprintf(&b, "| Progress | %d%% |\n", job.Progress)
	fmt.Fprintf(&b, "| Started | %s |\n", job.StartedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Fprintf(&b, "| Finished | %s |\n", job.CompletedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "| Duration | %s |\n", job.CompletedAt.Sub(job.StartedAt).Round(time.Second))
	}
	if job.RemoteDocumentID != "" {
		fmt.Fprintf(&b, "| Document | %s |\n", job.RemoteDocumentID)
	}
	b.WriteString("\n")

	if job.Error != "" {
		b.WriteString("## Failure\n\n")
		fmt.Fprintf(&b, "**%s**: %s\n\n", job.ErrorCode, job.Error)
	}

	b.WriteString("## Pipeline\n\n")
	b.WriteString("| Step | Status | Duration |\n|---|---|---|\n")
	for _, step := range job.Steps {
		duration := ""
		if step.Duration > 0 {
			duration = step.Duration.Round(time.Millisecond).String()
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", step.Name, step.Status, duration)
	}
	b.WriteString("\n")

	if hasResults(job.Result) {
		b.WriteString("## Results\n\n")
		if job.Result.ChunksCreated > 0 {
			fmt.Fprintf(&b, "- Chunks created: %d\n", job.Result.ChunksCreated)
		}
		if job.Result.ImagesExtracted > 0 {
			fmt.Fprintf(&b, "- Images extracted: %d\n", job.Result.ImagesExtracted)
		}
		if job.Result.TextLength > 0 {
			fmt.Fprintf(&b, "- Text length: %d characters\n", job.Result.TextLength)
		}
		if job.Result.KBEntriesSaved > 0 {
			fmt.Fprintf(&b, "- Knowledge-base entries: %d\n", job.Result.KBEntriesSaved)
		}
		b.WriteString("\n")
	}

	var details []string
	for _, step := range job.Steps {
		for _, d := range step.Details {
			details = append(details, fmt.Sprintf("- %s [%s] %s", d.Timestamp.Format("15:04:05"), d.Level, d.Message))
		}
	}
	if len(details) > 0 {
		b.WriteString("## Activity\n\n")
		b.WriteString(strings.Join(details, "\n"))
		b.WriteString("\n")
	}

	return b.String()
}

func hasResults(r models.ResultMetadata) bool {
	return r.ChunksCreated > 0 || r.ImagesExtracted > 0 || r.TextLength > 0 || r.KBEntriesSaved > 0
}

// pdfRenderer walks the markdown AST and typesets it with fpdf. The
// report composer only emits headings, paragraphs, lists, emphasis and
// pipe tables, so that is the full vocabulary handled here.
type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	font      string
	size      float64
	bold      bool
	listLevel int
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) restoreFont() {
	style := ""
	if r.bold {
		style = "B"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering {
			r.pdf.Ln(7)
		}
	case ast.KindText:
		if entering {
			r.pdf.Write(5, string(n.Text(r.source)))
		}
	case ast.KindEmphasis:
		r.bold = entering && n.(*ast.Emphasis).Level == 2
		r.restoreFont()
	case ast.KindList:
		if entering {
			r.listLevel++
		} else {
			r.listLevel--
			if r.listLevel == 0 {
				r.pdf.Ln(5)
			}
		}
	case ast.KindListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(12 + float64(r.listLevel)*4)
			r.pdf.Write(5, "- ")
		}
	case extast.KindTable:
		if entering {
			r.renderTable(n.(*extast.Table))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(6)
		size := 14.0
		switch n.Level {
		case 2:
			size = 12
		case 3:
			size = 11
		}
		r.pdf.SetFont(r.font, "B", size)
	} else {
		r.pdf.Ln(6)
		r.restoreFont()
	}
	return ast.WalkContinue, nil
}

// renderTable lays the table out with equal-width columns. Report tables
// are narrow key/value or step listings; measured layout is not worth it.
func (r *pdfRenderer) renderTable(table *extast.Table) {
	var rows [][]string
	for child := table.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableRow, *extast.TableHeader:
			rows = append(rows, r.cellsOf(child))
		}
	}

	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	r.pdf.Ln(2)
	colWidth := 186.0 / float64(len(rows[0]))
	lineHeight := 5.0

	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont(r.font, "B", 8)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont(r.font, "", 8)
			r.pdf.SetFillColor(255, 255, 255)
		}
		for _, cell := range row {
			r.pdf.CellFormat(colWidth, lineHeight+2, truncate(cell, 60), "1", 0, "L", i == 0, 0, "")
		}
		r.pdf.Ln(lineHeight + 2)
	}

	r.pdf.Ln(3)
	r.restoreFont()
}

func (r *pdfRenderer) cellsOf(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			cells = append(cells, string(cell.Text(r.source)))
		}
	}
	return cells
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
