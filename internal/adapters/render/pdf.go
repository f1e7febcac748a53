package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/markdown"
)

// PDF рендерит выпуск в A4 документ.
type PDF struct{}

var _ domain.DocumentRenderer = PDF{}

// NewPDF создаёт рендерер.
func NewPDF() PDF {
	return PDF{}
}

// Render выводит заголовок выпуска и статьи в порядке doc.Articles.
func (PDF) Render(doc domain.NewsletterDocument) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := fmt.Sprintf("%s - Week %d", doc.LeagueName, doc.Week)

	pdf.SetTitle(title, true)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 22)
	pdf.MultiCell(0, 11, tr(title), "", "C", false)
	pdf.Ln(6)

	for i, article := range doc.Articles {
		if i > 0 {
			pdf.Ln(4)
		}
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 8, tr(article.Title), "", "L", false)
		pdf.Ln(2)
		writeBody(pdf, tr, article.Content)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

var headingSize = map[int]float64{1: 15, 2: 14, 3: 13}

// writeBody печатает блоки markdown: заголовки жирным, акценты в начертании куска.
func writeBody(pdf *fpdf.Fpdf, tr func(string) string, content string) {
	for i, b := range markdown.Blocks(content) {
		if i > 0 {
			pdf.Ln(2)
		}
		switch b.Kind {
		case markdown.BlockHeading:
			size, ok := headingSize[b.Level]
			if !ok {
				size = 12
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, 7, tr(b.Text()), "", "L", false)
		case markdown.BlockRule:
			y := pdf.GetY() + 2
			left, _, right, _ := pdf.GetMargins()
			w, _ := pdf.GetPageSize()
			pdf.Line(left, y, w-right, y)
			pdf.Ln(4)
		case markdown.BlockCode:
			pdf.SetFont("Courier", "", 10)
			pdf.MultiCell(0, 5, tr(b.Text()), "", "L", false)
		case markdown.BlockListItem:
			runs := append([]markdown.Run{{Text: strings.Repeat("  ", max(b.Level-1, 0)) + "- "}}, b.Runs...)
			writeRuns(pdf, tr, runs)
		default:
			writeRuns(pdf, tr, b.Runs)
		}
	}
}

func writeRuns(pdf *fpdf.Fpdf, tr func(string) string, runs []markdown.Run) {
	for _, r := range runs {
		style := ""
		if r.Bold {
			style += "B"
		}
		if r.Italic {
			style += "I"
		}
		pdf.SetFont("Helvetica", style, 11)
		pdf.Write(5.5, tr(r.Text))
	}
	pdf.Ln(5.5)
}
