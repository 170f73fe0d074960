package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"ragalert/internal/domain"
)

type rgb struct{ r, g, b int }

var (
	basfRed       = rgb{197, 0, 34}
	basfDarkBlue  = rgb{0, 74, 150}
	basfLightBlue = rgb{33, 160, 210}
	basfGray      = rgb{102, 102, 102}
	metaFill      = rgb{245, 245, 245}
	black         = rgb{0, 0, 0}
	white         = rgb{255, 255, 255}
)

// Page geometry in millimetres. One inch margins, like a letter template
// printed on A4.
const (
	margin       = 25.4
	bottomMargin = 15
	labelWidth   = 50.8
	valueWidth   = 101.6
	rowLine      = 6
	bodyLine     = 5.5
	indent       = 3.5
	cellPad      = 1.5
)

type renderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// Render lays the document out as an A4 PDF.
func Render(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, bottomMargin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("BASF Assistant", true)
	if !doc.CreatedAt.IsZero() {
		pdf.SetCreationDate(doc.CreatedAt)
	}

	r := &renderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.AddPage()

	r.title(doc.Title)
	for _, row := range doc.Meta {
		r.row(row, metaFill, black)
	}
	pdf.Ln(7)

	for _, s := range doc.Sections {
		r.section(s)
	}

	pdf.Ln(10)
	r.color(basfGray)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 4.5, r.tr(doc.Footer), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: render pdf: %v", domain.ErrReportBuild, err)
	}
	return buf.Bytes(), nil
}

func (r *renderer) color(c rgb) { r.pdf.SetTextColor(c.r, c.g, c.b) }

func (r *renderer) title(text string) {
	r.pdf.Ln(7)
	r.color(basfDarkBlue)
	r.pdf.SetFont("Helvetica", "B", 20)
	r.pdf.MultiCell(0, 10, r.tr(text), "", "C", false)
	r.pdf.Ln(8)
}

func (r *renderer) section(s Section) {
	r.pdf.Ln(5)
	r.color(basfRed)
	r.pdf.SetFont("Helvetica", "B", 16)
	r.pdf.CellFormat(0, 9, r.tr(s.Heading), "", 1, "L", false, 0, "")
	r.pdf.Ln(2)

	left, _, _, _ := r.pdf.GetMargins()
	r.pdf.SetLeftMargin(left + indent)
	r.color(black)
	for _, l := range s.Lines {
		r.line(l)
	}
	r.pdf.SetLeftMargin(left)
	r.pdf.SetX(left)

	for _, row := range s.Table {
		r.row(row, basfLightBlue, white)
	}
}

func (r *renderer) line(l Line) {
	if len(l.Spans) == 0 {
		r.pdf.Ln(bodyLine / 2)
		return
	}
	left, _, _, _ := r.pdf.GetMargins()
	r.pdf.SetX(left)
	for _, s := range l.Spans {
		style := ""
		if s.Bold {
			style = "B"
		}
		r.pdf.SetFont("Helvetica", style, 11)
		r.pdf.Write(bodyLine, r.tr(s.Text))
	}
	r.pdf.Ln(bodyLine)
}

// row draws a bordered label/value pair. The value wraps inside its cell
// and the label cell grows to match.
func (r *renderer) row(row Row, labelFill, labelText rgb) {
	r.pdf.SetFont("Helvetica", "", 10)
	lines := wrap(r.pdf, r.tr(row.Value), valueWidth-2*cellPad)
	h := float64(len(lines)) * rowLine

	_, pageH := r.pdf.GetPageSize()
	if r.pdf.GetY()+h > pageH-bottomMargin {
		r.pdf.AddPage()
	}
	x, y := r.pdf.GetXY()

	r.pdf.SetDrawColor(0, 0, 0)
	r.pdf.SetFillColor(labelFill.r, labelFill.g, labelFill.b)
	r.color(labelText)
	r.pdf.SetFont("Helvetica", "B", 10)
	r.pdf.CellFormat(labelWidth, h, r.tr(row.Label), "1", 0, "LM", true, 0, "")

	r.color(black)
	r.pdf.SetFont("Helvetica", "", 10)
	r.pdf.Rect(x+labelWidth, y, valueWidth, h, "D")
	for i, l := range lines {
		r.pdf.SetXY(x+labelWidth+cellPad, y+float64(i)*rowLine)
		r.pdf.CellFormat(valueWidth-2*cellPad, rowLine, l, "", 0, "LM", false, 0, "")
	}
	r.pdf.SetXY(x, y+h)
}

// wrap breaks already translated text into lines no wider than width using
// the current font. It always returns at least one line.
func wrap(pdf *fpdf.Fpdf, text string, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		if pdf.GetStringWidth(cur+" "+w) > width {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(lines, cur)
}
