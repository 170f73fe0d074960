package report

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"ragalert/internal/domain"
)

// Title is the heading of every incident report.
const Title = "BASF - Reporte de Incidente de Seguridad"

// A user message must be longer than this to count as the incident query;
// shorter ones are greetings and follow-ups.
const minQueryLen = 20

// Span is a run of text with a single weight.
type Span struct {
	Text string
	Bold bool
}

// Line is one rendered line. A line without spans is a paragraph break.
type Line struct {
	Spans []Span
}

// Text renders the line with bold runs marked as **text**.
func (l Line) Text() string {
	var sb strings.Builder
	for _, s := range l.Spans {
		if s.Bold {
			sb.WriteString("**" + s.Text + "**")
		} else {
			sb.WriteString(s.Text)
		}
	}
	return sb.String()
}

// Row is a label/value pair of a two column table.
type Row struct {
	Label string
	Value string
}

// Section is a numbered report section with either prose lines or a table.
type Section struct {
	Heading string
	Lines   []Line
	Table   []Row
}

func (s Section) Text() string {
	var sb strings.Builder
	sb.WriteString(s.Heading + "\n")
	for _, l := range s.Lines {
		sb.WriteString(l.Text() + "\n")
	}
	for _, r := range s.Table {
		sb.WriteString("| " + r.Label + " | " + r.Value + " |\n")
	}
	return sb.String()
}

// Document is the layout-independent content of an incident report.
type Document struct {
	Title     string
	Meta      []Row
	Sections  []Section
	Footer    string
	CreatedAt time.Time
}

func (d Document) Text() string {
	var sb strings.Builder
	sb.WriteString(d.Title + "\n\n")
	for _, r := range d.Meta {
		sb.WriteString("| " + r.Label + " | " + r.Value + " |\n")
	}
	for _, s := range d.Sections {
		sb.WriteString("\n" + s.Text())
	}
	sb.WriteString("\n" + d.Footer + "\n")
	return sb.String()
}

// Build extracts report content from a transcript. The last substantive
// user message describes the incident and the last finished assistant
// message supplies the analysis; fixed narrative replaces whichever is
// missing.
func Build(t domain.Transcript, now time.Time) (Document, error) {
	if err := validate(t); err != nil {
		return Document{}, fmt.Errorf("%w: %w", domain.ErrReportBuild, err)
	}

	var query, response string
	for _, m := range t.Messages {
		switch {
		case m.Role == domain.RoleUser && utf8.RuneCountInString(m.Content) > minQueryLen:
			query = m.Content
		case m.Role == domain.RoleAssistant && !m.IsTyping:
			response = m.Content
		}
	}

	stamp := now.Format("02/01/2006 15:04")
	return Document{
		Title: Title,
		Meta: []Row{
			{"Fecha del Reporte:", stamp},
			{"Sistema:", "BASF Assistant - Gestión de Seguridad"},
			{"Tipo:", "Análisis de Incidente Químico"},
		},
		Sections: []Section{
			{Heading: "1. DESCRIPCIÓN DEL INCIDENTE", Lines: describeIncident(query, now)},
			{Heading: "2. ANÁLISIS Y RECOMENDACIONES", Lines: analyse(response)},
			{Heading: "3. RESUMEN EJECUTIVO", Table: summarize(response)},
		},
		Footer:    "Generado automáticamente por BASF Assistant • " + stamp + " • Confidencial",
		CreatedAt: now,
	}, nil
}

func validate(t domain.Transcript) error {
	if t.Messages == nil {
		return domain.NewValidationError("messages", "is required")
	}
	for i, m := range t.Messages {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			return domain.NewValidationError(fmt.Sprintf("messages[%d].role", i), "must be %q or %q, got %q", domain.RoleUser, domain.RoleAssistant, m.Role)
		}
	}
	return nil
}

func plain(text string) Line { return Line{Spans: []Span{{Text: text}}} }

func bold(text string) Line { return Line{Spans: []Span{{Text: text, Bold: true}}} }

func bullet(text string) Line { return plain("• " + text) }

func labeled(label, text string) Line {
	return Line{Spans: []Span{{Text: "• "}, {Text: label, Bold: true}, {Text: " " + text}}}
}

func describeIncident(query string, now time.Time) []Line {
	if query == "" {
		return []Line{
			labeled("Ubicación:", "Planta de Producción A - Área de Operaciones"),
			labeled("Fecha y Hora:", SpanishDateTime(now)),
			labeled("Incidente:", "Empleado operario se retiró el casco de seguridad durante operaciones de trasvase"),
			labeled("Sustancia Involucrada:", "Metacrilato de Metilo (MMA)"),
			labeled("Violación de Seguridad:", "Incumplimiento del protocolo de EPP (Equipo de Protección Personal)"),
			labeled("Riesgo Detectado:", "Exposición potencial a vapores químicos y riesgo de impacto en la cabeza"),
		}
	}

	lower := strings.ToLower(query)
	var lines []Line
	if strings.Contains(lower, "planta") {
		lines = append(lines, bullet("Ubicación: Detectado en instalaciones de planta de producción"))
	}
	if strings.Contains(lower, "metacrilato") || strings.Contains(query, "MMA") {
		lines = append(lines, bullet("Sustancia Involucrada: Metacrilato de Metilo (MMA)"))
	}
	if strings.Contains(lower, "casco") {
		lines = append(lines, bullet("Violación de Seguridad: Trabajador sin equipo de protección personal (casco)"))
	}
	if strings.Contains(lower, "trasvase") {
		lines = append(lines, bullet("Actividad: Operaciones de trasvase de material químico"))
	}
	if len(lines) > 0 {
		return lines
	}

	return []Line{
		labeled("Ubicación:", "Planta de Producción A - Área de Operaciones"),
		labeled("Incidente:", "Empleado operario se retiró el casco de seguridad durante operaciones"),
		labeled("Violación de Seguridad:", "Incumplimiento del protocolo de EPP"),
		labeled("Sustancia Involucrada:", "Metacrilato de Metilo (MMA)"),
		labeled("Riesgo:", "Exposición a vapores químicos y riesgo de traumatismo"),
	}
}

func analyse(response string) []Line {
	if strings.TrimSpace(response) == "" {
		return DefaultAnalysis()
	}
	return FormatResponse(response)
}

// DefaultAnalysis is used when the transcript has no finished answer.
func DefaultAnalysis() []Line {
	return []Line{
		bold("ANÁLISIS DEL INCIDENTE:"),
		plain("El retiro del casco de seguridad por parte del operario durante las operaciones de trasvase de MMA constituye una grave violación de los protocolos de seguridad establecidos. Esta acción expone al trabajador a riesgos significativos de inhalación de vapores químicos y posibles traumatismos craneoencefálicos."),
		{},
		bold("FACTORES DE RIESGO IDENTIFICADOS:"),
		bullet("Exposición directa a vapores de Metacrilato de Metilo"),
		bullet("Riesgo de impacto por caída de objetos o equipos"),
		bullet("Incumplimiento de normativas de seguridad industrial"),
		bullet("Posible falta de supervisión en el área de trabajo"),
		{},
		bold("RECOMENDACIONES INMEDIATAS:"),
		labeled("Acción Correctiva:", "Suspensión temporal del empleado para capacitación en seguridad"),
		labeled("Medidas Preventivas:", "Reforzar la supervisión en área de trasvase"),
		labeled("Capacitación:", "Sesión obligatoria sobre uso correcto de EPP"),
		labeled("Seguimiento:", "Evaluación médica del empleado por posible exposición"),
		labeled("Protocolo:", "Revisión de procedimientos de seguridad en operaciones con MMA"),
	}
}

var boldMarker = regexp.MustCompile(`\*\*(.*?)\*\*`)

// FormatResponse turns a markdown-flavoured model answer into report lines:
// **x** becomes bold, "*" list items become bullets and prose lines are
// separated by a blank line.
func FormatResponse(response string) []Line {
	var out []Line
	for _, raw := range strings.Split(response, "\n") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		spans := parseBold(text)

		first := &spans[0]
		switch {
		case !first.Bold && strings.HasPrefix(first.Text, "*"):
			first.Text = "• " + strings.TrimLeftFunc(first.Text[1:], unicode.IsSpace)
		case first.Bold || !strings.HasPrefix(first.Text, "•"):
			if len(out) > 0 && len(out[len(out)-1].Spans) > 0 {
				out = append(out, Line{})
			}
		}
		out = append(out, Line{Spans: spans})
	}
	return out
}

// parseBold splits s into spans. s must be non-empty; the result always
// has at least one span.
func parseBold(s string) []Span {
	var spans []Span
	last := 0
	for _, m := range boldMarker.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			spans = append(spans, Span{Text: s[last:m[0]]})
		}
		if m[3] > m[2] {
			spans = append(spans, Span{Text: s[m[2]:m[3]], Bold: true})
		}
		last = m[1]
	}
	if last < len(s) {
		spans = append(spans, Span{Text: s[last:]})
	}
	if len(spans) == 0 {
		spans = append(spans, Span{})
	}
	return spans
}

func summarize(response string) []Row {
	risk := "ALTO - Requiere acción inmediata"
	if strings.Contains(strings.ToLower(response), "alerta") {
		risk = "CRÍTICO - Alerta activada"
	}
	return []Row{
		{"Nivel de Riesgo:", risk},
		{"Estado:", "Protocolo de emergencia activado"},
		{"Sustancia:", "Metacrilato de Metilo (MMA)"},
		{"Acción Requerida:", "Confinamiento, evacuación y uso de EPP"},
	}
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// SpanishDateTime formats t as "15 de enero de 2025, 10:30".
func SpanishDateTime(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d, %s", t.Day(), spanishMonths[t.Month()-1], t.Year(), t.Format("15:04"))
}

// Filename names the report after its creation time.
func Filename(t time.Time) string {
	return "reporte_incidente_" + t.Format("20060102_150405") + ".pdf"
}
