package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"ragalert/internal/domain"
)

var alertTemplate = template.Must(template.New("alert").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { border-bottom: 3px solid #004A96; padding-bottom: 10px; margin-bottom: 20px; }
  .header h1 { color: #004A96; font-size: 20px; margin: 0; }
  .alert-box { background-color: #FFF4F4; border-left: 4px solid #C50022; padding: 15px; margin: 20px 0; }
  .button-block { text-align: center; margin: 30px 0; }
  .chatbot-button {
    display: inline-block;
    padding: 12px 30px;
    background: linear-gradient(135deg, #004A96 0%, #21A0D2 100%);
    color: #FFFFFF !important;
    text-decoration: none;
    border-radius: 5px;
    font-weight: bold;
  }
  .footer { font-size: 12px; color: #666666; border-top: 1px solid #DDDDDD; padding-top: 10px; margin-top: 30px; }
</style>
</head>
<body>
<div class="container">
  <div class="header">
    <h1>Estimado/a Jefe de Planta,</h1>
  </div>
  <p>{{.Incident}}</p>
  <div class="alert-box">
    <strong>Alerta registrada:</strong><br><em>"{{.Query}}"</em>
  </div>
  <div class="button-block">
    <p>Acceda al chatbot de BASF Assistant para ver la respuesta:</p>
    <a href="{{.ContextURL}}" class="chatbot-button">Ver respuesta en BASF Assistant</a>
  </div>
  <div class="footer">
    <p>© 2025 BASF. Todos los derechos reservados.</p>
  </div>
</div>
</body>
</html>
`))

var messageTemplate = template.Must(template.New("message").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333333;">
{{range .}}<p>{{.}}</p>
{{end}}</body>
</html>
`))

// DefaultIncident describes where the monitored process runs.
const DefaultIncident = "Se detectó un incidente en la planta de producción A, en el proceso de Trasvase de Metacrilato de Metilo (MMA) desde cisterna a tanque de almacenamiento. El incidente ocurrió el 15 de enero de 2025 a las 10:30 AM."

type alertData struct {
	Incident   string
	Query      string
	ContextURL template.URL
}

// ComposeAlert renders the incident e-mail for a query whose answer was
// classified as an incident. The context link must be absolute http(s).
func ComposeAlert(subject, query, contextURL string, to []string) (domain.Alert, error) {
	if !strings.HasPrefix(contextURL, "http://") && !strings.HasPrefix(contextURL, "https://") {
		return domain.Alert{}, fmt.Errorf("%w: context url %q is not absolute", domain.ErrNotification, contextURL)
	}

	var buf bytes.Buffer
	err := alertTemplate.Execute(&buf, alertData{
		Incident:   DefaultIncident,
		Query:      query,
		ContextURL: template.URL(contextURL),
	})
	if err != nil {
		return domain.Alert{}, fmt.Errorf("%w: render alert: %v", domain.ErrNotification, err)
	}

	return domain.Alert{
		Subject: subject,
		HTML:    buf.String(),
		To:      append([]string(nil), to...),
		Link:    contextURL,
	}, nil
}

// ComposeMessage renders a free-form body as HTML paragraphs, one per
// blank-line separated block.
func ComposeMessage(subject, body string, to []string) (domain.Alert, error) {
	var paragraphs []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var buf bytes.Buffer
	if err := messageTemplate.Execute(&buf, paragraphs); err != nil {
		return domain.Alert{}, fmt.Errorf("%w: render message: %v", domain.ErrNotification, err)
	}
	return domain.Alert{Subject: subject, HTML: buf.String(), To: append([]string(nil), to...)}, nil
}
