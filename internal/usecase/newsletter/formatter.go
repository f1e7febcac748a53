package newsletter

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/markdown"
)

const newsletterTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #222;">
<h1>{{.LeagueName}} Weekly Newsletter</h1>
<p>Week {{.Week}} is here.{{if .DocumentURL}} <a href="{{.DocumentURL}}">Download the PDF edition</a>.{{end}}</p>
{{range .Sections}}<h2>{{.Title}}</h2>
{{.Body}}
{{end}}<hr>
<p style="font-size: 12px; color: #777;">You are receiving this because you subscribed to {{.LeagueName}} updates. <a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>
</body>
</html>`

const confirmationTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #222;">
<p>Someone (hopefully you) asked to receive the weekly newsletter for {{.LeagueName}}.</p>
<p><a href="{{.ConfirmURL}}">Confirm your subscription</a></p>
<p style="font-size: 12px; color: #777;">If it wasn't you, just ignore this email.</p>
</body>
</html>`

type section struct {
	Title string
	Body  template.HTML
}

type newsletterView struct {
	LeagueName     string
	Week           int
	DocumentURL    string
	UnsubscribeURL string
	Sections       []section
}

type confirmationView struct {
	LeagueName string
	ConfirmURL string
}

// Formatter собирает письма выпуска и подтверждения подписки.
type Formatter struct {
	markdown     markdown.Converter
	policy       *bluemonday.Policy
	newsletter   *template.Template
	confirmation *template.Template
}

// NewFormatter создаёт форматтер. Заголовки статей начинаются с h3, HTML проходит
// через UGC-политику bluemonday.
func NewFormatter() *Formatter {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return &Formatter{
		markdown:     markdown.NewConverter(2),
		policy:       p,
		newsletter:   template.Must(template.New("newsletter").Parse(newsletterTemplate)),
		confirmation: template.Must(template.New("confirmation").Parse(confirmationTemplate)),
	}
}

// NewsletterSubject возвращает тему письма выпуска.
func NewsletterSubject(leagueName string) string {
	return "Your Weekly Newsletter - " + leagueName
}

// ConfirmationSubject возвращает тему письма подтверждения.
func ConfirmationSubject(leagueName string) string {
	return "Confirm your subscription - " + leagueName
}

// Newsletter формирует HTML и текстовую версию письма выпуска.
func (f *Formatter) Newsletter(doc domain.NewsletterDocument, documentURL, unsubscribeURL string) (string, string, error) {
	view := newsletterView{
		LeagueName:     doc.LeagueName,
		Week:           doc.Week,
		DocumentURL:    documentURL,
		UnsubscribeURL: unsubscribeURL,
	}
	var text strings.Builder
	fmt.Fprintf(&text, "%s Weekly Newsletter\nWeek %d\n", doc.LeagueName, doc.Week)
	if documentURL != "" {
		fmt.Fprintf(&text, "PDF: %s\n", documentURL)
	}
	for _, a := range doc.Articles {
		body, err := f.markdown.HTML(a.Content)
		if err != nil {
			return "", "", fmt.Errorf("markdown статьи %s: %w", a.Label, err)
		}
		view.Sections = append(view.Sections, section{
			Title: strings.TrimSpace(a.Title),
			Body:  template.HTML(f.policy.Sanitize(body)),
		})
		fmt.Fprintf(&text, "\n%s\n\n%s\n", strings.TrimSpace(a.Title), markdown.PlainText(a.Content))
	}
	fmt.Fprintf(&text, "\nUnsubscribe: %s\n", unsubscribeURL)

	var buf bytes.Buffer
	if err := f.newsletter.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("шаблон выпуска: %w", err)
	}
	return buf.String(), text.String(), nil
}

// Confirmation формирует письмо со ссылкой подтверждения.
func (f *Formatter) Confirmation(leagueName, confirmURL string) (string, string, error) {
	var buf bytes.Buffer
	if err := f.confirmation.Execute(&buf, confirmationView{LeagueName: leagueName, ConfirmURL: confirmURL}); err != nil {
		return "", "", fmt.Errorf("шаблон подтверждения: %w", err)
	}
	text := fmt.Sprintf("Confirm your subscription to the %s newsletter: %s\n", leagueName, confirmURL)
	return buf.String(), text, nil
}
