package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/dom/nutrition-practice/internal/domain"
	"github.com/microcosm-cc/bluemonday"
)

const layoutHTML = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
<div style="background: #4caf50; color: #fff; padding: 16px;"><h1 style="margin: 0;">{{.Title}}</h1></div>
<div style="padding: 16px;">
<p>Hello {{.Name}},</p>
{{template "content" .}}
</div>
<div style="padding: 16px; font-size: 12px; color: #777;">Nutrition Practice</div>
</body>
</html>{{end}}`

type templateSource struct {
	subject string
	html    string
	text    string
}

var templateSources = map[domain.NotificationType]templateSource{
	domain.NotificationWelcome: {
		subject: `Welcome to Nutrition Practice, {{.Name}}!`,
		html: `<p>{{.Message}}</p>
<p>Your account is ready. <a href="{{.BaseURL}}/dashboard">Open your dashboard</a>.</p>`,
		text: `Hello {{.Name}},

{{.PlainMessage}}

Your account is ready: {{.BaseURL}}/dashboard`,
	},
	domain.NotificationConsultationReminder: {
		subject: `Reminder: consultation on {{.Get "scheduledAt"}}`,
		html: `<p>{{.Message}}</p>
<p>Your consultation is scheduled for <strong>{{.Get "scheduledAt"}}</strong>{{with .Get "durationMinutes"}} ({{.}} minutes){{end}}.</p>
<p>If you cannot attend, please let your nutritionist know.</p>`,
		text: `Hello {{.Name}},

{{.PlainMessage}}

Your consultation is scheduled for {{.Get "scheduledAt"}}.`,
	},
	domain.NotificationConsultationScheduled: {
		subject: `Consultation scheduled for {{.Get "scheduledAt"}}`,
		html: `<p>{{.Message}}</p>
<p>Date: <strong>{{.Get "scheduledAt"}}</strong></p>
{{with .Get "consultationType"}}<p>Type: {{.}}</p>{{end}}`,
		text: `Hello {{.Name}},

{{.PlainMessage}}

Date: {{.Get "scheduledAt"}}`,
	},
	domain.NotificationDietPlanCreated: {
		subject: `Your new diet plan: {{.Get "planTitle"}}`,
		html: `<p>{{.Message}}</p>
<p><a href="{{.BaseURL}}/diet-plans/{{.Get "dietPlanId"}}">View your diet plan</a></p>`,
		text: `Hello {{.Name}},

{{.PlainMessage}}

View it at {{.BaseURL}}/diet-plans/{{.Get "dietPlanId"}}`,
	},
	domain.NotificationPasswordReset: {
		subject: `Reset your password`,
		html: `<p>{{.Message}}</p>
<p><a href="{{.BaseURL}}/reset-password?token={{.Secret}}">Choose a new password</a></p>
<p>If you did not ask for a reset you can ignore this email.</p>`,
		text: `Hello {{.Name}},

{{.PlainMessage}}

Choose a new password: {{.BaseURL}}/reset-password?token={{.Secret}}

If you did not ask for a reset you can ignore this email.`,
	},
	domain.NotificationPatientInvite: {
		subject: `{{with .Get "nutritionistName"}}{{.}} invited you{{else}}You have been invited{{end}} to Nutrition Practice`,
		html: `<p>{{.Message}}</p>
<p><a href="{{.BaseURL}}/invites/accept?token={{.Secret}}">Accept the invitation</a></p>`,
		text: `Hello {{.Name}},

{{.PlainMessage}}

Accept the invitation: {{.BaseURL}}/invites/accept?token={{.Secret}}`,
	},
	domain.NotificationGeneric: {
		subject: `{{.Title}}`,
		html:    `<p>{{.Message}}</p>`,
		text: `Hello {{.Name}},

{{.PlainMessage}}`,
	},
}

type emailTemplate struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// templateView is the data every email template renders from
type templateView struct {
	Name         string
	Title        string
	Message      htmltemplate.HTML
	PlainMessage string
	BaseURL      string
	// Secret is the opened one-time token, never read from the stored data
	Secret string
	data   map[string]interface{}
}

// Get returns a value from the notification data, or "" when absent
func (v templateView) Get(key string) string {
	value, ok := v.data[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Templates renders notifications into emails. Types without a template use
// the generic one.
type Templates struct {
	byType  map[domain.NotificationType]*emailTemplate
	baseURL string
	ugc     *bluemonday.Policy
	strict  *bluemonday.Policy
}

func NewTemplates(baseURL string) (*Templates, error) {
	layout, err := htmltemplate.New("layout").Parse(layoutHTML)
	if err != nil {
		return nil, fmt.Errorf("parse email layout: %w", err)
	}

	byType := make(map[domain.NotificationType]*emailTemplate, len(templateSources))
	for notificationType, src := range templateSources {
		tmpl, err := parseEmailTemplate(layout, string(notificationType), src)
		if err != nil {
			return nil, err
		}
		byType[notificationType] = tmpl
	}

	return &Templates{
		byType:  byType,
		baseURL: strings.TrimRight(baseURL, "/"),
		ugc:     bluemonday.UGCPolicy(),
		strict:  bluemonday.StrictPolicy(),
	}, nil
}

func parseEmailTemplate(layout *htmltemplate.Template, name string, src templateSource) (*emailTemplate, error) {
	subject, err := texttemplate.New(name + "-subject").Parse(src.subject)
	if err != nil {
		return nil, fmt.Errorf("parse %s subject: %w", name, err)
	}

	body, err := layout.Clone()
	if err != nil {
		return nil, err
	}
	if _, err := body.Parse(`{{define "content"}}` + src.html + `{{end}}`); err != nil {
		return nil, fmt.Errorf("parse %s html: %w", name, err)
	}

	text, err := texttemplate.New(name + "-text").Parse(src.text)
	if err != nil {
		return nil, fmt.Errorf("parse %s text: %w", name, err)
	}

	return &emailTemplate{subject: subject, html: body, text: text}, nil
}

// Render builds the email for a notification addressed to user. secret is the
// opened one-time token for reset and invite links.
func (t *Templates) Render(n *domain.Notification, user *domain.User, secret string) (*Email, error) {
	tmpl, ok := t.byType[n.Type]
	if !ok {
		tmpl = t.byType[domain.NotificationGeneric]
	}

	data := map[string]interface{}{}
	if len(n.Data) > 0 {
		if err := json.Unmarshal(n.Data, &data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}

	view := templateView{
		Name:         user.Name,
		Title:        n.Title,
		Message:      htmltemplate.HTML(t.ugc.Sanitize(n.Message)),
		PlainMessage: html.UnescapeString(t.strict.Sanitize(n.Message)),
		BaseURL:      t.baseURL,
		Secret:       secret,
		data:         data,
	}

	var subject, body, text bytes.Buffer
	if err := tmpl.subject.Execute(&subject, view); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	if err := tmpl.html.ExecuteTemplate(&body, "layout", view); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	if err := tmpl.text.Execute(&text, view); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}

	return &Email{
		To:      user.Email,
		Subject: strings.TrimSpace(subject.String()),
		HTML:    body.String(),
		Text:    text.String(),
	}, nil
}
