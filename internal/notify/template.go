package notify

import (
	"html"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Template renders an HTML body by substituting {{KEY}} placeholders
// with HTML-escaped property values, mirroring
// NotificationService.Notification.format()'s substitution algorithm.
// A placeholder with no matching property is left untouched, matching
// the original's "unknown keys pass through" behavior.
type Template struct {
	html string
}

// NewTemplate wraps rawHTML as a Template.
func NewTemplate(rawHTML string) *Template {
	return &Template{html: rawHTML}
}

// Render substitutes props into the template, HTML-escaping every
// value.
func (t *Template) Render(props map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(t.html, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := props[key]
		if !ok {
			return match
		}
		return html.EscapeString(value)
	})
}

// DefaultTemplate is the built-in fallback used when no
// emailTemplatePath is configured, in the spirit of the teacher shipping
// sane defaults rather than requiring every deployment to supply one.
const DefaultTemplate = `<html><body>
<p>{{SUBJECT}}</p>
<p>Resource: {{RESOURCE}}</p>
<p>Role: {{ROLE}}</p>
<p>Justification: {{JUSTIFICATION}}</p>
<p>Requested by: {{BENEFICIARY}}</p>
<p>Window: {{START}} &ndash; {{END}}</p>
</body></html>`
