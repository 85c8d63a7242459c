// Package notify implements the Notification Engine (C5): rendering
// templated messages and dispatching them through one or more injected
// transports, isolating a transport's failure from the others and from
// the caller.
package notify

import (
	"context"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"go.uber.org/zap"
)

// Type discriminates the three notification shapes the activator emits.
type Type string

const (
	RequestActivation     Type = "RequestActivation"
	ActivationApproved    Type = "ActivationApproved"
	ActivationSelfApproved Type = "ActivationSelfApproved"
)

// Notification is a rendering-ready message: its recipients, the
// template it selects, and the properties substituted into that
// template.
type Notification struct {
	Recipients   []identity.UserID
	CCRecipients []identity.UserID
	Subject      string
	Type         Type
	Properties   map[string]string
}

// Engine is the Notification Engine (C5).
type Engine struct {
	template  *Template
	transport MailTransport
	log       *zap.Logger
}

// New builds an Engine rendering through template and dispatching
// through transport (typically a MultiTransport fanning out to several
// registered transports).
func New(template *Template, transport MailTransport, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{template: template, transport: transport, log: log}
}

// Dispatch renders n and sends it. A transport failure is logged and
// does not propagate — spec.md §7: "Notification failures are isolated:
// a failure from one transport MUST NOT abort provisioning."
func (e *Engine) Dispatch(ctx context.Context, n Notification) {
	body := e.template.Render(n.Properties)

	to := emails(n.Recipients)
	cc := emails(n.CCRecipients)

	if err := e.transport.Send(ctx, to, cc, n.Subject, body); err != nil {
		e.log.Warn("notification dispatch failed",
			zap.String("type", string(n.Type)),
			zap.Strings("to", to),
			zap.Error(err))
	}
}

func emails(users []identity.UserID) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Email
	}
	return out
}
