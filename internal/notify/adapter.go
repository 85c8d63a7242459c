package notify

import (
	"context"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/activation"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
)

// Adapter implements activation.Notifier over an Engine, translating the
// three request/activation shapes the state machine emits into the
// Notification tuple from spec.md §4.5.
type Adapter struct {
	engine *Engine
}

// NewAdapter builds an Adapter dispatching through engine.
func NewAdapter(engine *Engine) *Adapter {
	return &Adapter{engine: engine}
}

// NotifyRequestActivation sends RequestActivation: to reviewers, cc the
// beneficiary.
func (a *Adapter) NotifyRequestActivation(ctx context.Context, req activation.MpaRequest) error {
	binding := req.Binding()
	props := map[string]string{
		"RESOURCE":      binding.ResourceFullName,
		"ROLE":          binding.Role,
		"JUSTIFICATION": req.Justification(),
		"BENEFICIARY":   req.Requester().Email,
		"START":         req.StartTime().String(),
		"END":           req.StartTime().Add(req.Duration()).String(),
	}
	a.engine.Dispatch(ctx, Notification{
		Recipients:   req.Reviewers,
		CCRecipients: []identity.UserID{req.Requester()},
		Subject:      "Activation request pending your approval",
		Type:         RequestActivation,
		Properties:   props,
	})
	return nil
}

// NotifyActivationApproved sends ActivationApproved: to the beneficiary,
// cc the reviewers (a reply to the original request thread).
func (a *Adapter) NotifyActivationApproved(ctx context.Context, req activation.MpaRequest, act activation.Activation) error {
	props := map[string]string{
		"RESOURCE":      act.Binding.ResourceFullName,
		"ROLE":          act.Binding.Role,
		"JUSTIFICATION": act.Justification,
		"BENEFICIARY":   act.Requester.Email,
		"START":         act.StartTime.String(),
		"END":           act.EndTime.String(),
	}
	a.engine.Dispatch(ctx, Notification{
		Recipients:   []identity.UserID{req.Requester()},
		CCRecipients: req.Reviewers,
		Subject:      "Your activation request was approved",
		Type:         ActivationApproved,
		Properties:   props,
	})
	return nil
}

// NotifySelfApproved sends ActivationSelfApproved: to the beneficiary
// alone.
func (a *Adapter) NotifySelfApproved(ctx context.Context, act activation.Activation) error {
	props := map[string]string{
		"RESOURCE":      act.Binding.ResourceFullName,
		"ROLE":          act.Binding.Role,
		"JUSTIFICATION": act.Justification,
		"BENEFICIARY":   act.Requester.Email,
		"START":         act.StartTime.String(),
		"END":           act.EndTime.String(),
	}
	a.engine.Dispatch(ctx, Notification{
		Recipients: []identity.UserID{act.Requester},
		Subject:    "Your self-approved activation is now active",
		Type:       ActivationSelfApproved,
		Properties: props,
	})
	return nil
}
