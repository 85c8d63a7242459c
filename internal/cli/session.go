// Package cli implements jitctl's cobra command tree: a local demo
// harness for the engine, grounded on the teacher's kubectl-access
// plugin command layout (one file per subcommand, package-level flag
// vars, a root.go that assembles the tree) but driving
// internal/engine.Engine directly instead of a Kubernetes API server.
package cli

import (
	"crypto/rsa"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/activation"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/clock"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/config"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/engine"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/memory"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/notify"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/provisioning"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/token"
)

const demoProject = "//cloudresourcemanager.googleapis.com/projects/demo-project"

// session bundles the demo engine with the fixture directory jitctl's
// subcommands resolve --user/--reviewer flags against, and the resource
// manager double the bindings subcommand renders bindings from.
type session struct {
	engine *engine.Engine
	rm     *memory.ResourceManagerClient
	users  map[string]identity.UserID
}

// newSession builds an in-process Engine wired entirely to
// internal/memory doubles, seeded with a small fixed cast (alice,
// bob, carol) and eligibilities on demoProject — enough to exercise
// every subcommand without any external dependency.
func newSession(cfg config.Config) *session {
	log := zap.NewNop()
	clk := clock.System{}

	// IDs equal emails here because that's all the analyzer fixture can
	// ever reconstruct from an IAM "user:<email>" member string; see
	// memory.AnalyzerClient.FindPermissionedPrincipalsByResource.
	users := map[string]identity.UserID{
		"alice": {ID: "alice@example.com", Email: "alice@example.com"},
		"bob":   {ID: "bob@example.com", Email: "bob@example.com"},
		"carol": {ID: "carol@example.com", Email: "carol@example.com"},
	}

	doc := memory.NewPolicyDocument()
	doc.Grant(users["alice"], demoProject, "roles/viewer", "has({}.jitAccessConstraint)", nil)
	doc.Grant(users["alice"], demoProject, "roles/editor", "has({}.multiPartyApprovalConstraint)", []identity.UserID{users["bob"], users["carol"]})
	doc.Grant(users["bob"], demoProject, "roles/editor", "has({}.multiPartyApprovalConstraint)", []identity.UserID{users["alice"], users["carol"]})

	rm := memory.NewResourceManagerClient()
	rm.Seed("demo-project")

	analyzer := catalog.NewAnalyzer(memory.NewAnalyzerClient(doc), cfg.Scope, log)
	cat := catalog.New(analyzer, rm, cfg.ProjectQuery)

	provisioner := provisioning.New(rm, provisioning.DefaultBackoff, log)

	notifyEngine := notify.New(notify.NewTemplate(notify.DefaultTemplate), notify.NewLogTransport(log), log)
	notifier := notify.NewAdapter(notifyEngine)

	activator := activation.New(cat, provisioner, notifier, clk, cfg.ActivatorConfig())

	creds, err := memory.NewCredentialsClient()
	if err != nil {
		panic(err)
	}
	keys := token.NewKeyCache(nil, time.Hour, clk)
	keys.Seed(cfg.ServiceAccount, map[string]*rsa.PublicKey{memory.KeyID: creds.PublicKey()})
	tokens := token.NewService(creds, keys, cfg.ServiceAccount, cfg.TokenValidity, clk)

	return &session{
		engine: engine.New(cat, activator, tokens),
		rm:     rm,
		users:  users,
	}
}

// user resolves a --user/--reviewer flag value against the fixture
// cast, defaulting the display email if the id isn't found so an
// unrecognized name still round-trips through the engine as a fresh
// identity.UserID.
func (s *session) user(id string) identity.UserID {
	if u, ok := s.users[id]; ok {
		return u
	}
	email := id + "@example.com"
	return identity.UserID{ID: email, Email: email}
}
