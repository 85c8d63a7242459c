package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/provisioning"
)

// ResourceManagerClient is an in-process stand-in for the Cloud Resource
// Manager IAM policy: a map of project to its current bindings. It keeps
// no etag and never reports an etag conflict, since it takes a single
// mutex per write, but it does honor FailIfBindingExists so the
// provisioner's AlreadyExists path is exercised the same way it would be
// live.
type ResourceManagerClient struct {
	mu       sync.Mutex
	bindings map[identity.ProjectID][]provisioning.Binding
	projects []identity.ProjectID
}

// NewResourceManagerClient builds an empty ResourceManagerClient.
func NewResourceManagerClient() *ResourceManagerClient {
	return &ResourceManagerClient{bindings: map[identity.ProjectID][]provisioning.Binding{}}
}

// Seed registers project as searchable by SearchProjectIDs.
func (c *ResourceManagerClient) Seed(project identity.ProjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = append(c.projects, project)
}

func (c *ResourceManagerClient) AddProjectIamBinding(ctx context.Context, project identity.ProjectID, binding provisioning.Binding, opts provisioning.OptionSet, auditReason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.bindings[project]
	if opts.Has(provisioning.FailIfBindingExists) {
		for _, b := range existing {
			if b.Member == binding.Member && b.Role == binding.Role && b.Condition.Expression == binding.Condition.Expression {
				return jiterrors.New(jiterrors.AlreadyExists, "binding for %s already exists on %s", binding.Member, project)
			}
		}
	}

	if opts.Has(provisioning.PurgeExistingTemporaryBindings) {
		kept := existing[:0]
		for _, b := range existing {
			if b.Member != binding.Member || b.Role != binding.Role || b.Condition.Title != binding.Condition.Title {
				kept = append(kept, b)
			}
		}
		existing = kept
	}

	c.bindings[project] = append(existing, binding)
	return nil
}

func (c *ResourceManagerClient) SearchProjectIDs(ctx context.Context, query string) ([]identity.ProjectID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := append([]identity.ProjectID{}, c.projects...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Bindings returns a snapshot of project's current bindings, for the CLI
// to render.
func (c *ResourceManagerClient) Bindings(project identity.ProjectID) []provisioning.Binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]provisioning.Binding{}, c.bindings[project]...)
}
