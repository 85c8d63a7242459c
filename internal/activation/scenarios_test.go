package activation

import (
	"context"
	"regexp"
	"time"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/clock"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/jiterrors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Activator", func() {
	var (
		now   time.Time
		clk   *clock.Fixed
		fc    *fakeCatalog
		fp    *fakeProvisioner
		fn    *fakeNotifier
		act   *Activator
		alice identity.UserID
		bob   identity.UserID
		carol identity.UserID
	)

	BeforeEach(func() {
		now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		clk = clock.NewFixed(now)
		fc = newFakeCatalog()
		fp = &fakeProvisioner{}
		fn = &fakeNotifier{}
		act = New(fc, fp, fn, clk, testConfig())
		alice = identity.UserID{ID: "alice", Email: "alice@example.com"}
		bob = identity.UserID{ID: "bob", Email: "bob@example.com"}
		carol = identity.UserID{ID: "carol", Email: "carol@example.com"}
	})

	Context("a self-approval activation of an eligible binding", func() {
		It("provisions exactly one binding with the reserved activation title and the requester as sole member", func() {
			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "roles/editor"}
			req, err := act.CreateJitRequest(context.Background(), alice, []catalog.RoleBinding{binding}, "bug#7", now, 10*time.Minute)
			Expect(err).NotTo(HaveOccurred())

			activations, err := act.Activate(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())
			Expect(activations).To(HaveLen(1))
			Expect(activations[0].EndTime).To(Equal(activations[0].StartTime.Add(10 * time.Minute)))

			Expect(fp.calls).To(HaveLen(1))
			Expect(fp.calls[0].Member).To(Equal("user:alice@example.com"))
			Expect(fp.calls[0].Description).To(HavePrefix("Self-approved, justification:"))
		})
	})

	Context("a peer-approval request approved by one of two eligible reviewers", func() {
		It("provisions a binding attributed to the approving reviewer and sends one approval notification", func() {
			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "roles/viewer"}
			req, err := act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob, carol}, "bug#7", now, 15*time.Minute)
			Expect(err).NotTo(HaveOccurred())
			Expect(fn.requestActivationCalls).To(Equal(1))

			activation, err := act.Approve(context.Background(), bob, req)
			Expect(err).NotTo(HaveOccurred())
			Expect(activation.BindingDescription()).To(HavePrefix("Approved by bob@example.com"))
			Expect(fn.approvedCalls).To(Equal(1))
		})
	})

	Context("the beneficiary attempting to approve their own request", func() {
		It("is denied", func() {
			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "roles/viewer"}
			req, err := act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob, carol}, "bug#7", now, 15*time.Minute)
			Expect(err).NotTo(HaveOccurred())

			_, err = act.Approve(context.Background(), alice, req)
			Expect(jiterrors.Is(err, jiterrors.AccessDenied)).To(BeTrue())
		})
	})

	Context("two reviewers racing to approve the same request", func() {
		It("treats the loser's AlreadyExists as success, returning the same activation", func() {
			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "roles/viewer"}
			req, err := act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob, carol}, "bug#7", now, 15*time.Minute)
			Expect(err).NotTo(HaveOccurred())

			winner, err := act.Approve(context.Background(), bob, req)
			Expect(err).NotTo(HaveOccurred())

			fp.err = jiterrors.New(jiterrors.AlreadyExists, "duplicate binding")
			loser, err := act.Approve(context.Background(), carol, req)
			Expect(err).NotTo(HaveOccurred())

			Expect(loser.Binding).To(Equal(winner.Binding))
			Expect(loser.StartTime).To(Equal(winner.StartTime))
			Expect(loser.EndTime).To(Equal(winner.EndTime))
		})
	})

	Context("a justification that fails the configured policy pattern", func() {
		It("is denied with the configured hint, both at request creation and at activation", func() {
			cfg := testConfig()
			cfg.JustificationPattern = regexp.MustCompile(`^\d+$`)
			cfg.JustificationHint = "justification must be a numeric ticket id"
			act = New(fc, fp, fn, clk, cfg)

			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "roles/editor"}
			_, err := act.CreateJitRequest(context.Background(), alice, []catalog.RoleBinding{binding}, "not-a-ticket", now, 10*time.Minute)
			Expect(err).NotTo(HaveOccurred(), "CreateJitRequest does not itself check the justification policy")

			req, _ := act.CreateJitRequest(context.Background(), alice, []catalog.RoleBinding{binding}, "not-a-ticket", now, 10*time.Minute)
			_, err = act.Activate(context.Background(), req)
			Expect(jiterrors.Is(err, jiterrors.AccessDenied)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(cfg.JustificationHint))

			_, err = act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob}, "not-a-ticket", now, 15*time.Minute)
			Expect(jiterrors.Is(err, jiterrors.AccessDenied)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(cfg.JustificationHint))
		})
	})

	Context("start time more than the tolerance in the past", func() {
		It("is rejected as an invalid argument", func() {
			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "roles/editor"}
			past := now.Add(-2 * time.Minute)
			_, err := act.CreateJitRequest(context.Background(), alice, []catalog.RoleBinding{binding}, "bug#7", past, 10*time.Minute)
			Expect(jiterrors.Is(err, jiterrors.InvalidArgument)).To(BeTrue())
		})
	})

	Context("duration exactly at the configured bounds", func() {
		It("accepts the minimum and maximum MPA duration", func() {
			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "roles/viewer"}
			cfg := testConfig()
			_, err := act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob}, "bug#7", now, cfg.MinDuration)
			Expect(err).NotTo(HaveOccurred())

			_, err = act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob}, "bug#7", now, cfg.MaxDuration)
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects durations one unit outside the bounds", func() {
			binding := catalog.RoleBinding{ResourceFullName: testProjectResource, Role: "viewer"}
			cfg := testConfig()
			_, err := act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob}, "bug#7", now, cfg.MinDuration-time.Second)
			Expect(jiterrors.Is(err, jiterrors.InvalidArgument)).To(BeTrue())

			_, err = act.CreateMpaRequest(context.Background(), alice, binding, []identity.UserID{bob}, "bug#7", now, cfg.MaxDuration+time.Second)
			Expect(jiterrors.Is(err, jiterrors.InvalidArgument)).To(BeTrue())
		})
	})
})
