package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/catalog"
	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
)

var (
	requestUser          string
	requestRole          string
	requestReviewers     []string
	requestJustification string
	requestDuration      time.Duration
	requestPeerApproval  bool
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request activation of a role on the demo project",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			ctx := context.Background()
			requester := s.user(requestUser)
			binding := catalog.RoleBinding{ResourceFullName: demoProject, Role: requestRole}
			start := time.Now()

			if !requestPeerApproval {
				req, err := s.engine.CreateJitRequest(ctx, requester, []catalog.RoleBinding{binding}, requestJustification, start, requestDuration)
				if err != nil {
					return err
				}
				acts, err := s.engine.Activate(ctx, req)
				if err != nil {
					return err
				}
				for _, act := range acts {
					fmt.Printf("activated %s: %s\n", act.ID, act.BindingDescription())
				}
				return nil
			}

			reviewers := make([]identity.UserID, 0, len(requestReviewers))
			for _, r := range requestReviewers {
				reviewers = append(reviewers, s.user(r))
			}
			req, err := s.engine.CreateMpaRequest(ctx, requester, binding, reviewers, requestJustification, start, requestDuration)
			if err != nil {
				return err
			}
			jwt, _, exp, err := s.engine.SignToken(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("request %s pending approval from %v, token expires %s\n", req.ID(), req.Reviewers, exp.Format(time.RFC3339))
			fmt.Printf("token: %s\n", jwt)
			return nil
		},
	}

	cmd.Flags().StringVar(&requestUser, "user", "alice", "requesting user id")
	cmd.Flags().StringVar(&requestRole, "role", "roles/viewer", "role to activate")
	cmd.Flags().StringSliceVar(&requestReviewers, "reviewer", nil, "reviewer user ids (peer-approval only)")
	cmd.Flags().StringVar(&requestJustification, "justification", "on-call", "justification for the request")
	cmd.Flags().DurationVar(&requestDuration, "duration", 15*time.Minute, "requested activation duration")
	cmd.Flags().BoolVar(&requestPeerApproval, "peer-approval", false, "request peer approval instead of self-approval")

	return cmd
}
