package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	approveUser  string
	approveToken string
)

func newApproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a peer-approval request by its bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			ctx := context.Background()
			approver := s.user(approveUser)

			req, err := s.engine.VerifyToken(ctx, approveToken)
			if err != nil {
				return err
			}
			act, err := s.engine.Approve(ctx, approver, req)
			if err != nil {
				return err
			}
			fmt.Printf("activated %s: %s\n", act.ID, act.BindingDescription())
			return nil
		},
	}
	cmd.Flags().StringVar(&approveUser, "user", "bob", "approving user id")
	cmd.Flags().StringVar(&approveToken, "token", "", "bearer token returned by 'jitctl request --peer-approval'")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
