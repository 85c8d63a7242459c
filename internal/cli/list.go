package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
)

var listUser string

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's eligibilities on the demo project",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			user := s.user(listUser)

			set, err := s.engine.ListEligibilities(context.Background(), user, identity.ProjectID("demo-project"), nil, nil)
			if err != nil {
				return err
			}
			if len(set.Eligibilities) == 0 {
				fmt.Printf("no eligibilities found for %s\n", user)
				return nil
			}
			for _, e := range set.Eligibilities {
				fmt.Printf("- %s [%s] %s\n", e.RoleBinding, e.ActivationType, e.Status)
			}
			for _, w := range set.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listUser, "user", "alice", "user id to list eligibilities for")
	return cmd
}
