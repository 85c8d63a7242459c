package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/identity"
)

// newActivateCmd renders the demo project's current IAM bindings, so a
// user can see what "jitctl request"/"jitctl approve" actually wrote.
func newActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bindings",
		Short: "Show the demo project's current IAM bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession()
			if err != nil {
				return err
			}
			bindings := s.rm.Bindings(identity.ProjectID("demo-project"))
			if len(bindings) == 0 {
				fmt.Println("no bindings provisioned yet")
				return nil
			}
			for _, b := range bindings {
				fmt.Printf("- %s %s [%s]\n", b.Member, b.Role, b.Condition.Title)
			}
			return nil
		},
	}
}
