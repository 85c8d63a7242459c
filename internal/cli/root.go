package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoogleCloudPlatform/iam-privilege-manager/internal/config"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:          "jitctl",
	Short:        "Request, approve, and activate just-in-time IAM access",
	SilenceUsage: true,
}

func init() {
	addPersistentFlags()
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newRequestCmd())
	rootCmd.AddCommand(newApproveCmd())
	rootCmd.AddCommand(newActivateCmd())
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("scope", "projects/demo-project", "analyzer search root")
	rootCmd.PersistentFlags().String("service-account", "jit-signer@example.iam.gserviceaccount.com", "token signing identity")
	_ = v.BindPFlag("scope", rootCmd.PersistentFlags().Lookup("scope"))
	_ = v.BindPFlag("serviceAccount", rootCmd.PersistentFlags().Lookup("service-account"))
}

// loadSession builds a demo Engine from the currently bound flags.
func loadSession() (*session, error) {
	cfg, err := config.Load(v, "")
	if err != nil {
		return nil, err
	}
	return newSession(cfg), nil
}

// Execute runs jitctl's command tree.
func Execute() error {
	return rootCmd.Execute()
}
