package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hill/internal/auth"
)

var createUserCmd = &cobra.Command{
	Use:   "createuser <username> <password> <role>",
	Short: "Create or overwrite an operator account in the admin user file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := auth.NewFileStore(cfg.UserFile)
		if err != nil {
			return err
		}

		role := auth.Role(args[2])
		switch role {
		case auth.RoleOperator, auth.RoleViewer, auth.RoleReadonly:
		default:
			return fmt.Errorf("invalid role %q", args[2])
		}

		hash, err := auth.HashPassword(args[1])
		if err != nil {
			return err
		}

		u := &auth.User{
			Username: args[0],
			Password: string(hash),
			Role:     role,
		}
		if err := store.SaveUser(u); err != nil {
			return err
		}

		fmt.Printf("created operator %q with role %s\n", u.Username, u.Role)
		return nil
	},
}
