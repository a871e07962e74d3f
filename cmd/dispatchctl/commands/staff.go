package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/service"
)

func newStaffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(newStaffCreateCommand())
	return cmd
}

func newStaffCreateCommand() *cobra.Command {
	var input struct {
		name  string
		email string
		role  string
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a staff member, typically the first administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			staff, err := e.directory().RegisterStaff(ctx, service.StaffInput{
				Name:  input.name,
				Email: input.email,
				Role:  domain.StaffRole(strings.ToUpper(input.role)),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", staff.ID, staff.Role, staff.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.name, "name", "", "display name")
	cmd.Flags().StringVar(&input.email, "email", "", "email address")
	cmd.Flags().StringVar(&input.role, "role", string(domain.StaffRoleAdmin), "AGENT, DISPATCHER, TECHNICIAN or ADMIN")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
