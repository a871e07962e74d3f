package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/persistence"
)

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue access tokens",
	}
	cmd.AddCommand(newTokenIssueCommand())
	return cmd
}

func newTokenIssueCommand() *cobra.Command {
	var subject, id string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign an access token for an active staff member or company",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			reader := persistence.OpenStore(e.pg, e.cfg.Postgres).Reader()
			subjectType := domain.SubjectType(strings.ToUpper(subject))
			var role *domain.StaffRole
			switch subjectType {
			case domain.SubjectTypeStaff:
				staff, err := reader.Staff.GetByID(ctx, id)
				if err != nil {
					return fmt.Errorf("load staff %s: %w", id, err)
				}
				if !staff.Active {
					return fmt.Errorf("staff %s is inactive", id)
				}
				role = &staff.Role
			case domain.SubjectTypeCompany:
				company, err := reader.Companies.GetByID(ctx, id)
				if err != nil {
					return fmt.Errorf("load company %s: %w", id, err)
				}
				if !company.IsActive {
					return fmt.Errorf("company %s is inactive", id)
				}
			default:
				return fmt.Errorf("unknown subject %q: use staff or company", subject)
			}

			tokens := auth.NewTokenManager(e.cfg.Auth.JWTSecret, e.cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(id, subjectType, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\nexpires %s\n", token, expiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "staff", "staff or company")
	cmd.Flags().StringVar(&id, "id", "", "staff member or company id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
