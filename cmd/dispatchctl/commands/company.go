package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/dispatch-service/internal/service"
)

func newCompanyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage client companies",
	}
	cmd.AddCommand(newCompanyCreateCommand())
	return cmd
}

func newCompanyCreateCommand() *cobra.Command {
	var input service.CompanyInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a client company",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			e, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			company, err := e.directory().RegisterCompany(ctx, input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", company.ID, company.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "company name")
	cmd.Flags().StringVar(&input.ContactEmail, "email", "", "contact email for notifications")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
