package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispatch-service/internal/domain"
	apperrors "github.com/spec-kit/dispatch-service/pkg/util"
)

func TestDirectoryStaffRegistration(t *testing.T) {
	f := newFixture(t)
	dir := NewDirectoryService(f.store, nil)
	ctx := context.Background()

	_, err := dir.CreateStaffMember(ctx, f.dispatcher, StaffInput{Name: "Tess", Email: "tess@dispatch.test", Role: domain.StaffRoleTechnician})
	require.ErrorIs(t, err, apperrors.ErrPermission)

	_, err = dir.CreateStaffMember(ctx, f.admin, StaffInput{Name: "Tess", Email: "not-an-email", Role: "PILOT"})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, apperrors.CodeValidation, domainErr.Code)
	require.Contains(t, domainErr.Details, "email")
	require.Contains(t, domainErr.Details, "role")

	tess, err := dir.CreateStaffMember(ctx, f.admin, StaffInput{Name: "Tess", Email: " Tess@Dispatch.test ", Role: domain.StaffRoleTechnician})
	require.NoError(t, err)
	require.Equal(t, "tess@dispatch.test", tess.Email)
	require.True(t, tess.Active)

	_, err = dir.RegisterStaff(ctx, StaffInput{Name: "Twin", Email: "tess@dispatch.test", Role: domain.StaffRoleAgent})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	role := domain.StaffRoleTechnician
	techs, err := dir.ListStaffMembers(ctx, f.dispatcher, StaffListFilters{Role: &role})
	require.NoError(t, err)
	require.Len(t, techs, len(f.techs)+1)

	_, err = dir.ListStaffMembers(ctx, f.techs[0], StaffListFilters{})
	require.ErrorIs(t, err, apperrors.ErrPermission)

	self, err := dir.GetStaffMemberByID(ctx, f.techs[0], f.techs[0].ID)
	require.NoError(t, err)
	require.Equal(t, f.techs[0].ID, self.ID)
}

func TestDirectoryCompanies(t *testing.T) {
	f := newFixture(t)
	dir := NewDirectoryService(f.store, nil)
	ctx := context.Background()

	company, err := dir.CreateCompany(ctx, f.admin, CompanyInput{Name: "Globex", ContactEmail: "it@globex.test"})
	require.NoError(t, err)

	got, err := dir.GetCompany(ctx, domain.CompanyActor(company.ID), company.ID)
	require.NoError(t, err)
	require.Equal(t, "Globex", got.Name)

	_, err = dir.GetCompany(ctx, domain.CompanyActor(f.company.ID), company.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = dir.GetCompany(ctx, domain.StaffActor(f.agent.ID), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
