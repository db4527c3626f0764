package rbac

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/apperrors"
)

func TestStore_LoadPrincipal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "property_id", "grower_number"}).
			AddRow(int64(20), nil, "G-42"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM role_user ru")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "name"}).
			AddRow("grower", "view files by grower").
			AddRow("grower", "view fbos").
			AddRow("grower", "legacy permission nobody knows").
			AddRow("reporter", nil))

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_group_user gu")).
		WithArgs(int64(5), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "display_name", "is_active", "name"}).
			AddRow(int64(3), "uploaders", "Uploaders", true, "upload files").
			AddRow(int64(3), "uploaders", "Uploaders", true, "edit own files").
			AddRow(int64(4), "archived", "Archived", false, nil))

	mock.ExpectQuery(regexp.QuoteMeta("FROM grower_user")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"grower_id"}).AddRow(int64(42)))

	mock.ExpectQuery(regexp.QuoteMeta("FROM commodity_user")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"commodity_id"}).AddRow(int64(8)).AddRow(int64(9)))

	p, err := NewStore(db).LoadPrincipal(context.Background(), 1, 5)
	require.NoError(t, err)

	require.NotNil(t, p.CompanyID)
	assert.Equal(t, int64(20), *p.CompanyID)
	assert.Nil(t, p.PropertyID)
	assert.Equal(t, "G-42", p.GrowerNumber)
	assert.Equal(t, []Role{RoleGrower, Role("reporter")}, p.Roles)
	assert.Equal(t, []Permission{PermViewFilesByGrower, PermViewFbos}, p.Permissions)
	require.Len(t, p.Groups, 2)
	assert.Equal(t, []Permission{PermUploadFiles, PermEditOwnFiles}, p.Groups[0].Permissions)
	assert.Empty(t, p.Groups[1].Permissions)
	assert.Equal(t, []int64{42}, p.GrowerIDs)
	assert.Equal(t, []int64{8, 9}, p.CommodityIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadPrincipal_UnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(5), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"company_id", "property_id", "grower_number"}))

	_, err = NewStore(db).LoadPrincipal(context.Background(), 2, 5)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
