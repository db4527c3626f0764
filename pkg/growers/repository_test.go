package growers

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/docvault/pkg/apperrors"
	"github.com/platinummonkey/docvault/pkg/database"
	"github.com/platinummonkey/docvault/pkg/models"
	"github.com/platinummonkey/docvault/pkg/query"
	"github.com/platinummonkey/docvault/pkg/tenant"
)

var acme = &tenant.Tenant{ID: 1, Slug: "acme"}

func setupRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(database.FromDB(db)), mock
}

func TestRepository_ListGrowers(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM growers g WHERE (g.tenant_id = $1 AND g.id IN ($2, $3)) ORDER BY g.name, g.id")).
		WithArgs(int64(1), int64(42), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "grower_number", "contact_name", "email", "phone", "address"}).
			AddRow(int64(42), int64(1), "Blue Hills", "G-042", "Sam", nil, nil, nil).
			AddRow(int64(7), int64(1), "Riverside", "G-007", nil, nil, "555", nil))

	growers, err := repo.ListGrowers(context.Background(), acme, query.Int64In("id", []int64{42, 7}))
	require.NoError(t, err)
	require.Len(t, growers, 2)
	assert.Equal(t, "G-042", growers[0].GrowerNumber)
	assert.Equal(t, "Sam", growers[0].ContactName)
	assert.Empty(t, growers[0].Email)
	assert.Equal(t, "555", growers[1].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListGrowersNothingVisible(t *testing.T) {
	repo, mock := setupRepo(t)

	growers, err := repo.ListGrowers(context.Background(), acme, query.False)
	require.NoError(t, err)
	assert.NotNil(t, growers)
	assert.Empty(t, growers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListFbos(t *testing.T) {
	repo, mock := setupRepo(t)

	filter := query.And(
		query.Has{Relation: "growers", Where: query.Int64In("id", []int64{42})},
		query.Eq{Field: "is_active", Value: true},
	)
	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM fbos b WHERE (b.tenant_id = $1 AND "+
			"EXISTS (SELECT 1 FROM fbo_grower bg WHERE bg.fbo_id = b.id AND bg.grower_id IN ($2)) AND "+
			"b.is_active = $3) AND b.deleted_at IS NULL ORDER BY b.code, b.id")).
		WithArgs(int64(1), int64(42), true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "code", "name", "type", "is_active"}).
			AddRow(int64(5), int64(1), "P123", "Blue Hills PUC", "PUC", true).
			AddRow(int64(6), int64(1), "H900", "Packhouse", "PHC", true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT fbo_id, grower_id FROM fbo_grower WHERE fbo_id = ANY($1)")).
		WithArgs(pq.Array([]int64{5, 6})).
		WillReturnRows(sqlmock.NewRows([]string{"fbo_id", "grower_id"}).
			AddRow(int64(5), int64(42)).
			AddRow(int64(6), int64(42)).
			AddRow(int64(6), int64(99)))

	fbos, err := repo.ListFbos(context.Background(), acme, filter)
	require.NoError(t, err)
	require.Len(t, fbos, 2)
	assert.Equal(t, models.FboPUC, fbos[0].Type)
	assert.Equal(t, []int64{42}, fbos[0].GrowerIDs)
	assert.Equal(t, []int64{42, 99}, fbos[1].GrowerIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListCommodities(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM commodities c WHERE c.tenant_id = $1 ORDER BY c.sort_order, c.name")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name", "sort_order", "is_active"}).
			AddRow(int64(7), int64(1), "Citrus", 1, true))

	commodities, err := repo.ListCommodities(context.Background(), acme, query.True)
	require.NoError(t, err)
	require.Len(t, commodities, 1)
	assert.Equal(t, "Citrus", commodities[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Exists(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM growers WHERE id = $1 AND tenant_id = $2)")).
		WithArgs(int64(42), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), acme, 42)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectLock(mock sqlmock.Sqlmock, userID int64, found bool) {
	q := mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id = $1 AND tenant_id = $2 FOR UPDATE")).
		WithArgs(userID, int64(1))
	if found {
		q.WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID))
	} else {
		q.WillReturnError(sql.ErrNoRows)
	}
}

func expectSync(mock sqlmock.Sqlmock, userID int64, number any) {
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET grower_number = (")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"grower_number"}).AddRow(number))
}

func TestRepository_Assign(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectBegin()
	expectLock(mock, 5, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM growers WHERE id = $1 AND tenant_id = $2)")).
		WithArgs(int64(42), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grower_user (user_id, grower_id, created_at)")).
		WithArgs(int64(5), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectSync(mock, 5, "G-042")
	mock.ExpectCommit()

	number, err := repo.Assign(context.Background(), acme, 5, 42)
	require.NoError(t, err)
	assert.Equal(t, "G-042", number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_AssignUnknownGrower(t *testing.T) {
	repo, mock := setupRepo(t)

	mock.ExpectBegin()
	expectLock(mock, 5, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := repo.Assign(context.Background(), acme, 5, 1000)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Unassign(t *testing.T) {
	tests := []struct {
		name     string
		user     bool
		deleted  int64
		number   any
		want     string
		notFound bool
	}{
		{name: "falls back to remaining grower", user: true, deleted: 1, number: "G-007", want: "G-007"},
		{name: "last grower clears number", user: true, deleted: 1, number: nil, want: ""},
		{name: "not assigned", user: true, deleted: 0, notFound: true},
		{name: "unknown user", user: false, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := setupRepo(t)

			mock.ExpectBegin()
			expectLock(mock, 5, tt.user)
			if tt.user {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM grower_user WHERE user_id = $1 AND grower_id = $2")).
					WithArgs(int64(5), int64(42), int64(1)).
					WillReturnResult(sqlmock.NewResult(0, tt.deleted))
			}
			if tt.notFound {
				mock.ExpectRollback()
			} else {
				expectSync(mock, 5, tt.number)
				mock.ExpectCommit()
			}

			number, err := repo.Unassign(context.Background(), acme, 5, 42)
			if tt.notFound {
				assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, number)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
