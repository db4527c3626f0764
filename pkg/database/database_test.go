package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplicaURLs(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: nil},
		{name: "single URL", input: "postgres://a/db", expected: []string{"postgres://a/db"}},
		{
			name:     "whitespace and blanks",
			input:    " postgres://a/db ,, postgres://b/db ,",
			expected: []string{"postgres://a/db", "postgres://b/db"},
		},
		{name: "only commas", input: " , , ", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseReplicaURLs(tt.input))
		})
	}
}

func TestManager_ReplicaFallsBackToPrimary(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := FromDB(db)
	assert.Same(t, db, m.Primary())
	assert.Same(t, db, m.Replica())
}

func TestManager_ReplicaRoundRobin(t *testing.T) {
	primary, _, err := sqlmock.New()
	require.NoError(t, err)
	r1, _, err := sqlmock.New()
	require.NoError(t, err)
	r2, _, err := sqlmock.New()
	require.NoError(t, err)

	m := FromDB(primary, r1, r2)
	seen := map[any]int{}
	for i := 0; i < 4; i++ {
		seen[m.Replica()]++
	}
	assert.Equal(t, 2, seen[r1])
	assert.Equal(t, 2, seen[r2])
	assert.Zero(t, seen[primary])
}

func TestManager_HealthCheck(t *testing.T) {
	primary, _, err := sqlmock.New()
	require.NoError(t, err)
	replica, _, err := sqlmock.New()
	require.NoError(t, err)

	m := FromDB(primary, replica)
	require.NoError(t, m.HealthCheck(context.Background()))

	replica.Close()
	assert.ErrorContains(t, m.HealthCheck(context.Background()), "all replicas unhealthy")

	primary.Close()
	assert.ErrorContains(t, m.HealthCheck(context.Background()), "primary unhealthy")
}

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE files").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = WithTx(context.Background(), db, func(tx *sql.Tx) error {
			_, err := tx.Exec("UPDATE files SET is_active = false")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("attach failed")
		err = WithTx(context.Background(), db, func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
