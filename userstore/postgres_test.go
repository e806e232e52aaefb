package userstore

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/MrEthical07/authgate"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "password_hash", "first_name", "last_name", "email", "verified"}

func TestPostgresVerifyCredentials(t *testing.T) {
	hasher := testHasher(t)
	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)

	tests := []struct {
		name      string
		password  string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      authgate.Principal
		wantErr   error
		wantAny   bool
	}{
		{
			name:     "match",
			password: "correct-horse",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectByUsername)).
					WithArgs("a@x.com").
					WillReturnRows(pgxmock.NewRows(userColumns).AddRow("u1", hash, "A", "B", "a@x.com", true))
			},
			want: ada,
		},
		{
			name:     "wrong password",
			password: "wrong-horse",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectByUsername)).
					WithArgs("a@x.com").
					WillReturnRows(pgxmock.NewRows(userColumns).AddRow("u1", hash, "A", "B", "a@x.com", true))
			},
			wantErr: authgate.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			password: "correct-horse",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectByUsername)).
					WithArgs("a@x.com").
					WillReturnError(pgx.ErrNoRows)
			},
			wantErr: authgate.ErrUserNotFound,
		},
		{
			name:     "database error",
			password: "correct-horse",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(regexp.QuoteMeta(selectByUsername)).
					WithArgs("a@x.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantAny: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()

			tt.setupMock(mock)

			store := NewPostgres(mock, hasher)
			got, err := store.VerifyCredentials(context.Background(), "A@x.com ", tt.password)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantAny:
				require.Error(t, err)
				assert.NotErrorIs(t, err, authgate.ErrUserNotFound)
				assert.Contains(t, err.Error(), "connection refused")
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestPostgresFindByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "first_name", "last_name", "email", "verified"}).
			AddRow("u1", "A", "B", "a@x.com", true))
	mock.ExpectQuery(regexp.QuoteMeta(selectByID)).
		WithArgs("u2").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgres(mock, testHasher(t))

	p, err := store.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, ada, p)

	_, err = store.FindByID(context.Background(), "u2")
	assert.ErrorIs(t, err, authgate.ErrUserNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateAndMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(regexp.QuoteMeta(insertUser)).
		WithArgs("u1", "a@x.com", pgxmock.AnyArg(), "A", "B", "a@x.com", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectPing()

	store := NewPostgres(mock, testHasher(t))
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Create(context.Background(), "A@x.com", "correct-horse", ada))
	require.NoError(t, store.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}
