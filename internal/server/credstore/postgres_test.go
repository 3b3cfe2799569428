package credstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authgate/internal/auth"
	"github.com/dmitrijs2005/authgate/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qSelectUser = `(?s)^SELECT\s+user_id,\s*user_key,\s*aux_user_data,\s*level\s+FROM\s+study_user\s+WHERE\s+user_key\s*=\s*\$1\s*$`
	qSelectHash = `(?s)^SELECT\s+password\s+FROM\s+study_user\s+WHERE\s+user_key\s*=\s*\$1\s*$`
	qInsertUser = `(?s)^INSERT\s+INTO\s+study_user\s*\(user_key,\s*password,\s*aux_user_data,\s*level\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+user_id\s*$`
	qDeleteUser = `(?s)^DELETE\s+FROM\s+study_user\s+WHERE\s+user_key\s*=\s*\$1\s*$`
	qUpdateHash = `(?s)^UPDATE\s+study_user\s+SET\s+password\s*=\s*\$1\s+WHERE\s+user_key\s*=\s*\$2\s*$`
)

func newPostgresWithMock(t *testing.T) (*Postgres, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgres(db, nopLogger{}), mock, db
}

func userRow(uid int64, key string, level int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "user_key", "aux_user_data", "level"}).
		AddRow(uid, key, "", level)
}

func TestPostgres_AddUser_Inserts(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	alice := auth.NewUser("alice", []byte("secret1"))

	mock.ExpectQuery(qSelectUser).WithArgs("alice").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(qInsertUser).
		WithArgs("alice", alice.PasswordHash, "", auth.NormalUser).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(7)))

	added, err := s.AddUser(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, int64(7), alice.UID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddUser_ExistingKeyIsNoOp(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs("alice").
		WillReturnRows(userRow(7, "alice", auth.NormalUser))

	added, err := s.AddUser(context.Background(), auth.NewUser("alice", []byte("other")))
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AddUser_InsertFailureIsSaveError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs("alice").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(qInsertUser).
		WithArgs("alice", sqlmock.AnyArg(), "", auth.NormalUser).
		WillReturnError(errors.New("db down"))

	added, err := s.AddUser(context.Background(), auth.NewUser("alice", []byte("secret1")))
	assert.False(t, added)

	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, "add user", saveErr.Op)
}

func TestPostgres_IsValid(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	storedHash := auth.HashPassword([]byte("secret1"))

	mock.ExpectQuery(qSelectHash).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"password"}).AddRow(storedHash))

	assert.True(t, s.IsValid(context.Background(), auth.NewUser("alice", []byte("secret1"))))

	mock.ExpectQuery(qSelectHash).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"password"}).AddRow(storedHash))

	assert.False(t, s.IsValid(context.Background(), auth.NewUser("alice", []byte("wrong"))))

	mock.ExpectQuery(qSelectHash).WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	assert.False(t, s.IsValid(context.Background(), auth.NewUser("nobody", []byte("secret1"))))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_IsValid_EmptyHashSkipsLookup(t *testing.T) {
	s, _, db := newPostgresWithMock(t)
	defer db.Close()

	assert.False(t, s.IsValid(context.Background(), &auth.User{UserKey: "alice"}))
}

func TestPostgres_AccessLevel(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs("root").
		WillReturnRows(userRow(1, "root", auth.Administrator))

	assert.Equal(t, auth.Administrator, s.AccessLevel(context.Background(), "root"))

	mock.ExpectQuery(qSelectUser).WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	assert.Equal(t, UnknownLevel, s.AccessLevel(context.Background(), "nobody"))
}

func TestPostgres_AccessLevel_ReadFaultDegradesToUnknown(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs("root").WillReturnError(errors.New("db down"))

	assert.Equal(t, UnknownLevel, s.AccessLevel(context.Background(), "root"))
}

func TestPostgres_RemoveUser(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	storedHash := auth.HashPassword([]byte("secret1"))

	// wrong password: validity check fails, no delete issued
	mock.ExpectBegin()
	mock.ExpectQuery(qSelectHash).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"password"}).AddRow(storedHash))
	mock.ExpectCommit()

	removed, err := s.RemoveUser(context.Background(), auth.NewUser("alice", []byte("wrong")))
	require.NoError(t, err)
	assert.False(t, removed)

	// correct password: delete proceeds in the same transaction
	mock.ExpectBegin()
	mock.ExpectQuery(qSelectHash).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"password"}).AddRow(storedHash))
	mock.ExpectExec(qDeleteUser).WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err = s.RemoveUser(context.Background(), auth.NewUser("alice", []byte("secret1")))
	require.NoError(t, err)
	assert.True(t, removed)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RemoveUser_DeleteFailureIsSaveError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	storedHash := auth.HashPassword([]byte("secret1"))

	mock.ExpectBegin()
	mock.ExpectQuery(qSelectHash).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"password"}).AddRow(storedHash))
	mock.ExpectExec(qDeleteUser).WithArgs("alice").WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	removed, err := s.RemoveUser(context.Background(), auth.NewUser("alice", []byte("secret1")))
	assert.False(t, removed)

	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
}

func TestPostgres_SetUID(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectUser).WithArgs("alice").
		WillReturnRows(userRow(42, "alice", auth.NormalUser))

	entry := auth.NewUser("alice", []byte("secret1"))
	s.SetUID(context.Background(), entry)
	assert.Equal(t, int64(42), entry.UID)

	mock.ExpectQuery(qSelectUser).WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	missing := auth.NewUser("nobody", []byte("x"))
	s.SetUID(context.Background(), missing)
	assert.Equal(t, auth.UnknownUID, missing.UID)
}

func TestPostgres_UpdatePassword(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	newHash := auth.HashPassword([]byte("secret2"))

	mock.ExpectExec(qUpdateHash).WithArgs(newHash, "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdatePassword(context.Background(), "Alice", newHash))

	mock.ExpectExec(qUpdateHash).WithArgs(sqlmock.AnyArg(), "alice").
		WillReturnError(errors.New("db down"))

	var saveErr *SaveError
	err := s.UpdatePassword(context.Background(), "alice", newHash)
	require.ErrorAs(t, err, &saveErr)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdatePassword_UnknownKeyIsSaveError(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	mock.ExpectExec(qUpdateHash).WithArgs(sqlmock.AnyArg(), "nobody").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdatePassword(context.Background(), "nobody", auth.HashPassword([]byte("x")))

	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveIsNoOp(t *testing.T) {
	s, mock, db := newPostgresWithMock(t)
	defer db.Close()

	require.NoError(t, s.Save(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
