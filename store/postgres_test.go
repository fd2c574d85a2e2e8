package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return NewPostgresStore(mockDB), mock
}

func TestPostgresReadAll(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(selectNodeQuery).
		WithArgs("employees", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"e2":{"name":"Bea"},"e1":{"name":"Ana"}}`)))

	snapshot, err := s.ReadAll(context.Background(), "employees")
	require.NoError(t, err)
	require.Len(t, snapshot.Children, 2)
	assert.Equal(t, "e1", snapshot.Children[0].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadAllMissingRowOrPath(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(selectNodeQuery).
		WithArgs("employees", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectNodeQuery).
		WithArgs("employees", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow(nil))

	snapshot, err := s.ReadAll(context.Background(), "employees")
	require.NoError(t, err)
	assert.False(t, snapshot.Exists)

	snapshot, err = s.ReadAll(context.Background(), "employees/missing")
	require.NoError(t, err)
	assert.False(t, snapshot.Exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresReadAllError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(selectNodeQuery).
		WithArgs("employees", sqlmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := s.ReadAll(context.Background(), "employees")
	assert.Error(t, err)
}

func TestPostgresReadFiltered(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectQuery(selectNodeQuery).
		WithArgs("users", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"u1":{"email":"a@x.com"},"u2":{"email":"b@x.com"}}`)))

	matches, err := s.ReadFiltered(context.Background(), "users", "email", "b@x.com")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "u2", matches[0].Key)
}

func TestPostgresSetAtNewCollection(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockDocumentQuery).WithArgs("employees").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(upsertDocumentSQL).
		WithArgs("employees", `{"e1":{"name":"Ana"}}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.SetAt(context.Background(), "employees/e1", map[string]any{"name": "Ana"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateAtMergesExistingDocument(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockDocumentQuery).
		WithArgs("employees").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"e1":{"name":"Ana","role":"tech"}}`)))
	mock.ExpectExec(upsertDocumentSQL).
		WithArgs("employees", `{"e1":{"name":"Ana","role":"lead"}}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpdateAt(context.Background(), "employees/e1", map[string]any{"role": "lead"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteLastChildDropsRow(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockDocumentQuery).
		WithArgs("employees").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"e1":{"name":"Ana"}}`)))
	mock.ExpectExec(deleteDocumentSQL).WithArgs("employees").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteAt(context.Background(), "employees/e1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeleteAbsentIsNoop(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockDocumentQuery).WithArgs("employees").WillReturnError(sql.ErrNoRows)
	mock.ExpectCommit()

	require.NoError(t, s.DeleteAt(context.Background(), "employees/missing"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresPushNew(t *testing.T) {
	original := newPushKey
	newPushKey = func() string { return "k1" }
	defer func() { newPushKey = original }()

	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockDocumentQuery).WithArgs("records").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(upsertDocumentSQL).
		WithArgs("records", `{"k1":{"title":"t"}}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	key, err := s.PushNew(context.Background(), "records", map[string]any{"title": "t"})
	require.NoError(t, err)
	assert.Equal(t, "k1", key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriteErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockDocumentQuery).WithArgs("employees").WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(upsertDocumentSQL).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	assert.Error(t, s.SetAt(context.Background(), "employees/e1", map[string]any{"name": "Ana"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLockErrorRollsBack(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockDocumentQuery).WithArgs("employees").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	assert.Error(t, s.UpdateAt(context.Background(), "employees/e1", map[string]any{"name": "Ana"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBeginError(t *testing.T) {
	s, mock := newMockPostgres(t)
	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	assert.Error(t, s.SetAt(context.Background(), "employees/e1", 1))
}

func TestPostgresUpdateAtEmptyFieldsSkipsWrite(t *testing.T) {
	s, mock := newMockPostgres(t)

	require.NoError(t, s.UpdateAt(context.Background(), "employees/e1", map[string]any{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInvalidPath(t *testing.T) {
	s, _ := newMockPostgres(t)

	_, err := s.ReadAll(context.Background(), "a.b")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.SetAt(context.Background(), "", 1), ErrInvalidPath)
}
