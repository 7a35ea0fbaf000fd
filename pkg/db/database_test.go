package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpen_SQLiteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "farm.db")
	gdb, err := Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	require.NoError(t, Ping(context.Background(), gdb))
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("create: %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
}
