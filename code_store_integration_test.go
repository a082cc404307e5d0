package main

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fancy-planties/verification-service/models"
)

// These tests need a real MySQL instance; set MYSQL_TEST_DSN to run them,
// e.g. MYSQL_TEST_DSN="root:root@tcp(localhost:3306)/verification_test?parseTime=true&multiStatements=true"
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("MYSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MYSQL_TEST_DSN not set, skipping MySQL store tests")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "mysql", driver)
	require.NoError(t, err)
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	_, err = db.Exec("DELETE FROM verification_codes")
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM users")
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestUser(t *testing.T, db *sql.DB, email string) int {
	t.Helper()
	res, err := sq.Insert("users").Columns("email").Values(email).RunWith(db).Exec()
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return int(id)
}

func TestMySQLCodeStoreLifecycle(t *testing.T) {
	db := openTestDB(t)
	store := NewMySQLCodeStore(db)
	ctx := context.Background()
	userID := insertTestUser(t, db, "ivy@example.com")
	now := time.Now().Truncate(time.Microsecond)

	// replace keeps at most one row per user
	require.NoError(t, store.Replace(ctx, &models.VerificationCode{
		UserID: userID, Code: "111111", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))
	require.NoError(t, store.Replace(ctx, &models.VerificationCode{
		UserID: userID, Code: "222222", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	vc, err := store.GetByUserID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, vc)
	assert.Equal(t, "222222", vc.Code)
	assert.Equal(t, 0, vc.AttemptsUsed)

	// the superseded code no longer consumes
	ok, err := store.Consume(ctx, userID, "111111", now, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.IncrementAttempts(ctx, userID))
	vc, err = store.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, vc.AttemptsUsed)

	ok, err = store.Consume(ctx, userID, "222222", now, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	vc, err = store.GetByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, vc)
}

func TestMySQLCodeStoreConsumeRespectsBudgets(t *testing.T) {
	db := openTestDB(t)
	store := NewMySQLCodeStore(db)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	expiredUser := insertTestUser(t, db, "expired@example.com")
	require.NoError(t, store.Replace(ctx, &models.VerificationCode{
		UserID: expiredUser, Code: "111111", IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}))
	ok, err := store.Consume(ctx, expiredUser, "111111", now, 5)
	require.NoError(t, err)
	assert.False(t, ok, "an expired row must not consume")

	spentUser := insertTestUser(t, db, "spent@example.com")
	require.NoError(t, store.Replace(ctx, &models.VerificationCode{
		UserID: spentUser, Code: "222222", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.IncrementAttempts(ctx, spentUser))
	}
	ok, err = store.Consume(ctx, spentUser, "222222", now, 5)
	require.NoError(t, err)
	assert.False(t, ok, "a row with a spent attempt budget must not consume")
}

func TestMySQLCodeStoreDeleteExpired(t *testing.T) {
	db := openTestDB(t)
	store := NewMySQLCodeStore(db)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		id := insertTestUser(t, db, email)
		require.NoError(t, store.Replace(ctx, &models.VerificationCode{
			UserID: id, Code: "111111", IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
		}))
	}
	liveID := insertTestUser(t, db, "live@example.com")
	require.NoError(t, store.Replace(ctx, &models.VerificationCode{
		UserID: liveID, Code: "222222", IssuedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	removed, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	ok, err := store.Consume(ctx, liveID, "222222", now, 5)
	require.NoError(t, err)
	assert.True(t, ok, "the live row must survive the sweep")
}

func TestMySQLUserStore(t *testing.T) {
	db := openTestDB(t)
	store := NewMySQLUserStore(db)
	ctx := context.Background()
	id := insertTestUser(t, db, "ivy@example.com")

	user, err := store.GetByEmail(ctx, "ivy@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, id, user.ID)
	assert.False(t, user.Verified)

	missing, err := store.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.MarkVerified(ctx, id))
	user, err = store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, user.Verified)
}
