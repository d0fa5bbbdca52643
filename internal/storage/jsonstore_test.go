package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-tg-admin/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestJSONStore_PersistsAcrossReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	store, err := NewJSONStore(path, testLogger())
	require.NoError(t, err)

	user := &models.TelegramUser{TelegramID: 42, FirstName: "Ada", Balance: 1000}
	require.NoError(t, store.CreateTelegramUser(ctx, user))
	assert.Equal(t, int64(1), user.ID)

	request := &models.WithdrawalRequest{TelegramUserID: 42, Amount: 500, Status: models.WithdrawalPending}
	require.NoError(t, store.CreateWithdrawal(ctx, request))
	require.NoError(t, store.Close())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	reloaded, err := NewJSONStore(path, testLogger())
	require.NoError(t, err)

	got, err := reloaded.TelegramUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	assert.Equal(t, int64(1000), got.Balance)

	w, err := reloaded.Withdrawal(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.Amount)

	// Sequences survive the reload
	second := &models.TelegramUser{TelegramID: 43, FirstName: "Bola"}
	require.NoError(t, reloaded.CreateTelegramUser(ctx, second))
	assert.Equal(t, int64(2), second.ID)
}
