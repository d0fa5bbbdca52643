package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-tg-admin/internal/config"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
)

type storeBackend struct {
	name string
	open func(t *testing.T) Store
}

var storeBackends = []storeBackend{
	{
		name: "json",
		open: func(t *testing.T) Store {
			store, err := NewJSONStore("", testLogger())
			require.NoError(t, err)
			return store
		},
	},
	{
		name: "sqlite",
		open: func(t *testing.T) Store {
			store, err := Open(config.StorageConfig{
				Driver:      config.DriverSQLite,
				DatabaseURL: filepath.Join(t.TempDir(), "store.db"),
			}, testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	},
}

// forEachStore runs fn once per backend so both stores honour the same contract
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	for _, backend := range storeBackends {
		backend := backend
		t.Run(backend.name, func(t *testing.T) {
			fn(t, backend.open(t))
		})
	}
}

func TestStore_UniqueKeys(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		require.NoError(t, store.CreateTelegramUser(ctx, &models.TelegramUser{TelegramID: 1, FirstName: "Ada"}))
		assert.ErrorIs(t, store.CreateTelegramUser(ctx, &models.TelegramUser{TelegramID: 1, FirstName: "Ada"}), apperrors.ErrAlreadyExists)

		require.NoError(t, store.CreateAdmin(ctx, &models.AdminUser{Username: "Admin", PasswordHash: "x", IsAdmin: true}))
		assert.ErrorIs(t, store.CreateAdmin(ctx, &models.AdminUser{Username: "admin", PasswordHash: "y"}), apperrors.ErrAlreadyExists)

		admin, err := store.AdminByUsername(ctx, "ADMIN")
		require.NoError(t, err)
		assert.Equal(t, "admin", admin.Username)
		assert.True(t, admin.IsAdmin)

		require.NoError(t, store.CreateAdmin(ctx, &models.AdminUser{Username: "viewer", PasswordHash: "z", IsAdmin: false}))
		viewer, err := store.AdminByUsername(ctx, "viewer")
		require.NoError(t, err)
		assert.False(t, viewer.IsAdmin)

		byID, err := store.AdminByID(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, admin.Username, byID.Username)

		_, err = store.AdminByID(ctx, admin.ID+100)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		_, err = store.TelegramUser(ctx, 2)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, store.UpdateTelegramUser(ctx, &models.TelegramUser{TelegramID: 2, FirstName: "Bola"}), apperrors.ErrNotFound)
		_, err = store.Withdrawal(ctx, 99)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, store.UpdateWithdrawal(ctx, &models.WithdrawalRequest{ID: 99, Status: models.WithdrawalApproved}), apperrors.ErrNotFound)
	})
}

func TestStore_UpdateTelegramUserPersistsFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		user := &models.TelegramUser{TelegramID: 7, FirstName: "Ada"}
		require.NoError(t, store.CreateTelegramUser(ctx, user))
		require.NotZero(t, user.ID)

		referrer := int64(3)
		claimed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		user.Balance = 2500
		user.ReferrerID = &referrer
		user.ReferralCount = 4
		user.HasJoinedGroups = true
		user.LastBonusClaim = &claimed
		user.AccountNumber = "0123456789"
		user.BankName = "Opay"
		user.AccountName = "Ada Obi"
		require.NoError(t, store.UpdateTelegramUser(ctx, user))

		got, err := store.TelegramUser(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, int64(2500), got.Balance)
		require.NotNil(t, got.ReferrerID)
		assert.Equal(t, int64(3), *got.ReferrerID)
		assert.Equal(t, 4, got.ReferralCount)
		assert.True(t, got.HasJoinedGroups)
		require.NotNil(t, got.LastBonusClaim)
		assert.True(t, claimed.Equal(*got.LastBonusClaim))
		assert.Equal(t, "Opay", got.BankName)
		assert.Equal(t, "Ada Obi", got.AccountName)

		// Clearing optional fields must be written as well
		got.ReferrerID = nil
		got.HasJoinedGroups = false
		require.NoError(t, store.UpdateTelegramUser(ctx, got))
		again, err := store.TelegramUser(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, again.ReferrerID)
		assert.False(t, again.HasJoinedGroups)
	})
}

func TestStore_ReturnsCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateTelegramUser(ctx, &models.TelegramUser{TelegramID: 1, FirstName: "Ada", Balance: 10}))

		user, err := store.TelegramUser(ctx, 1)
		require.NoError(t, err)
		user.Balance = 999

		again, err := store.TelegramUser(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(10), again.Balance)
	})
}

func TestStore_WithTx(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		require.NoError(t, store.CreateTelegramUser(ctx, &models.TelegramUser{TelegramID: 1, FirstName: "Ada", Balance: 100}))

		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx Store) error {
			user, err := tx.TelegramUser(ctx, 1)
			if err != nil {
				return err
			}
			user.Balance = 0
			if err := tx.UpdateTelegramUser(ctx, user); err != nil {
				return err
			}
			if err := tx.AppendLedgerEntry(ctx, &models.LedgerEntry{TelegramID: 1, Kind: models.EntryWithdrawalHold, Amount: -100}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		user, err := store.TelegramUser(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(100), user.Balance)

		entries, err := store.LedgerEntries(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, entries)

		err = store.WithTx(ctx, func(tx Store) error {
			w := &models.WithdrawalRequest{TelegramUserID: 1, Amount: 60, BankDetails: models.BankDetails{AccountNumber: "1", BankName: "b", AccountName: "n"}, Status: models.WithdrawalPending}
			if err := tx.CreateWithdrawal(ctx, w); err != nil {
				return err
			}
			if err := tx.AppendLedgerEntry(ctx, &models.LedgerEntry{TelegramID: 1, Kind: models.EntryWithdrawalHold, Amount: -60, WithdrawalID: &w.ID}); err != nil {
				return err
			}
			return tx.AppendLedgerEntry(ctx, &models.LedgerEntry{TelegramID: 1, Kind: models.EntryClaimBonus, Amount: 5})
		})
		require.NoError(t, err)

		entries, err = store.LedgerEntries(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(-60), entries[0].Amount)
		require.NotNil(t, entries[0].WithdrawalID)
		assert.Equal(t, int64(5), entries[1].Amount)

		pending, err := store.ListWithdrawals(ctx, models.WithdrawalFilter{Status: models.WithdrawalPending})
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}

func TestStore_ListOrderingAndFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		for _, w := range []models.WithdrawalRequest{
			{TelegramUserID: 1, Amount: 10, BankDetails: models.BankDetails{AccountNumber: "1", BankName: "b", AccountName: "n"}, Status: models.WithdrawalPending},
			{TelegramUserID: 2, Amount: 20, BankDetails: models.BankDetails{AccountNumber: "1", BankName: "b", AccountName: "n"}, Status: models.WithdrawalApproved},
			{TelegramUserID: 1, Amount: 30, BankDetails: models.BankDetails{AccountNumber: "1", BankName: "b", AccountName: "n"}, Status: models.WithdrawalPending},
		} {
			w := w
			require.NoError(t, store.CreateWithdrawal(ctx, &w))
		}

		all, err := store.ListWithdrawals(ctx, models.WithdrawalFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, int64(30), all[0].Amount)
		assert.Equal(t, int64(10), all[2].Amount)

		pending, err := store.ListWithdrawals(ctx, models.WithdrawalFilter{Status: models.WithdrawalPending, TelegramID: 1})
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		first := all[2]
		first.Status = models.WithdrawalRejected
		require.NoError(t, store.UpdateWithdrawal(ctx, &first))
		rejected, err := store.ListWithdrawals(ctx, models.WithdrawalFilter{Status: models.WithdrawalRejected})
		require.NoError(t, err)
		require.Len(t, rejected, 1)
		assert.Equal(t, first.ID, rejected[0].ID)

		for _, id := range []int64{10, 11} {
			require.NoError(t, store.CreateTelegramUser(ctx, &models.TelegramUser{TelegramID: id, FirstName: "u"}))
		}
		users, err := store.ListTelegramUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, int64(11), users[0].TelegramID)

		require.NoError(t, store.DeleteWithdrawals(ctx))
		all, err = store.ListWithdrawals(ctx, models.WithdrawalFilter{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestStore_Sessions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		session := &models.Session{UserID: 1, TokenID: "abc", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, store.CreateSession(ctx, session))
		assert.ErrorIs(t, store.CreateSession(ctx, &models.Session{UserID: 2, TokenID: "abc", ExpiresAt: time.Now()}), apperrors.ErrAlreadyExists)

		got, err := store.SessionByTokenID(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.UserID)

		require.NoError(t, store.DeleteSession(ctx, "abc"))
		_, err = store.SessionByTokenID(ctx, "abc")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestStore_ResetAllKeepsAdmins(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		require.NoError(t, store.CreateAdmin(ctx, &models.AdminUser{Username: "admin", PasswordHash: "x"}))
		require.NoError(t, store.CreateSession(ctx, &models.Session{UserID: 1, TokenID: "t", ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, store.CreateTelegramUser(ctx, &models.TelegramUser{TelegramID: 1, FirstName: "Ada"}))
		require.NoError(t, store.CreateWithdrawal(ctx, &models.WithdrawalRequest{TelegramUserID: 1, Amount: 5, BankDetails: models.BankDetails{AccountNumber: "1", BankName: "b", AccountName: "n"}, Status: models.WithdrawalPending}))
		require.NoError(t, store.AppendLedgerEntry(ctx, &models.LedgerEntry{TelegramID: 1, Kind: models.EntryClaimBonus, Amount: 1}))

		require.NoError(t, store.ResetAll(ctx))

		users, err := store.ListTelegramUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
		withdrawals, err := store.ListWithdrawals(ctx, models.WithdrawalFilter{})
		require.NoError(t, err)
		assert.Empty(t, withdrawals)
		entries, err := store.LedgerEntries(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, entries)

		_, err = store.AdminByUsername(ctx, "admin")
		assert.NoError(t, err)
		_, err = store.SessionByTokenID(ctx, "t")
		assert.NoError(t, err)
	})
}
