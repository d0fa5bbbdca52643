package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"referral-tg-admin/internal/config"
	"referral-tg-admin/internal/constants"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/helpers"
	"referral-tg-admin/internal/models"
	"referral-tg-admin/internal/storage"
)

// LedgerService owns user balances and the withdrawal request lifecycle.
//
// A withdrawal amount is held (deducted) when the request is submitted.
// Pending and approved requests keep the hold, rejected requests release it,
// so every status change moves the balance by the difference between the two.
type LedgerService struct {
	store          storage.Store
	notifier       Notifier
	rewards        config.RewardsConfig
	display        config.DisplayConfig
	requiredGroups []string
	logger         *logrus.Logger
	now            func() time.Time
	mu             sync.Mutex
}

// NewLedgerService creates a new ledger service
func NewLedgerService(store storage.Store, notifier Notifier, cfg *config.Config, logger *logrus.Logger) *LedgerService {
	return &LedgerService{
		store:          store,
		notifier:       notifier,
		rewards:        cfg.Rewards,
		display:        cfg.Display,
		requiredGroups: cfg.Community.RequiredGroups,
		logger:         logger,
		now:            time.Now,
	}
}

// SetClock replaces the time source
func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// SetNotifier replaces the notification channel
func (s *LedgerService) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

// RegisterInput describes a Telegram user opening the bot
type RegisterInput struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	ReferrerID *int64
}

// Register creates the user on first contact. A valid referrer is credited
// with the referral bonus once; later calls return the stored user unchanged.
func (s *LedgerService) Register(ctx context.Context, in RegisterInput) (*models.TelegramUser, bool, error) {
	user, referrer, created, err := s.register(ctx, in)
	if err != nil {
		return nil, false, err
	}

	if referrer != nil {
		s.notify(ctx, referrer.TelegramID, fmt.Sprintf(
			"🎉 Congratulations! You have a new referral: %s.\n\n%s has been added to your balance!",
			user.FullName(), helpers.FormatSignedAmount(s.rewards.Currency, s.rewards.ReferralBonus)))
	}

	return user, created, nil
}

func (s *LedgerService) register(ctx context.Context, in RegisterInput) (*models.TelegramUser, *models.TelegramUser, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.TelegramUser(ctx, in.TelegramID)
	if err == nil {
		return existing, nil, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil, false, fmt.Errorf("failed to look up user %d: %w", in.TelegramID, err)
	}

	user := &models.TelegramUser{
		TelegramID: in.TelegramID,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Username:   strings.TrimSpace(in.Username),
		CreatedAt:  s.now(),
	}

	var referrer *models.TelegramUser
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if in.ReferrerID != nil && *in.ReferrerID != in.TelegramID {
			ref, err := tx.TelegramUser(ctx, *in.ReferrerID)
			switch {
			case err == nil:
				referrer = ref
			case errors.Is(err, apperrors.ErrNotFound):
				s.logger.Warnf("Ignoring unknown referrer %d for user %d", *in.ReferrerID, in.TelegramID)
			default:
				return err
			}
		}

		if referrer != nil {
			referrerID := referrer.TelegramID
			user.ReferrerID = &referrerID
		}

		if err := tx.CreateTelegramUser(ctx, user); err != nil {
			return err
		}
		if referrer == nil {
			return nil
		}

		if err := s.applyDelta(ctx, tx, user, s.rewards.WelcomeBonus, models.EntryWelcomeBonus, nil); err != nil {
			return err
		}

		referrer.ReferralCount++
		return s.applyDelta(ctx, tx, referrer, s.rewards.ReferralBonus, models.EntryReferralBonus, nil)
	})
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to register user %d: %w", in.TelegramID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"telegram_id": user.TelegramID,
		"referred":    referrer != nil,
	}).Info("Registered new user")

	return user, referrer, true, nil
}

// RequiresGroups reports whether users must join channels before using the bot
func (s *LedgerService) RequiresGroups() bool {
	return len(s.requiredGroups) > 0
}

// RequiredGroups returns the channels and groups users must join
func (s *LedgerService) RequiredGroups() []string {
	return s.requiredGroups
}

// MarkJoinedGroups records that the user joined the required groups
func (s *LedgerService) MarkJoinedGroups(ctx context.Context, telegramID int64) (*models.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.TelegramUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if user.HasJoinedGroups {
		return user, nil
	}

	user.HasJoinedGroups = true
	if err := s.store.UpdateTelegramUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", telegramID, err)
	}
	return user, nil
}

// ConfirmMembership checks every required group with checker and marks the
// user as joined when all memberships are confirmed. A nil checker trusts the user.
// The returned slice lists the groups the user still has to join.
func (s *LedgerService) ConfirmMembership(ctx context.Context, telegramID int64, checker MembershipChecker) (*models.TelegramUser, []string, error) {
	if _, err := s.store.TelegramUser(ctx, telegramID); err != nil {
		return nil, nil, err
	}

	var missing []string
	if checker != nil {
		for _, group := range s.requiredGroups {
			ok, err := checker.IsMember(ctx, group, telegramID)
			if err != nil {
				s.logger.Warnf("Failed to check membership of user %d in @%s: %v", telegramID, group, err)
			}
			if !ok {
				missing = append(missing, group)
			}
		}
	}
	if len(missing) > 0 {
		return nil, missing, apperrors.ErrGroupsNotJoined
	}

	user, err := s.MarkJoinedGroups(ctx, telegramID)
	return user, nil, err
}

// ClaimBonus credits the claim bonus once the cooldown since the last claim has elapsed
func (s *LedgerService) ClaimBonus(ctx context.Context, telegramID int64) (*models.TelegramUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.TelegramUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	if s.RequiresGroups() && !user.HasJoinedGroups {
		return nil, apperrors.ErrGroupsNotJoined
	}

	now := s.now()
	if user.LastBonusClaim != nil {
		elapsed := now.Sub(*user.LastBonusClaim)
		if elapsed < s.rewards.ClaimCooldown {
			return nil, &apperrors.CooldownError{
				LastClaim: *user.LastBonusClaim,
				Remaining: s.rewards.ClaimCooldown - elapsed,
			}
		}
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		user.LastBonusClaim = &now
		return s.applyDelta(ctx, tx, user, s.rewards.ClaimBonus, models.EntryClaimBonus, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit claim bonus to user %d: %w", telegramID, err)
	}

	return user, nil
}

// SetBankDetails stores the payout account of the user
func (s *LedgerService) SetBankDetails(ctx context.Context, telegramID int64, details models.BankDetails) (*models.TelegramUser, error) {
	details = models.BankDetails{
		AccountNumber: strings.TrimSpace(details.AccountNumber),
		BankName:      strings.TrimSpace(details.BankName),
		AccountName:   strings.TrimSpace(details.AccountName),
	}
	if !details.Complete() {
		return nil, &apperrors.ValidationError{Field: "bankDetails", Message: "account number, bank name and account name are required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.TelegramUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	user.BankDetails = details
	if err := s.store.UpdateTelegramUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update bank details of user %d: %w", telegramID, err)
	}
	return user, nil
}

// WithdrawalOpen reports whether withdrawals are accepted at t
func (s *LedgerService) WithdrawalOpen(t time.Time) bool {
	if len(s.rewards.WithdrawalDays) == 0 {
		return true
	}
	for _, day := range s.rewards.WithdrawalDays {
		if t.Weekday() == day {
			return true
		}
	}
	return false
}

// CheckWithdrawalEligibility reports why the user cannot start a withdrawal, if anything
func (s *LedgerService) CheckWithdrawalEligibility(ctx context.Context, telegramID int64) (*models.TelegramUser, error) {
	user, err := s.store.TelegramUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return user, s.checkEligibility(user, s.now())
}

func (s *LedgerService) checkEligibility(user *models.TelegramUser, now time.Time) error {
	if s.RequiresGroups() && !user.HasJoinedGroups {
		return apperrors.ErrGroupsNotJoined
	}
	if !s.WithdrawalOpen(now) {
		return apperrors.ErrWithdrawalClosed
	}
	if user.Balance < s.rewards.MinWithdrawal {
		return apperrors.ErrBelowMinimum
	}
	if !user.BankDetails.Complete() {
		return apperrors.ErrMissingBankDetails
	}
	return nil
}

// SubmitWithdrawal creates a pending request with a snapshot of the bank
// details and holds the amount from the user's balance.
func (s *LedgerService) SubmitWithdrawal(ctx context.Context, telegramID int64, amount int64) (*models.WithdrawalRequest, error) {
	if amount <= 0 {
		return nil, &apperrors.ValidationError{Field: "amount", Message: "amount must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.store.TelegramUser(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkEligibility(user, now); err != nil {
		return nil, err
	}
	if amount < s.rewards.MinWithdrawal {
		return nil, apperrors.ErrBelowMinimum
	}
	if s.rewards.MaxWithdrawal > 0 && amount > s.rewards.MaxWithdrawal {
		return nil, apperrors.ErrAboveMaximum
	}
	if amount > user.Balance {
		return nil, apperrors.ErrInsufficientFunds
	}

	request := &models.WithdrawalRequest{
		TelegramUserID: telegramID,
		Amount:         amount,
		BankDetails:    user.BankDetails,
		Status:         models.WithdrawalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.CreateWithdrawal(ctx, request); err != nil {
			return err
		}
		withdrawalID := request.ID
		return s.applyDelta(ctx, tx, user, -amount, models.EntryWithdrawalHold, &withdrawalID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit withdrawal for user %d: %w", telegramID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"telegram_id":   telegramID,
		"withdrawal_id": request.ID,
		"amount":        amount,
	}).Info("Withdrawal submitted")

	return request, nil
}

// UpdateWithdrawalStatus moves a request to status and adjusts the owner's
// balance by the difference between the held and released sides.
// Moving a released request back to a holding status fails with
// ErrInsufficientFunds when the owner's balance no longer covers it.
func (s *LedgerService) UpdateWithdrawalStatus(ctx context.Context, id int64, status models.WithdrawalStatus) (*models.WithdrawalRequest, error) {
	if !status.Valid() {
		return nil, apperrors.ErrInvalidStatus
	}

	request, changed, err := s.updateWithdrawalStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if changed {
		switch status {
		case models.WithdrawalApproved:
			s.notify(ctx, request.TelegramUserID, fmt.Sprintf(
				"✅ Your withdrawal of %s has been approved and will be paid to your bank account.",
				helpers.FormatAmount(s.rewards.Currency, request.Amount)))
		case models.WithdrawalRejected:
			s.notify(ctx, request.TelegramUserID, fmt.Sprintf(
				"❌ Your withdrawal of %s was rejected. The amount has been returned to your balance.",
				helpers.FormatAmount(s.rewards.Currency, request.Amount)))
		}
	}

	return request, nil
}

func (s *LedgerService) updateWithdrawalStatus(ctx context.Context, id int64, status models.WithdrawalStatus) (*models.WithdrawalRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var request *models.WithdrawalRequest
	changed := false

	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		w, err := tx.Withdrawal(ctx, id)
		if err != nil {
			return err
		}
		request = w

		previous := w.Status
		if previous == status {
			return nil
		}

		owner, err := tx.TelegramUser(ctx, w.TelegramUserID)
		if err != nil {
			return fmt.Errorf("owner of withdrawal %d: %w", id, err)
		}

		withdrawalID := w.ID
		switch {
		case previous.Holding() && !status.Holding():
			err = s.applyDelta(ctx, tx, owner, w.Amount, models.EntryWithdrawalRelease, &withdrawalID)
		case !previous.Holding() && status.Holding():
			err = s.applyDelta(ctx, tx, owner, -w.Amount, models.EntryWithdrawalHold, &withdrawalID)
		}
		if err != nil {
			return err
		}

		w.Status = status
		w.UpdatedAt = s.now()
		if err := tx.UpdateWithdrawal(ctx, w); err != nil {
			return err
		}
		changed = true

		s.logger.WithFields(logrus.Fields{
			"withdrawal_id": id,
			"from":          previous,
			"to":            status,
		}).Info("Withdrawal status updated")
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return request, changed, nil
}

// ListUsers returns all Telegram users, newest first
func (s *LedgerService) ListUsers(ctx context.Context) ([]models.TelegramUser, error) {
	return s.store.ListTelegramUsers(ctx)
}

// GetUser returns a single Telegram user
func (s *LedgerService) GetUser(ctx context.Context, telegramID int64) (*models.TelegramUser, error) {
	return s.store.TelegramUser(ctx, telegramID)
}

// UserLedger returns the balance movements of a user in order
func (s *LedgerService) UserLedger(ctx context.Context, telegramID int64) ([]models.LedgerEntry, error) {
	return s.store.LedgerEntries(ctx, telegramID)
}

// ListWithdrawals returns the matching requests, newest first, with their owners attached
func (s *LedgerService) ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalView, error) {
	requests, err := s.store.ListWithdrawals(ctx, filter)
	if err != nil {
		return nil, err
	}

	users, err := s.store.ListTelegramUsers(ctx)
	if err != nil {
		return nil, err
	}
	owners := make(map[int64]*models.UserSummary, len(users))
	for i := range users {
		owners[users[i].TelegramID] = users[i].Summary()
	}

	views := make([]models.WithdrawalView, 0, len(requests))
	for _, w := range requests {
		views = append(views, models.WithdrawalView{
			WithdrawalRequest: w,
			User:              owners[w.TelegramUserID],
		})
	}
	return views, nil
}

// GetWithdrawal returns a single request with its owner attached
func (s *LedgerService) GetWithdrawal(ctx context.Context, id int64) (*models.WithdrawalView, error) {
	w, err := s.store.Withdrawal(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &models.WithdrawalView{WithdrawalRequest: *w}
	if owner, err := s.store.TelegramUser(ctx, w.TelegramUserID); err == nil {
		view.User = owner.Summary()
	}
	return view, nil
}

// Stats computes the dashboard figures
func (s *LedgerService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	users, err := s.store.ListTelegramUsers(ctx)
	if err != nil {
		return nil, err
	}
	approved, err := s.store.ListWithdrawals(ctx, models.WithdrawalFilter{Status: models.WithdrawalApproved})
	if err != nil {
		return nil, err
	}
	pending, err := s.store.ListWithdrawals(ctx, models.WithdrawalFilter{Status: models.WithdrawalPending})
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		TotalUsers:         s.display.TotalUsers,
		TotalPayouts:       s.display.TotalPayouts,
		ActualUsers:        int64(len(users)),
		PendingWithdrawals: int64(len(pending)),
	}

	for _, w := range approved {
		stats.ActualPayouts += w.Amount
	}

	since := s.now().Add(-constants.RecentUsersWindow)
	for _, u := range users {
		if u.CreatedAt.After(since) {
			stats.RecentUsers++
		}
	}

	return stats, nil
}

// ResetWithdrawals returns the held amount of every pending request to its
// owner and deletes all withdrawal requests. It returns the number of refunds.
func (s *LedgerService) ResetWithdrawals(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refunded := 0
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		refunded = 0
		pending, err := tx.ListWithdrawals(ctx, models.WithdrawalFilter{Status: models.WithdrawalPending})
		if err != nil {
			return err
		}

		for _, w := range pending {
			owner, err := tx.TelegramUser(ctx, w.TelegramUserID)
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			withdrawalID := w.ID
			if err := s.applyDelta(ctx, tx, owner, w.Amount, models.EntryWithdrawalRelease, &withdrawalID); err != nil {
				return err
			}
			refunded++
		}

		return tx.DeleteWithdrawals(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset withdrawals: %w", err)
	}

	s.logger.Infof("Withdrawals reset, %d pending requests refunded", refunded)
	return refunded, nil
}

// ResetAllData deletes Telegram users, withdrawal requests and ledger entries.
// Admin accounts and sessions are kept.
func (s *LedgerService) ResetAllData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ResetAll(ctx); err != nil {
		return fmt.Errorf("failed to reset data: %w", err)
	}

	s.logger.Warn("All user data has been reset")
	return nil
}

// applyDelta changes the balance of user by amount and records the ledger entry
func (s *LedgerService) applyDelta(ctx context.Context, tx storage.Store, user *models.TelegramUser, amount int64, kind models.EntryKind, withdrawalID *int64) error {
	if user.Balance+amount < 0 {
		return apperrors.ErrInsufficientFunds
	}

	user.Balance += amount
	if err := tx.UpdateTelegramUser(ctx, user); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}

	entry := &models.LedgerEntry{
		TelegramID:   user.TelegramID,
		Kind:         kind,
		Amount:       amount,
		WithdrawalID: withdrawalID,
		CreatedAt:    s.now(),
	}
	if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"telegram_id": user.TelegramID,
		"kind":        kind,
		"amount":      amount,
		"balance":     user.Balance,
	}).Debug("Balance changed")
	return nil
}

func (s *LedgerService) notify(ctx context.Context, telegramID int64, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, telegramID, text); err != nil {
		s.logger.Warnf("Failed to notify user %d: %v", telegramID, err)
	}
}
