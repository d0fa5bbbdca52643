package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"referral-tg-admin/internal/constants"
	"referral-tg-admin/internal/models"
)

// UserStateService tracks which input the bot is waiting for from each user.
// States expire after constants.CacheExpiration minutes of inactivity.
type UserStateService struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewUserStateService creates a new user state service
func NewUserStateService(logger *logrus.Logger) *UserStateService {
	return &UserStateService{
		cache:  cache.New(constants.CacheExpiration*time.Minute, constants.CacheCleanupInterval*time.Minute),
		logger: logger,
	}
}

func stateKey(telegramID int64) string {
	return fmt.Sprintf("conversation_%d", telegramID)
}

// GetState returns the conversation of a user, Default when none is stored
func (s *UserStateService) GetState(telegramID int64) (*models.UserState, error) {
	data, found := s.cache.Get(stateKey(telegramID))
	if !found {
		return &models.UserState{State: models.Default}, nil
	}

	state, ok := data.(models.UserState)
	if !ok {
		return nil, fmt.Errorf("invalid conversation state type for user %d", telegramID)
	}
	return &state, nil
}

// SetState stores the conversation of a user
func (s *UserStateService) SetState(telegramID int64, state models.UserState) error {
	if state.State == models.Default {
		return s.ClearState(telegramID)
	}

	s.cache.Set(stateKey(telegramID), state, cache.DefaultExpiration)
	s.logger.WithFields(logrus.Fields{
		"telegram_id": telegramID,
		"state":       state.State,
		"resume":      state.Resume,
	}).Debug("Conversation state changed")
	return nil
}

// ClearState drops any pending input of a user
func (s *UserStateService) ClearState(telegramID int64) error {
	s.cache.Delete(stateKey(telegramID))
	s.logger.Debugf("Cleared conversation state for user %d", telegramID)
	return nil
}

// AwaitBankDetails waits for bank details, continuing with resume once they are saved
func (s *UserStateService) AwaitBankDetails(telegramID int64, resume models.ConversationState) error {
	return s.SetState(telegramID, models.UserState{State: models.AwaitingBankDetails, Resume: resume})
}

// AwaitWithdrawalAmount waits for the amount of a withdrawal request
func (s *UserStateService) AwaitWithdrawalAmount(telegramID int64) error {
	return s.SetState(telegramID, models.UserState{State: models.AwaitingWithdrawalAmount})
}

// CompleteInput clears the awaited input and returns the flow to resume
func (s *UserStateService) CompleteInput(telegramID int64) (models.ConversationState, error) {
	state, err := s.GetState(telegramID)
	if err != nil {
		return models.Default, err
	}
	if err := s.ClearState(telegramID); err != nil {
		return models.Default, err
	}
	return state.Resume, nil
}
