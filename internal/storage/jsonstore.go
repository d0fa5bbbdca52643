package storage

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
)

// StorageData represents the JSON structure stored in the data file
type StorageData struct {
	AdminUsers    []models.AdminUser         `json:"admin_users"`
	Sessions      []models.Session           `json:"sessions"`
	TelegramUsers []models.TelegramUser      `json:"telegram_users"`
	Withdrawals   []models.WithdrawalRequest `json:"withdrawals"`
	LedgerEntries []models.LedgerEntry       `json:"ledger_entries"`
	Sequences     Sequences                  `json:"sequences"`
}

// Sequences holds the last ID issued per collection
type Sequences struct {
	AdminUser    int64 `json:"admin_user"`
	Session      int64 `json:"session"`
	TelegramUser int64 `json:"telegram_user"`
	Withdrawal   int64 `json:"withdrawal"`
	LedgerEntry  int64 `json:"ledger_entry"`
}

// JSONStore keeps all records in memory and persists them to a JSON file.
// An empty filename keeps the data in memory only.
type JSONStore struct {
	filename string
	state    *jsonState
	mu       sync.RWMutex
	logger   *logrus.Logger
}

// NewJSONStore creates a new JSON file store
func NewJSONStore(filename string, logger *logrus.Logger) (*JSONStore, error) {
	s := &JSONStore{
		filename: filename,
		state:    &jsonState{data: &StorageData{}},
		logger:   logger,
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Load reads data from JSON file
func (s *JSONStore) Load() error {
	if s.filename == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filename)
	if os.IsNotExist(err) {
		s.logger.Info("Storage file does not exist, starting with empty data")
		return nil
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, s.state.data)
}

// save is an internal method that assumes the mutex is already locked
func (s *JSONStore) save() error {
	if s.filename == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.state.data, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpFile, s.filename)
}

func (s *JSONStore) read(fn func(st *jsonState) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *JSONStore) write(fn func(st *jsonState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.state); err != nil {
		return err
	}
	return s.save()
}

// WithTx runs fn with the store locked. On error the in-memory data is
// restored from a snapshot taken before fn ran.
func (s *JSONStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, err := cloneData(s.state.data)
	if err != nil {
		return err
	}

	if err := fn(s.state); err != nil {
		s.state.data = snapshot
		return err
	}

	if err := s.save(); err != nil {
		s.state.data = snapshot
		return err
	}
	return nil
}

// Close flushes the data file
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

func (s *JSONStore) AdminByUsername(ctx context.Context, username string) (admin *models.AdminUser, err error) {
	err = s.read(func(st *jsonState) error { admin, err = st.AdminByUsername(ctx, username); return err })
	return admin, err
}

func (s *JSONStore) AdminByID(ctx context.Context, id int64) (admin *models.AdminUser, err error) {
	err = s.read(func(st *jsonState) error { admin, err = st.AdminByID(ctx, id); return err })
	return admin, err
}

func (s *JSONStore) CreateAdmin(ctx context.Context, admin *models.AdminUser) error {
	return s.write(func(st *jsonState) error { return st.CreateAdmin(ctx, admin) })
}

func (s *JSONStore) CreateSession(ctx context.Context, session *models.Session) error {
	return s.write(func(st *jsonState) error { return st.CreateSession(ctx, session) })
}

func (s *JSONStore) SessionByTokenID(ctx context.Context, tokenID string) (session *models.Session, err error) {
	err = s.read(func(st *jsonState) error { session, err = st.SessionByTokenID(ctx, tokenID); return err })
	return session, err
}

func (s *JSONStore) DeleteSession(ctx context.Context, tokenID string) error {
	return s.write(func(st *jsonState) error { return st.DeleteSession(ctx, tokenID) })
}

func (s *JSONStore) TelegramUser(ctx context.Context, telegramID int64) (user *models.TelegramUser, err error) {
	err = s.read(func(st *jsonState) error { user, err = st.TelegramUser(ctx, telegramID); return err })
	return user, err
}

func (s *JSONStore) CreateTelegramUser(ctx context.Context, user *models.TelegramUser) error {
	return s.write(func(st *jsonState) error { return st.CreateTelegramUser(ctx, user) })
}

func (s *JSONStore) UpdateTelegramUser(ctx context.Context, user *models.TelegramUser) error {
	return s.write(func(st *jsonState) error { return st.UpdateTelegramUser(ctx, user) })
}

func (s *JSONStore) ListTelegramUsers(ctx context.Context) (users []models.TelegramUser, err error) {
	err = s.read(func(st *jsonState) error { users, err = st.ListTelegramUsers(ctx); return err })
	return users, err
}

func (s *JSONStore) CreateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	return s.write(func(st *jsonState) error { return st.CreateWithdrawal(ctx, w) })
}

func (s *JSONStore) Withdrawal(ctx context.Context, id int64) (w *models.WithdrawalRequest, err error) {
	err = s.read(func(st *jsonState) error { w, err = st.Withdrawal(ctx, id); return err })
	return w, err
}

func (s *JSONStore) UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	return s.write(func(st *jsonState) error { return st.UpdateWithdrawal(ctx, w) })
}

func (s *JSONStore) ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) (list []models.WithdrawalRequest, err error) {
	err = s.read(func(st *jsonState) error { list, err = st.ListWithdrawals(ctx, filter); return err })
	return list, err
}

func (s *JSONStore) DeleteWithdrawals(ctx context.Context) error {
	return s.write(func(st *jsonState) error { return st.DeleteWithdrawals(ctx) })
}

func (s *JSONStore) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return s.write(func(st *jsonState) error { return st.AppendLedgerEntry(ctx, entry) })
}

func (s *JSONStore) LedgerEntries(ctx context.Context, telegramID int64) (entries []models.LedgerEntry, err error) {
	err = s.read(func(st *jsonState) error { entries, err = st.LedgerEntries(ctx, telegramID); return err })
	return entries, err
}

func (s *JSONStore) ResetAll(ctx context.Context) error {
	return s.write(func(st *jsonState) error { return st.ResetAll(ctx) })
}

// jsonState implements Store over the in-memory data without locking.
// Callers hold the JSONStore mutex.
type jsonState struct {
	data *StorageData
}

func (st *jsonState) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return fn(st)
}

func (st *jsonState) Close() error {
	return nil
}

func (st *jsonState) AdminByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	username = strings.ToLower(username)
	for _, admin := range st.data.AdminUsers {
		if admin.Username == username {
			a := admin
			return &a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (st *jsonState) AdminByID(_ context.Context, id int64) (*models.AdminUser, error) {
	for _, admin := range st.data.AdminUsers {
		if admin.ID == id {
			a := admin
			return &a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (st *jsonState) CreateAdmin(ctx context.Context, admin *models.AdminUser) error {
	admin.Username = strings.ToLower(admin.Username)
	if _, err := st.AdminByUsername(ctx, admin.Username); err == nil {
		return apperrors.ErrAlreadyExists
	}

	st.data.Sequences.AdminUser++
	admin.ID = st.data.Sequences.AdminUser
	st.data.AdminUsers = append(st.data.AdminUsers, *admin)
	return nil
}

func (st *jsonState) CreateSession(_ context.Context, session *models.Session) error {
	for _, existing := range st.data.Sessions {
		if existing.TokenID == session.TokenID {
			return apperrors.ErrAlreadyExists
		}
	}

	st.data.Sequences.Session++
	session.ID = st.data.Sequences.Session
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	st.data.Sessions = append(st.data.Sessions, *session)
	return nil
}

func (st *jsonState) SessionByTokenID(_ context.Context, tokenID string) (*models.Session, error) {
	for _, session := range st.data.Sessions {
		if session.TokenID == tokenID {
			s := session
			return &s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (st *jsonState) DeleteSession(_ context.Context, tokenID string) error {
	for i, session := range st.data.Sessions {
		if session.TokenID == tokenID {
			st.data.Sessions = append(st.data.Sessions[:i], st.data.Sessions[i+1:]...)
			return nil
		}
	}
	return nil
}

func (st *jsonState) telegramUserIndex(telegramID int64) int {
	for i, user := range st.data.TelegramUsers {
		if user.TelegramID == telegramID {
			return i
		}
	}
	return -1
}

func (st *jsonState) TelegramUser(_ context.Context, telegramID int64) (*models.TelegramUser, error) {
	i := st.telegramUserIndex(telegramID)
	if i < 0 {
		return nil, apperrors.ErrNotFound
	}
	user := st.data.TelegramUsers[i]
	return &user, nil
}

func (st *jsonState) CreateTelegramUser(_ context.Context, user *models.TelegramUser) error {
	if st.telegramUserIndex(user.TelegramID) >= 0 {
		return apperrors.ErrAlreadyExists
	}

	st.data.Sequences.TelegramUser++
	user.ID = st.data.Sequences.TelegramUser
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	st.data.TelegramUsers = append(st.data.TelegramUsers, *user)
	return nil
}

func (st *jsonState) UpdateTelegramUser(_ context.Context, user *models.TelegramUser) error {
	i := st.telegramUserIndex(user.TelegramID)
	if i < 0 {
		return apperrors.ErrNotFound
	}
	updated := *user
	updated.ID = st.data.TelegramUsers[i].ID
	updated.CreatedAt = st.data.TelegramUsers[i].CreatedAt
	st.data.TelegramUsers[i] = updated
	return nil
}

func (st *jsonState) ListTelegramUsers(_ context.Context) ([]models.TelegramUser, error) {
	users := make([]models.TelegramUser, len(st.data.TelegramUsers))
	copy(users, st.data.TelegramUsers)
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (st *jsonState) withdrawalIndex(id int64) int {
	for i, w := range st.data.Withdrawals {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func (st *jsonState) CreateWithdrawal(_ context.Context, w *models.WithdrawalRequest) error {
	st.data.Sequences.Withdrawal++
	w.ID = st.data.Sequences.Withdrawal
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = w.CreatedAt
	}
	st.data.Withdrawals = append(st.data.Withdrawals, *w)
	return nil
}

func (st *jsonState) Withdrawal(_ context.Context, id int64) (*models.WithdrawalRequest, error) {
	i := st.withdrawalIndex(id)
	if i < 0 {
		return nil, apperrors.ErrNotFound
	}
	w := st.data.Withdrawals[i]
	return &w, nil
}

func (st *jsonState) UpdateWithdrawal(_ context.Context, w *models.WithdrawalRequest) error {
	i := st.withdrawalIndex(w.ID)
	if i < 0 {
		return apperrors.ErrNotFound
	}
	updated := *w
	updated.CreatedAt = st.data.Withdrawals[i].CreatedAt
	st.data.Withdrawals[i] = updated
	return nil
}

func (st *jsonState) ListWithdrawals(_ context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	list := make([]models.WithdrawalRequest, 0)
	for i := range st.data.Withdrawals {
		if filter.Match(&st.data.Withdrawals[i]) {
			list = append(list, st.data.Withdrawals[i])
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (st *jsonState) DeleteWithdrawals(_ context.Context) error {
	st.data.Withdrawals = nil
	return nil
}

func (st *jsonState) AppendLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	st.data.Sequences.LedgerEntry++
	entry.ID = st.data.Sequences.LedgerEntry
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	st.data.LedgerEntries = append(st.data.LedgerEntries, *entry)
	return nil
}

func (st *jsonState) LedgerEntries(_ context.Context, telegramID int64) ([]models.LedgerEntry, error) {
	entries := make([]models.LedgerEntry, 0)
	for _, entry := range st.data.LedgerEntries {
		if entry.TelegramID == telegramID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (st *jsonState) ResetAll(_ context.Context) error {
	st.data.TelegramUsers = nil
	st.data.Withdrawals = nil
	st.data.LedgerEntries = nil
	return nil
}

func cloneData(data *StorageData) (*StorageData, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	clone := &StorageData{}
	if err := json.Unmarshal(raw, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

var _ Store = (*JSONStore)(nil)
