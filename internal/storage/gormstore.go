package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
)

// GormStore is a Store backed by a SQL database through gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened database
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables
func (g *GormStore) Migrate() error {
	return g.db.AutoMigrate(allModels()...)
}

func (g *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (g *GormStore) AdminByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	var m adminModel
	err := g.db.WithContext(ctx).Where("username = ?", strings.ToLower(username)).First(&m).Error
	if err != nil {
		return nil, translate(err, "fetching admin user")
	}
	return mapAdminToDomain(m), nil
}

func (g *GormStore) AdminByID(ctx context.Context, id int64) (*models.AdminUser, error) {
	var m adminModel
	if err := g.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err, "fetching admin user")
	}
	return mapAdminToDomain(m), nil
}

func (g *GormStore) CreateAdmin(ctx context.Context, admin *models.AdminUser) error {
	m := adminModel{
		Username:     strings.ToLower(admin.Username),
		PasswordHash: admin.PasswordHash,
		IsAdmin:      admin.IsAdmin,
	}
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err, "creating admin user")
	}
	admin.ID = m.ID
	admin.Username = m.Username
	return nil
}

func (g *GormStore) CreateSession(ctx context.Context, session *models.Session) error {
	m := sessionModel{
		UserID:    session.UserID,
		TokenID:   session.TokenID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err, "creating session")
	}
	session.ID = m.ID
	session.CreatedAt = m.CreatedAt
	return nil
}

func (g *GormStore) SessionByTokenID(ctx context.Context, tokenID string) (*models.Session, error) {
	var m sessionModel
	if err := g.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&m).Error; err != nil {
		return nil, translate(err, "fetching session")
	}
	return mapSessionToDomain(m), nil
}

func (g *GormStore) DeleteSession(ctx context.Context, tokenID string) error {
	err := g.db.WithContext(ctx).Where("token_id = ?", tokenID).Delete(&sessionModel{}).Error
	return translate(err, "deleting session")
}

func (g *GormStore) TelegramUser(ctx context.Context, telegramID int64) (*models.TelegramUser, error) {
	var m telegramUserModel
	if err := g.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&m).Error; err != nil {
		return nil, translate(err, "fetching telegram user")
	}
	user := mapTelegramUserToDomain(m)
	return &user, nil
}

func (g *GormStore) CreateTelegramUser(ctx context.Context, user *models.TelegramUser) error {
	m := mapTelegramUserToModel(*user)
	m.ID = 0
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err, "creating telegram user")
	}
	user.ID = m.ID
	user.CreatedAt = m.CreatedAt
	return nil
}

func (g *GormStore) UpdateTelegramUser(ctx context.Context, user *models.TelegramUser) error {
	m := mapTelegramUserToModel(*user)
	m.ID = 0
	result := g.db.WithContext(ctx).
		Model(&telegramUserModel{}).
		Where("telegram_id = ?", user.TelegramID).
		Select("*").
		Omit("id", "telegram_id", "created_at").
		Updates(&m)
	if result.Error != nil {
		return translate(result.Error, "updating telegram user")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (g *GormStore) ListTelegramUsers(ctx context.Context) ([]models.TelegramUser, error) {
	var list []telegramUserModel
	if err := g.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, translate(err, "listing telegram users")
	}
	users := make([]models.TelegramUser, 0, len(list))
	for _, m := range list {
		users = append(users, mapTelegramUserToDomain(m))
	}
	return users, nil
}

func (g *GormStore) CreateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	m := mapWithdrawalToModel(*w)
	m.ID = 0
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err, "creating withdrawal")
	}
	w.ID = m.ID
	w.CreatedAt = m.CreatedAt
	w.UpdatedAt = m.UpdatedAt
	return nil
}

func (g *GormStore) Withdrawal(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	var m withdrawalModel
	if err := g.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err, "fetching withdrawal")
	}
	w := mapWithdrawalToDomain(m)
	return &w, nil
}

func (g *GormStore) UpdateWithdrawal(ctx context.Context, w *models.WithdrawalRequest) error {
	m := mapWithdrawalToModel(*w)
	result := g.db.WithContext(ctx).
		Model(&withdrawalModel{}).
		Where("id = ?", w.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(&m)
	if result.Error != nil {
		return translate(result.Error, "updating withdrawal")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (g *GormStore) ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalRequest, error) {
	query := g.db.WithContext(ctx).Order("id DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.TelegramID != 0 {
		query = query.Where("telegram_user_id = ?", filter.TelegramID)
	}

	var list []withdrawalModel
	if err := query.Find(&list).Error; err != nil {
		return nil, translate(err, "listing withdrawals")
	}
	out := make([]models.WithdrawalRequest, 0, len(list))
	for _, m := range list {
		out = append(out, mapWithdrawalToDomain(m))
	}
	return out, nil
}

func (g *GormStore) DeleteWithdrawals(ctx context.Context) error {
	err := g.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&withdrawalModel{}).Error
	return translate(err, "deleting withdrawals")
}

func (g *GormStore) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	m := ledgerEntryModel{
		TelegramID:   entry.TelegramID,
		Kind:         string(entry.Kind),
		Amount:       entry.Amount,
		WithdrawalID: entry.WithdrawalID,
		CreatedAt:    entry.CreatedAt,
	}
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate(err, "appending ledger entry")
	}
	entry.ID = m.ID
	entry.CreatedAt = m.CreatedAt
	return nil
}

func (g *GormStore) LedgerEntries(ctx context.Context, telegramID int64) ([]models.LedgerEntry, error) {
	var list []ledgerEntryModel
	if err := g.db.WithContext(ctx).Where("telegram_id = ?", telegramID).Order("id ASC").Find(&list).Error; err != nil {
		return nil, translate(err, "listing ledger entries")
	}
	entries := make([]models.LedgerEntry, 0, len(list))
	for _, m := range list {
		entries = append(entries, mapLedgerEntryToDomain(m))
	}
	return entries, nil
}

func (g *GormStore) ResetAll(ctx context.Context) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tx = tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []interface{}{&ledgerEntryModel{}, &withdrawalModel{}, &telegramUserModel{}} {
			if err := tx.Delete(model).Error; err != nil {
				return translate(err, "resetting data")
			}
		}
		return nil
	})
}

// translate maps driver errors to the store sentinel errors
func translate(err error, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrAlreadyExists
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return apperrors.ErrAlreadyExists
	}
	return fmt.Errorf("error %s: %w", operation, err)
}

var _ Store = (*GormStore)(nil)
