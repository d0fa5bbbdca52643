package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"referral-tg-admin/internal/models"
)

type ledgerService interface {
	ListUsers(ctx context.Context) ([]models.TelegramUser, error)
	GetUser(ctx context.Context, telegramID int64) (*models.TelegramUser, error)
	UserLedger(ctx context.Context, telegramID int64) ([]models.LedgerEntry, error)
	ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalView, error)
	GetWithdrawal(ctx context.Context, id int64) (*models.WithdrawalView, error)
	UpdateWithdrawalStatus(ctx context.Context, id int64, status models.WithdrawalStatus) (*models.WithdrawalRequest, error)
	Stats(ctx context.Context) (*models.DashboardStats, error)
	ResetWithdrawals(ctx context.Context) (int, error)
	ResetAllData(ctx context.Context) error
}

type authService interface {
	Login(ctx context.Context, username, password string) (string, *models.AdminUser, error)
	Authenticate(ctx context.Context, token string) (*models.AdminUser, *models.Session, error)
	Logout(ctx context.Context, token string) error
}

// Server exposes the admin HTTP API
type Server struct {
	ledger ledgerService
	auth   authService
	logger *logrus.Logger
}

// NewServer creates a new admin API server
func NewServer(ledger ledgerService, auth authService, logger *logrus.Logger) *Server {
	return &Server{
		ledger: ledger,
		auth:   auth,
		logger: logger,
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(withRequestLog(s.logger))

	api := r.Group("/api")
	api.GET("/health", s.health)

	auth := api.Group("/auth")
	auth.POST("/login", s.login)
	auth.GET("/me", withAuth(s.auth, s.logger), s.me)
	auth.POST("/logout", withAuth(s.auth, s.logger), s.logout)

	admin := api.Group("/admin", withAuth(s.auth, s.logger), requireAdmin(s.logger))
	admin.GET("/stats", s.stats)
	admin.GET("/users", s.users)
	admin.GET("/users/:telegramId", s.user)
	admin.GET("/withdrawals", s.withdrawals)
	admin.POST("/withdrawals/update", s.updateWithdrawal)
	admin.POST("/reset-withdrawals", s.resetWithdrawals)
	admin.POST("/reset-all-data", s.resetAllData)

	return r
}
