package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
)

type adminResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

func newAdminResponse(admin *models.AdminUser) adminResponse {
	return adminResponse{ID: admin.ID, Username: admin.Username, IsAdmin: admin.IsAdmin}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string        `json:"token"`
	User  adminResponse `json:"user"`
}

type userResponse struct {
	User        *models.TelegramUser    `json:"user"`
	Ledger      []models.LedgerEntry    `json:"ledger"`
	Withdrawals []models.WithdrawalView `json:"withdrawals"`
}

type updateWithdrawalRequest struct {
	ID     int64  `json:"id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// writeError maps domain errors onto HTTP statuses
func (s *Server) writeError(c *gin.Context, err error) {
	var validationErr *apperrors.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"message": validationErr.Message})
	case errors.Is(err, apperrors.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errors.Is(err, apperrors.ErrInsufficientFunds), errors.Is(err, apperrors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	default:
		s.logger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}

	token, admin, err := s.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{Token: token, User: newAdminResponse(admin)})
}

func (s *Server) me(c *gin.Context) {
	admin := c.MustGet(adminKey).(*models.AdminUser)
	c.JSON(http.StatusOK, newAdminResponse(admin))
}

func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.ledger.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) users(c *gin.Context) {
	users, err := s.ledger.ListUsers(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if users == nil {
		users = []models.TelegramUser{}
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) user(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Param("telegramId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid telegram id"})
		return
	}

	ctx := c.Request.Context()
	user, err := s.ledger.GetUser(ctx, telegramID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	entries, err := s.ledger.UserLedger(ctx, telegramID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	withdrawals, err := s.ledger.ListWithdrawals(ctx, models.WithdrawalFilter{TelegramID: telegramID})
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := userResponse{User: user, Ledger: entries, Withdrawals: withdrawals}
	if resp.Ledger == nil {
		resp.Ledger = []models.LedgerEntry{}
	}
	if resp.Withdrawals == nil {
		resp.Withdrawals = []models.WithdrawalView{}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) withdrawals(c *gin.Context) {
	status := models.WithdrawalStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		s.writeError(c, apperrors.ErrInvalidStatus)
		return
	}

	views, err := s.ledger.ListWithdrawals(c.Request.Context(), models.WithdrawalFilter{Status: status})
	if err != nil {
		s.writeError(c, err)
		return
	}
	if views == nil {
		views = []models.WithdrawalView{}
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) updateWithdrawal(c *gin.Context) {
	var req updateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "id and status are required"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.ledger.UpdateWithdrawalStatus(ctx, req.ID, models.WithdrawalStatus(req.Status)); err != nil {
		s.writeError(c, err)
		return
	}

	view, err := s.ledger.GetWithdrawal(ctx, req.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	admin := c.MustGet(adminKey).(*models.AdminUser)
	s.logger.Infof("Admin %s set withdrawal %d to %s", admin.Username, req.ID, req.Status)
	c.JSON(http.StatusOK, view)
}

func (s *Server) resetWithdrawals(c *gin.Context) {
	refunded, err := s.ledger.ResetWithdrawals(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All withdrawal requests have been reset", "refunded": refunded})
}

func (s *Server) resetAllData(c *gin.Context) {
	if err := s.ledger.ResetAllData(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All data has been reset"})
}
