package adminclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"referral-tg-admin/internal/constants"
	apperrors "referral-tg-admin/internal/errors"
	"referral-tg-admin/internal/models"
)

const tokenCacheKey = "token"

// Client talks to the admin HTTP API
type Client struct {
	httpClient *resty.Client
	baseURL    string
	username   string
	password   string
	tokenCache *cache.Cache
	logger     *logrus.Logger
}

type errorResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// HealthStatus is the body of the health endpoint
type HealthStatus struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// ResetResult is the body of the reset-withdrawals endpoint
type ResetResult struct {
	Message  string `json:"message"`
	Refunded int    `json:"refunded"`
}

// NewClient creates a new admin API client
func NewClient(baseURL, username, password string, logger *logrus.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(constants.DefaultTimeout * time.Second).
		SetRetryCount(constants.DefaultRetryCount).
		SetRetryWaitTime(constants.DefaultRetryWaitTime * time.Second).
		SetRetryMaxWaitTime(constants.DefaultRetryMaxWaitTime * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   password,
		tokenCache: cache.New(constants.CacheExpiration*time.Minute, constants.CacheCleanupInterval*time.Minute),
		logger:     logger,
	}
}

// Login obtains a token unless a cached one is available
func (c *Client) Login(ctx context.Context) (string, error) {
	if token, found := c.tokenCache.Get(tokenCacheKey); found {
		return token.(string), nil
	}

	c.logger.Infof("Logging in to admin API at %s", c.baseURL)

	var result loginResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"username": c.username,
			"password": c.password,
		}).
		SetResult(&result).
		SetError(&errorResponse{}).
		Post(c.baseURL + "/api/auth/login")
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	if resp.IsError() {
		return "", newAPIError("login", resp)
	}
	if result.Token == "" {
		return "", fmt.Errorf("no token received from server")
	}

	c.tokenCache.Set(tokenCacheKey, result.Token, cache.DefaultExpiration)
	c.logger.Info("Successfully logged in to admin API")
	return result.Token, nil
}

// Logout revokes the cached token
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, "logout", http.MethodPost, "/api/auth/logout", nil, nil)
	c.tokenCache.Delete(tokenCacheKey)
	return err
}

// Health checks the health endpoint; it needs no credentials
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var result HealthStatus
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&errorResponse{}).
		Get(c.baseURL + "/api/health")
	if err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	if resp.IsError() {
		return nil, newAPIError("health", resp)
	}
	return &result, nil
}

// Stats returns the dashboard figures
func (c *Client) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := c.do(ctx, "stats", http.MethodGet, "/api/admin/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Users lists every Telegram user
func (c *Client) Users(ctx context.Context) ([]models.TelegramUser, error) {
	var users []models.TelegramUser
	if err := c.do(ctx, "list users", http.MethodGet, "/api/admin/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Withdrawals lists withdrawal requests, optionally narrowed to a status
func (c *Client) Withdrawals(ctx context.Context, status models.WithdrawalStatus) ([]models.WithdrawalView, error) {
	path := "/api/admin/withdrawals"
	if status != "" {
		path += "?status=" + string(status)
	}

	var views []models.WithdrawalView
	if err := c.do(ctx, "list withdrawals", http.MethodGet, path, nil, &views); err != nil {
		return nil, err
	}
	return views, nil
}

// UpdateWithdrawal moves a withdrawal request to status
func (c *Client) UpdateWithdrawal(ctx context.Context, id int64, status models.WithdrawalStatus) (*models.WithdrawalView, error) {
	body := map[string]interface{}{
		"id":     id,
		"status": status,
	}

	var view models.WithdrawalView
	if err := c.do(ctx, "update withdrawal", http.MethodPost, "/api/admin/withdrawals/update", body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// ResetWithdrawals refunds pending requests and deletes every request
func (c *Client) ResetWithdrawals(ctx context.Context) (*ResetResult, error) {
	var result ResetResult
	if err := c.do(ctx, "reset withdrawals", http.MethodPost, "/api/admin/reset-withdrawals", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ResetAllData deletes all user data
func (c *Client) ResetAllData(ctx context.Context) error {
	return c.do(ctx, "reset all data", http.MethodPost, "/api/admin/reset-all-data", nil, nil)
}

// do sends an authenticated request, logging in again once when the token is rejected
func (c *Client) do(ctx context.Context, operation, method, path string, body, result interface{}) error {
	for attempt := 0; ; attempt++ {
		token, err := c.Login(ctx)
		if err != nil {
			return err
		}

		req := c.httpClient.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetError(&errorResponse{})
		if body != nil {
			req.SetBody(body)
		}
		if result != nil {
			req.SetResult(result)
		}

		resp, err := req.Execute(method, c.baseURL+path)
		if err != nil {
			return fmt.Errorf("%s request failed: %w", operation, err)
		}

		status := resp.StatusCode()
		if (status == http.StatusUnauthorized || status == http.StatusForbidden) && attempt == 0 {
			c.logger.Debugf("Token rejected during %s, logging in again", operation)
			c.tokenCache.Delete(tokenCacheKey)
			continue
		}
		if resp.IsError() {
			return newAPIError(operation, resp)
		}
		return nil
	}
}

func newAPIError(operation string, resp *resty.Response) error {
	message := strings.TrimSpace(string(resp.Body()))
	if e, ok := resp.Error().(*errorResponse); ok && e.Message != "" {
		message = e.Message
	}
	return &apperrors.APIError{Operation: operation, Status: resp.StatusCode(), Message: message}
}
