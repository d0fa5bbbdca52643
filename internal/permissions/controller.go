package permissions

import (
	"github.com/sirupsen/logrus"
)

// AccessType represents the access level of a user
type AccessType int

const (
	// None represents no access
	None AccessType = iota
	// Admin represents a Telegram administrator of the rewards program
	Admin
	// Member represents every other bot user
	Member
)

// String returns the access type name used in logs
func (a AccessType) String() string {
	switch a {
	case Admin:
		return "admin"
	case Member:
		return "member"
	default:
		return "none"
	}
}

// PermissionController manages user permissions
type PermissionController struct {
	adminIDs map[int64]bool
	admins   []int64
	logger   *logrus.Logger
}

// NewController creates a new permission controller
func NewController(adminIDs []int64, logger *logrus.Logger) *PermissionController {
	// Create a map for O(1) lookup of admin IDs
	adminIDMap := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		adminIDMap[id] = true
	}

	logger.Infof("Initialized permission controller with %d admins", len(adminIDs))

	return &PermissionController{
		adminIDs: adminIDMap,
		admins:   adminIDs,
		logger:   logger,
	}
}

// GetAccessType determines the access type of a user
func (p *PermissionController) GetAccessType(userID int64) AccessType {
	if userID == 0 {
		return None
	}
	if p.IsAdmin(userID) {
		return Admin
	}
	return Member
}

// IsAdmin checks if a user is an admin
func (p *PermissionController) IsAdmin(userID int64) bool {
	isAdmin := p.adminIDs[userID]
	p.logger.Debugf("Checking if user %d is admin: %v", userID, isAdmin)
	return isAdmin
}

// AdminIDs returns the configured admin Telegram IDs
func (p *PermissionController) AdminIDs() []int64 {
	return p.admins
}
