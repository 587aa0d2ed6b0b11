package repository

import (
	"github.com/cardlinkhq/cardlink/app/models"
)

// UserRepository defines the interface for user data operations. Account
// creation happens outside this subsystem, so there is no Create here.
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	UpdatePlan(userID uint, plan string) error
	ListNonFree() ([]models.User, error)
}

// OrganizationRepository exposes the two membership reads the entitlement
// resolver depends on; everything else about orgs lives outside this service.
type OrganizationRepository interface {
	MembershipsOf(userID uint) ([]models.OrganizationMembership, error)
	OwnersOf(orgIDs []uint) ([]models.User, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User         UserRepository
	Organization OrganizationRepository
}
