package repository

import (
	"github.com/cardlinkhq/cardlink/app/models"
	"gorm.io/gorm"
)

type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository instance
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

// MembershipsOf returns all organization memberships of a user.
func (r *organizationRepository) MembershipsOf(userID uint) ([]models.OrganizationMembership, error) {
	var memberships []models.OrganizationMembership
	err := r.db.Where("user_id = ?", userID).Find(&memberships).Error
	return memberships, err
}

// OwnersOf returns the owner user of each given organization.
func (r *organizationRepository) OwnersOf(orgIDs []uint) ([]models.User, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	var owners []models.User
	err := r.db.
		Joins("JOIN organization_memberships ON organization_memberships.user_id = users.id").
		Where("organization_memberships.org_id IN ? AND organization_memberships.role = ?", orgIDs, models.OrgRoleOwner).
		Find(&owners).Error
	return owners, err
}
