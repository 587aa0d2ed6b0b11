package repository

import (
	"strings"

	"github.com/cardlinkhq/cardlink/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", strings.TrimSpace(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePlan writes the denormalized plan cache for a user. Only the payments
// reconciler, admin grant and expiry sweep may call this.
func (r *userRepository) UpdatePlan(userID uint, plan string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).Update("plan", plan).Error
}

// ListNonFree returns all users whose stored plan is above free.
func (r *userRepository) ListNonFree() ([]models.User, error) {
	var users []models.User
	err := r.db.Where("plan <> ?", "free").Find(&users).Error
	return users, err
}
