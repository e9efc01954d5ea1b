package repositories

import (
	"healthpay/internal/models"
)

// UserRepository defines user persistence.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByMemberID(memberID string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByPhone(phone string) (*models.User, error)
	Update(user *models.User) error
	IncrementTokenVersion(userID uint) error
	GetTokenVersion(userID uint) (int, error)
	GetByRoles(roles []string) ([]models.User, error)
}
