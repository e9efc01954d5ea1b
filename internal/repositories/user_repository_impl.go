package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"healthpay/internal/models"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	ctx := context.Background()
	if CacheService != nil {
		key := CacheService.GenerateKey("user", "id", id)
		if cached, err := CacheService.GetUser(ctx, key); err == nil && cached != nil {
			return cached, nil
		}
	}

	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if CacheService != nil {
		_ = CacheService.CacheUser(ctx, &user)
	}
	return &user, nil
}

func (r *userRepository) GetByMemberID(memberID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("member_id = ?", memberID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByPhone(phone string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("phone = ?", phone).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return err
	}
	if CacheService != nil {
		_ = CacheService.InvalidateUser(context.Background(), user.ID)
	}
	return nil
}

func (r *userRepository) IncrementTokenVersion(userID uint) error {
	result := r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("token_version", gorm.Expr("token_version + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	if CacheService != nil {
		_ = CacheService.InvalidateUser(context.Background(), userID)
	}
	return nil
}

func (r *userRepository) GetTokenVersion(userID uint) (int, error) {
	user, err := r.GetByID(userID)
	if err != nil {
		return 0, err
	}
	return user.TokenVersion, nil
}

func (r *userRepository) GetByRoles(roles []string) ([]models.User, error) {
	var users []models.User
	err := r.db.
		Where("role IN ? AND status = ?", roles, "active").
		Order("name ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
