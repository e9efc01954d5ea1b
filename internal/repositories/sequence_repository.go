package repositories

import (
	"errors"

	"gorm.io/gorm"

	"healthpay/internal/models"
)

// SequenceRepository hands out monotonically increasing values for
// business identifiers. Increments are atomic at the database level;
// a value taken by a transaction that later rolls back is simply
// skipped.
type SequenceRepository interface {
	Next(name string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(name string) (int64, error) {
	var value int64
	err := r.db.Raw(
		"UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value",
		name,
	).Scan(&value).Error
	if err == nil && value > 0 {
		return value, nil
	}

	// First use of this sequence: seed the row, racing inserts fall
	// back to the update path.
	seedErr := r.db.Create(&models.Sequence{Name: name, Value: 1}).Error
	if seedErr == nil {
		return 1, nil
	}
	if errors.Is(seedErr, gorm.ErrDuplicatedKey) {
		err = r.db.Raw(
			"UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value",
			name,
		).Scan(&value).Error
		if err != nil {
			return 0, err
		}
		return value, nil
	}
	return 0, seedErr
}
