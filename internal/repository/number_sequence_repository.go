package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NumberSequenceRepository handles database operations for number sequences.
// Sequences are keyed by branch/year/kind so order and invoice numbers are
// each gapless-per-branch within a year.
type NumberSequenceRepository struct {
	db *gorm.DB
}

// NewNumberSequenceRepository creates a new NumberSequenceRepository
func NewNumberSequenceRepository(db *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *NumberSequenceRepository) WithTx(tx *gorm.DB) *NumberSequenceRepository {
	return &NumberSequenceRepository{db: tx}
}

// lockClause returns the row-lock clause for the dialect. sqlite has no
// FOR UPDATE; its single-writer model makes the increment safe anyway.
func lockClause(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// GetNextNumber atomically retrieves and increments the sequence for a
// branch/year/kind. Uses SELECT FOR UPDATE to prevent races. If no sequence
// exists yet, one is created starting at 1.
func (r *NumberSequenceRepository) GetNextNumber(ctx context.Context, branchID uuid.UUID, year int, kind domain.SequenceKind) (int, error) {
	var nextSeq int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq domain.NumberSequence
		result := lockClause(tx).
			Where("branch_id = ? AND year = ? AND kind = ?", branchID, year, kind).
			First(&seq)

		if result.Error == gorm.ErrRecordNotFound {
			seq = domain.NumberSequence{
				BranchID:     branchID,
				Year:         year,
				Kind:         kind,
				LastSequence: 1,
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("failed to create number sequence: %w", err)
			}
			nextSeq = 1
		} else if result.Error != nil {
			return fmt.Errorf("failed to get number sequence: %w", result.Error)
		} else {
			nextSeq = seq.LastSequence + 1
			if err := tx.Model(&seq).Updates(map[string]interface{}{
				"last_sequence": nextSeq,
				"updated_at":    time.Now(),
			}).Error; err != nil {
				return fmt.Errorf("failed to update number sequence: %w", err)
			}
		}

		return nil
	})

	if err != nil {
		return 0, err
	}

	return nextSeq, nil
}

// GetCurrentSequence retrieves the current value without incrementing.
// Returns 0 if no sequence exists.
func (r *NumberSequenceRepository) GetCurrentSequence(ctx context.Context, branchID uuid.UUID, year int, kind domain.SequenceKind) (int, error) {
	var seq domain.NumberSequence
	result := r.db.WithContext(ctx).
		Where("branch_id = ? AND year = ? AND kind = ?", branchID, year, kind).
		First(&seq)

	if result.Error == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if result.Error != nil {
		return 0, fmt.Errorf("failed to get number sequence: %w", result.Error)
	}

	return seq.LastSequence, nil
}

// SetSequence raises the sequence to a specific value, for data migrations
// that must account for pre-existing numbered records. Never lowers it.
func (r *NumberSequenceRepository) SetSequence(ctx context.Context, branchID uuid.UUID, year int, kind domain.SequenceKind, value int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq domain.NumberSequence
		result := lockClause(tx).
			Where("branch_id = ? AND year = ? AND kind = ?", branchID, year, kind).
			First(&seq)

		if result.Error == gorm.ErrRecordNotFound {
			seq = domain.NumberSequence{
				BranchID:     branchID,
				Year:         year,
				Kind:         kind,
				LastSequence: value,
				CreatedAt:    time.Now(),
				UpdatedAt:    time.Now(),
			}
			if err := tx.Create(&seq).Error; err != nil {
				return fmt.Errorf("failed to create number sequence: %w", err)
			}
		} else if result.Error != nil {
			return fmt.Errorf("failed to get number sequence: %w", result.Error)
		} else if value > seq.LastSequence {
			if err := tx.Model(&seq).Updates(map[string]interface{}{
				"last_sequence": value,
				"updated_at":    time.Now(),
			}).Error; err != nil {
				return fmt.Errorf("failed to update number sequence: %w", err)
			}
		}

		return nil
	})
}
