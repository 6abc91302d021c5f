package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NumberSequenceService generates unique, formatted order and invoice
// numbers. Sequences are per branch/year/kind.
//
// Format: {BRANCH}-O{YEAR}-{SEQ} for orders, {BRANCH}-I{YEAR}-{SEQ} for
// invoices. Example: OSL-O2026-014, OSL-I2026-003.
type NumberSequenceService struct {
	repo       *repository.NumberSequenceRepository
	branchRepo *repository.BranchRepository
	logger     *zap.Logger
}

// NewNumberSequenceService creates a new NumberSequenceService
func NewNumberSequenceService(
	repo *repository.NumberSequenceRepository,
	branchRepo *repository.BranchRepository,
	logger *zap.Logger,
) *NumberSequenceService {
	return &NumberSequenceService{
		repo:       repo,
		branchRepo: branchRepo,
		logger:     logger,
	}
}

// WithTx returns a copy whose reads and the increment run inside the given
// transaction. Callers creating a numbered record must use this so a rolled
// back insert also rolls back the sequence increment.
func (s *NumberSequenceService) WithTx(tx *gorm.DB) *NumberSequenceService {
	return &NumberSequenceService{
		repo:       s.repo.WithTx(tx),
		branchRepo: s.branchRepo.WithTx(tx),
		logger:     s.logger,
	}
}

// GenerateOrderNumber generates a unique order number for a branch
func (s *NumberSequenceService) GenerateOrderNumber(ctx context.Context, branchID uuid.UUID) (string, error) {
	return s.generateNumber(ctx, branchID, domain.SequenceKindOrder)
}

// GenerateInvoiceNumber generates a unique invoice number for a branch
func (s *NumberSequenceService) GenerateInvoiceNumber(ctx context.Context, branchID uuid.UUID) (string, error) {
	return s.generateNumber(ctx, branchID, domain.SequenceKindInvoice)
}

func (s *NumberSequenceService) generateNumber(ctx context.Context, branchID uuid.UUID, kind domain.SequenceKind) (string, error) {
	branch, err := s.branchRepo.GetByID(ctx, branchID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve branch for numbering: %w", err)
	}

	year := time.Now().Year()

	nextSeq, err := s.repo.GetNextNumber(ctx, branchID, year, kind)
	if err != nil {
		s.logger.Error("failed to get next sequence number",
			zap.String("branch_id", branchID.String()),
			zap.Int("year", year),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return "", fmt.Errorf("failed to generate %s number: %w", kind, err)
	}

	marker := "O"
	if kind == domain.SequenceKindInvoice {
		marker = "I"
	}

	number := fmt.Sprintf("%s-%s%d-%03d", branch.Code, marker, year, nextSeq)

	s.logger.Info("generated number",
		zap.String("number", number),
		zap.String("branch_id", branchID.String()),
		zap.Int("year", year),
		zap.Int("sequence", nextSeq),
		zap.String("kind", string(kind)))

	return number, nil
}

// GetCurrentSequence returns the current value without incrementing.
// Returns 0 if no sequence exists yet.
func (s *NumberSequenceService) GetCurrentSequence(ctx context.Context, branchID uuid.UUID, year int, kind domain.SequenceKind) (int, error) {
	return s.repo.GetCurrentSequence(ctx, branchID, year, kind)
}

// InitializeSequence raises the sequence for data migrations that must
// account for existing numbered records.
func (s *NumberSequenceService) InitializeSequence(ctx context.Context, branchID uuid.UUID, year int, kind domain.SequenceKind, value int) error {
	return s.repo.SetSequence(ctx, branchID, year, kind, value)
}
