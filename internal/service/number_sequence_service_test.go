package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/garagedesk/workshop-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSequenceFixture(t *testing.T) (*gorm.DB, *service.NumberSequenceService, *domain.Branch) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	branch := testutil.CreateTestBranch(t, db, "Oslo Workshop", "OSL")

	sequences := service.NewNumberSequenceService(
		repository.NewNumberSequenceRepository(db),
		repository.NewBranchRepository(db),
		zap.NewNop(),
	)
	return db, sequences, branch
}

func TestGenerateOrderNumberIncrements(t *testing.T) {
	_, sequences, branch := newSequenceFixture(t)
	ctx := context.Background()
	year := time.Now().Year()

	first, err := sequences.GenerateOrderNumber(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OSL-O%d-001", year), first)

	second, err := sequences.GenerateOrderNumber(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OSL-O%d-002", year), second)
}

func TestOrderAndInvoiceSequencesAreIndependent(t *testing.T) {
	_, sequences, branch := newSequenceFixture(t)
	ctx := context.Background()
	year := time.Now().Year()

	_, err := sequences.GenerateOrderNumber(ctx, branch.ID)
	require.NoError(t, err)
	_, err = sequences.GenerateOrderNumber(ctx, branch.ID)
	require.NoError(t, err)

	invoice, err := sequences.GenerateInvoiceNumber(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OSL-I%d-001", year), invoice)
}

func TestSequencesScopedPerBranch(t *testing.T) {
	db, sequences, branch := newSequenceFixture(t)
	ctx := context.Background()
	year := time.Now().Year()

	_, err := sequences.GenerateOrderNumber(ctx, branch.ID)
	require.NoError(t, err)

	other := testutil.CreateTestBranch(t, db, "Bergen Workshop", "BRG")
	number, err := sequences.GenerateOrderNumber(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("BRG-O%d-001", year), number)
}

func TestInitializeSequenceRaisesFloor(t *testing.T) {
	_, sequences, branch := newSequenceFixture(t)
	ctx := context.Background()
	year := time.Now().Year()

	require.NoError(t, sequences.InitializeSequence(ctx, branch.ID, year, domain.SequenceKindOrder, 41))

	current, err := sequences.GetCurrentSequence(ctx, branch.ID, year, domain.SequenceKindOrder)
	require.NoError(t, err)
	assert.Equal(t, 41, current)

	number, err := sequences.GenerateOrderNumber(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OSL-O%d-042", year), number)
}

func TestGenerateOrderNumberInsideTransaction(t *testing.T) {
	db, sequences, branch := newSequenceFixture(t)
	ctx := context.Background()
	year := time.Now().Year()

	var number string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = sequences.WithTx(tx).GenerateOrderNumber(ctx, branch.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OSL-O%d-001", year), number)

	current, err := sequences.GetCurrentSequence(ctx, branch.ID, year, domain.SequenceKindOrder)
	require.NoError(t, err)
	assert.Equal(t, 1, current)
}

func TestSequenceRollsBackWithEnclosingTransaction(t *testing.T) {
	db, sequences, branch := newSequenceFixture(t)
	ctx := context.Background()
	year := time.Now().Year()

	boom := fmt.Errorf("insert failed")
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := sequences.WithTx(tx).GenerateOrderNumber(ctx, branch.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The increment must not survive the rollback, so the next number
	// reuses the slot and the sequence stays gapless
	current, err := sequences.GetCurrentSequence(ctx, branch.ID, year, domain.SequenceKindOrder)
	require.NoError(t, err)
	assert.Equal(t, 0, current)

	number, err := sequences.GenerateOrderNumber(ctx, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OSL-O%d-001", year), number)
}

func TestGetCurrentSequenceEmpty(t *testing.T) {
	_, sequences, branch := newSequenceFixture(t)

	current, err := sequences.GetCurrentSequence(context.Background(), branch.ID, time.Now().Year(), domain.SequenceKindInvoice)
	require.NoError(t, err)
	assert.Equal(t, 0, current)
}
