package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/database"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an isolated in-memory sqlite database with the full
// schema migrated. Each test gets its own database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named in-memory database with a shared cache keeps the schema
	// visible across pooled connections while isolating tests from each
	// other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to open in-memory sqlite database")

	require.NoError(t, database.AutoMigrate(db))

	// AutoMigrate cannot express the partial unique index that guards the
	// one-open-order-per-vehicle rule, so create it directly.
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_vehicle_open
		 ON orders(vehicle_id) WHERE status = 'created'`).Error)

	return db
}

// CreateTestBranch inserts a branch and returns it
func CreateTestBranch(t *testing.T, db *gorm.DB, name, code string) *domain.Branch {
	t.Helper()

	branch := &domain.Branch{
		Name:     name,
		Code:     code,
		IsActive: true,
	}
	require.NoError(t, db.Create(branch).Error)
	return branch
}

// CreateTestUser inserts an active staff user in the given branch
func CreateTestUser(t *testing.T, db *gorm.DB, branchID uuid.UUID, email string, role domain.UserRoleType) *domain.User {
	t.Helper()

	user := &domain.User{
		Email:       email,
		DisplayName: "Test User",
		Role:        role,
		BranchID:    branchID,
		IsActive:    true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// ContextForBranch returns a context carrying a staff user and the effective
// branch filter, the way the HTTP middleware chain would populate it.
func ContextForBranch(branchID uuid.UUID) context.Context {
	userCtx := &auth.UserContext{
		UserID:      uuid.New(),
		DisplayName: "Test User",
		Email:       "staff@example.com",
		Role:        domain.RoleStaff,
		BranchID:    branchID,
	}

	ctx := auth.WithUserContext(context.Background(), userCtx)
	return auth.WithBranchFilter(ctx, &auth.BranchFilter{BranchID: &branchID})
}

// ContextForUser returns a context carrying the given user and their branch
// filter.
func ContextForUser(user *domain.User) context.Context {
	userCtx := &auth.UserContext{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		BranchID:    user.BranchID,
	}

	ctx := auth.WithUserContext(context.Background(), userCtx)
	return auth.WithBranchFilter(ctx, &auth.BranchFilter{BranchID: userCtx.GetBranchFilter()})
}
