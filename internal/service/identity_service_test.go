package service_test

import (
	"context"
	"testing"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/garagedesk/workshop-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type identityFixture struct {
	db       *gorm.DB
	identity *service.IdentityService
	branch   *domain.Branch
	ctx      context.Context
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	branch := testutil.CreateTestBranch(t, db, "Oslo Workshop", "OSL")

	identity := service.NewIdentityService(
		db,
		repository.NewCustomerRepository(db),
		repository.NewVehicleRepository(db),
		zap.NewNop(),
	)

	return &identityFixture{
		db:       db,
		identity: identity,
		branch:   branch,
		ctx:      testutil.ContextForBranch(branch.ID),
	}
}

func (f *identityFixture) seedCustomerWithVehicle(t *testing.T, branchID, plate string) (*domain.Customer, *domain.Vehicle) {
	t.Helper()

	var branch domain.Branch
	require.NoError(t, f.db.First(&branch, "code = ?", branchID).Error)

	customer := &domain.Customer{
		BranchID:     branch.ID,
		FullName:     "Ola Nordmann",
		Phone:        "+47 12345678",
		CustomerType: domain.CustomerTypePersonal,
	}
	require.NoError(t, f.db.Create(customer).Error)

	vehicle := &domain.Vehicle{
		CustomerID:  customer.ID,
		PlateNumber: service.NormalizePlate(plate),
		Make:        "Volvo",
		Model:       "V70",
	}
	require.NoError(t, f.db.Create(vehicle).Error)
	return customer, vehicle
}

func TestNormalizePlate(t *testing.T) {
	assert.Equal(t, "AB 12345", service.NormalizePlate("  ab 12345 "))
	assert.Equal(t, "", service.NormalizePlate("   "))
}

func TestCheckPlateCaseInsensitive(t *testing.T) {
	f := newIdentityFixture(t)
	customer, _ := f.seedCustomerWithVehicle(t, "OSL", "EK54321")

	result, err := f.identity.CheckPlate(f.ctx, f.branch.ID, "ek54321")
	require.NoError(t, err)
	assert.True(t, result.Found)
	require.NotNil(t, result.Customer)
	assert.Equal(t, customer.ID, result.Customer.ID)
	require.NotNil(t, result.Vehicle)
	assert.Equal(t, "EK54321", result.Vehicle.PlateNumber)
}

func TestCheckPlateUnknown(t *testing.T) {
	f := newIdentityFixture(t)

	result, err := f.identity.CheckPlate(f.ctx, f.branch.ID, "ZZ99999")
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Nil(t, result.Customer)
}

func TestCheckPlateScopedToBranch(t *testing.T) {
	f := newIdentityFixture(t)
	f.seedCustomerWithVehicle(t, "OSL", "EK54321")

	other := testutil.CreateTestBranch(t, f.db, "Bergen Workshop", "BRG")

	result, err := f.identity.CheckPlate(f.ctx, other.ID, "EK54321")
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestCheckPlateRequiresPlate(t *testing.T) {
	f := newIdentityFixture(t)

	_, err := f.identity.CheckPlate(f.ctx, f.branch.ID, "  ")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestResolveReusesPlaceholder(t *testing.T) {
	f := newIdentityFixture(t)

	var first, second *service.Resolution
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = f.identity.ResolveCustomerAndVehicle(f.ctx, tx, f.branch.ID, "PL11111", service.ResolveOptions{})
		return err
	})
	require.NoError(t, err)
	require.False(t, first.RequiresConfirmation)
	assert.True(t, first.Customer.IsPlaceholder())

	// The second resolve confirms reuse and must not create a new identity
	err = f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = f.identity.ResolveCustomerAndVehicle(f.ctx, tx, f.branch.ID, "pl11111", service.ResolveOptions{
			UseExistingCustomer: true,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)
	assert.Equal(t, first.Vehicle.ID, second.Vehicle.ID)

	var customerCount int64
	require.NoError(t, f.db.Model(&domain.Customer{}).Count(&customerCount).Error)
	assert.Equal(t, int64(1), customerCount)
}

func TestResolveAttachesVehicleToChosenCustomer(t *testing.T) {
	f := newIdentityFixture(t)
	customer, _ := f.seedCustomerWithVehicle(t, "OSL", "EK54321")

	var resolution *service.Resolution
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		customerID := customer.ID
		resolution, err = f.identity.ResolveCustomerAndVehicle(f.ctx, tx, f.branch.ID, "NEW9999", service.ResolveOptions{
			ExistingCustomerID: &customerID,
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, customer.ID, resolution.Customer.ID)
	assert.Equal(t, customer.ID, resolution.Vehicle.CustomerID)
	assert.Equal(t, "NEW9999", resolution.Vehicle.PlateNumber)
}

func TestGetOrCreateCustomerMatchesIdentityTuple(t *testing.T) {
	f := newIdentityFixture(t)

	fields := service.CustomerFields{
		FullName:     "Kari Nordmann",
		Phone:        "+47 99887766",
		CustomerType: domain.CustomerTypePersonal,
	}

	var first, second *domain.Customer
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = f.identity.GetOrCreateCustomer(f.ctx, tx, f.branch.ID, fields)
		return err
	})
	require.NoError(t, err)

	// Same identity tuple with new contact details refreshes, not duplicates
	fields.Email = "kari@example.com"
	err = f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = f.identity.GetOrCreateCustomer(f.ctx, tx, f.branch.ID, fields)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "kari@example.com", second.Email)

	var count int64
	require.NoError(t, f.db.Model(&domain.Customer{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetOrCreateCustomerDistinguishesOrganizations(t *testing.T) {
	f := newIdentityFixture(t)

	var a, b *domain.Customer
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		a, err = f.identity.GetOrCreateCustomer(f.ctx, tx, f.branch.ID, service.CustomerFields{
			FullName:         "Per Hansen",
			Phone:            "+47 11112222",
			CustomerType:     domain.CustomerTypeCompany,
			OrganizationName: "Hansen Transport AS",
			TaxNumber:        "NO123456789",
		})
		if err != nil {
			return err
		}
		b, err = f.identity.GetOrCreateCustomer(f.ctx, tx, f.branch.ID, service.CustomerFields{
			FullName:         "Per Hansen",
			Phone:            "+47 11112222",
			CustomerType:     domain.CustomerTypeCompany,
			OrganizationName: "Hansen Logistikk AS",
			TaxNumber:        "NO987654321",
		})
		return err
	})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
