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

type extractionFixture struct {
	db         *gorm.DB
	extraction *service.ExtractionService
	orders     *service.OrderService
	branch     *domain.Branch
	ctx        context.Context
}

func newExtractionFixture(t *testing.T) *extractionFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	branch := testutil.CreateTestBranch(t, db, "Oslo Workshop", "OSL")

	customerRepo := repository.NewCustomerRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	sequenceRepo := repository.NewNumberSequenceRepository(db)

	identity := service.NewIdentityService(db, customerRepo, vehicleRepo, logger)
	catalog := service.NewCatalogService(catalogRepo, logger)
	sequences := service.NewNumberSequenceService(sequenceRepo, branchRepo, logger)

	return &extractionFixture{
		db:         db,
		extraction: service.NewExtractionService(db, orderRepo, identity, catalog, sequences, logger),
		orders:     service.NewOrderService(db, orderRepo, identity, catalog, sequences, logger),
		branch:     branch,
		ctx:        testutil.ContextForBranch(branch.ID),
	}
}

func validPersonalPayload() domain.ExtractionPayload {
	return domain.ExtractionPayload{
		CustomerName:    "Kari Nordmann",
		Phone:           "+47 99887766",
		CustomerType:    "personal",
		PersonalSubtype: "owner",
		PlateNumber:     "ek 54321",
		Make:            "Volvo",
		Model:           "V70",
		Description:     "Knocking sound from front left",
	}
}

func TestMergeIntoOrderReplacesPlaceholder(t *testing.T) {
	f := newExtractionFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "EK54321"})
	require.NoError(t, err)
	assert.True(t, started.Order.Customer.IsPlaceholder())

	merged, err := f.extraction.MergeIntoOrder(f.ctx, &domain.UpdateFromExtractionRequest{
		OrderID:           started.Order.ID,
		ExtractionPayload: validPersonalPayload(),
	})
	require.NoError(t, err)

	require.NotNil(t, merged.Customer)
	assert.Equal(t, "Kari Nordmann", merged.Customer.FullName)
	assert.False(t, merged.Customer.IsPlaceholder())
	require.NotNil(t, merged.Vehicle)
	assert.Equal(t, "EK 54321", merged.Vehicle.PlateNumber)
	assert.Equal(t, "Volvo", merged.Vehicle.Make)
	assert.Equal(t, "Knocking sound from front left", merged.Description)
}

func TestMergeValidationLeavesOrderUntouched(t *testing.T) {
	f := newExtractionFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "FA12121"})
	require.NoError(t, err)
	originalCustomerID := started.Order.CustomerID

	// Personal customer without a subtype is rejected before any write
	payload := validPersonalPayload()
	payload.PersonalSubtype = ""

	_, err = f.extraction.MergeIntoOrder(f.ctx, &domain.UpdateFromExtractionRequest{
		OrderID:           started.Order.ID,
		ExtractionPayload: payload,
	})
	require.Error(t, err)

	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "personal_subtype")

	reloaded, err := f.orders.Get(f.ctx, started.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, originalCustomerID, reloaded.CustomerID)
	assert.True(t, reloaded.Customer.IsPlaceholder())
}

func TestMergeValidatesOrganizationalFields(t *testing.T) {
	f := newExtractionFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "FB23232"})
	require.NoError(t, err)

	payload := domain.ExtractionPayload{
		CustomerName: "Hansen Transport AS",
		Phone:        "+47 11112222",
		CustomerType: "company",
		// Missing organization_name and tax_number
	}

	_, err = f.extraction.MergeIntoOrder(f.ctx, &domain.UpdateFromExtractionRequest{
		OrderID:           started.Order.ID,
		ExtractionPayload: payload,
	})
	require.Error(t, err)

	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "organization_name")
	assert.Contains(t, vErr.Fields, "tax_number")
}

func TestMergeCollectsAllViolations(t *testing.T) {
	f := newExtractionFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "FC34343"})
	require.NoError(t, err)

	bad := -5
	payload := domain.ExtractionPayload{
		Priority:          "asap",
		EstimatedDuration: &bad,
	}

	_, err = f.extraction.MergeIntoOrder(f.ctx, &domain.UpdateFromExtractionRequest{
		OrderID:           started.Order.ID,
		ExtractionPayload: payload,
	})
	require.Error(t, err)

	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "customer_name")
	assert.Contains(t, vErr.Fields, "phone")
	assert.Contains(t, vErr.Fields, "priority")
	assert.Contains(t, vErr.Fields, "estimated_duration")
}

func TestMergeAppliesExtractedServices(t *testing.T) {
	f := newExtractionFixture(t)

	require.NoError(t, f.db.Create(&domain.ServiceType{Name: "Oil Change", EstimatedMinutes: 45, IsActive: true}).Error)
	require.NoError(t, f.db.Create(&domain.ServiceType{Name: "Brake Check", EstimatedMinutes: 30, IsActive: true}).Error)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "FE56565"})
	require.NoError(t, err)

	payload := validPersonalPayload()
	payload.Services = "Oil Change, Brake Check"

	merged, err := f.extraction.MergeIntoOrder(f.ctx, &domain.UpdateFromExtractionRequest{
		OrderID:           started.Order.ID,
		ExtractionPayload: payload,
	})
	require.NoError(t, err)

	require.Len(t, merged.Selections, 2)
	assert.Equal(t, "Oil Change", merged.Selections[0].Name)
	assert.Equal(t, 0, merged.Selections[0].Position)
	assert.Equal(t, "Brake Check", merged.Selections[1].Name)
	assert.Equal(t, domain.SelectionKindService, merged.Selections[1].Kind)

	// No explicit estimate in the payload, so it is derived from the catalog
	require.NotNil(t, merged.EstimatedDuration)
	assert.Equal(t, 75, *merged.EstimatedDuration)
}

func TestMergeExplicitEstimateWinsOverCatalog(t *testing.T) {
	f := newExtractionFixture(t)

	require.NoError(t, f.db.Create(&domain.ServiceType{Name: "Oil Change", EstimatedMinutes: 45, IsActive: true}).Error)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "FF67676"})
	require.NoError(t, err)

	explicit := 120
	payload := validPersonalPayload()
	payload.Services = "Oil Change"
	payload.EstimatedDuration = &explicit

	merged, err := f.extraction.MergeIntoOrder(f.ctx, &domain.UpdateFromExtractionRequest{
		OrderID:           started.Order.ID,
		ExtractionPayload: payload,
	})
	require.NoError(t, err)
	require.NotNil(t, merged.EstimatedDuration)
	assert.Equal(t, 120, *merged.EstimatedDuration)
}

func TestMergeStripsLegacyHeadersFromDescription(t *testing.T) {
	f := newExtractionFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "FD45454"})
	require.NoError(t, err)

	payload := validPersonalPayload()
	payload.Description = "Urgent\n\nAdd-ons:\n- Wash\n\nCall first"

	merged, err := f.extraction.MergeIntoOrder(f.ctx, &domain.UpdateFromExtractionRequest{
		OrderID:           started.Order.ID,
		ExtractionPayload: payload,
	})
	require.NoError(t, err)
	assert.Equal(t, "Urgent\n\nCall first", merged.Description)
}

func TestCreateFromModal(t *testing.T) {
	f := newExtractionFixture(t)

	order, err := f.extraction.CreateFromModal(f.ctx, &domain.CreateFromModalRequest{
		OrderType:         domain.OrderTypeUpload,
		ExtractionPayload: validPersonalPayload(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderTypeUpload, order.OrderType)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.NotEmpty(t, order.OrderNumber)
	require.NotNil(t, order.Customer)
	assert.Equal(t, "Kari Nordmann", order.Customer.FullName)
	require.NotNil(t, order.Vehicle)
}

func TestCreateFromModalWithServices(t *testing.T) {
	f := newExtractionFixture(t)

	require.NoError(t, f.db.Create(&domain.ServiceType{Name: "Oil Change", EstimatedMinutes: 45, IsActive: true}).Error)

	payload := validPersonalPayload()
	payload.Services = "Oil Change"

	order, err := f.extraction.CreateFromModal(f.ctx, &domain.CreateFromModalRequest{
		OrderType:         domain.OrderTypeService,
		ExtractionPayload: payload,
	})
	require.NoError(t, err)

	require.Len(t, order.Selections, 1)
	assert.Equal(t, "Oil Change", order.Selections[0].Name)
	assert.Equal(t, domain.SelectionKindService, order.Selections[0].Kind)
	require.NotNil(t, order.EstimatedDuration)
	assert.Equal(t, 45, *order.EstimatedDuration)
}

func TestCreateFromModalWithoutVehicle(t *testing.T) {
	f := newExtractionFixture(t)

	payload := validPersonalPayload()
	payload.PlateNumber = ""

	order, err := f.extraction.CreateFromModal(f.ctx, &domain.CreateFromModalRequest{
		OrderType:         domain.OrderTypeInquiry,
		ExtractionPayload: payload,
	})
	require.NoError(t, err)
	assert.Nil(t, order.VehicleID)
}

func TestCreateFromModalValidates(t *testing.T) {
	f := newExtractionFixture(t)

	_, err := f.extraction.CreateFromModal(f.ctx, &domain.CreateFromModalRequest{
		ExtractionPayload: domain.ExtractionPayload{},
	})
	require.Error(t, err)

	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)

	var count int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
