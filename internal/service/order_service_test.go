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

type orderServiceFixture struct {
	db       *gorm.DB
	orders   *service.OrderService
	identity *service.IdentityService
	branch   *domain.Branch
	ctx      context.Context
}

func newOrderServiceFixture(t *testing.T) *orderServiceFixture {
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
	orders := service.NewOrderService(db, orderRepo, identity, catalog, sequences, logger)

	return &orderServiceFixture{
		db:       db,
		orders:   orders,
		identity: identity,
		branch:   branch,
		ctx:      testutil.ContextForBranch(branch.ID),
	}
}

func TestStartOrderCreatesPlaceholderCustomer(t *testing.T) {
	f := newOrderServiceFixture(t)

	result, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "ab 12345"})
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.False(t, result.RequiresConfirmation)

	order := result.Order
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.Equal(t, domain.OrderTypeService, order.OrderType)
	require.NotNil(t, order.Customer)
	assert.Equal(t, "Plate AB 12345", order.Customer.FullName)
	assert.Equal(t, "PLATE_AB 12345", order.Customer.Phone)
	assert.True(t, order.Customer.IsPlaceholder())
	require.NotNil(t, order.Vehicle)
	assert.Equal(t, "AB 12345", order.Vehicle.PlateNumber)
}

func TestStartOrderIdempotent(t *testing.T) {
	f := newOrderServiceFixture(t)

	first, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "CD67890"})
	require.NoError(t, err)
	require.NotNil(t, first.Order)

	// The open order wins over the reuse-confirmation prompt, so a plain
	// restart of the same plate returns it directly
	second, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "cd67890"})
	require.NoError(t, err)
	require.NotNil(t, second.Order)
	assert.False(t, second.RequiresConfirmation)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Order.OrderNumber, second.Order.OrderNumber)

	// Confirming reuse anyway changes nothing
	third, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{
		PlateNumber:         "CD67890",
		UseExistingCustomer: true,
	})
	require.NoError(t, err)
	require.NotNil(t, third.Order)
	assert.Equal(t, first.Order.ID, third.Order.ID)

	var count int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStartOrderProbesKnownPlateWithoutWriting(t *testing.T) {
	f := newOrderServiceFixture(t)

	first, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "EF11111"})
	require.NoError(t, err)
	require.NotNil(t, first.Order)

	// Close the order: the reuse prompt only appears for a known plate
	// with no open order
	_, err = f.orders.Complete(f.ctx, first.Order.ID)
	require.NoError(t, err)

	var ordersBefore, customersBefore int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&ordersBefore).Error)
	require.NoError(t, f.db.Model(&domain.Customer{}).Count(&customersBefore).Error)

	probe, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "ef11111"})
	require.NoError(t, err)
	assert.True(t, probe.RequiresConfirmation)
	assert.Nil(t, probe.Order)
	require.NotNil(t, probe.ExistingCustomer)
	assert.Equal(t, first.Order.CustomerID, probe.ExistingCustomer.ID)
	require.NotNil(t, probe.ExistingVehicle)

	var ordersAfter, customersAfter int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&ordersAfter).Error)
	require.NoError(t, f.db.Model(&domain.Customer{}).Count(&customersAfter).Error)
	assert.Equal(t, ordersBefore, ordersAfter)
	assert.Equal(t, customersBefore, customersAfter)
}

func TestStartOrderAfterCompletionCreatesNewOrder(t *testing.T) {
	f := newOrderServiceFixture(t)

	first, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "GH22222"})
	require.NoError(t, err)

	_, err = f.orders.Complete(f.ctx, first.Order.ID)
	require.NoError(t, err)

	second, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{
		PlateNumber:         "GH22222",
		UseExistingCustomer: true,
	})
	require.NoError(t, err)
	require.NotNil(t, second.Order)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
}

func TestStartOrderRejectsUploadType(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{
		PlateNumber: "IJ33333",
		OrderType:   domain.OrderTypeUpload,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestStartOrderRequiresBranchScope(t *testing.T) {
	f := newOrderServiceFixture(t)

	_, err := f.orders.Start(context.Background(), &domain.StartOrderRequest{PlateNumber: "KL44444"})
	assert.ErrorIs(t, err, service.ErrNoBranch)
}

func TestOrderNumberFormat(t *testing.T) {
	f := newOrderServiceFixture(t)

	result, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "MN55555"})
	require.NoError(t, err)

	expected := fmt.Sprintf("OSL-O%d-001", time.Now().Year())
	assert.Equal(t, expected, result.Order.OrderNumber)

	_, err = f.orders.Complete(f.ctx, result.Order.ID)
	require.NoError(t, err)

	next, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{
		PlateNumber:         "MN55555",
		UseExistingCustomer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("OSL-O%d-002", time.Now().Year()), next.Order.OrderNumber)
}

func TestStartOrderDerivesEstimateFromCatalog(t *testing.T) {
	f := newOrderServiceFixture(t)

	require.NoError(t, f.db.Create(&domain.ServiceType{Name: "Oil Change", EstimatedMinutes: 45, IsActive: true}).Error)
	require.NoError(t, f.db.Create(&domain.ServiceAddon{Name: "Wash", EstimatedMinutes: 15, IsActive: true}).Error)

	result, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{
		PlateNumber: "OP66666",
		ServiceSelection: []domain.SelectionDTO{
			{Kind: domain.SelectionKindService, Name: "Oil Change"},
			{Kind: domain.SelectionKindAddon, Name: "Wash"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Order.EstimatedDuration)
	assert.Equal(t, 60, *result.Order.EstimatedDuration)
	assert.Len(t, result.Order.Selections, 2)
}

func TestStripLegacySelectionHeaders(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips services block",
			in:   "Customer waiting\n\nServices:\n- Oil Change\n- Brake Check\n\nCall before 16:00",
			want: "Customer waiting\n\nCall before 16:00",
		},
		{
			name: "strips all three headers",
			in:   "Services:\n- A\n\nAdd-ons:\n- B\n\nTire Services:\n- C\n\nNote",
			want: "Note",
		},
		{
			name: "plain text untouched",
			in:   "Just a description",
			want: "Just a description",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, service.StripLegacySelectionHeaders(tc.in))
		})
	}
}

func TestCompleteOrder(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "QR77777"})
	require.NoError(t, err)

	// Backdate the start so the derived actual duration is nonzero
	require.NoError(t, f.db.Model(&domain.Order{}).
		Where("id = ?", started.Order.ID).
		Update("started_at", time.Now().Add(-90*time.Minute)).Error)

	completed, err := f.orders.Complete(f.ctx, started.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.ActualDuration)
	assert.InDelta(t, 90, *completed.ActualDuration, 2)

	// Completing again is a no-op, not an error
	again, err := f.orders.Complete(f.ctx, started.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, completed.CompletedAt.Unix(), again.CompletedAt.Unix())
}

func TestCompleteCancelledOrderFails(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "ST88888"})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&domain.Order{}).
		Where("id = ?", started.Order.ID).
		Update("status", domain.OrderStatusCancelled).Error)

	_, err = f.orders.Complete(f.ctx, started.Order.ID)
	assert.ErrorIs(t, err, service.ErrOrderNotOpen)
}

func TestRecordOverrun(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "UV99999"})
	require.NoError(t, err)

	order, err := f.orders.RecordOverrun(f.ctx, started.Order.ID, "Waiting for parts", "Kari")
	require.NoError(t, err)
	assert.Equal(t, "Waiting for parts", order.OverrunReason)
	assert.Equal(t, "Kari", order.OverrunReportedBy)
	require.NotNil(t, order.OverrunReportedAt)
	// Recording a reason never changes the lifecycle state
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
}

func TestRecordOverrunOnCompletedOrder(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "WX00000"})
	require.NoError(t, err)
	_, err = f.orders.Complete(f.ctx, started.Order.ID)
	require.NoError(t, err)

	order, err := f.orders.RecordOverrun(f.ctx, started.Order.ID, "Extra rust repair", "Ola")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
	assert.Equal(t, "Extra rust repair", order.OverrunReason)
}

func TestRecordOverrunRequiresReason(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "YZ11122"})
	require.NoError(t, err)

	_, err = f.orders.RecordOverrun(f.ctx, started.Order.ID, "   ", "Kari")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestUpdateDetailsReplacesSelections(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{
		PlateNumber: "AA11111",
		ServiceSelection: []domain.SelectionDTO{
			{Kind: domain.SelectionKindService, Name: "Oil Change"},
		},
	})
	require.NoError(t, err)

	updated, err := f.orders.UpdateDetails(f.ctx, started.Order.ID, &domain.UpdateOrderDetailsRequest{
		Selections: []domain.SelectionDTO{
			{Kind: domain.SelectionKindService, Name: "Brake Check"},
			{Kind: domain.SelectionKindTireService, Name: "Tire Rotation"},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Selections, 2)
	assert.Equal(t, "Brake Check", updated.Selections[0].Name)
	assert.Equal(t, 0, updated.Selections[0].Position)
	assert.Equal(t, "Tire Rotation", updated.Selections[1].Name)
	assert.Equal(t, domain.SelectionKindTireService, updated.Selections[1].Kind)
}

func TestUpdateDetailsStripsLegacyHeaders(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "BB22222"})
	require.NoError(t, err)

	desc := "Customer note\n\nServices:\n- Oil Change\n\nPickup at 17:00"
	updated, err := f.orders.UpdateDetails(f.ctx, started.Order.ID, &domain.UpdateOrderDetailsRequest{
		Description: &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, "Customer note\n\nPickup at 17:00", updated.Description)
}

func TestUpdateCustomerOnOrder(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "CC33333"})
	require.NoError(t, err)
	assert.True(t, started.Order.Customer.IsPlaceholder())

	subtype := domain.PersonalSubtypeOwner
	updated, err := f.orders.UpdateCustomer(f.ctx, started.Order.ID, &domain.UpdateCustomerRequest{
		FullName:        "Kari Nordmann",
		Phone:           "+47 99887766",
		Email:           "kari@example.com",
		PersonalSubtype: &subtype,
	})
	require.NoError(t, err)
	assert.Equal(t, "Kari Nordmann", updated.Customer.FullName)
	assert.Equal(t, "+47 99887766", updated.Customer.Phone)
	assert.False(t, updated.Customer.IsPlaceholder())
}

func TestOrderNotVisibleFromOtherBranch(t *testing.T) {
	f := newOrderServiceFixture(t)

	started, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: "DD44444"})
	require.NoError(t, err)

	other := testutil.CreateTestBranch(t, f.db, "Bergen Workshop", "BRG")
	otherCtx := testutil.ContextForBranch(other.ID)

	_, err = f.orders.Get(otherCtx, started.Order.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}
