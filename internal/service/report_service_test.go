package service_test

import (
	"context"
	"testing"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/garagedesk/workshop-api/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type reportFixture struct {
	db      *gorm.DB
	reports *service.ReportService
	orders  *service.OrderService
	branch  *domain.Branch
	ctx     context.Context
}

func newReportFixture(t *testing.T) *reportFixture {
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

	return &reportFixture{
		db:      db,
		reports: service.NewReportService(orderRepo, logger),
		orders:  service.NewOrderService(db, orderRepo, identity, catalog, sequences, logger),
		branch:  branch,
		ctx:     testutil.ContextForBranch(branch.ID),
	}
}

func (f *reportFixture) startOrder(t *testing.T, plate string) *domain.Order {
	t.Helper()
	result, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: plate})
	require.NoError(t, err)
	return result.Order
}

func (f *reportFixture) setDurations(t *testing.T, orderID uuid.UUID, estimated, actual *int) {
	t.Helper()
	require.NoError(t, f.db.Model(&domain.Order{}).Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"estimated_duration": estimated,
			"actual_duration":    actual,
		}).Error)
}

func intPtr(v int) *int { return &v }

func TestOrderKPIs(t *testing.T) {
	f := newReportFixture(t)

	// Two starts on the same plate today count as one repeated vehicle.
	// The first order must be closed before the plate can be started again.
	first := f.startOrder(t, "RP11111")
	_, err := f.orders.Complete(f.ctx, first.ID)
	require.NoError(t, err)

	// The plate is now known, so the restart confirms customer reuse
	again, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{
		PlateNumber:         "rp11111",
		UseExistingCustomer: true,
	})
	require.NoError(t, err)
	require.False(t, again.RequiresConfirmation)

	f.startOrder(t, "RP22222")

	kpis, err := f.reports.GetOrderKPIs(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), kpis.TotalStarted)
	assert.Equal(t, int64(2), kpis.TodayStarted)
	assert.Equal(t, int64(1), kpis.RepeatedVehiclesToday)
}

func TestOrderKPIsEmptyBranch(t *testing.T) {
	f := newReportFixture(t)

	kpis, err := f.reports.GetOrderKPIs(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), kpis.TotalStarted)
	assert.Equal(t, int64(0), kpis.TodayStarted)
	assert.Equal(t, int64(0), kpis.RepeatedVehiclesToday)
}

func TestOverrunReportDelays(t *testing.T) {
	f := newReportFixture(t)

	over := f.startOrder(t, "RP33333")
	f.setDurations(t, over.ID, intPtr(60), intPtr(90))
	_, err := f.orders.RecordOverrun(f.ctx, over.ID, "Waiting for parts", "Kari")
	require.NoError(t, err)

	// Finished under the estimate, delay clamps to zero
	under := f.startOrder(t, "RP44444")
	f.setDurations(t, under.ID, intPtr(120), intPtr(100))
	_, err = f.orders.RecordOverrun(f.ctx, under.ID, "Waiting for parts", "Kari")
	require.NoError(t, err)

	// No estimate, delay is not computable and stays out of the average
	open := f.startOrder(t, "RP55555")
	f.setDurations(t, open.ID, nil, intPtr(45))
	_, err = f.orders.RecordOverrun(f.ctx, open.ID, "Lift occupied", "Ola")
	require.NoError(t, err)

	report, err := f.reports.GetOverrunReport(f.ctx)
	require.NoError(t, err)

	assert.Len(t, report.Orders, 3)
	require.NotNil(t, report.AvgDelayMinutes)
	assert.InDelta(t, 15.0, *report.AvgDelayMinutes, 0.001)

	require.NotEmpty(t, report.TopReasons)
	assert.Equal(t, "Waiting for parts", report.TopReasons[0].Reason)
	assert.Equal(t, int64(2), report.TopReasons[0].Count)
}

func TestOverrunReportAvgNilWithoutComputableDelays(t *testing.T) {
	f := newReportFixture(t)

	order := f.startOrder(t, "RP66666")
	_, err := f.orders.RecordOverrun(f.ctx, order.ID, "Customer unreachable", "Kari")
	require.NoError(t, err)

	report, err := f.reports.GetOverrunReport(f.ctx)
	require.NoError(t, err)
	assert.Len(t, report.Orders, 1)
	assert.Nil(t, report.AvgDelayMinutes)
}

func TestOverrunReportCountsCompletedLate(t *testing.T) {
	f := newReportFixture(t)

	late := f.startOrder(t, "RP77777")
	_, err := f.orders.Complete(f.ctx, late.ID)
	require.NoError(t, err)
	f.setDurations(t, late.ID, intPtr(30), intPtr(60))

	onTime := f.startOrder(t, "RP88888")
	_, err = f.orders.Complete(f.ctx, onTime.ID)
	require.NoError(t, err)
	f.setDurations(t, onTime.ID, intPtr(60), intPtr(50))

	report, err := f.reports.GetOverrunReport(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.CompletedLate)
	// Late completion alone does not put an order in the overrun list
	assert.Empty(t, report.Orders)
}

func TestOverrunReportScopedToBranch(t *testing.T) {
	f := newReportFixture(t)

	order := f.startOrder(t, "RP99999")
	_, err := f.orders.RecordOverrun(f.ctx, order.ID, "Waiting for parts", "Kari")
	require.NoError(t, err)

	other := testutil.CreateTestBranch(t, f.db, "Bergen Workshop", "BRG")
	otherCtx := testutil.ContextForBranch(other.ID)

	report, err := f.reports.GetOverrunReport(otherCtx)
	require.NoError(t, err)
	assert.Empty(t, report.Orders)
	assert.Equal(t, int64(0), report.CompletedLate)

	kpis, err := f.reports.GetOrderKPIs(otherCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), kpis.TotalStarted)
}
