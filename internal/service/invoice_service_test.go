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
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type invoiceFixture struct {
	db       *gorm.DB
	invoices *service.InvoiceService
	orders   *service.OrderService
	branch   *domain.Branch
	ctx      context.Context
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	branch := testutil.CreateTestBranch(t, db, "Oslo Workshop", "OSL")

	customerRepo := repository.NewCustomerRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	sequenceRepo := repository.NewNumberSequenceRepository(db)

	identity := service.NewIdentityService(db, customerRepo, vehicleRepo, logger)
	catalog := service.NewCatalogService(catalogRepo, logger)
	sequences := service.NewNumberSequenceService(sequenceRepo, branchRepo, logger)

	return &invoiceFixture{
		db:       db,
		invoices: service.NewInvoiceService(db, invoiceRepo, orderRepo, sequences, logger),
		orders:   service.NewOrderService(db, orderRepo, identity, catalog, sequences, logger),
		branch:   branch,
		ctx:      testutil.ContextForBranch(branch.ID),
	}
}

func (f *invoiceFixture) startOrder(t *testing.T, plate string) *domain.Order {
	t.Helper()
	result, err := f.orders.Start(f.ctx, &domain.StartOrderRequest{PlateNumber: plate})
	require.NoError(t, err)
	return result.Order
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN11111")

	invoice, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		TaxAmount: 250,
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "Oil change", Quantity: 1, UnitPrice: 800},
			{Description: "Wiper blades", Quantity: 2, UnitPrice: 100},
		},
	}, "Kari")
	require.NoError(t, err)

	assert.Equal(t, 1000.0, invoice.Subtotal)
	assert.Equal(t, 250.0, invoice.TaxAmount)
	assert.Equal(t, 1250.0, invoice.TotalAmount)
	assert.Equal(t, "Kari", invoice.CreatedBy)
	assert.Len(t, invoice.LineItems, 2)
}

func TestCreateInvoiceCompletesOpenOrder(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN22222")

	_, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "Inspection", Quantity: 1, UnitPrice: 500},
		},
	}, "Kari")
	require.NoError(t, err)

	reloaded, err := f.orders.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, reloaded.Status)
	assert.NotNil(t, reloaded.CompletedAt)
	assert.NotNil(t, reloaded.ActualDuration)
}

func TestCreateInvoiceKeepsCompletedOrderTimestamps(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN33333")

	completed, err := f.orders.Complete(f.ctx, order.ID)
	require.NoError(t, err)
	completedAt := completed.CompletedAt

	_, err = f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "Extra part", Quantity: 1, UnitPrice: 150},
		},
	}, "Ola")
	require.NoError(t, err)

	reloaded, err := f.orders.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, completedAt.Unix(), reloaded.CompletedAt.Unix())
}

func TestCreateInvoiceSkipsInvalidLineItems(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN44444")

	invoice, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "", Quantity: 1, UnitPrice: 100},
			{Description: "Negative price", Quantity: 1, UnitPrice: -5},
			{Description: "Zero quantity", Quantity: 0, UnitPrice: 100},
			{Description: "Valid item", Quantity: 3, UnitPrice: 200},
		},
	}, "Kari")
	require.NoError(t, err)

	require.Len(t, invoice.LineItems, 1)
	assert.Equal(t, "Valid item", invoice.LineItems[0].Description)
	assert.Equal(t, 600.0, invoice.Subtotal)
}

func TestCreateInvoiceRejectsAllInvalidLineItems(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN55555")

	_, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "  ", Quantity: 1, UnitPrice: 100},
		},
	}, "Kari")
	require.Error(t, err)

	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "line_items")

	var count int64
	require.NoError(t, f.db.Model(&domain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestInvoiceNumberFromSequence(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN66666")

	invoice, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "Service", Quantity: 1, UnitPrice: 500},
		},
	}, "Kari")
	require.NoError(t, err)

	expected := fmt.Sprintf("OSL-I%d-001", time.Now().Year())
	assert.Equal(t, expected, invoice.InvoiceNumber)
}

func TestInvoiceNumberFromManualReference(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN77777")

	invoice, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		Reference: "EXT-2026-042",
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "Service", Quantity: 1, UnitPrice: 500},
		},
	}, "Kari")
	require.NoError(t, err)
	assert.Equal(t, "EXT-2026-042", invoice.InvoiceNumber)
	assert.Equal(t, "EXT-2026-042", invoice.Reference)
}

func TestInvoiceDateDefaultsToNow(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN99999")

	invoice, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "Service", Quantity: 1, UnitPrice: 500},
		},
	}, "Kari")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), invoice.InvoiceDate, 5*time.Second)
}

func TestInvoiceDateFromRequest(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN00000")

	// Backdated invoices carry the supplied date, not the creation time
	backdated := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	invoice, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
		InvoiceDate: &backdated,
		LineItems: []domain.InvoiceLineItemInput{
			{Description: "Service", Quantity: 1, UnitPrice: 500},
		},
	}, "Kari")
	require.NoError(t, err)
	assert.Equal(t, backdated.Unix(), invoice.InvoiceDate.Unix())
}

func TestInvoiceListByOrder(t *testing.T) {
	f := newInvoiceFixture(t)
	order := f.startOrder(t, "IN88888")

	for i := 0; i < 2; i++ {
		_, err := f.invoices.CreateManual(f.ctx, order.ID, &domain.CreateInvoiceRequest{
			LineItems: []domain.InvoiceLineItemInput{
				{Description: "Work", Quantity: 1, UnitPrice: 100},
			},
		}, "Kari")
		require.NoError(t, err)
	}

	invoices, err := f.invoices.ListByOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, invoices, 2)
}

func TestGetInvoiceUnknownID(t *testing.T) {
	f := newInvoiceFixture(t)

	_, err := f.invoices.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}
