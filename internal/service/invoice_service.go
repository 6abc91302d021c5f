package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InvoiceService creates manual invoices from started orders. Totals are
// recomputed from line items; creating an invoice completes the backing
// order when it is still open.
type InvoiceService struct {
	db        *gorm.DB
	invoices  *repository.InvoiceRepository
	orders    *repository.OrderRepository
	sequences *NumberSequenceService
	logger    *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	db *gorm.DB,
	invoices *repository.InvoiceRepository,
	orders *repository.OrderRepository,
	sequences *NumberSequenceService,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		db:        db,
		invoices:  invoices,
		orders:    orders,
		sequences: sequences,
		logger:    logger,
	}
}

// CreateManual creates an invoice for an order from manually entered line
// items. Invalid line items are logged and skipped, not fatal. The invoice
// number comes from the sequence unless a manual reference is given.
func (s *InvoiceService) CreateManual(ctx context.Context, orderID uuid.UUID, req *domain.CreateInvoiceRequest, createdBy string) (*domain.Invoice, error) {
	branchID, err := branchFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var created *domain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.GetByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		if err != nil {
			return err
		}

		invoiceDate := time.Now()
		if req.InvoiceDate != nil {
			invoiceDate = *req.InvoiceDate
		}

		invoice := &domain.Invoice{
			BranchID:    branchID,
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			Reference:   strings.TrimSpace(req.Reference),
			InvoiceDate: invoiceDate,
			TaxAmount:   req.TaxAmount,
			Notes:       req.Notes,
			CreatedBy:   createdBy,
		}

		if invoice.Reference != "" {
			invoice.InvoiceNumber = invoice.Reference
		} else {
			number, err := s.sequences.WithTx(tx).GenerateInvoiceNumber(ctx, branchID)
			if err != nil {
				return err
			}
			invoice.InvoiceNumber = number
		}

		for i, li := range req.LineItems {
			if strings.TrimSpace(li.Description) == "" || li.Quantity <= 0 || li.UnitPrice < 0 {
				s.logger.Warn("skipping invalid invoice line item",
					zap.String("order_id", order.ID.String()),
					zap.Int("index", i))
				continue
			}
			invoice.LineItems = append(invoice.LineItems, domain.InvoiceLineItem{
				Description: strings.TrimSpace(li.Description),
				Quantity:    li.Quantity,
				UnitPrice:   li.UnitPrice,
			})
		}
		if len(invoice.LineItems) == 0 {
			return NewValidationError(map[string]string{
				"line_items": "At least one valid line item is required",
			})
		}

		invoice.RecalculateTotals()

		if err := s.invoices.WithTx(tx).Create(ctx, invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		// Invoicing closes the order when it is still open
		if order.Status == domain.OrderStatusCreated {
			now := time.Now()
			order.Status = domain.OrderStatusCompleted
			order.CompletedAt = &now
			if order.ActualDuration == nil {
				minutes := int(now.Sub(order.StartedAt).Minutes())
				if minutes < 0 {
					minutes = 0
				}
				order.ActualDuration = &minutes
			}
			if err := orders.Update(ctx, order); err != nil {
				return fmt.Errorf("failed to complete order from invoice: %w", err)
			}
		}

		created = invoice
		s.logger.Info("invoice created",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.String("order_id", order.ID.String()),
			zap.Float64("total", invoice.TotalAmount))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns an invoice in the caller's branch
func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invoice %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListByOrder returns the invoices for an order
func (s *InvoiceService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Invoice, error) {
	return s.invoices.ListByOrder(ctx, orderID)
}
