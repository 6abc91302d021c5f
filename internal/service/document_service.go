package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/garagedesk/workshop-api/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DocumentService stores uploaded order source documents (scans, photos)
// and tracks them against orders.
type DocumentService struct {
	docs    *repository.DocumentRepository
	orders  *repository.OrderRepository
	storage storage.Storage
	logger  *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	docs *repository.DocumentRepository,
	orders *repository.OrderRepository,
	store storage.Storage,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		docs:    docs,
		orders:  orders,
		storage: store,
		logger:  logger,
	}
}

// Upload stores a document and links it to an order. The order must be
// visible in the caller's branch.
func (s *DocumentService) Upload(ctx context.Context, orderID uuid.UUID, filename, contentType string, data io.Reader, uploadedBy string) (*domain.OrderDocument, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}

	storagePath, size, err := s.storage.Upload(ctx, filename, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := &domain.OrderDocument{
		OrderID:     order.ID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		StoragePath: storagePath,
		UploadedBy:  uploadedBy,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// Best effort cleanup of the orphaned blob
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			s.logger.Warn("failed to clean up orphaned document blob",
				zap.String("storage_path", storagePath),
				zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	s.logger.Info("document uploaded",
		zap.String("order_id", order.ID.String()),
		zap.String("document_id", doc.ID.String()),
		zap.String("filename", filename),
		zap.Int64("size", size))

	return doc, nil
}

// Download opens a stored document. The caller must close the reader.
func (s *DocumentService) Download(ctx context.Context, documentID uuid.UUID) (*domain.OrderDocument, io.ReadCloser, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, nil, err
	}

	// Branch check goes through the owning order
	if _, err := s.orders.GetByID(ctx, doc.OrderID); err != nil {
		return nil, nil, fmt.Errorf("%w: document %s", ErrNotFound, documentID)
	}

	reader, err := s.storage.Download(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open document: %w", err)
	}
	return doc, reader, nil
}

// ListByOrder returns the documents linked to an order
func (s *DocumentService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderDocument, error) {
	return s.docs.ListByOrder(ctx, orderID)
}
