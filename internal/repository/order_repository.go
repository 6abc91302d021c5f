package repository

import (
	"context"
	"strings"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	query := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Vehicle").
		Preload("Selections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Documents").
		Where("id = ?", id)
	query = ApplyBranchFilter(ctx, query)
	err := query.First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// FindStartedByVehicle returns the open (status=created) order for a vehicle,
// if any. Backed by the partial unique index so there is at most one.
func (r *OrderRepository) FindStartedByVehicle(ctx context.Context, vehicleID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Vehicle").
		Where("vehicle_id = ? AND status = ?", vehicleID, domain.OrderStatusCreated).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// orderSortFields whitelists sortable columns for List
var orderSortFields = map[string]string{
	"started_at":   "orders.started_at",
	"order_number": "orders.order_number",
	"priority":     "orders.priority",
	"created_at":   "orders.created_at",
}

// OrderListFilter narrows the List query
type OrderListFilter struct {
	Status    domain.OrderStatus
	OrderType domain.OrderType
	Search    string
	Page      int
	PageSize  int
	Sort      SortConfig
}

// List returns branch-scoped orders with optional status/type/search filters.
// Search matches order number, plate and customer name.
func (r *OrderRepository) List(ctx context.Context, filter OrderListFilter) ([]domain.Order, int64, error) {
	var orders []domain.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Order{}).
		Joins("LEFT JOIN customers ON customers.id = orders.customer_id").
		Joins("LEFT JOIN vehicles ON vehicles.id = orders.vehicle_id")
	query = ApplyBranchFilterWithColumn(ctx, query, "orders.branch_id")

	if filter.Status != "" {
		query = query.Where("orders.status = ?", filter.Status)
	}
	if filter.OrderType != "" {
		query = query.Where("orders.order_type = ?", filter.OrderType)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(orders.order_number) LIKE ? OR LOWER(vehicles.plate_number) LIKE ? OR LOWER(customers.full_name) LIKE ? OR LOWER(customers.phone) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	err := query.
		Order(BuildOrderClause(filter.Sort, orderSortFields, "orders.started_at DESC")).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Preload("Customer").
		Preload("Vehicle").
		Preload("Selections", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Find(&orders).Error

	return orders, total, err
}

// ReplaceSelections swaps the whole selection set of an order
func (r *OrderRepository) ReplaceSelections(ctx context.Context, orderID uuid.UUID, selections []domain.OrderServiceSelection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).Delete(&domain.OrderServiceSelection{}).Error; err != nil {
			return err
		}
		for i := range selections {
			selections[i].OrderID = orderID
			selections[i].Position = i
		}
		if len(selections) == 0 {
			return nil
		}
		return tx.Create(&selections).Error
	})
}

// dayRange returns [start, end) of the local day containing t
func dayRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.Add(24 * time.Hour)
}

// CountStarted returns the number of in-progress orders in the branch
func (r *OrderRepository) CountStarted(ctx context.Context) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("status = ?", domain.OrderStatusCreated)
	query = ApplyBranchFilter(ctx, query)
	err := query.Count(&count).Error
	return count, err
}

// CountStartedToday returns the number of orders started today
func (r *OrderRepository) CountStartedToday(ctx context.Context, now time.Time) (int64, error) {
	start, end := dayRange(now)
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("status = ? AND started_at >= ? AND started_at < ?", domain.OrderStatusCreated, start, end)
	query = ApplyBranchFilter(ctx, query)
	err := query.Count(&count).Error
	return count, err
}

// CountRepeatedVehiclesToday counts vehicles with two or more orders started
// today, grouped by plate. All statuses count: the partial unique index
// allows only one open order per vehicle, so a repeat visit necessarily
// closed the earlier order first and a status filter would always yield
// zero.
func (r *OrderRepository) CountRepeatedVehiclesToday(ctx context.Context, now time.Time) (int64, error) {
	start, end := dayRange(now)

	query := r.db.WithContext(ctx).Model(&domain.Order{}).
		Joins("JOIN vehicles ON vehicles.id = orders.vehicle_id").
		Where("orders.started_at >= ? AND orders.started_at < ?", start, end).
		Where("orders.vehicle_id IS NOT NULL")
	query = ApplyBranchFilterWithColumn(ctx, query, "orders.branch_id")

	type row struct {
		Plate string
		N     int64
	}
	var rows []row
	err := query.
		Select("LOWER(vehicles.plate_number) AS plate, COUNT(orders.id) AS n").
		Group("LOWER(vehicles.plate_number)").
		Having("COUNT(orders.id) >= ?", 2).
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// ListOverruns returns orders with a recorded overrun reason, newest report
// first.
func (r *OrderRepository) ListOverruns(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	query := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Vehicle").
		Where("overrun_reason <> '' AND overrun_reported_at IS NOT NULL")
	query = ApplyBranchFilter(ctx, query)
	err := query.Order("overrun_reported_at DESC").Find(&orders).Error
	return orders, err
}

// CountCompletedLate counts completed orders whose actual duration exceeded
// the estimate.
func (r *OrderRepository) CountCompletedLate(ctx context.Context) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("status = ?", domain.OrderStatusCompleted).
		Where("actual_duration IS NOT NULL AND estimated_duration IS NOT NULL").
		Where("actual_duration > estimated_duration")
	query = ApplyBranchFilter(ctx, query)
	err := query.Count(&count).Error
	return count, err
}

// ReasonCount is one overrun reason with its frequency
type ReasonCount struct {
	Reason string
	Count  int64
}

// TopOverrunReasons returns the most frequent overrun reasons
func (r *OrderRepository) TopOverrunReasons(ctx context.Context, limit int) ([]ReasonCount, error) {
	var rows []ReasonCount
	query := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("overrun_reason <> ''")
	query = ApplyBranchFilter(ctx, query)
	err := query.
		Select("overrun_reason AS reason, COUNT(id) AS count").
		Group("overrun_reason").
		Order("count DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
