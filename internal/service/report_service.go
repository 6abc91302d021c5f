package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"go.uber.org/zap"
)

// ReportService computes dashboard KPIs and the overrun report
type ReportService struct {
	orders *repository.OrderRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(orders *repository.OrderRepository, logger *zap.Logger) *ReportService {
	return &ReportService{
		orders: orders,
		logger: logger,
		now:    time.Now,
	}
}

// OrderKPIs is the started-orders dashboard header
type OrderKPIs struct {
	TotalStarted          int64
	TodayStarted          int64
	RepeatedVehiclesToday int64
}

// GetOrderKPIs computes the started-orders KPI counts for the caller's
// branch. Repeated vehicles groups today's orders by plate and counts
// plates with two or more.
func (s *ReportService) GetOrderKPIs(ctx context.Context) (*OrderKPIs, error) {
	now := s.now()

	total, err := s.orders.CountStarted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count started orders: %w", err)
	}

	today, err := s.orders.CountStartedToday(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's orders: %w", err)
	}

	repeated, err := s.orders.CountRepeatedVehiclesToday(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count repeated vehicles: %w", err)
	}

	return &OrderKPIs{
		TotalStarted:          total,
		TodayStarted:          today,
		RepeatedVehiclesToday: repeated,
	}, nil
}

// OverrunReport is the aggregated overrun view
type OverrunReport struct {
	Orders          []domain.Order
	AvgDelayMinutes *float64
	CompletedLate   int64
	TopReasons      []repository.ReasonCount
}

// GetOverrunReport returns overrun rows sorted by report time descending,
// the average delay over rows where it is computable, the completed-late
// count and the top-10 reasons by frequency.
func (s *ReportService) GetOverrunReport(ctx context.Context) (*OverrunReport, error) {
	orders, err := s.orders.ListOverruns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list overruns: %w", err)
	}

	var delaySum int64
	var delayCount int64
	for i := range orders {
		if d := orders[i].DelayMinutes(); d != nil {
			delaySum += int64(*d)
			delayCount++
		}
	}
	var avg *float64
	if delayCount > 0 {
		v := float64(delaySum) / float64(delayCount)
		avg = &v
	}

	completedLate, err := s.orders.CountCompletedLate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed-late orders: %w", err)
	}

	topReasons, err := s.orders.TopOverrunReasons(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate overrun reasons: %w", err)
	}

	return &OverrunReport{
		Orders:          orders,
		AvgDelayMinutes: avg,
		CompletedLate:   completedLate,
		TopReasons:      topReasons,
	}, nil
}
