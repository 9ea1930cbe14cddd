package service

import (
	"fmt"
	"time"

	"go-retail-pos/internal/repository"
)

const (
	defaultTopProducts = 10
	maxTopProducts     = 100
)

// Ranges accepted by GetSalesOverTime, in days.
var salesRanges = map[int]bool{7: true, 30: true, 90: true}

type DashboardService interface {
	GetDashboardStats() (*repository.DashboardStats, error)
	GetMonthlySales(year int) ([]repository.MonthlySales, error)
	GetTopProducts(limit int) ([]repository.TopProduct, error)
	GetSalesOverTime(days int) ([]repository.DailySales, error)
	GetStockLevels() (*repository.StockLevels, error)
}

type dashboardService struct {
	txRepo            repository.TransactionRepository
	lowStockThreshold int
	loc               *time.Location
	now               func() time.Time
}

func NewDashboardService(txRepo repository.TransactionRepository, lowStockThreshold int, loc *time.Location) DashboardService {
	return &dashboardService{
		txRepo:            txRepo,
		lowStockThreshold: lowStockThreshold,
		loc:               loc,
		now:               time.Now,
	}
}

func (s *dashboardService) GetDashboardStats() (*repository.DashboardStats, error) {
	return s.txRepo.GetDashboardStats(s.lowStockThreshold)
}

func (s *dashboardService) GetMonthlySales(year int) ([]repository.MonthlySales, error) {
	if year == 0 {
		year = s.now().In(s.loc).Year()
	}
	if year < 1970 || year > 9999 {
		return nil, fmt.Errorf("%w: year out of range", ErrInvalidFilter)
	}
	return s.txRepo.GetMonthlySales(year, s.loc)
}

func (s *dashboardService) GetTopProducts(limit int) ([]repository.TopProduct, error) {
	if limit <= 0 {
		limit = defaultTopProducts
	}
	if limit > maxTopProducts {
		limit = maxTopProducts
	}
	return s.txRepo.GetTopProducts(limit)
}

func (s *dashboardService) GetSalesOverTime(days int) ([]repository.DailySales, error) {
	if !salesRanges[days] {
		return nil, fmt.Errorf("%w: range must be 7, 30 or 90", ErrInvalidFilter)
	}
	today := s.now().In(s.loc)
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)
	return s.txRepo.GetSalesOverTime(midnight.AddDate(0, 0, -(days - 1)), s.loc)
}

func (s *dashboardService) GetStockLevels() (*repository.StockLevels, error) {
	return s.txRepo.GetStockLevels(s.lowStockThreshold)
}
