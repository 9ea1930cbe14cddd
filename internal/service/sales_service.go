package service

import (
	"fmt"
	"time"

	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	FilterDaily   = "daily"
	FilterWeekly  = "weekly"
	FilterMonthly = "monthly"
	FilterYearly  = "yearly"
	FilterRange   = "range"
)

type SalesQuery struct {
	Filter string
	Start  string // YYYY-MM-DD, reference day for the period
	End    string // YYYY-MM-DD, inclusive; range only
}

type SalesHistory struct {
	StaffID      uuid.UUID               `json:"staff_id"`
	From         *time.Time              `json:"from,omitempty"`
	To           *time.Time              `json:"to,omitempty"`
	Transactions []model.TransactionView `json:"transactions"`
	TotalSales   decimal.Decimal         `json:"total_sales"`
	UnitsSold    int                     `json:"units_sold"`
}

type SalesService interface {
	GetStaffSales(staffID uuid.UUID, q SalesQuery) (*SalesHistory, error)
}

type salesService struct {
	txRepo repository.TransactionRepository
	loc    *time.Location
	now    func() time.Time
}

func NewSalesService(txRepo repository.TransactionRepository, loc *time.Location) SalesService {
	return &salesService{txRepo: txRepo, loc: loc, now: time.Now}
}

// earliest/latest bound the unfiltered history.
var (
	earliest = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	latest   = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

func (s *salesService) GetStaffSales(staffID uuid.UUID, q SalesQuery) (*SalesHistory, error) {
	history := &SalesHistory{StaffID: staffID, TotalSales: decimal.Zero, Transactions: []model.TransactionView{}}

	from, to := earliest, latest
	if q.Filter != "" {
		var err error
		from, to, err = periodBounds(q, s.now().In(s.loc), s.loc)
		if err != nil {
			return nil, err
		}
		history.From, history.To = &from, &to
	}

	txs, err := s.txRepo.FindByStaff(staffID, from, to)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		history.Transactions = append(history.Transactions, txs[i].ToView())
		history.TotalSales = history.TotalSales.Add(txs[i].TotalPrice)
		history.UnitsSold += txs[i].Quantity
	}
	return history, nil
}

// periodBounds returns the half-open interval [from, to) selected by q.
// Weeks start on Monday. Without a start date the period containing today is used.
func periodBounds(q SalesQuery, today time.Time, loc *time.Location) (time.Time, time.Time, error) {
	ref := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	if q.Start != "" {
		parsed, err := parseDay(q.Start, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start must be YYYY-MM-DD", ErrInvalidFilter)
		}
		ref = parsed
	}

	switch q.Filter {
	case FilterDaily:
		return ref, ref.AddDate(0, 0, 1), nil

	case FilterWeekly:
		weekday := int(ref.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := ref.AddDate(0, 0, -(weekday - 1))
		return start, start.AddDate(0, 0, 7), nil

	case FilterMonthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil

	case FilterYearly:
		start := time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil

	case FilterRange:
		end := ref
		if q.End != "" {
			parsed, err := parseDay(q.End, loc)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("%w: end must be YYYY-MM-DD", ErrInvalidFilter)
			}
			end = parsed
		}
		if end.Before(ref) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", ErrInvalidFilter)
		}
		return ref, end.AddDate(0, 0, 1), nil
	}

	return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown filter %q", ErrInvalidFilter, q.Filter)
}
