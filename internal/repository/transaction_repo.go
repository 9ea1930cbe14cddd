package repository

import (
	"errors"
	"time"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionRepository serves the read side of the sales ledger.
// Writes happen only through CheckoutStore.
type TransactionRepository interface {
	FindAll() ([]model.Transaction, error)
	FindByID(id uuid.UUID) (*model.Transaction, error)
	FindByStaff(staffID uuid.UUID, start, end time.Time) ([]model.Transaction, error)
	GetDashboardStats(lowStockThreshold int) (*DashboardStats, error)
	GetMonthlySales(year int, loc *time.Location) ([]MonthlySales, error)
	GetTopProducts(limit int) ([]TopProduct, error)
	GetSalesOverTime(since time.Time, loc *time.Location) ([]DailySales, error)
	GetStockLevels(lowStockThreshold int) (*StockLevels, error)
}

type DashboardStats struct {
	TotalProducts     int64           `json:"total_products"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	ActiveStaff       int64           `json:"active_staff"`
	TotalTransactions int64           `json:"total_transactions"`
	LowStockCount     int64           `json:"low_stock_count"`
	TotalValuation    decimal.Decimal `json:"total_valuation"`
}

type MonthlySales struct {
	Month     int             `json:"month"`
	Total     decimal.Decimal `json:"total"`
	UnitsSold int64           `json:"units_sold"`
}

type TopProduct struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitsSold int64           `json:"units_sold"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type DailySales struct {
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
	UnitsSold int64           `json:"units_sold"`
}

type StockLevels struct {
	OutOfStock int64 `json:"out_of_stock"`
	Low        int64 `json:"low"`
	Sufficient int64 `json:"sufficient"`
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) FindAll() ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.Preload("Product", unscoped).Preload("Staff", unscoped).
		Order("sold_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByID(id uuid.UUID) (*model.Transaction, error) {
	var transaction model.Transaction
	err := r.db.Preload("Product", unscoped).Preload("Staff", unscoped).First(&transaction, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, ErrTransactionNotFound)
	}
	return &transaction, nil
}

func (r *transactionRepo) FindByStaff(staffID uuid.UUID, start, end time.Time) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.Preload("Product", unscoped).Preload("Staff", unscoped).
		Where("staff_id = ? AND sold_at >= ? AND sold_at < ?", staffID, start, end).
		Order("sold_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) GetDashboardStats(lowStockThreshold int) (*DashboardStats, error) {
	var stats DashboardStats

	if err := r.db.Model(&model.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Product{}).Where("stock < ?", lowStockThreshold).Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Product{}).Select("COALESCE(SUM(stock * price), 0)").Scan(&stats.TotalValuation).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Transaction{}).Count(&stats.TotalTransactions).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.Transaction{}).Select("COALESCE(SUM(total_price), 0)").Scan(&stats.TotalSales).Error; err != nil {
		return nil, err
	}
	if err := r.db.Model(&model.User{}).Where("is_active = ?", true).Count(&stats.ActiveStaff).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}

func (r *transactionRepo) GetMonthlySales(year int, loc *time.Location) ([]MonthlySales, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(1, 0, 0)

	var rows []MonthlySales
	err := r.db.Model(&model.Transaction{}).
		Select("EXTRACT(MONTH FROM sold_at AT TIME ZONE ?)::int AS month, COALESCE(SUM(total_price), 0) AS total, COALESCE(SUM(quantity), 0) AS units_sold", loc.String()).
		Where("sold_at >= ? AND sold_at < ?", start, end).
		Group("month").
		Order("month ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// Every month is reported, including those without sales.
	byMonth := make(map[int]MonthlySales, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row
	}
	months := make([]MonthlySales, 12)
	for i := range months {
		m, ok := byMonth[i+1]
		if !ok {
			m = MonthlySales{Month: i + 1, Total: decimal.Zero}
		}
		months[i] = m
	}
	return months, nil
}

func (r *transactionRepo) GetTopProducts(limit int) ([]TopProduct, error) {
	var top []TopProduct
	err := r.db.Table("transactions").
		Select("transactions.product_id, products.name, SUM(transactions.quantity) AS units_sold, SUM(transactions.total_price) AS revenue").
		Joins("JOIN products ON products.id = transactions.product_id").
		Group("transactions.product_id, products.name").
		Order("units_sold DESC, revenue DESC").
		Limit(limit).
		Scan(&top).Error
	return top, err
}

func (r *transactionRepo) GetSalesOverTime(since time.Time, loc *time.Location) ([]DailySales, error) {
	var days []DailySales
	err := r.db.Model(&model.Transaction{}).
		Select("TO_CHAR(sold_at AT TIME ZONE ?, 'YYYY-MM-DD') AS date, COALESCE(SUM(total_price), 0) AS total, COALESCE(SUM(quantity), 0) AS units_sold", loc.String()).
		Where("sold_at >= ?", since).
		Group("date").
		Order("date ASC").
		Scan(&days).Error
	return days, err
}

func (r *transactionRepo) GetStockLevels(lowStockThreshold int) (*StockLevels, error) {
	var levels StockLevels
	err := r.db.Model(&model.Product{}).
		Select(`
			COUNT(*) FILTER (WHERE stock = 0) AS out_of_stock,
			COUNT(*) FILTER (WHERE stock > 0 AND stock < ?) AS low,
			COUNT(*) FILTER (WHERE stock >= ?) AS sufficient
		`, lowStockThreshold, lowStockThreshold).
		Scan(&levels).Error
	if err != nil {
		return nil, err
	}
	return &levels, nil
}

// Ledger rows outlive soft-deleted products and staff.
func unscoped(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}
