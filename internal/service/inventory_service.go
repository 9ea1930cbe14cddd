package service

import (
	"context"
	"errors"
	"fmt"

	"go-retail-pos/internal/events"
	"go-retail-pos/internal/model"
	"go-retail-pos/internal/repository"
	"go-retail-pos/pkg/logger"
	"go-retail-pos/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrBarcodeExists       = errors.New("barcode already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
)

type ProductRequest struct {
	Barcode     string          `json:"barcode" validate:"required,max=64"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" validate:"money"`
	Stock       int             `json:"stock" validate:"gte=0"`
	ImageURL    *string         `json:"image_url"`
}

type InventoryService interface {
	CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID, actor Actor) error
	GetAllProducts() ([]model.Product, error)
	GetProductByID(id uuid.UUID) (*model.Product, error)
	GetProductByBarcode(barcode string) (*model.Product, error)
	GetAllTransactions() ([]model.TransactionView, error)
	GetTransactionByID(id uuid.UUID) (*model.TransactionView, error)
}

type inventoryService struct {
	productRepo     repository.ProductRepository
	transactionRepo repository.TransactionRepository
	events          events.Publisher
	log             logger.ZapLogger
}

func NewInventoryService(pRepo repository.ProductRepository, tRepo repository.TransactionRepository, publisher events.Publisher, log logger.ZapLogger) InventoryService {
	return &inventoryService{
		productRepo:     pRepo,
		transactionRepo: tRepo,
		events:          publisher,
		log:             log,
	}
}

func (s *inventoryService) CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error) {
	if err := validator.FirstError(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if _, err := s.productRepo.FindByBarcode(req.Barcode); err == nil {
		return nil, ErrBarcodeExists
	} else if !errors.Is(err, repository.ErrProductNotFound) {
		return nil, err
	}

	userID := actor.ID.String()
	product := &model.Product{
		Barcode:         req.Barcode,
		Name:            req.Name,
		Description:     req.Description,
		Price:           req.Price,
		Stock:           req.Stock,
		ImageURL:        req.ImageURL,
		CreatedByUserID: &userID,
		UpdatedByUserID: &userID,
	}
	product.CreatedBy = userID
	product.UpdatedBy = userID

	if err := s.productRepo.Create(product); err != nil {
		return nil, err
	}

	s.publishStockUpdate(ctx, "product_created", product, product.Stock, actor,
		fmt.Sprintf("%s created product '%s'", actor.Name, product.Name))
	return product, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error) {
	if err := validator.FirstError(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if existing, err := s.productRepo.FindByBarcode(req.Barcode); err == nil && existing.ID != id {
		return nil, ErrBarcodeExists
	}

	userID := actor.ID.String()
	var oldStock int
	updated, err := s.productRepo.UpdateLocked(id, func(p *model.Product) error {
		oldStock = p.Stock
		p.Barcode = req.Barcode
		p.Name = req.Name
		p.Description = req.Description
		p.Price = req.Price
		p.Stock = req.Stock
		p.ImageURL = req.ImageURL
		p.UpdatedBy = userID
		p.UpdatedByUserID = &userID
		return nil
	})
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, err
	}

	s.publishStockUpdate(ctx, "product_updated", updated, oldStock, actor,
		fmt.Sprintf("%s updated product '%s'", actor.Name, updated.Name))
	return updated, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, id uuid.UUID, actor Actor) error {
	product, err := s.productRepo.FindByID(id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return err
	}

	if err := s.productRepo.Delete(id, actor.ID.String()); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return &ProductNotFoundError{ProductID: id}
		}
		return err
	}

	s.publishStockUpdate(ctx, "product_deleted", product, product.Stock, actor,
		fmt.Sprintf("%s deleted product '%s'", actor.Name, product.Name))
	return nil
}

func (s *inventoryService) GetAllProducts() ([]model.Product, error) {
	return s.productRepo.FindAll()
}

func (s *inventoryService) GetProductByID(id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, &ProductNotFoundError{ProductID: id}
	}
	return product, err
}

func (s *inventoryService) GetProductByBarcode(barcode string) (*model.Product, error) {
	product, err := s.productRepo.FindByBarcode(barcode)
	if errors.Is(err, repository.ErrProductNotFound) {
		return nil, ErrProductNotFound
	}
	return product, err
}

func (s *inventoryService) GetAllTransactions() ([]model.TransactionView, error) {
	txs, err := s.transactionRepo.FindAll()
	if err != nil {
		return nil, err
	}
	views := make([]model.TransactionView, len(txs))
	for i := range txs {
		views[i] = txs[i].ToView()
	}
	return views, nil
}

func (s *inventoryService) GetTransactionByID(id uuid.UUID) (*model.TransactionView, error) {
	tx, err := s.transactionRepo.FindByID(id)
	if errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	view := tx.ToView()
	return &view, nil
}

func (s *inventoryService) publishStockUpdate(ctx context.Context, action string, p *model.Product, oldStock int, actor Actor, message string) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"action": action,
		"product": map[string]interface{}{
			"id":        p.ID,
			"barcode":   p.Barcode,
			"name":      p.Name,
			"old_stock": oldStock,
			"new_stock": p.Stock,
			"price":     p.Price,
		},
		"user": map[string]interface{}{
			"id":    actor.ID,
			"name":  actor.Name,
			"email": actor.Email,
		},
		"message": message,
	}
	if err := s.events.Publish(ctx, events.New(events.TypeStockUpdate, p.ID.String(), payload)); err != nil {
		s.log.Warn("stock update not delivered", zap.String("product_id", p.ID.String()), zap.Error(err))
	}
}
