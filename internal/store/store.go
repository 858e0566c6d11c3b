package store

import (
	"context"
	"errors"
	"sort"
	"strings"

	"autoparts/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInactive          = errors.New("record is inactive")
)

// ValidationError carries per-field messages for a rejected input.
type ValidationError struct {
	Detail string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

type Repository interface {
	ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error)
	SearchProducts(ctx context.Context, term string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id string) (*domain.Product, error)

	ListSuppliers(ctx context.Context, includeInactive bool) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	DeactivateSupplier(ctx context.Context, id string) (*domain.Supplier, error)

	// CreateSale persists the sale and decrements stock for every line in one
	// step. Nothing is applied when any line fails.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)

	CreateDraft(ctx context.Context, draft domain.SaleDraft) (*domain.SaleDraft, error)
	GetDraft(ctx context.Context, id string) (*domain.SaleDraft, error)
	SaveDraft(ctx context.Context, draft domain.SaleDraft) (*domain.SaleDraft, error)
	DeleteDraft(ctx context.Context, id string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}
