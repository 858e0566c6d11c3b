package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"autoparts/backend/internal/domain"
	"autoparts/backend/internal/draft"
	"autoparts/backend/internal/store"
)

const minSearchTermLength = 2

func (s *Service) CreateDraft(ctx context.Context, req domain.DraftCreateRequest) (domain.SaleDraft, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.PaymentMethod = normalizePaymentMethod(req.PaymentMethod)
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if err := s.validateStruct(req); err != nil {
		return domain.SaleDraft{}, err
	}

	sale := domain.SaleDraft{
		CustomerName:  req.CustomerName,
		PaymentMethod: req.PaymentMethod,
	}
	draft.Edit(&sale)

	created, err := s.repo.CreateDraft(ctx, sale)
	if err != nil {
		return domain.SaleDraft{}, err
	}
	s.log.Debug("draft created", zap.String("draft_id", created.ID))
	return *created, nil
}

func (s *Service) GetDraft(ctx context.Context, id string) (domain.SaleDraft, error) {
	sale, err := s.repo.GetDraft(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.SaleDraft{}, err
	}
	draft.Edit(sale)
	return *sale, nil
}

// UpdateDraft sets the sale-level fields of a draft.
func (s *Service) UpdateDraft(ctx context.Context, id string, req domain.DraftUpdateRequest) (domain.SaleDraft, error) {
	trimPtr(req.CustomerName)
	if req.PaymentMethod != nil {
		method := normalizePaymentMethod(*req.PaymentMethod)
		req.PaymentMethod = &method
	}
	if err := s.validateStruct(req); err != nil {
		return domain.SaleDraft{}, err
	}

	return s.editDraft(ctx, id, func(d *draft.Draft) error {
		sale := d.Sale()
		assignString(&sale.CustomerName, req.CustomerName)
		if req.PaymentMethod != nil {
			sale.PaymentMethod = *req.PaymentMethod
		}
		if req.Discount != nil {
			if err := d.SetDiscount(*req.Discount); err != nil {
				return err
			}
		}
		if req.Tax != nil {
			if err := d.SetTax(*req.Tax); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddDraftItem adds a product by id, or by a search term that matches
// exactly one active product.
func (s *Service) AddDraftItem(ctx context.Context, id string, req domain.DraftItemRequest) (domain.SaleDraft, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Term = strings.TrimSpace(req.Term)
	if err := s.validateStruct(req); err != nil {
		return domain.SaleDraft{}, err
	}

	product, err := s.resolveDraftProduct(ctx, req)
	if err != nil {
		return domain.SaleDraft{}, err
	}

	return s.editDraft(ctx, id, func(d *draft.Draft) error {
		d.AddProduct(product)
		return nil
	})
}

func (s *Service) UpdateDraftLine(ctx context.Context, id string, lineID string, req domain.DraftLineUpdateRequest) (domain.SaleDraft, error) {
	if err := s.validateStruct(req); err != nil {
		return domain.SaleDraft{}, err
	}

	return s.editDraft(ctx, id, func(d *draft.Draft) error {
		if req.Quantity != nil {
			if err := d.SetQuantity(lineID, *req.Quantity); err != nil {
				return err
			}
		}
		if req.Discount != nil {
			if err := d.SetLineDiscount(lineID, *req.Discount); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) RemoveDraftLine(ctx context.Context, id string, lineID string) (domain.SaleDraft, error) {
	return s.editDraft(ctx, id, func(d *draft.Draft) error {
		return d.RemoveLine(lineID)
	})
}

func (s *Service) DiscardDraft(ctx context.Context, id string) error {
	if err := s.repo.DeleteDraft(ctx, strings.TrimSpace(id)); err != nil {
		return err
	}
	s.log.Debug("draft discarded", zap.String("draft_id", id))
	return nil
}

// SubmitDraft records the draft as a sale and removes it. An empty draft is
// rejected with draft.ErrEmpty and kept unchanged.
func (s *Service) SubmitDraft(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	sale, err := s.repo.GetDraft(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}

	d := draft.Edit(sale)
	if err := d.Validate(); err != nil {
		return domain.Sale{}, err
	}

	created, err := s.CreateSale(ctx, d.SaleRequest())
	if err != nil {
		return domain.Sale{}, err
	}
	if err := s.repo.DeleteDraft(ctx, id); err != nil {
		s.log.Warn("failed to remove submitted draft", zap.String("draft_id", id), zap.Error(err))
	}
	return created, nil
}

func (s *Service) editDraft(ctx context.Context, id string, edit func(d *draft.Draft) error) (domain.SaleDraft, error) {
	sale, err := s.repo.GetDraft(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.SaleDraft{}, err
	}

	d := draft.Edit(sale)
	if err := edit(d); err != nil {
		return domain.SaleDraft{}, err
	}

	saved, err := s.repo.SaveDraft(ctx, *d.Sale())
	if err != nil {
		return domain.SaleDraft{}, err
	}
	return *saved, nil
}

func (s *Service) resolveDraftProduct(ctx context.Context, req domain.DraftItemRequest) (domain.Product, error) {
	if req.ProductID != "" {
		product, err := s.repo.GetProduct(ctx, req.ProductID)
		if err != nil {
			return domain.Product{}, err
		}
		if !product.IsActive {
			return domain.Product{}, fmt.Errorf("product %s: %w", product.ID, store.ErrInactive)
		}
		return *product, nil
	}

	if len([]rune(req.Term)) < minSearchTermLength {
		return domain.Product{}, store.NewValidationError("term", fmt.Sprintf("provide product_id or a term of at least %d characters", minSearchTermLength))
	}
	matches, err := s.repo.SearchProducts(ctx, req.Term)
	if err != nil {
		return domain.Product{}, err
	}
	switch len(matches) {
	case 0:
		return domain.Product{}, fmt.Errorf("no product matches %q: %w", req.Term, store.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return domain.Product{}, store.NewValidationError("term", fmt.Sprintf("matches %d products, refine the search", len(matches)))
	}
}
