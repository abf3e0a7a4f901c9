package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/repository"
)

// CartProduct is one entry of the client cart sent to /validate-cart.
type CartProduct struct {
	PayloadID       uint64  `json:"payloadId"`
	Type            string  `json:"type"`
	FrontImage      *string `json:"frontImage"`
	SelectedGroupID *uint64 `json:"selectedGroupId"`
}

// CartService re-prices client carts against the catalog and keeps the
// result in the cart store.
type CartService struct {
	catalog CatalogStore
	carts   CartStore
	logger  *slog.Logger
}

// NewCartService wires the cart validator.
func NewCartService(catalog CatalogStore, carts CartStore, logger *slog.Logger) *CartService {
	return &CartService{catalog: catalog, carts: carts, logger: logger}
}

// Validate prices every product from the catalog, drops unknown ones,
// stores the result and returns it with the new cart id.
func (s *CartService) Validate(ctx context.Context, products []CartProduct) (string, []model.CartItem, error) {
	items := make([]model.CartItem, 0, len(products))
	for _, p := range products {
		it, ok, err := s.price(ctx, p)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			s.logger.Info("cart product dropped", "payload_id", p.PayloadID, "type", p.Type)
			continue
		}
		items = append(items, it)
	}
	id := uuid.NewString()
	if err := s.carts.Save(ctx, id, items); err != nil {
		return "", nil, fmt.Errorf("save cart: %w", err)
	}
	return id, items, nil
}

// Load returns the stored cart, or an empty cart for unknown ids.
func (s *CartService) Load(ctx context.Context, id string) ([]model.CartItem, error) {
	if id == "" {
		return []model.CartItem{}, nil
	}
	items, err := s.carts.Load(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return []model.CartItem{}, nil
	}
	return items, err
}

func (s *CartService) price(ctx context.Context, p CartProduct) (model.CartItem, bool, error) {
	it := model.CartItem{ID: p.PayloadID, Type: p.Type, CoverImage: p.FrontImage}
	var err error
	switch p.Type {
	case model.ProductCourse:
		var c model.Course
		if c, err = s.catalog.GetCourse(ctx, p.PayloadID); err == nil {
			if c.Estado == model.CourseHidden {
				return it, false, nil
			}
			it.Title, it.OriginalPrice, it.DiscountedPrice = c.Title, c.Precio, c.PrecioConDescuento
			if c.CoverImage != nil {
				it.CoverImage = c.CoverImage
			}
		}
	case model.ProductWorkshop:
		var w model.Workshop
		if w, err = s.catalog.GetWorkshop(ctx, p.PayloadID); err == nil {
			it.Title, it.OriginalPrice = w.Title, w.Precio
			if w.CoverImage != nil {
				it.CoverImage = w.CoverImage
			}
			if p.SelectedGroupID != nil {
				g, ok := findGroup(w.Groups, *p.SelectedGroupID)
				if !ok {
					return it, false, nil
				}
				it.SelectedGroupID = p.SelectedGroupID
				it.SelectedGroupHorario, it.SelectedGroupFechas = &g.Horario, &g.Fechas
			}
		}
	case model.ProductMembership:
		var mt model.MembershipType
		if mt, err = s.catalog.GetMembershipType(ctx, p.PayloadID); err == nil {
			it.Title, it.OriginalPrice = mt.Nombre, mt.Precio
		}
	default:
		return it, false, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return it, false, nil
	}
	if err != nil {
		return it, false, fmt.Errorf("price %s %d: %w", p.Type, p.PayloadID, err)
	}
	if it.Title == "" {
		it.Title = "Sin título"
	}
	it.FinalPrice = it.OriginalPrice
	if it.DiscountedPrice != nil {
		it.FinalPrice = *it.DiscountedPrice
	}
	return it, true, nil
}

func findGroup(groups []model.WorkshopGroup, id uint64) (model.WorkshopGroup, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return model.WorkshopGroup{}, false
}
