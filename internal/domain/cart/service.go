package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pet-marketplace/internal/domain/products"
	"pet-marketplace/internal/platform/logger"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available")
)

// ProductLookup resuelve nombre, precio e imagen del producto agregado.
type ProductLookup interface {
	Get(ctx context.Context, id string) (products.Product, error)
}

// Service guarda un carrito por identidad en memoria. No se persiste en el backend.
type Service struct {
	mu       sync.Mutex
	carts    map[string]*Cart
	products ProductLookup
	log      logger.Logger
	now      func() time.Time
}

func NewService(lookup ProductLookup, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		carts:    make(map[string]*Cart),
		products: lookup,
		log:      log.With(map[string]any{"module": "cart"}),
		now:      time.Now,
	}
}

func (s *Service) Get(uid string) (Cart, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Cart{}, ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[uid]; ok {
		return c.clone(), nil
	}
	return newCart(uid).clone(), nil
}

type AddInput struct {
	UserID    string `json:"-"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Add resuelve el producto y lo agrega; si ya estaba, se acumula la cantidad.
func (s *Service) Add(ctx context.Context, in AddInput) (Cart, error) {
	uid := strings.TrimSpace(in.UserID)
	if uid == "" {
		return Cart{}, ErrUnauthenticated
	}
	if in.Quantity <= 0 {
		return Cart{}, ErrInvalidQuantity
	}

	p, err := s.products.Get(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return Cart{}, ErrProductNotFound
		}
		return Cart{}, err
	}
	if p.Status != products.StatusAvailable {
		return Cart{}, ErrProductUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[uid]
	if !ok {
		c = newCart(uid)
		s.carts[uid] = c
	}
	err = c.add(LineItem{
		ProductID:  p.ID,
		Name:       p.Name,
		Price:      p.Price,
		ImageURL:   p.ImageURL,
		Quantity:   in.Quantity,
		SupplierID: p.SellerID,
	}, s.now().UTC())
	if err != nil {
		return Cart{}, err
	}
	return c.clone(), nil
}

func (s *Service) Remove(uid, productID string) (Cart, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Cart{}, ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[uid]
	if !ok {
		return Cart{}, ErrItemNotFound
	}
	if err := c.remove(productID, s.now().UTC()); err != nil {
		return Cart{}, err
	}
	return c.clone(), nil
}

// Clear vacía el carrito; también se llama al cerrar sesión.
func (s *Service) Clear(uid string) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return
	}
	s.mu.Lock()
	delete(s.carts, uid)
	s.mu.Unlock()
	s.log.Debug("cart cleared", map[string]any{"user_id": uid})
}
