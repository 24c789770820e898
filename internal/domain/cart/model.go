package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrItemNotFound    = errors.New("item not found in cart")
)

// LineItem es una línea del carrito; vive solo en memoria del proceso.
type LineItem struct {
	ProductID  string  `json:"product_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	ImageURL   string  `json:"image_url"`
	Quantity   int     `json:"quantity"`
	SupplierID string  `json:"supplier_id,omitempty"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []LineItem `json:"items"`
	Total     float64    `json:"total"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func newCart(uid string) *Cart {
	return &Cart{UserID: uid, Items: []LineItem{}}
}

func (c *Cart) find(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// add suma la cantidad si el producto ya está; si no, agrega la línea al final.
func (c *Cart) add(item LineItem, now time.Time) error {
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.find(item.ProductID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
	} else {
		c.Items = append(c.Items, item)
	}
	c.touch(now)
	return nil
}

func (c *Cart) remove(productID string, now time.Time) error {
	i := c.find(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch(now)
	return nil
}

func (c *Cart) touch(now time.Time) {
	c.UpdatedAt = now
	c.Total = 0
	for _, it := range c.Items {
		c.Total += it.Price * float64(it.Quantity)
	}
}

func (c *Cart) clone() Cart {
	out := *c
	out.Items = append([]LineItem(nil), c.Items...)
	if out.Items == nil {
		out.Items = []LineItem{}
	}
	return out
}
