package validation

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/giantswarm/storefront/storage"
)

// LoginRequest is the body of POST /api/admin/auth.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=100"`
}

// OrderItemRequest is one cart line submitted at checkout.
type OrderItemRequest struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name" validate:"required"`
	Price    float64 `json:"price" validate:"gt=0"`
	Quantity int     `json:"quantity" validate:"gt=0"`
	Variant  string  `json:"variant,omitempty"`
}

// OrderRequest is the body of POST /api/orders.
type OrderRequest struct {
	FirstName    string             `json:"firstName" validate:"required,max=50,personname"`
	MiddleName   string             `json:"middleName,omitempty" validate:"omitempty,max=50,personname"`
	LastName     string             `json:"lastName" validate:"required,max=50,personname"`
	Address      string             `json:"address" validate:"required,min=5,max=200"`
	Phone        string             `json:"phone" validate:"required,min=8,max=20,phone"`
	Municipality string             `json:"municipality" validate:"required,max=100"`
	City         string             `json:"city" validate:"required,max=100"`
	Country      string             `json:"country,omitempty" validate:"omitempty,max=100"`
	Items        []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	TotalPrice   float64            `json:"totalPrice" validate:"gt=0"`
	Status       string             `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
}

// Order converts a validated request into a new order.
func (r *OrderRequest) Order(id string, now time.Time) *storage.Order {
	items := make([]storage.OrderItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = storage.OrderItem{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Variant:  it.Variant,
		}
	}

	country := strings.TrimSpace(r.Country)
	if country == "" {
		country = storage.DefaultCountry
	}
	status := storage.OrderStatus(r.Status)
	if status == "" {
		status = storage.OrderPending
	}

	return &storage.Order{
		ID:           id,
		FirstName:    r.FirstName,
		MiddleName:   r.MiddleName,
		LastName:     r.LastName,
		Address:      r.Address,
		Phone:        r.Phone,
		Municipality: r.Municipality,
		City:         r.City,
		Country:      country,
		Items:        items,
		TotalPrice:   r.TotalPrice,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// OrderStatusRequest is the body of PUT /api/orders.
type OrderStatusRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=pending confirmed shipped delivered cancelled"`
}

// VariantRequest is a purchasable size of a product.
type VariantRequest struct {
	Size  string  `json:"size" validate:"required"`
	Price float64 `json:"price" validate:"gt=0,lte=10000"`
	Stock int     `json:"stock" validate:"gte=0"`
}

// ProductRequest is the body of POST and PUT /api/{collection}.
// ID is only read on PUT.
type ProductRequest struct {
	ID            string           `json:"id,omitempty"`
	Name          string           `json:"name" validate:"required,max=100"`
	Brand         string           `json:"brand" validate:"required,max=50"`
	Description   string           `json:"description" validate:"required,max=1000"`
	Concentration string           `json:"concentration" validate:"required,max=50"`
	ImageURL      string           `json:"image_url,omitempty" validate:"omitempty,url"`
	ImageURLs     []string         `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	TopNotes      []string         `json:"top_notes" validate:"required,max=20"`
	HeartNotes    []string         `json:"heart_notes" validate:"required,max=20"`
	BaseNotes     []string         `json:"base_notes" validate:"required,max=20"`
	Variants      []VariantRequest `json:"variants" validate:"required,min=1,dive"`
	Rating        *float64         `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// productImagesRequired reports a product that has neither image_url nor image_urls.
func productImagesRequired(sl validator.StructLevel) {
	p := sl.Current().Interface().(ProductRequest)
	if p.ImageURL == "" && len(p.ImageURLs) == 0 {
		sl.ReportError(p.ImageURL, "image_url", "ImageURL", "images", "")
	}
}

// Product converts a validated request into a product of collection c.
// Timestamps are left to the caller.
func (r *ProductRequest) Product(c storage.Collection) *storage.Product {
	variants := make([]storage.Variant, len(r.Variants))
	for i, v := range r.Variants {
		variants[i] = storage.Variant{Size: v.Size, Price: v.Price, Stock: v.Stock}
	}

	p := &storage.Product{
		ID:            r.ID,
		Collection:    c,
		Name:          r.Name,
		Brand:         r.Brand,
		Description:   r.Description,
		Concentration: r.Concentration,
		ImageURL:      r.ImageURL,
		ImageURLs:     cloneStrings(r.ImageURLs),
		TopNotes:      cloneStrings(r.TopNotes),
		HeartNotes:    cloneStrings(r.HeartNotes),
		BaseNotes:     cloneStrings(r.BaseNotes),
		Variants:      variants,
		Rating:        r.Rating,
	}
	p.NormalizeImages()
	return p
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
