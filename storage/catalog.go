package storage

import (
	"time"
)

// Collection names one of the storefront's product collections.
type Collection string

// Product collections exposed under /api/{collection}.
const (
	CollectionWomen    Collection = "women-perfumes"
	CollectionMen      Collection = "men-perfumes"
	CollectionGiftSets Collection = "gift-sets"
)

// Collections lists every known collection in display order.
var Collections = []Collection{CollectionWomen, CollectionMen, CollectionGiftSets}

// ParseCollection maps a path segment to a Collection.
func ParseCollection(s string) (Collection, bool) {
	for _, c := range Collections {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Variant is a purchasable size of a product.
type Variant struct {
	Size  string  `json:"size"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// Product is a perfume or gift set in one of the collections.
type Product struct {
	ID            string     `json:"id"`
	Collection    Collection `json:"collection"`
	Name          string     `json:"name"`
	Brand         string     `json:"brand"`
	Description   string     `json:"description"`
	Concentration string     `json:"concentration"`
	ImageURL      string     `json:"image_url"`
	ImageURLs     []string   `json:"image_urls"`
	TopNotes      []string   `json:"top_notes"`
	HeartNotes    []string   `json:"heart_notes"`
	BaseNotes     []string   `json:"base_notes"`
	Variants      []Variant  `json:"variants"`
	Rating        *float64   `json:"rating"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NormalizeImages makes ImageURL and ImageURLs agree: the primary image
// defaults to the first gallery entry and the gallery defaults to the
// primary image.
func (p *Product) NormalizeImages() {
	if p.ImageURL == "" && len(p.ImageURLs) > 0 {
		p.ImageURL = p.ImageURLs[0]
	}
	if len(p.ImageURLs) == 0 && p.ImageURL != "" {
		p.ImageURLs = []string{p.ImageURL}
	}
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

// Order statuses.
const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// DefaultCountry is used when an order does not name a country.
const DefaultCountry = "Bulgaria"

// OrderItem is one line of an order.
type OrderItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Variant  string  `json:"variant,omitempty"`
}

// Order is a customer checkout.
type Order struct {
	ID           string      `json:"id"`
	FirstName    string      `json:"customer_first_name"`
	MiddleName   string      `json:"customer_middle_name,omitempty"`
	LastName     string      `json:"customer_last_name"`
	Address      string      `json:"address"`
	Phone        string      `json:"phone"`
	Municipality string      `json:"municipality"`
	City         string      `json:"city"`
	Country      string      `json:"country"`
	Items        []OrderItem `json:"items"`
	TotalPrice   float64     `json:"total_price"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
