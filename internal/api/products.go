package api

import (
	"context"
	"net/http"
)

// PricePoint is one entry in a product's price history.
type PricePoint struct {
	Price float64 `json:"price"`
	Date  string  `json:"date"`
}

// Product is a tracked product as returned by the API.
type Product struct {
	ID           string       `json:"_id"`
	Name         string       `json:"name"`
	Image        string       `json:"image,omitempty"`
	URL          string       `json:"url"`
	Domain       string       `json:"domain"`
	Currency     string       `json:"currency"`
	Availability string       `json:"availability"`
	CurrentPrice float64      `json:"currentPrice"`
	TargetPrice  float64      `json:"targetPrice,omitempty"`
	PriceHistory []PricePoint `json:"priceHistory,omitempty"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    string       `json:"updatedAt"`
	LastChecked  string       `json:"lastChecked,omitempty"`
	SKU          string       `json:"sku,omitempty"`
	MPN          string       `json:"mpn,omitempty"`
}

// CreateProductInput is the payload for adding a product manually.
type CreateProductInput struct {
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	CurrentPrice float64 `json:"currentPrice"`
	TargetPrice  float64 `json:"targetPrice,omitempty"`
	Image        string  `json:"image,omitempty"`
	Currency     string  `json:"currency,omitempty"`
	Availability string  `json:"availability,omitempty"`
}

// GetProducts returns all tracked products.
func (c *Client) GetProducts(ctx context.Context) ([]Product, error) {
	body, err := c.do(ctx, requestOpts{method: http.MethodGet, path: "/products"})
	if err != nil {
		return nil, err
	}
	return decodeData[[]Product](body), nil
}

// CreateProduct adds a product with caller-supplied details.
func (c *Client) CreateProduct(ctx context.Context, in CreateProductInput) (Product, error) {
	body, err := c.do(ctx, requestOpts{method: http.MethodPost, path: "/products", body: in})
	if err != nil {
		return Product{}, err
	}
	return decodeData[Product](body), nil
}

// CreateProductsByURL adds products by URL; the server scrapes the details.
func (c *Client) CreateProductsByURL(ctx context.Context, urls []string) ([]Product, error) {
	body, err := c.do(ctx, requestOpts{
		method: http.MethodPost,
		path:   "/products/url",
		body:   map[string][]string{"urls": urls},
	})
	if err != nil {
		return nil, err
	}
	return decodeData[[]Product](body), nil
}
