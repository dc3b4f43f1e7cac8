// Package catalog serves the product listing and product pages from the
// commerce backend, with prices rendered the way carts render them.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Backend is the subset of the commerce backend client the catalog needs.
type Backend interface {
	ListProducts(ctx context.Context, query url.Values) (backend.ProductPage, error)
	GetProduct(ctx context.Context, productID string) (backend.Product, error)
}

// Service lists and fetches products, caching rendered results in Redis.
type Service struct {
	Backend      Backend
	Cache        *cache.JSON
	DefaultLimit int
	MaxLimit     int
	Logger       zerolog.Logger
}

// ListParams captures filters for the product listing.
type ListParams struct {
	Title       string
	Colors      []string
	Sizes       []string
	Category    string
	MinPrice    *int64
	MaxPrice    *int64
	MinDiscount *int
	Sort        string
	Stock       string
	Page        int
	Limit       int
}

// Product is a product as the storefront shows it.
type Product struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Brand           string         `json:"brand,omitempty"`
	Color           string         `json:"color,omitempty"`
	ImageURL        string         `json:"image_url,omitempty"`
	Description     string         `json:"description,omitempty"`
	Price           string         `json:"price"`
	DiscountedPrice string         `json:"discounted_price"`
	DiscountPercent int            `json:"discount_percent"`
	InStock         bool           `json:"in_stock"`
	Sizes           []backend.Size `json:"sizes,omitempty"`
}

// ListResult is one page of products with paging metadata.
type ListResult struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
	Total      int64     `json:"total"`
}

var (
	sortValues  = map[string]bool{"price_low": true, "price_high": true}
	stockValues = map[string]bool{"in_stock": true, "out_of_stock": true}
)

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit()}
	params.Title = strings.TrimSpace(values.Get("title"))
	params.Colors = splitList(values.Get("color"))
	params.Sizes = splitList(values.Get("size"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer")
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer")
		}
		params.Limit = min(limit, s.maxLimit())
	}

	for field, dst := range map[string]**int64{"minPrice": &params.MinPrice, "maxPrice": &params.MaxPrice} {
		if v := strings.TrimSpace(values.Get(field)); v != "" {
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil || parsed < 0 {
				return params, badRequest(field, field+" must be a non-negative integer")
			}
			*dst = &parsed
		}
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice")
	}
	if v := strings.TrimSpace(values.Get("minDiscount")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 || parsed > 100 {
			return params, badRequest("minDiscount", "minDiscount must be between 0 and 100")
		}
		params.MinDiscount = &parsed
	}
	if v := strings.TrimSpace(values.Get("sort")); v != "" {
		if !sortValues[v] {
			return params, badRequest("sort", "sort must be price_low or price_high")
		}
		params.Sort = v
	}
	if v := strings.TrimSpace(values.Get("stock")); v != "" {
		if !stockValues[v] {
			return params, badRequest("stock", "stock must be in_stock or out_of_stock")
		}
		params.Stock = v
	}
	return params, nil
}

// Query renders params as the backend's listing query.
func (p ListParams) Query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("title", p.Title)
	set("color", strings.Join(p.Colors, ","))
	set("size", strings.Join(p.Sizes, ","))
	set("category", p.Category)
	if p.MinPrice != nil {
		q.Set("minPrice", strconv.FormatInt(*p.MinPrice, 10))
	}
	if p.MaxPrice != nil {
		q.Set("maxPrice", strconv.FormatInt(*p.MaxPrice, 10))
	}
	if p.MinDiscount != nil {
		q.Set("minDiscount", strconv.Itoa(*p.MinDiscount))
	}
	set("sort", p.Sort)
	set("stock", p.Stock)
	q.Set("pageNumber", strconv.Itoa(p.Page))
	q.Set("pageSize", strconv.Itoa(p.Limit))
	return q
}

// List returns one page of products matching params.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	query := params.Query()
	key := cache.KeyProductList(query.Encode())
	var cached ListResult
	if s.lookup(ctx, "list", key, &cached) {
		return cached, nil
	}
	page, err := s.Backend.ListProducts(ctx, query)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{
		Items:      make([]Product, 0, len(page.Content)),
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: page.TotalPages,
		Total:      page.TotalElements,
	}
	for _, raw := range page.Content {
		product, err := present(raw)
		if err != nil {
			s.loggerFor(ctx).Warn().Err(err).Str("product_id", raw.Key()).Msg("catalog_product_skipped")
			continue
		}
		result.Items = append(result.Items, product)
	}
	s.store(ctx, key, result)
	return result, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, badRequest("id", "product id is required")
	}
	key := cache.KeyProduct(productID)
	var cached Product
	if s.lookup(ctx, "detail", key, &cached) {
		return cached, nil
	}
	raw, err := s.Backend.GetProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	product, err := present(raw)
	if err != nil {
		s.loggerFor(ctx).Error().Err(err).Str("product_id", productID).Msg("catalog_product_rejected")
		return Product{}, common.NewAppError(common.CodeBadUpstream, "unexpected product data from commerce backend", http.StatusBadGateway, err)
	}
	s.store(ctx, key, product)
	return product, nil
}

func (s *Service) lookup(ctx context.Context, view, key string, dst any) bool {
	if !s.Cache.Enabled() {
		return false
	}
	found, err := s.Cache.Get(ctx, key, dst)
	switch {
	case err != nil:
		obs.IncCounter(obs.CatalogCacheLookups, view, "error")
		s.loggerFor(ctx).Warn().Err(err).Str("key", key).Msg("catalog_cache_lookup_failed")
		return false
	case found:
		obs.IncCounter(obs.CatalogCacheLookups, view, "hit")
		return true
	default:
		obs.IncCounter(obs.CatalogCacheLookups, view, "miss")
		return false
	}
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if err := s.Cache.Set(ctx, key, v); err != nil {
		s.loggerFor(ctx).Warn().Err(err).Str("key", key).Msg("catalog_cache_store_failed")
	}
}

// present renders a backend product. A missing discounted price means the
// product sells at full price.
func present(p backend.Product) (Product, error) {
	var price, discounted pricing.Money
	var err error
	if p.Price.Valid {
		if price, err = pricing.FromDecimal(p.Price.Decimal); err != nil {
			return Product{}, fmt.Errorf("%w: product %q: %w", backend.ErrMalformedPayload, p.Key(), err)
		}
	}
	discounted = price
	if p.DiscountedPrice.Valid {
		if discounted, err = pricing.FromDecimal(p.DiscountedPrice.Decimal); err != nil {
			return Product{}, fmt.Errorf("%w: product %q: %w", backend.ErrMalformedPayload, p.Key(), err)
		}
	}
	if price < 0 || discounted < 0 {
		return Product{}, fmt.Errorf("%w: product %q: negative price", backend.ErrMalformedPayload, p.Key())
	}
	return Product{
		ID:              p.Key(),
		Title:           p.Title,
		Brand:           p.Brand,
		Color:           p.Color,
		ImageURL:        p.ImageURL,
		Description:     p.Description,
		Price:           pricing.Format(price),
		DiscountedPrice: pricing.Format(discounted),
		DiscountPercent: pricing.DiscountPercent(price, discounted),
		InStock:         stock(p) > 0,
		Sizes:           p.Sizes,
	}, nil
}

// stock is the size stock summed, or the product quantity when the product
// has no sizes.
func stock(p backend.Product) int {
	if len(p.Sizes) == 0 {
		if p.Quantity == nil {
			return 0
		}
		return *p.Quantity
	}
	total := 0
	for _, size := range p.Sizes {
		total += max(size.Quantity, 0)
	}
	return total
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func badRequest(field, message string) error {
	return common.InvalidInput(message, map[string]string{field: message})
}

func (s *Service) defaultLimit() int {
	if s.DefaultLimit < 1 {
		return min(10, s.maxLimit())
	}
	return min(s.DefaultLimit, s.maxLimit())
}

func (s *Service) maxLimit() int {
	if s.MaxLimit < 1 {
		return 50
	}
	return s.MaxLimit
}

func (s *Service) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}
