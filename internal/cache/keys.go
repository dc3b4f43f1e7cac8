package cache

import "github.com/noah-isme/toko-storefront/internal/common"

// KeyOrder returns the cache key for one order as seen by session. The
// session is hashed so raw subjects never land in Redis key space.
func KeyOrder(session, orderID string) string {
	if session == "" || orderID == "" {
		return ""
	}
	return "order:" + common.Digest(session)[:16] + ":" + orderID
}

// KeyProductList returns the cache key for one product listing query. query
// must already be in canonical form.
func KeyProductList(query string) string {
	return "catalog:list:" + common.Digest(query)[:16]
}

// KeyProduct returns the cache key for one product page.
func KeyProduct(productID string) string {
	if productID == "" {
		return ""
	}
	return "catalog:product:" + productID
}
