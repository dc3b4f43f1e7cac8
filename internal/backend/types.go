package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ID is an identifier the backend may send either as a JSON string or number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Product is the product snapshot embedded in cart and order lines.
type Product struct {
	ID              ID                  `json:"id"`
	AltID           ID                  `json:"_id"`
	Title           string              `json:"title"`
	Brand           string              `json:"brand"`
	Color           string              `json:"color"`
	ImageURL        string              `json:"imageUrl"`
	Price           decimal.NullDecimal `json:"price"`
	DiscountedPrice decimal.NullDecimal `json:"discountedPrice"`
	DiscountPercent *int                `json:"discountPercent"`
	Description     string              `json:"description,omitempty"`
	Quantity        *int                `json:"quantity,omitempty"`
	Sizes           SizeList            `json:"sizes,omitempty"`
}

// Size is the stock held for one product size.
type Size struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// SizeList decodes a product's size stock. Payloads that are not a list of
// size objects decode as empty.
type SizeList []Size

// UnmarshalJSON implements json.Unmarshaler.
func (l *SizeList) UnmarshalJSON(data []byte) error {
	var sizes []Size
	if err := json.Unmarshal(data, &sizes); err != nil {
		*l = nil
		return nil
	}
	*l = sizes
	return nil
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Content       []Product `json:"content"`
	CurrentPage   int       `json:"currentPage"`
	Number        int       `json:"number"`
	TotalPages    int       `json:"totalPages"`
	TotalElements int64     `json:"totalElements"`
}

// Page returns the zero-based page index under either field name.
func (p ProductPage) Page() int {
	if p.CurrentPage != 0 {
		return p.CurrentPage
	}
	return p.Number
}

// Key returns the product identifier under either field name.
func (p Product) Key() string {
	if p.ID != "" {
		return string(p.ID)
	}
	return string(p.AltID)
}

// Line is one cart or order line as the backend returns it. Price and
// DiscountedPrice are the backend's own line totals and are informational only.
type Line struct {
	ID              ID                  `json:"id"`
	AltID           ID                  `json:"_id"`
	Product         *Product            `json:"product"`
	Size            string              `json:"size"`
	Quantity        *int                `json:"quantity"`
	Price           decimal.NullDecimal `json:"price"`
	DiscountedPrice decimal.NullDecimal `json:"discountedPrice"`
}

// Key returns the line identifier under either field name.
func (l Line) Key() string {
	if l.ID != "" {
		return string(l.ID)
	}
	return string(l.AltID)
}

// Cart is the caller's cart.
type Cart struct {
	ID        ID     `json:"id"`
	AltID     ID     `json:"_id"`
	CartItems []Line `json:"cartItems"`
}

// Address is a delivery address as captured by the checkout form.
type Address struct {
	FirstName     string `json:"firstName" validate:"required,max=80"`
	LastName      string `json:"lastName" validate:"required,max=80"`
	StreetAddress string `json:"streetAddress" validate:"required,max=200"`
	City          string `json:"city" validate:"required,max=80"`
	State         string `json:"state" validate:"required,max=80"`
	ZipCode       string `json:"zipCode" validate:"required,numeric,len=6"`
	Mobile        string `json:"mobile" validate:"required,numeric,len=10"`
}

// Order is a placed order.
type Order struct {
	ID              ID       `json:"id"`
	AltID           ID       `json:"_id"`
	OrderItems      []Line   `json:"orderItems"`
	ShippingAddress *Address `json:"shippingAddress,omitempty"`
	OrderStatus     string   `json:"orderStatus"`
	OrderDate       string   `json:"orderDate,omitempty"`
	DeliveryDate    string   `json:"deliveryDate,omitempty"`
}

// Key returns the order identifier under either field name.
func (o Order) Key() string {
	if o.ID != "" {
		return string(o.ID)
	}
	return string(o.AltID)
}

// AddItemRequest adds a product/size to the cart.
type AddItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size,omitempty" validate:"max=16"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}
