// Package testutil provides shared fixtures for eagerpath tests: a small
// entity graph with every navigation shape the path compiler distinguishes,
// and deterministic clocks and IDs for store tests.
package testutil

import "github.com/roach88/eagerpath/internal/typeinfo"

// Order is the root entity of the shop fixture.
//
// Navigation shapes:
//   - LineItems: collection
//   - Customer: nullable single reference
//   - Status: non-nullable single reference
//   - Payment: interface, assertable to *CardPayment
//   - Tags: collection of scalars; Notes: []byte, not a collection
//   - internal: unexported field
type Order struct {
	ID        int
	Customer  *Customer
	Status    Status
	LineItems []LineItem
	Payment   Payment
	Tags      []string
	Notes     []byte
	Reference string
	internal  *Audit
}

// Customer is referenced by Order.Customer.
type Customer struct {
	ID      int
	Name    string
	Address *Address
	Orders  []*Order
}

// Address is referenced by Customer.Address.
type Address struct {
	ID   int
	City string
}

// Status is a value-typed reference.
type Status struct {
	Code string
}

// LineItem is the element type of Order.LineItems.
type LineItem struct {
	ID        int
	OrderID   int
	Price     int
	Quantity  int
	Name      string
	Product   *Product
	Discounts []Discount
}

// Product is referenced by LineItem.Product.
type Product struct {
	ID       int
	Name     string
	Category *Category
}

// Category is referenced by Product.Category.
type Category struct {
	ID   int
	Name string
}

// Discount is the element type of LineItem.Discounts.
type Discount struct {
	ID      int
	Percent int
}

// Audit is reachable only through an unexported field.
type Audit struct {
	By string
}

// Payment is an interface-typed navigation.
type Payment interface {
	Amount() int
}

// CardPayment implements Payment.
type CardPayment struct {
	ID     int
	Issuer *Issuer
	Total  int
}

// Amount implements Payment.
func (p *CardPayment) Amount() int { return p.Total }

// Issuer is referenced by CardPayment.Issuer.
type Issuer struct {
	ID   int
	Name string
}

// Universe returns a reflection universe over the shop fixture.
func Universe() *typeinfo.Reflect {
	return typeinfo.NewReflect((*Order)(nil), (*CardPayment)(nil))
}

// ShopSource is the shop fixture as Go source, for analyzer and code
// generation tests that build a Schema from declarations.
const ShopSource = `package shop

type Order struct {
	ID        int
	Customer  *Customer
	Status    Status
	LineItems []LineItem
	Payment   Payment
	Tags      []string
	Notes     []byte
	Reference string
	internal  *Audit
}

type Customer struct {
	ID      int
	Name    string
	Address *Address
	Orders  []*Order
}

type Address struct {
	ID   int
	City string
}

type Status struct {
	Code string
}

type LineItem struct {
	ID        int
	OrderID   int
	Price     int
	Quantity  int
	Name      string
	Product   *Product
	Discounts []Discount
}

type Product struct {
	ID       int
	Name     string
	Category *Category
}

type Category struct {
	ID   int
	Name string
}

type Discount struct {
	ID      int
	Percent int
}

type Audit struct {
	By string
}

type Payment interface {
	Amount() int
}

type CardPayment struct {
	ID     int
	Issuer *Issuer
	Total  int
}

func (p *CardPayment) Amount() int { return p.Total }

type Issuer struct {
	ID   int
	Name string
}
`
