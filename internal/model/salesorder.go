package model

import (
	"encoding/json"
	"time"
)

// SalesOrder is the local mirror of a Zoho Inventory sales order.
// SalesOrderID is the remote-assigned unique key. Nested structures
// (line items, addresses, warehouses, custom fields, sub-statuses) are
// kept as opaque JSON blobs; their schema is owned by the remote side.
type SalesOrder struct {
	SalesOrderID     string     `json:"salesorder_id"`
	SalesOrderNumber string     `json:"salesorder_number"`
	Date             *time.Time `json:"date"`
	Status           string     `json:"status"`
	CustomerID       string     `json:"customer_id"`
	CustomerName     string     `json:"customer_name"`
	IsTaxable        bool       `json:"is_taxable"`
	TaxID            string     `json:"tax_id"`
	TaxName          string     `json:"tax_name"`
	TaxPercentage    float64    `json:"tax_percentage"`
	CurrencyID       string     `json:"currency_id"`
	CurrencyCode     string     `json:"currency_code"`
	CurrencySymbol   string     `json:"currency_symbol"`
	ExchangeRate     float64    `json:"exchange_rate"`
	DeliveryMethod   string     `json:"delivery_method"`
	TotalQuantity    float64    `json:"total_quantity"`
	SubTotal         float64    `json:"sub_total"`
	TaxTotal         float64    `json:"tax_total"`
	Total            float64    `json:"total"`
	CreatedByEmail   string     `json:"created_by_email"`
	CreatedByName    string     `json:"created_by_name"`
	SalespersonID    string     `json:"salesperson_id"`
	SalespersonName  string     `json:"salesperson_name"`
	IsTestOrder      bool       `json:"is_test_order"`
	Notes            string     `json:"notes"`
	PaymentTerms     int64      `json:"payment_terms"`
	PaymentTermsLbl  string     `json:"payment_terms_label"`
	CreatedTime      *time.Time `json:"created_time"`
	LastModifiedTime *time.Time `json:"last_modified_time"`

	LineItems           json.RawMessage `json:"line_items"`
	ShippingAddress     json.RawMessage `json:"shipping_address"`
	BillingAddress      json.RawMessage `json:"billing_address"`
	Warehouses          json.RawMessage `json:"warehouses"`
	CustomFields        json.RawMessage `json:"custom_fields"`
	OrderSubStatuses    json.RawMessage `json:"order_sub_statuses"`
	ShipmentSubStatuses json.RawMessage `json:"shipment_sub_statuses"`
}
