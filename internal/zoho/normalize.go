package zoho

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"zoho-mirror-api/internal/model"
)

// Remote timestamp formats. Zoho sends zoned timestamps; a naive value
// is localized to the configured server time zone before storage.
const (
	timestampLayout      = "2006-01-02T15:04:05-0700"
	naiveTimestampLayout = "2006-01-02T15:04:05"
	dateLayout           = "2006-01-02"
)

// NormalizeItem maps a raw item record into the typed local form.
// Missing strings become empty, missing booleans false, id-like numeric
// fields are accepted only when the raw value is already numeric, and
// missing timestamps stay null. Only an undecodable record or a missing
// key is an error; the caller logs and drops such records.
func NormalizeItem(raw json.RawMessage, loc *time.Location) (model.Item, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Item{}, fmt.Errorf("item record is not an object: %w", err)
	}

	id, ok := recordKey(fields, "item_id")
	if !ok {
		return model.Item{}, errors.New("item record has no item_id")
	}

	return model.Item{
		ItemID:               id,
		GroupID:              idNumber(fields, "group_id"),
		GroupName:            str(fields, "group_name"),
		Name:                 str(fields, "name"),
		Status:               str(fields, "status"),
		Source:               str(fields, "source"),
		IsLinkedWithZohoCRM:  boolean(fields, "is_linked_with_zohocrm", false),
		ItemType:             str(fields, "item_type"),
		Description:          str(fields, "description"),
		Rate:                 number(fields, "rate", 0),
		IsTaxable:            boolean(fields, "is_taxable", false),
		TaxID:                idNumber(fields, "tax_id"),
		TaxName:              str(fields, "tax_name"),
		TaxPercentage:        number(fields, "tax_percentage", 0),
		PurchaseDescription:  str(fields, "purchase_description"),
		PurchaseRate:         number(fields, "purchase_rate", 0),
		IsComboProduct:       boolean(fields, "is_combo_product", false),
		ProductType:          str(fields, "product_type"),
		AttributeID1:         idNumber(fields, "attribute_id1"),
		AttributeName1:       str(fields, "attribute_name1"),
		ReorderLevel:         idNumber(fields, "reorder_level"),
		StockOnHand:          number(fields, "stock_on_hand", 0),
		AvailableStock:       number(fields, "available_stock", 0),
		ActualAvailableStock: number(fields, "actual_available_stock", 0),
		SKU:                  str(fields, "sku"),
		UPC:                  idNumber(fields, "upc"),
		EAN:                  idNumber(fields, "ean"),
		ISBN:                 idNumber(fields, "isbn"),
		PartNumber:           idNumber(fields, "part_number"),
		AttributeOptionID1:   idNumber(fields, "attribute_option_id1"),
		AttributeOptionName1: str(fields, "attribute_option_name1"),
		ImageName:            str(fields, "image_name"),
		ImageType:            str(fields, "image_type"),
		CreatedTime:          timestamp(fields, "created_time", loc),
		LastModifiedTime:     timestamp(fields, "last_modified_time", loc),
		HSNOrSAC:             idNumber(fields, "hsn_or_sac"),
		SATItemKeyCode:       str(fields, "sat_item_key_code"),
		UnitKeyCode:          str(fields, "unitkey_code"),
	}, nil
}

// NormalizeSalesOrder maps a raw sales order record into the typed
// local form. Nested structures pass through as opaque JSON with
// empty-collection defaults; is_taxable defaults to true and
// exchange_rate to 1, matching the remote API's implied defaults.
func NormalizeSalesOrder(raw json.RawMessage, loc *time.Location) (model.SalesOrder, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.SalesOrder{}, fmt.Errorf("salesorder record is not an object: %w", err)
	}

	id := str(fields, "salesorder_id")
	if id == "" {
		// Some deployments return the id as a bare number.
		if n, ok := recordKey(fields, "salesorder_id"); ok {
			id = strconv.FormatInt(n, 10)
		}
	}
	if id == "" {
		return model.SalesOrder{}, errors.New("salesorder record has no salesorder_id")
	}

	var blobs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &blobs); err != nil {
		return model.SalesOrder{}, fmt.Errorf("salesorder record is not an object: %w", err)
	}

	return model.SalesOrder{
		SalesOrderID:     id,
		SalesOrderNumber: str(fields, "salesorder_number"),
		Date:             date(fields, "date", loc),
		Status:           str(fields, "status"),
		CustomerID:       str(fields, "customer_id"),
		CustomerName:     str(fields, "customer_name"),
		IsTaxable:        boolean(fields, "is_taxable", true),
		TaxID:            str(fields, "tax_id"),
		TaxName:          str(fields, "tax_name"),
		TaxPercentage:    number(fields, "tax_percentage", 0),
		CurrencyID:       str(fields, "currency_id"),
		CurrencyCode:     str(fields, "currency_code"),
		CurrencySymbol:   str(fields, "currency_symbol"),
		ExchangeRate:     number(fields, "exchange_rate", 1),
		DeliveryMethod:   str(fields, "delivery_method"),
		TotalQuantity:    number(fields, "total_quantity", 0),
		SubTotal:         number(fields, "sub_total", 0),
		TaxTotal:         number(fields, "tax_total", 0),
		Total:            number(fields, "total", 0),
		CreatedByEmail:   str(fields, "created_by_email"),
		CreatedByName:    str(fields, "created_by_name"),
		SalespersonID:    str(fields, "salesperson_id"),
		SalespersonName:  str(fields, "salesperson_name"),
		IsTestOrder:      boolean(fields, "is_test_order", false),
		Notes:            str(fields, "notes"),
		PaymentTerms:     idNumber(fields, "payment_terms"),
		PaymentTermsLbl:  str(fields, "payment_terms_label"),
		CreatedTime:      timestamp(fields, "created_time", loc),
		LastModifiedTime: timestamp(fields, "last_modified_time", loc),

		LineItems:           blob(blobs, "line_items", "[]"),
		ShippingAddress:     blob(blobs, "shipping_address", "{}"),
		BillingAddress:      blob(blobs, "billing_address", "{}"),
		Warehouses:          blob(blobs, "warehouses", "[]"),
		CustomFields:        blob(blobs, "custom_fields", "[]"),
		OrderSubStatuses:    blob(blobs, "order_sub_statuses", "[]"),
		ShipmentSubStatuses: blob(blobs, "shipment_sub_statuses", "[]"),
	}, nil
}

// str returns the field as a string, or "" when absent or not a string.
func str(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// boolean returns the field as a bool, or def when absent or not a bool.
func boolean(fields map[string]interface{}, key string, def bool) bool {
	if v, ok := fields[key].(bool); ok {
		return v
	}
	return def
}

// number returns the field as a float64, or def when absent or not numeric.
func number(fields map[string]interface{}, key string, def float64) float64 {
	if v, ok := fields[key].(float64); ok {
		return v
	}
	return def
}

// idNumber coerces an id-like field. The value is accepted only when it
// is already numeric; placeholder strings like "N/A" must never reach a
// numeric column and collapse to 0.
func idNumber(fields map[string]interface{}, key string) int64 {
	if v, ok := fields[key].(float64); ok {
		return int64(v)
	}
	return 0
}

// recordKey extracts a unique-key field that the remote may send either
// as a number or a numeric string.
func recordKey(fields map[string]interface{}, key string) (int64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// timestamp parses a zoned remote timestamp. Absent or malformed values
// stay null; a naive value is localized to loc.
func timestamp(fields map[string]interface{}, key string, loc *time.Location) *time.Time {
	s := str(fields, key)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation(naiveTimestampLayout, s, loc); err == nil {
		return &t
	}
	return nil
}

// date parses a date-only field into midnight in loc.
func date(fields map[string]interface{}, key string, loc *time.Location) *time.Time {
	s := str(fields, key)
	if s == "" {
		return nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return &t
	}
	return nil
}

// blob passes a nested structure through untouched, defaulting to empty.
func blob(blobs map[string]json.RawMessage, key, empty string) json.RawMessage {
	if v, ok := blobs[key]; ok && len(v) > 0 && string(v) != "null" {
		return v
	}
	return json.RawMessage(empty)
}
