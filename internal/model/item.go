package model

import "time"

// Item is the local mirror of a Zoho Inventory item.
// ItemID is assigned by Zoho and is the unique key for the mirror;
// at most one local record exists per ItemID.
type Item struct {
	ItemID               int64      `json:"item_id,string"`
	GroupID              int64      `json:"group_id"`
	GroupName            string     `json:"group_name"`
	Name                 string     `json:"name"`
	Status               string     `json:"status"`
	Source               string     `json:"source"`
	IsLinkedWithZohoCRM  bool       `json:"is_linked_with_zohocrm"`
	ItemType             string     `json:"item_type"`
	Description          string     `json:"description"`
	Rate                 float64    `json:"rate"`
	IsTaxable            bool       `json:"is_taxable"`
	TaxID                int64      `json:"tax_id"`
	TaxName              string     `json:"tax_name"`
	TaxPercentage        float64    `json:"tax_percentage"`
	PurchaseDescription  string     `json:"purchase_description"`
	PurchaseRate         float64    `json:"purchase_rate"`
	IsComboProduct       bool       `json:"is_combo_product"`
	ProductType          string     `json:"product_type"`
	AttributeID1         int64      `json:"attribute_id1"`
	AttributeName1       string     `json:"attribute_name1"`
	ReorderLevel         int64      `json:"reorder_level"`
	StockOnHand          float64    `json:"stock_on_hand"`
	AvailableStock       float64    `json:"available_stock"`
	ActualAvailableStock float64    `json:"actual_available_stock"`
	SKU                  string     `json:"sku"`
	UPC                  int64      `json:"upc"`
	EAN                  int64      `json:"ean"`
	ISBN                 int64      `json:"isbn"`
	PartNumber           int64      `json:"part_number"`
	AttributeOptionID1   int64      `json:"attribute_option_id1"`
	AttributeOptionName1 string     `json:"attribute_option_name1"`
	ImageName            string     `json:"image_name"`
	ImageType            string     `json:"image_type"`
	CreatedTime          *time.Time `json:"created_time"`
	LastModifiedTime     *time.Time `json:"last_modified_time"`
	HSNOrSAC             int64      `json:"hsn_or_sac"`
	SATItemKeyCode       string     `json:"sat_item_key_code"`
	UnitKeyCode          string     `json:"unitkey_code"`
}
