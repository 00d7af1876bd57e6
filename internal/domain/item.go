package domain

import "time"

type ItemStatus string

const (
	ItemStatusAvailable   ItemStatus = "Tersedia"
	ItemStatusBorrowed    ItemStatus = "Dipinjam"
	ItemStatusUnderRepair ItemStatus = "Dalam Perbaikan"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusAvailable, ItemStatusBorrowed, ItemStatusUnderRepair:
		return true
	}
	return false
}

type ItemCondition string

const (
	ConditionGood        ItemCondition = "Baik"
	ConditionLightDamage ItemCondition = "Rusak Ringan"
	ConditionHeavyDamage ItemCondition = "Rusak Berat"
)

func (c ItemCondition) Valid() bool {
	switch c {
	case ConditionGood, ConditionLightDamage, ConditionHeavyDamage:
		return true
	}
	return false
}

type ItemCategory string

const (
	CategoryHardware        ItemCategory = "Hardware"
	CategoryPeripheral      ItemCategory = "Peripheral"
	CategoryDevelopmentTool ItemCategory = "Development Tools"
	CategorySoftwareLicense ItemCategory = "Software License"
	CategoryLabEquipment    ItemCategory = "Lab Equipment"
)

func (c ItemCategory) Valid() bool {
	switch c {
	case CategoryHardware, CategoryPeripheral, CategoryDevelopmentTool, CategorySoftwareLicense, CategoryLabEquipment:
		return true
	}
	return false
}

type ItemLocation string

const (
	LocationLab1      ItemLocation = "Lab 1"
	LocationLab2      ItemLocation = "Lab 2"
	LocationLab3      ItemLocation = "Lab 3"
	LocationWarehouse ItemLocation = "Gudang"
)

func (l ItemLocation) Valid() bool {
	switch l {
	case LocationLab1, LocationLab2, LocationLab3, LocationWarehouse:
		return true
	}
	return false
}

// PurchaseInfo records how an item was acquired. Warranty is the date the
// warranty ends.
type PurchaseInfo struct {
	Price    float64   `json:"price"`
	Date     time.Time `json:"date"`
	Warranty time.Time `json:"warranty"`
}

// Item is one piece of lab equipment. Status and Condition are owned by the
// availability gate once the item exists.
type Item struct {
	ID             string            `json:"id"`
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	Category       ItemCategory      `json:"category"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Condition      ItemCondition     `json:"condition"`
	Status         ItemStatus        `json:"status"`
	Location       ItemLocation      `json:"location"`
	PurchaseInfo   *PurchaseInfo     `json:"purchase_info,omitempty"`
	Images         []string          `json:"images,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	CreatedBy      string            `json:"created_by"`
	UpdatedBy      string            `json:"updated_by"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// ItemFilter narrows item listings. Zero values mean "any".
type ItemFilter struct {
	Category ItemCategory
	Status   ItemStatus
	Location ItemLocation
	Page     int
	Limit    int
}

// ItemStats summarises the inventory. Value figures only count items with
// purchase info.
type ItemStats struct {
	Overall     ItemValueStats   `json:"overall"`
	ByCategory  []CategoryStats  `json:"by_category"`
	ByCondition []ConditionCount `json:"by_condition"`
}

type ItemValueStats struct {
	TotalItems int     `json:"total_items"`
	TotalValue float64 `json:"total_value"`
	AvgValue   float64 `json:"avg_value"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
}

type CategoryStats struct {
	Category   ItemCategory `json:"category"`
	Count      int          `json:"count"`
	TotalValue float64      `json:"total_value"`
}

type ConditionCount struct {
	Condition ItemCondition `json:"condition"`
	Count     int           `json:"count"`
}
