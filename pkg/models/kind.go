package models

import (
	"strconv"
	"strings"
)

// Kind is the closed set of notification categories the server emits.
type Kind string

const (
	KindOrderCreated    Kind = "NOUVELLE_COMMANDE"
	KindOrderValidated  Kind = "COMMANDE_VALIDEE"
	KindOrderDelivered  Kind = "COMMANDE_LIVREE"
	KindOrderCancelled  Kind = "COMMANDE_ANNULEE"
	KindStockLow        Kind = "STOCK_FAIBLE"
	KindStockOut        Kind = "RUPTURE_STOCK"
	KindVehicleAdded    Kind = "NOUVEAU_VEHICULE"
	KindPriceChanged    Kind = "PRIX_MODIFIE"
	KindPromotion       Kind = "PROMOTION"
	KindNewRegistration Kind = "NOUVELLE_INSCRIPTION"

	// KindOther holds any tag the server sends that this client does not know.
	KindOther Kind = "OTHER"
)

// Kinds lists every known kind, KindOther excluded.
var Kinds = []Kind{
	KindOrderCreated, KindOrderValidated, KindOrderDelivered, KindOrderCancelled,
	KindStockLow, KindStockOut,
	KindVehicleAdded, KindPriceChanged, KindPromotion,
	KindNewRegistration,
}

// ParseKind maps a wire tag to a Kind. Unknown tags become KindOther.
func ParseKind(s string) Kind {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if k.IsKnown() {
		return k
	}
	return KindOther
}

// IsKnown reports whether k is one of Kinds.
func (k Kind) IsKnown() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Category groups kinds that share a detail shape.
type Category string

const (
	CategoryOrder        Category = "order"
	CategoryStock        Category = "stock"
	CategoryCatalog      Category = "catalog"
	CategoryRegistration Category = "registration"
	CategoryOther        Category = "other"
)

// Category returns the category of k.
func (k Kind) Category() Category {
	switch k {
	case KindOrderCreated, KindOrderValidated, KindOrderDelivered, KindOrderCancelled:
		return CategoryOrder
	case KindStockLow, KindStockOut:
		return CategoryStock
	case KindVehicleAdded, KindPriceChanged, KindPromotion:
		return CategoryCatalog
	case KindNewRegistration:
		return CategoryRegistration
	default:
		return CategoryOther
	}
}

// Label is the fallback display label used when the server sends none.
func (k Kind) Label() string {
	switch k {
	case KindOrderCreated:
		return "New order"
	case KindOrderValidated:
		return "Order validated"
	case KindOrderDelivered:
		return "Order delivered"
	case KindOrderCancelled:
		return "Order cancelled"
	case KindStockLow:
		return "Low stock"
	case KindStockOut:
		return "Out of stock"
	case KindVehicleAdded:
		return "New vehicle"
	case KindPriceChanged:
		return "Price changed"
	case KindPromotion:
		return "Promotion"
	case KindNewRegistration:
		return "New registration"
	default:
		return "Notification"
	}
}

// Detail is the kind-specific payload of a notification. The set of
// implementations is closed: OrderDetail, StockDetail, CatalogDetail,
// RegistrationDetail and OtherDetail.
type Detail interface {
	Category() Category
	isDetail()
}

// OrderDetail is attached to order lifecycle notifications.
type OrderDetail struct {
	Kind    Kind
	OrderID int64 // zero when the link carries no id
}

// StockDetail is attached to stock level notifications.
type StockDetail struct {
	Kind   Kind
	ItemID int64
}

// CatalogDetail is attached to vehicle, price and promotion notifications.
type CatalogDetail struct {
	Kind      Kind
	VehicleID int64
}

// RegistrationDetail is attached to new client registrations.
type RegistrationDetail struct {
	ClientID int64
}

// OtherDetail is attached to notifications of an unknown kind.
type OtherDetail struct {
	Link string
}

func (OrderDetail) Category() Category        { return CategoryOrder }
func (StockDetail) Category() Category        { return CategoryStock }
func (CatalogDetail) Category() Category      { return CategoryCatalog }
func (RegistrationDetail) Category() Category { return CategoryRegistration }
func (OtherDetail) Category() Category        { return CategoryOther }

func (OrderDetail) isDetail()        {}
func (StockDetail) isDetail()        {}
func (CatalogDetail) isDetail()      {}
func (RegistrationDetail) isDetail() {}
func (OtherDetail) isDetail()        {}

func detailFor(k Kind, link string) Detail {
	id := trailingID(link)
	switch k.Category() {
	case CategoryOrder:
		return OrderDetail{Kind: k, OrderID: id}
	case CategoryStock:
		return StockDetail{Kind: k, ItemID: id}
	case CategoryCatalog:
		return CatalogDetail{Kind: k, VehicleID: id}
	case CategoryRegistration:
		return RegistrationDetail{ClientID: id}
	default:
		return OtherDetail{Link: link}
	}
}

// trailingID extracts the numeric last path segment of a deep link such as
// "/commandes/42" or "/stock?id=7". It returns 0 when there is none.
func trailingID(link string) int64 {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		query := link[i+1:]
		link = link[:i]
		for _, pair := range strings.Split(query, "&") {
			if v, ok := strings.CutPrefix(pair, "id="); ok {
				if id, err := strconv.ParseInt(v, 10, 64); err == nil {
					return id
				}
			}
		}
	}
	link = strings.TrimRight(link, "/")
	seg := link[strings.LastIndex(link, "/")+1:]
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
