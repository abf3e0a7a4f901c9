package model

// Product types as sent by the storefront.
const (
	ProductCourse     = "curso virtual"
	ProductWorkshop   = "taller presencial"
	ProductMembership = "membresía"
)

// CartItem is a server-validated cart line.  Prices are always taken
// from the catalog, never from the client.
type CartItem struct {
	ID                      uint64   `json:"id"`
	Type                    string   `json:"type"`
	Title                   string   `json:"title"`
	CoverImage              *string  `json:"coverImage"`
	OriginalPrice           float64  `json:"originalPrice"`
	DiscountedPrice         *float64 `json:"discountedPrice"`
	MembershipDiscountPrice *float64 `json:"membershipDiscountPrice"`
	FinalPrice              float64  `json:"finalPrice"`
	SelectedGroupID         *uint64  `json:"selectedGroupId,omitempty"`
	SelectedGroupHorario    *string  `json:"selectedGroupHorario,omitempty"`
	SelectedGroupFechas     *string  `json:"selectedGroupFechas,omitempty"`
}
