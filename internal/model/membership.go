package model

import "time"

// MembershipType is read-only reference data describing a purchasable
// membership.  Cantidad is the number of existing course enrollments a
// new registration of this type extends.
type MembershipType struct {
	ID        uint64  `db:"id" json:"id"`
	Nombre    string  `db:"nombre" json:"nombre"`
	Precio    float64 `db:"precio" json:"Precio"`
	Cantidad  int     `db:"cantidad" json:"Cantidad"`
	Descuento float64 `db:"descuento" json:"Descuento"`
	Duracion  int     `db:"duracion" json:"duracion"` // days
}

// MembershipRegistration records a user's membership of a given type.
// At most one registration per user is activo at any time.
type MembershipRegistration struct {
	ID                uint64    `db:"id" json:"id"`
	UserID            uint64    `db:"user_id" json:"usuario"`
	TypeID            uint64    `db:"membership_type_id" json:"tipoDeMembresia"`
	Estado            string    `db:"estado" json:"estado"`
	FechaDeExpiracion time.Time `db:"fecha_de_expiracion" json:"fechaDeExpiracion"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the registration estado is activo.
func (m MembershipRegistration) IsActive() bool { return m.Estado == StatusActive }

// Expired reports whether the expiration lies strictly before now.
func (m MembershipRegistration) Expired(now time.Time) bool {
	return m.FechaDeExpiracion.Before(now)
}
