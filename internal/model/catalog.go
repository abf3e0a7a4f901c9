package model

import "time"

// CourseHidden marks a course that must not appear in public listings.
const CourseHidden = "oculto"

// Course is a virtual course (`courses` table).
type Course struct {
	ID                 uint64    `db:"id" json:"id"`
	Title              string    `db:"title" json:"title"`
	Slug               string    `db:"slug" json:"slug"`
	Estado             string    `db:"estado" json:"estado"`
	Precio             float64   `db:"precio" json:"precio"`
	PrecioConDescuento *float64  `db:"precio_con_descuento" json:"precioConDescuento"`
	CoverImage         *string   `db:"cover_image_url" json:"coverImage"`
	PromedioReviews    float64   `db:"promedio_reviews" json:"promedioreviews"`
	Categorias         []uint64  `db:"-" json:"categorias"`
	CreatedAt          time.Time `db:"created_at" json:"-"`
}

// Workshop is an in-person workshop (`workshops` table) sold in date
// groups.
type Workshop struct {
	ID              uint64          `db:"id" json:"id"`
	Title           string          `db:"title" json:"title"`
	Slug            string          `db:"slug" json:"slug"`
	Precio          float64         `db:"precio" json:"precio"`
	CoverImage      *string         `db:"cover_image_url" json:"coverImage"`
	PromedioReviews float64         `db:"promedio_reviews" json:"promedioreviews"`
	Groups          []WorkshopGroup `db:"-" json:"gruposDeFechas"`
}

// WorkshopGroup is one schedule a workshop can be booked in.
type WorkshopGroup struct {
	ID         uint64 `db:"id" json:"id"`
	WorkshopID uint64 `db:"workshop_id" json:"-"`
	Horario    string `db:"horario" json:"horario"`
	Fechas     string `db:"fechas" json:"fechas"`
}

// Category groups courses for listing and coupon targeting.
type Category struct {
	ID     uint64 `db:"id" json:"id"`
	Nombre string `db:"nombre" json:"nombre"`
	Slug   string `db:"slug" json:"slug"`
}
