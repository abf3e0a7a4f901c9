package model

import "time"

// Review targets.
const (
	ReviewCourse   = "course"
	ReviewWorkshop = "workshop"
)

// Review moderation states; new reviews start denegada until an admin
// accepts them.
const (
	ReviewAccepted = "aceptada"
	ReviewDenied   = "denegada"
)

// Review is a star rating left by a user on a course or workshop.
type Review struct {
	ID            uint64    `db:"id" json:"id"`
	TargetKind    string    `db:"target_kind" json:"targetKind"`
	TargetID      uint64    `db:"target_id" json:"targetId"`
	UserID        uint64    `db:"user_id" json:"usuario"`
	NombreUsuario string    `db:"nombre_usuario" json:"nombreUsuario"`
	PaisUsuario   string    `db:"pais_usuario" json:"paisUsuario"`
	Estrellas     int       `db:"estrellas" json:"estrellas"`
	Resena        string    `db:"resena" json:"reseña"`
	Fecha         time.Time `db:"fecha" json:"fecha"`
	Estado        string    `db:"estado" json:"estado"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}
