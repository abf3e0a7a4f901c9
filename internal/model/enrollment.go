package model

import "time"

// Lifecycle status shared by enrollments and membership registrations.
const (
	StatusActive   = "activo"
	StatusInactive = "inactivo"
)

// Enrollment grants a user access to one or more courses until
// FechaDeExpiracion.  Rows are never hard-deleted; the status field
// carries the lifecycle.  The order finalizer creates one enrollment
// per purchased course.
//
// Fields:
//  ID                – primary key identifier.
//  UserID            – enrolled user (enrollments.user_id).
//  CourseIDs         – courses covered, stored in enrollment_courses.
//  Status            – activo or inactivo.
//  FechaDeExpiracion – access expiration.
//  CreatedAt         – creation timestamp; entitlement ordering key.
//  UpdatedAt         – last update timestamp.
type Enrollment struct {
	ID                uint64    `db:"id" json:"id"`
	UserID            uint64    `db:"user_id" json:"usuario"`
	CourseIDs         []uint64  `db:"-" json:"cursos"`
	Status            string    `db:"status" json:"status"`
	FechaDeExpiracion time.Time `db:"fecha_de_expiracion" json:"fechaDeExpiracion"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the enrollment status is activo.
func (e Enrollment) IsActive() bool { return e.Status == StatusActive }

// Expired reports whether the expiration lies strictly before now.
func (e Enrollment) Expired(now time.Time) bool { return e.FechaDeExpiracion.Before(now) }
