package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/course-commerce/internal/database"
	"github.com/iliyamo/course-commerce/internal/model"
)

// CatalogRepo reads and writes courses, workshops, categories and
// membership types.  Catalog rows are small reference data, so listings
// are unpaged.
type CatalogRepo struct {
	db *sqlx.DB
}

// NewCatalogRepo returns a CatalogRepo bound to db.
func NewCatalogRepo(db *sqlx.DB) *CatalogRepo { return &CatalogRepo{db: db} }

const courseColumns = "id, title, slug, estado, precio, precio_con_descuento, cover_image_url, promedio_reviews, created_at"

// ListCourses returns published courses, newest first.  limit <= 0
// returns all of them.
func (r *CatalogRepo) ListCourses(ctx context.Context, limit int) ([]model.Course, error) {
	q := "SELECT " + courseColumns + " FROM courses WHERE estado <> ? ORDER BY created_at DESC, id DESC"
	args := []interface{}{model.CourseHidden}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	var courses []model.Course
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &courses, q, args...); err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// GetCourse fetches one course with its categories, hidden or not.
func (r *CatalogRepo) GetCourse(ctx context.Context, id uint64) (model.Course, error) {
	var c model.Course
	err := database.Conn(ctx, r.db).GetContext(ctx, &c,
		"SELECT "+courseColumns+" FROM courses WHERE id=? LIMIT 1", id)
	if err != nil {
		return c, notFound(err)
	}
	list := []model.Course{c}
	if err := r.attachCategories(ctx, list); err != nil {
		return c, err
	}
	return list[0], nil
}

// CreateCourse inserts a course and its category links.
func (r *CatalogRepo) CreateCourse(ctx context.Context, c *model.Course) error {
	q := database.Conn(ctx, r.db)
	if c.Estado == "" {
		c.Estado = "publicado"
	}
	res, err := q.ExecContext(ctx,
		"INSERT INTO courses (title, slug, estado, precio, precio_con_descuento, cover_image_url) VALUES (?,?,?,?,?,?)",
		c.Title, c.Slug, c.Estado, c.Precio, c.PrecioConDescuento, c.CoverImage)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	for _, cat := range c.Categorias {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO course_categories (course_id, category_id) VALUES (?,?)", c.ID, cat); err != nil {
			return fmt.Errorf("link category %d: %w", cat, err)
		}
	}
	return nil
}

func (r *CatalogRepo) attachCategories(ctx context.Context, courses []model.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]uint64, len(courses))
	index := make(map[uint64]int, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
		index[c.ID] = i
	}
	q := database.Conn(ctx, r.db)
	query, args, err := sqlx.In(
		"SELECT course_id, category_id FROM course_categories WHERE course_id IN (?) ORDER BY course_id, category_id", ids)
	if err != nil {
		return err
	}
	var links []struct {
		CourseID   uint64 `db:"course_id"`
		CategoryID uint64 `db:"category_id"`
	}
	if err := q.SelectContext(ctx, &links, q.Rebind(query), args...); err != nil {
		return err
	}
	for _, l := range links {
		i := index[l.CourseID]
		courses[i].Categorias = append(courses[i].Categorias, l.CategoryID)
	}
	return nil
}

// ListCategories returns every category ordered by name.
func (r *CatalogRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := database.Conn(ctx, r.db).SelectContext(ctx, &cats,
		"SELECT id, nombre, slug FROM categories ORDER BY nombre")
	return cats, err
}

// ListWorkshops returns all workshops with their date groups.
func (r *CatalogRepo) ListWorkshops(ctx context.Context) ([]model.Workshop, error) {
	q := database.Conn(ctx, r.db)
	var ws []model.Workshop
	if err := q.SelectContext(ctx, &ws,
		"SELECT id, title, slug, precio, cover_image_url, promedio_reviews FROM workshops ORDER BY id"); err != nil {
		return nil, err
	}
	var groups []model.WorkshopGroup
	if err := q.SelectContext(ctx, &groups,
		"SELECT id, workshop_id, horario, fechas FROM workshop_groups ORDER BY workshop_id, id"); err != nil {
		return nil, err
	}
	index := make(map[uint64]int, len(ws))
	for i, w := range ws {
		index[w.ID] = i
	}
	for _, g := range groups {
		if i, ok := index[g.WorkshopID]; ok {
			ws[i].Groups = append(ws[i].Groups, g)
		}
	}
	return ws, nil
}

// GetWorkshop fetches a workshop with its date groups.
func (r *CatalogRepo) GetWorkshop(ctx context.Context, id uint64) (model.Workshop, error) {
	q := database.Conn(ctx, r.db)
	var w model.Workshop
	if err := q.GetContext(ctx, &w,
		"SELECT id, title, slug, precio, cover_image_url, promedio_reviews FROM workshops WHERE id=? LIMIT 1", id); err != nil {
		return w, notFound(err)
	}
	if err := q.SelectContext(ctx, &w.Groups,
		"SELECT id, workshop_id, horario, fechas FROM workshop_groups WHERE workshop_id=? ORDER BY id", id); err != nil {
		return w, err
	}
	return w, nil
}

const membershipTypeColumns = "id, nombre, precio, cantidad, descuento, duracion"

// ListMembershipTypes returns every membership type ordered by price.
func (r *CatalogRepo) ListMembershipTypes(ctx context.Context) ([]model.MembershipType, error) {
	var out []model.MembershipType
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		"SELECT "+membershipTypeColumns+" FROM membership_types ORDER BY precio, id")
	return out, err
}

// GetMembershipType fetches one membership type.
func (r *CatalogRepo) GetMembershipType(ctx context.Context, id uint64) (model.MembershipType, error) {
	var mt model.MembershipType
	err := database.Conn(ctx, r.db).GetContext(ctx, &mt,
		"SELECT "+membershipTypeColumns+" FROM membership_types WHERE id=? LIMIT 1", id)
	return mt, notFound(err)
}

// UpdateAverage persists the review average on a course or workshop.
func (r *CatalogRepo) UpdateAverage(ctx context.Context, kind string, id uint64, avg float64) error {
	var table string
	switch kind {
	case model.ReviewCourse:
		table = "courses"
	case model.ReviewWorkshop:
		table = "workshops"
	default:
		return fmt.Errorf("unknown review target %q", kind)
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		"UPDATE "+table+" SET promedio_reviews=? WHERE id=?", avg, id)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when the value is unchanged, so a
	// missing row is only detected by the lookup below.
	if n, _ := res.RowsAffected(); n == 0 {
		var got uint64
		if err := database.Conn(ctx, r.db).GetContext(ctx, &got,
			"SELECT id FROM "+table+" WHERE id=?", id); err != nil {
			return notFound(err)
		}
	}
	return nil
}
