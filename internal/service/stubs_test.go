package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/repository"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

type txKey struct{}

type txStub struct {
	mu    sync.Mutex
	calls int
}

func (s *txStub) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func inTx(ctx context.Context) bool { return ctx.Value(txKey{}) != nil }

type enqueued struct {
	Type    string
	Payload any
}

type enqueueStub struct {
	mu    sync.Mutex
	tasks []enqueued
	err   error
}

func (s *enqueueStub) Enqueue(ctx context.Context, taskType string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, enqueued{Type: taskType, Payload: payload})
	return nil
}

type userStub struct{ locked []uint64 }

func (s *userStub) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return model.User{ID: id}, nil
}

func (s *userStub) LockForUpdate(ctx context.Context, id uint64) error {
	s.locked = append(s.locked, id)
	return nil
}

type enrollmentStub struct {
	mu      sync.Mutex
	nextID  uint64
	rows    map[uint64]*model.Enrollment
	updated []uint64
	failFor map[uint64]bool // course ids whose creation fails
	outside int             // creates issued without a transaction
}

func newEnrollmentStub() *enrollmentStub {
	return &enrollmentStub{rows: map[uint64]*model.Enrollment{}}
}

func (s *enrollmentStub) add(e model.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		s.nextID++
		e.ID = s.nextID
	} else if e.ID > s.nextID {
		s.nextID = e.ID
	}
	s.rows[e.ID] = &e
}

func (s *enrollmentStub) Create(ctx context.Context, e *model.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !inTx(ctx) {
		s.outside++
	}
	for _, c := range e.CourseIDs {
		if s.failFor[c] {
			return repository.ErrConflict
		}
	}
	s.nextID++
	e.ID = s.nextID
	cp := *e
	s.rows[e.ID] = &cp
	return nil
}

func (s *enrollmentStub) GetByID(ctx context.Context, id uint64) (model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return model.Enrollment{}, repository.ErrNotFound
	}
	return *e, nil
}

func (s *enrollmentStub) Update(ctx context.Context, id uint64, status string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status, e.FechaDeExpiracion = status, exp
	s.updated = append(s.updated, id)
	return nil
}

func (s *enrollmentStub) sorted(userID uint64) []model.Enrollment {
	var out []model.Enrollment
	for _, e := range s.rows {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *enrollmentStub) OldestForUser(ctx context.Context, userID uint64, limit int) ([]model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sorted(userID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *enrollmentStub) ListByUser(ctx context.Context, userID uint64) ([]model.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(userID), nil
}

func (s *enrollmentStub) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.rows {
		if e.IsActive() && e.Expired(now) {
			e.Status = model.StatusInactive
			n++
		}
	}
	return n, nil
}

func (s *enrollmentStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type membershipStub struct {
	nextID      uint64
	rows        []*model.MembershipRegistration
	deactivated int
}

func (s *membershipStub) add(m model.MembershipRegistration) {
	s.nextID++
	m.ID = s.nextID
	s.rows = append(s.rows, &m)
}

func (s *membershipStub) find(id uint64) *model.MembershipRegistration {
	for _, r := range s.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *membershipStub) LatestActive(ctx context.Context, userID uint64) (model.MembershipRegistration, bool, error) {
	var best *model.MembershipRegistration
	for _, r := range s.rows {
		if r.UserID == userID && r.IsActive() && (best == nil || r.FechaDeExpiracion.After(best.FechaDeExpiracion)) {
			best = r
		}
	}
	if best == nil {
		return model.MembershipRegistration{}, false, nil
	}
	return *best, true, nil
}

func (s *membershipStub) HasActive(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	for _, r := range s.rows {
		if r.UserID == userID && r.IsActive() && !r.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *membershipStub) Create(ctx context.Context, m *model.MembershipRegistration) error {
	s.nextID++
	m.ID = s.nextID
	cp := *m
	s.rows = append(s.rows, &cp)
	return nil
}

func (s *membershipStub) GetByID(ctx context.Context, id uint64) (model.MembershipRegistration, error) {
	if r := s.find(id); r != nil {
		return *r, nil
	}
	return model.MembershipRegistration{}, repository.ErrNotFound
}

func (s *membershipStub) Update(ctx context.Context, id uint64, estado string, exp time.Time) error {
	r := s.find(id)
	if r == nil {
		return repository.ErrNotFound
	}
	r.Estado, r.FechaDeExpiracion = estado, exp
	return nil
}

func (s *membershipStub) DeactivateOthers(ctx context.Context, userID, keepID uint64) (int64, error) {
	s.deactivated++
	var n int64
	for _, r := range s.rows {
		if r.UserID == userID && r.ID != keepID && r.IsActive() {
			r.Estado = model.StatusInactive
			n++
		}
	}
	return n, nil
}

func (s *membershipStub) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for _, r := range s.rows {
		if r.IsActive() && r.Expired(now) {
			r.Estado = model.StatusInactive
			n++
		}
	}
	return n, nil
}

type catalogStub struct {
	courses   map[uint64]model.Course
	workshops map[uint64]model.Workshop
	types     map[uint64]model.MembershipType
	averages  map[string]float64
}

func newCatalogStub() *catalogStub {
	return &catalogStub{
		courses:   map[uint64]model.Course{},
		workshops: map[uint64]model.Workshop{},
		types:     map[uint64]model.MembershipType{},
		averages:  map[string]float64{},
	}
}

func (s *catalogStub) GetCourse(ctx context.Context, id uint64) (model.Course, error) {
	if c, ok := s.courses[id]; ok {
		return c, nil
	}
	return model.Course{}, repository.ErrNotFound
}

func (s *catalogStub) GetWorkshop(ctx context.Context, id uint64) (model.Workshop, error) {
	if w, ok := s.workshops[id]; ok {
		return w, nil
	}
	return model.Workshop{}, repository.ErrNotFound
}

func (s *catalogStub) GetMembershipType(ctx context.Context, id uint64) (model.MembershipType, error) {
	if mt, ok := s.types[id]; ok {
		return mt, nil
	}
	return model.MembershipType{}, repository.ErrNotFound
}

func (s *catalogStub) UpdateAverage(ctx context.Context, kind string, id uint64, avg float64) error {
	s.averages[fmt.Sprintf("%s:%d", kind, id)] = avg
	return nil
}

type orderStub struct {
	rows    map[uint64]*model.Order
	claimed map[uint64]bool
	nextID  uint64
}

func newOrderStub() *orderStub {
	return &orderStub{rows: map[uint64]*model.Order{}, claimed: map[uint64]bool{}}
}

func (s *orderStub) Create(ctx context.Context, o *model.Order) error {
	s.nextID++
	o.ID = s.nextID
	cp := *o
	s.rows[o.ID] = &cp
	return nil
}

func (s *orderStub) GetByID(ctx context.Context, id uint64) (model.Order, error) {
	if o, ok := s.rows[id]; ok {
		return *o, nil
	}
	return model.Order{}, repository.ErrNotFound
}

func (s *orderStub) GetByPedidoID(ctx context.Context, pedidoID string) (model.Order, error) {
	for _, o := range s.rows {
		if o.PedidoID == pedidoID {
			return *o, nil
		}
	}
	return model.Order{}, repository.ErrNotFound
}

func (s *orderStub) ListByClient(ctx context.Context, clientID uint64) ([]model.Order, error) {
	var out []model.Order
	for _, o := range s.rows {
		if o.ClientID != nil && *o.ClientID == clientID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *orderStub) UpdateState(ctx context.Context, id uint64, state string) (string, error) {
	o, ok := s.rows[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	prev := o.State
	o.State = state
	return prev, nil
}

func (s *orderStub) ClaimFulfillment(ctx context.Context, id uint64) (bool, error) {
	if s.claimed[id] {
		return false, nil
	}
	s.claimed[id] = true
	if o, ok := s.rows[id]; ok {
		now := time.Now().UTC()
		o.FulfilledAt = &now
	}
	return true, nil
}

type couponStub struct {
	byCode  map[string]model.Coupon
	created []model.Coupon
}

func (s *couponStub) GetByCode(ctx context.Context, code string) (model.Coupon, error) {
	if c, ok := s.byCode[code]; ok {
		return c, nil
	}
	return model.Coupon{}, repository.ErrNotFound
}

func (s *couponStub) Create(ctx context.Context, c *model.Coupon) error {
	c.ID = uint64(len(s.created) + 1)
	s.created = append(s.created, *c)
	return nil
}

type reviewStub struct {
	rows   map[uint64]model.Review
	nextID uint64
}

func (s *reviewStub) Create(ctx context.Context, rv *model.Review) error {
	if s.rows == nil {
		s.rows = map[uint64]model.Review{}
	}
	s.nextID++
	rv.ID = s.nextID
	s.rows[rv.ID] = *rv
	return nil
}

func (s *reviewStub) GetByID(ctx context.Context, id uint64) (model.Review, error) {
	if rv, ok := s.rows[id]; ok {
		return rv, nil
	}
	return model.Review{}, repository.ErrNotFound
}

func (s *reviewStub) Delete(ctx context.Context, id uint64) error {
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *reviewStub) ListByTarget(ctx context.Context, kind string, id uint64) ([]model.Review, error) {
	var out []model.Review
	for _, rv := range s.rows {
		if rv.TargetKind == kind && rv.TargetID == id {
			out = append(out, rv)
		}
	}
	return out, nil
}

type cartStub struct{ carts map[string][]model.CartItem }

func (s *cartStub) Save(ctx context.Context, id string, items []model.CartItem) error {
	if s.carts == nil {
		s.carts = map[string][]model.CartItem{}
	}
	s.carts[id] = items
	return nil
}

func (s *cartStub) Load(ctx context.Context, id string) ([]model.CartItem, error) {
	items, ok := s.carts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return items, nil
}

type notifierStub struct {
	mu     sync.Mutex
	events []string
}

func (s *notifierStub) Notify(ctx context.Context, event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}
