package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/course-commerce/internal/middleware"
	"github.com/iliyamo/course-commerce/internal/model"
	"github.com/iliyamo/course-commerce/internal/repository"
	"github.com/iliyamo/course-commerce/internal/service"
	"github.com/iliyamo/course-commerce/internal/utils"
)

const testSecret = "test-secret"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = middleware.NewRequestValidator()
	return e
}

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, userID, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func do(e *echo.Echo, method, target, body, auth string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type usersStub struct {
	byEmail map[string]model.User
	byID    map[uint64]model.User
	nextID  uint64
}

func newUsers(list ...model.User) *usersStub {
	s := &usersStub{byEmail: map[string]model.User{}, byID: map[uint64]model.User{}, nextID: 100}
	for _, u := range list {
		s.byEmail[u.Email] = u
		s.byID[u.ID] = u
	}
	return s
}

func (s *usersStub) Create(_ context.Context, u *model.User) error {
	if _, ok := s.byEmail[u.Email]; ok {
		return repository.ErrConflict
	}
	s.nextID++
	u.ID = s.nextID
	s.byEmail[u.Email] = *u
	s.byID[u.ID] = *u
	return nil
}

func (s *usersStub) GetByEmail(_ context.Context, email string) (model.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *usersStub) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *usersStub) Update(_ context.Context, u model.User) error {
	if _, ok := s.byID[u.ID]; !ok {
		return repository.ErrNotFound
	}
	s.byID[u.ID] = u
	s.byEmail[u.Email] = u
	return nil
}

type tokensStub struct {
	stored  map[string]uint64
	revoked []uint64
}

func newTokens() *tokensStub { return &tokensStub{stored: map[string]uint64{}} }

func (s *tokensStub) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	s.stored[hash] = userID
	return nil
}

func (s *tokensStub) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	id, ok := s.stored[hash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (s *tokensStub) RevokeByHash(_ context.Context, hash string) error {
	delete(s.stored, hash)
	return nil
}

func (s *tokensStub) RevokeAllForUser(_ context.Context, userID uint64) error {
	s.revoked = append(s.revoked, userID)
	return nil
}

type couponsStub struct {
	quote   service.CouponQuote
	err     error
	created []model.Coupon
}

func (s *couponsStub) Apply(context.Context, string, []service.CartLine) (service.CouponQuote, error) {
	return s.quote, s.err
}

func (s *couponsStub) Create(_ context.Context, c *model.Coupon) error {
	s.created = append(s.created, *c)
	return nil
}

type cartsStub struct {
	items  []model.CartItem
	loaded string
}

func (s *cartsStub) Validate(context.Context, []service.CartProduct) (string, []model.CartItem, error) {
	return "cart-1", s.items, nil
}

func (s *cartsStub) Load(_ context.Context, id string) ([]model.CartItem, error) {
	s.loaded = id
	return s.items, nil
}

type ordersStub struct {
	created  []service.CreateOrderInput
	states   map[uint64]string
	viewer   service.Viewer
	clientID uint64
}

func (s *ordersStub) Create(_ context.Context, in service.CreateOrderInput) (model.Order, error) {
	s.created = append(s.created, in)
	return model.Order{ID: 1, State: model.OrderPending, ClientID: in.UserData.ID}, nil
}

func (s *ordersStub) SetState(_ context.Context, id uint64, state string) (model.Order, error) {
	if s.states == nil {
		s.states = map[uint64]string{}
	}
	s.states[id] = state
	return model.Order{ID: id, State: state}, nil
}

func (s *ordersStub) ListForClient(_ context.Context, v service.Viewer, clientID uint64) ([]model.Order, error) {
	s.viewer, s.clientID = v, clientID
	if !v.CanSee(clientID) {
		return nil, repository.ErrForbidden
	}
	return nil, nil
}

func (s *ordersStub) GetByPedidoID(context.Context, service.Viewer, string) (model.Order, error) {
	return model.Order{}, repository.ErrNotFound
}

type enrollmentsStub struct {
	in      service.EnrollmentInput
	err     error
	courses map[uint64]bool // courses the caller may open
	asked   [2]uint64       // user and course of the last access check
}

func (s *enrollmentsStub) Create(_ context.Context, in service.EnrollmentInput) (model.Enrollment, error) {
	s.in = in
	if s.err != nil {
		return model.Enrollment{}, s.err
	}
	return model.Enrollment{ID: 9, UserID: in.UserID, Status: model.StatusActive}, nil
}

func (s *enrollmentsStub) Update(_ context.Context, id uint64, in service.EnrollmentInput) (model.Enrollment, error) {
	s.in = in
	return model.Enrollment{ID: id, UserID: in.UserID}, s.err
}

func (s *enrollmentsStub) ListForUser(context.Context, uint64) ([]model.Enrollment, error) {
	return nil, nil
}

func (s *enrollmentsStub) CanAccessCourse(_ context.Context, userID, courseID uint64) (bool, error) {
	s.asked = [2]uint64{userID, courseID}
	return s.courses[courseID], s.err
}

type membershipsStub struct{ in service.MembershipInput }

func (s *membershipsStub) Create(_ context.Context, in service.MembershipInput) (model.MembershipRegistration, error) {
	s.in = in
	return model.MembershipRegistration{ID: 3, UserID: in.UserID}, nil
}

func (s *membershipsStub) Update(_ context.Context, id uint64, _ service.MembershipUpdate) (model.MembershipRegistration, error) {
	return model.MembershipRegistration{ID: id}, nil
}

type mailerStub struct{ err error }

func (s mailerStub) Send(context.Context, service.ContactMessage) error { return s.err }

type paymentsStub struct {
	cents int64
	err   error
}

func (s *paymentsStub) FormToken(_ context.Context, amount int64, _, _ string) (string, error) {
	s.cents = amount
	return "form-token", s.err
}

func (s *paymentsStub) HandleIPN(_ context.Context, _, hash string) (service.PaymentAnswer, error) {
	if hash != "good" {
		return service.PaymentAnswer{}, service.ErrBadSignature
	}
	return service.PaymentAnswer{OrderStatus: "PAID"}, nil
}

type txStub struct{}

func (txStub) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type catalogStub struct{ created []model.Course }

func (s *catalogStub) ListCourses(context.Context, int) ([]model.Course, error) { return nil, nil }
func (s *catalogStub) ListWorkshops(context.Context) ([]model.Workshop, error) { return nil, nil }
func (s *catalogStub) ListMembershipTypes(context.Context) ([]model.MembershipType, error) {
	return nil, nil
}
func (s *catalogStub) ListCategories(context.Context) ([]model.Category, error) { return nil, nil }
func (s *catalogStub) CreateCourse(_ context.Context, c *model.Course) error {
	c.ID = uint64(len(s.created) + 1)
	s.created = append(s.created, *c)
	return nil
}

type invalidatorStub struct{ calls int }

func (s *invalidatorStub) Invalidate(context.Context) error {
	s.calls++
	return nil
}
