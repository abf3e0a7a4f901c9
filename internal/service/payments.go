package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/iliyamo/course-commerce/internal/model"
)

// ErrBadSignature is returned when an IPN hash does not match.
var ErrBadSignature = errors.New("payment signature mismatch")

// PaymentAnswer is the part of the gateway's kr-answer this service
// reads.
type PaymentAnswer struct {
	OrderStatus  string `json:"orderStatus"`
	OrderDetails struct {
		OrderID string `json:"orderId"`
	} `json:"orderDetails"`
}

// OrderCompleter completes an order by its public id.
type OrderCompleter interface {
	CompleteByPedidoID(ctx context.Context, pedidoID string) (model.Order, error)
}

// PaymentService talks to the card payment gateway: it requests form
// tokens and verifies instant payment notifications.
type PaymentService struct {
	client  *resty.Client
	hmacKey string
	orders  OrderCompleter
	logger  *slog.Logger
}

// NewPaymentService returns a gateway client using basic auth.
func NewPaymentService(baseURL, user, password, hmacKey string, orders OrderCompleter, logger *slog.Logger) *PaymentService {
	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(user, password).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &PaymentService{client: client, hmacKey: hmacKey, orders: orders, logger: logger}
}

// FormToken creates a payment for amount (in cents) and returns the
// gateway's form token.
func (s *PaymentService) FormToken(ctx context.Context, amount int64, orderID, email string) (string, error) {
	var out struct {
		Answer struct {
			FormToken string `json:"formToken"`
		} `json:"answer"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"amount":   amount,
			"currency": "PEN",
			"orderId":  orderID,
			"customer": map[string]string{"email": email},
		}).
		SetResult(&out).
		Post("/api-payment/V4/Charge/CreatePayment")
	if err != nil {
		return "", fmt.Errorf("create payment: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("create payment: gateway returned %d", resp.StatusCode())
	}
	if out.Answer.FormToken == "" {
		return "", errors.New("create payment: response has no form token")
	}
	return out.Answer.FormToken, nil
}

// Sign returns the hex HMAC-SHA256 of answer.
func Sign(key, answer string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(answer))
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleIPN verifies krHash over krAnswer and completes the referenced
// order when it was paid.
func (s *PaymentService) HandleIPN(ctx context.Context, krAnswer, krHash string) (PaymentAnswer, error) {
	var answer PaymentAnswer
	want := Sign(s.hmacKey, krAnswer)
	if krHash == "" || !hmac.Equal([]byte(want), []byte(strings.ToLower(krHash))) {
		return answer, ErrBadSignature
	}
	if err := json.Unmarshal([]byte(krAnswer), &answer); err != nil {
		return answer, fmt.Errorf("%w: kr-answer: %v", ErrInvalidInput, err)
	}
	if answer.OrderStatus != "PAID" {
		s.logger.Info("payment not completed", "order", answer.OrderDetails.OrderID, "status", answer.OrderStatus)
		return answer, nil
	}
	if _, err := s.orders.CompleteByPedidoID(ctx, answer.OrderDetails.OrderID); err != nil {
		return answer, fmt.Errorf("complete order %s: %w", answer.OrderDetails.OrderID, err)
	}
	s.logger.Info("payment completed", "order", answer.OrderDetails.OrderID)
	return answer, nil
}
