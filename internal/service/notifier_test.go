package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	NewWebhookNotifier(srv.URL, discardLogger()).Notify(context.Background(), "order.completed", map[string]int{"id": 1})

	body := <-got
	assert.Equal(t, "order.completed", body["event"])
	assert.Equal(t, map[string]any{"id": float64(1)}, body["data"])
	assert.NotEmpty(t, body["sentAt"])
}

func TestWebhookNotifier_DisabledAndFailing(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWebhookNotifier("", discardLogger()).Notify(context.Background(), "x", nil)
		NewWebhookNotifier("http://127.0.0.1:1", discardLogger()).Notify(context.Background(), "x", nil)
	})
}

func TestContactSend(t *testing.T) {
	var sent *mail.SGMailV3
	svc := NewContactService("", "noreply@academy.test", "team@academy.test", discardLogger()).
		WithSender(func(ctx context.Context, msg *mail.SGMailV3) (int, error) {
			sent = msg
			return http.StatusAccepted, nil
		})

	err := svc.Send(context.Background(), ContactMessage{Name: "Ana", Email: "ana@x.test", Subject: "Hola", Message: "<b>hi</b>"})
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "Hola", sent.Subject)
	assert.Equal(t, "ana@x.test", sent.ReplyTo.Address)
	assert.Equal(t, "noreply@academy.test", sent.From.Address)
	require.Len(t, sent.Content, 2)
	assert.Equal(t, "<p>&lt;b&gt;hi&lt;/b&gt;</p>", sent.Content[1].Value)
}

func TestContactSend_Errors(t *testing.T) {
	disabled := NewContactService("", "a@b.test", "c@d.test", discardLogger())
	assert.ErrorIs(t, disabled.Send(context.Background(), ContactMessage{}), ErrMailDisabled)

	rejected := NewContactService("", "a@b.test", "c@d.test", discardLogger()).
		WithSender(func(ctx context.Context, msg *mail.SGMailV3) (int, error) { return http.StatusBadRequest, nil })
	assert.Error(t, rejected.Send(context.Background(), ContactMessage{Name: "n", Email: "e@x.test"}))

	failing := NewContactService("", "a@b.test", "c@d.test", discardLogger()).
		WithSender(func(ctx context.Context, msg *mail.SGMailV3) (int, error) { return 0, errors.New("timeout") })
	assert.Error(t, failing.Send(context.Background(), ContactMessage{Name: "n", Email: "e@x.test"}))
}
