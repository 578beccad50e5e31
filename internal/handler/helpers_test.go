package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/listing-payment-gate/internal/validator"
)

func newTestApp(payments *mockPaymentService, listings *mockListingService, subs *mockSubscriptionService, promos *mockPromoService) *fiber.App {
	app := fiber.New()
	v := validator.New()

	ph := NewPaymentHandler(payments, v)
	app.Post("/api/payments/reference", ph.NewReference)
	app.Post("/api/payments/transaction", ph.BuildTransaction)
	app.Post("/api/payments/verify", ph.Verify)

	lh := NewListingHandler(listings, v)
	app.Post("/api/listings", lh.CreateListing)
	app.Get("/api/listings", lh.ListListings)
	app.Get("/api/listings/:id", lh.GetListing)

	sh := NewSubscriptionHandler(subs, v)
	app.Post("/api/subscriptions", sh.Purchase)
	app.Get("/api/subscriptions/:subscriber", sh.GetActive)

	prh := NewPromoHandler(promos, v)
	app.Post("/api/admin/promos", prh.Generate)
	app.Post("/api/admin/promos/free", prh.CreateFree)
	app.Get("/api/admin/promos", prh.ListActive)
	app.Get("/api/admin/promos/:code", prh.Get)
	app.Delete("/api/admin/promos/:id", prh.Delete)
	app.Put("/api/admin/promos/:id/reset", prh.Reset)
	return app
}

func defaultTestApp() (*fiber.App, *mockPaymentService, *mockListingService, *mockSubscriptionService, *mockPromoService) {
	p, l, s, pr := &mockPaymentService{}, &mockListingService{}, &mockSubscriptionService{}, &mockPromoService{}
	return newTestApp(p, l, s, pr), p, l, s, pr
}

// do sends a request and decodes a JSON object response body, if any.
func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}
