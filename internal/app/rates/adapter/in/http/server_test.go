package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/repository"
	"github.com/JoeShih716/go-fx-ledger/internal/app/rates/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rates.json")
	content := `[
		{"fromCurrency": "USD", "toCurrency": "EUR", "buyRate": 1.1, "sellRate": 0.9},
		{"fromCurrency": "EUR", "toCurrency": "USD", "buyRate": 0.92, "sellRate": 1.08}
	]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	repo, err := repository.NewFileRepository(path)
	if err != nil {
		t.Fatalf("NewFileRepository: %v", err)
	}

	app := fiber.New()
	NewHandler(service.NewService(repo)).RegisterRoutes(app)
	return app
}

func postConvert(t *testing.T, app *fiber.App, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/convert", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestConvertEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp := postConvert(t, app, fiber.Map{"fromCurrency": "USD", "toCurrency": "EUR", "amount": "50"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["toCurrency"] != "EUR" || body["convertedAmount"] != "45" {
		t.Errorf("body = %v, want EUR 45", body)
	}
}

func TestConvertEndpoint_UnknownPair(t *testing.T) {
	app := newTestApp(t)

	resp := postConvert(t, app, fiber.Map{"fromCurrency": "USD", "toCurrency": "XXX", "amount": "10"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestConvertEndpoint_SameCurrency(t *testing.T) {
	app := newTestApp(t)

	resp := postConvert(t, app, fiber.Map{"fromCurrency": "USD", "toCurrency": "USD", "amount": "10"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestConvertEndpoint_MissingFields(t *testing.T) {
	app := newTestApp(t)

	resp := postConvert(t, app, fiber.Map{"amount": "10"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPingEndpoint(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "pong" {
		t.Errorf("body = %q, want pong", body)
	}
}

func TestCurrenciesEndpoint(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/currencies", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	defer resp.Body.Close()
	var body struct {
		Currencies []string `json:"currencies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	want := []string{"EUR", "USD"}
	if len(body.Currencies) != 2 || body.Currencies[0] != want[0] || body.Currencies[1] != want[1] {
		t.Errorf("currencies = %v, want %v", body.Currencies, want)
	}
}
