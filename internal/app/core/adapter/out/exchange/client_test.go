package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-fx-ledger/internal/app/core/domain"
)

func TestConvert(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/convert" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}

		var req convertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.FromCurrency != "USD" || req.ToCurrency != "EUR" {
			t.Errorf("request = %+v, want USD->EUR", req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(convertResponse{
			ToCurrency:      "EUR",
			ConvertedAmount: decimal.RequireFromString("45"),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	converted, err := client.Convert(context.Background(), "USD", "EUR", decimal.RequireFromString("50"))
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if want := decimal.RequireFromString("45"); !converted.Equal(want) {
		t.Errorf("converted = %s, want %s", converted, want)
	}
}

// 4xx 代表匯率服務明確拒絕該幣別組合
func TestConvert_RateUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no rate from USD to XXX"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Convert(context.Background(), "USD", "XXX", decimal.RequireFromString("10"))
	if !errors.Is(err, domain.ErrExchangeRateUnavailable) {
		t.Errorf("err = %v, want ErrExchangeRateUnavailable", err)
	}
}

// 5xx 代表匯率服務本身故障
func TestConvert_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Convert(context.Background(), "USD", "EUR", decimal.RequireFromString("10"))
	if !errors.Is(err, domain.ErrExchangeServiceUnavailable) {
		t.Errorf("err = %v, want ErrExchangeServiceUnavailable", err)
	}
}

func TestConvert_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即關閉，模擬服務不在線

	client := NewClient(server.URL, 0)
	_, err := client.Convert(context.Background(), "USD", "EUR", decimal.RequireFromString("10"))
	if !errors.Is(err, domain.ErrExchangeServiceUnavailable) {
		t.Errorf("err = %v, want ErrExchangeServiceUnavailable", err)
	}
}

func TestConvert_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0)
	_, err := client.Convert(context.Background(), "USD", "EUR", decimal.RequireFromString("10"))
	if !errors.Is(err, domain.ErrExchangeServiceUnavailable) {
		t.Errorf("err = %v, want ErrExchangeServiceUnavailable", err)
	}
}
