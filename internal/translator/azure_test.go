package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newAzureTestServer(t *testing.T, handler http.HandlerFunc) (*AzureService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	svc := &AzureService{
		apiKey:   "test-key",
		endpoint: server.URL,
		region:   "westeurope",
		client:   server.Client(),
	}
	return svc, server
}

func TestAzureService_TranslateBatch(t *testing.T) {
	var gotPath, gotKey, gotRegion, gotTo string
	svc, _ := newAzureTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
		gotRegion = r.Header.Get("Ocp-Apim-Subscription-Region")
		gotTo = r.URL.Query().Get("to")

		var body []map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := make([]map[string]any, len(body))
		for i, item := range body {
			resp[i] = map[string]any{
				"detectedLanguage": map[string]any{"language": "en", "score": 1.0},
				"translations":     []map[string]string{{"text": "ES:" + item["Text"], "to": "es"}},
			}
		}
		json.NewEncoder(w).Encode(resp)
	})

	results, err := svc.TranslateBatch(context.Background(), []string{"Hello", "World"}, "", "es")
	if err != nil {
		t.Fatalf("TranslateBatch: %v", err)
	}

	if gotPath != "/translate" {
		t.Errorf("path = %q, want /translate", gotPath)
	}
	if gotKey != "test-key" || gotRegion != "westeurope" {
		t.Errorf("auth headers = %q/%q", gotKey, gotRegion)
	}
	if gotTo != "es" {
		t.Errorf("to = %q, want es", gotTo)
	}

	// Length- and order-preservation.
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Text != "ES:Hello" || results[1].Text != "ES:World" {
		t.Errorf("results out of order: %+v", results)
	}
	if results[0].DetectedLanguage != "en" {
		t.Errorf("detected language = %q, want en", results[0].DetectedLanguage)
	}
}

func TestAzureService_TranslateBatch_NoAPIKey(t *testing.T) {
	svc := NewAzureService("", "", "")

	_, err := svc.TranslateBatch(context.Background(), []string{"Hello"}, "", "es")
	if err == nil {
		t.Fatal("expected error when no API key")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
}

func TestAzureService_TranslateBatch_APIError(t *testing.T) {
	svc, _ := newAzureTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 401000, "message": "invalid subscription key"},
		})
	})

	_, err := svc.TranslateBatch(context.Background(), []string{"Hello"}, "", "es")
	if err == nil {
		t.Fatal("expected error for non-OK status")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if pe.Code != http.StatusForbidden {
		t.Errorf("Code = %d, want %d", pe.Code, http.StatusForbidden)
	}
	if pe.Message != "invalid subscription key" {
		t.Errorf("Message = %q", pe.Message)
	}
}

func TestAzureService_TranslateBatch_LengthMismatch(t *testing.T) {
	svc, _ := newAzureTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{})
	})

	_, err := svc.TranslateBatch(context.Background(), []string{"a", "b"}, "", "es")
	if err == nil {
		t.Fatal("expected error when provider returns wrong count")
	}
}

func TestAzureService_TranslateBatch_Empty(t *testing.T) {
	svc := NewAzureService("key", "", "")
	results, err := svc.TranslateBatch(context.Background(), nil, "", "es")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil results for empty input")
	}
}

func TestAzureService_Limits(t *testing.T) {
	limits := NewAzureService("k", "", "").Limits()
	if limits.MaxTexts <= 0 || limits.MaxChars <= 0 {
		t.Errorf("limits must be positive: %+v", limits)
	}
}
