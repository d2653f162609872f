package ingestion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

const fngPayload = `{
  "name": "Fear and Greed Index",
  "data": [
    {
      "value": "72",
      "value_classification": "Greed",
      "timestamp": "1704067200",
      "time_until_update": "3600"
    }
  ],
  "metadata": {"error": null}
}`

func TestFetchIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fng/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("limit=1 should not send a query string, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(fngPayload))
	}))
	defer server.Close()

	client := NewSentimentClient(SentimentClientOptions{BaseURL: server.URL}, zap.NewNop())

	records, raw, err := client.FetchIndex(context.Background(), 1)
	if err != nil {
		t.Fatalf("FetchIndex failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Value != "72" || records[0].ValueClassification != "Greed" {
		t.Errorf("unexpected record: %+v", records[0])
	}

	// The landed payload is the bare data array.
	var arr []RawSentimentRecord
	if err := json.Unmarshal(raw, &arr); err != nil {
		t.Fatalf("raw payload is not a record array: %v", err)
	}
	if len(arr) != 1 || arr[0].Timestamp != "1704067200" {
		t.Errorf("unexpected raw payload: %s", raw)
	}
}

func TestFetchIndexSendsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "30" {
			t.Errorf("limit = %q, want 30", r.URL.Query().Get("limit"))
		}
		w.Write([]byte(fngPayload))
	}))
	defer server.Close()

	client := NewSentimentClient(SentimentClientOptions{BaseURL: server.URL}, zap.NewNop())
	if _, _, err := client.FetchIndex(context.Background(), 30); err != nil {
		t.Fatalf("FetchIndex failed: %v", err)
	}
}

func TestFetchIndexRejectsEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Fear and Greed Index","data":[]}`))
	}))
	defer server.Close()

	client := NewSentimentClient(SentimentClientOptions{BaseURL: server.URL}, zap.NewNop())
	if _, _, err := client.FetchIndex(context.Background(), 1); err == nil {
		t.Error("empty data array should fail validation")
	}
}

func TestFetchIndexRejectsNonNumericValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"value":"greedy","value_classification":"Greed","timestamp":"1704067200"}]}`))
	}))
	defer server.Close()

	client := NewSentimentClient(SentimentClientOptions{BaseURL: server.URL}, zap.NewNop())
	if _, _, err := client.FetchIndex(context.Background(), 1); err == nil {
		t.Error("non-numeric value should fail validation")
	}
}
