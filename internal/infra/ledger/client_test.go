package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"vaultd/internal/domain"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestSubmitSuccess(t *testing.T) {
	var gotMethod string
	var gotParams map[string]any
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			var rpc struct {
				Method string         `json:"method"`
				Params map[string]any `json:"params"`
			}
			if err := json.Unmarshal(body, &rpc); err != nil {
				t.Fatalf("invalid rpc request: %v", err)
			}
			gotMethod = rpc.Method
			gotParams = rpc.Params
			return jsonResponse(`{"result":{"tx_hash":"0xabc123","block_number":42,"status":1}}`), nil
		}),
	}
	client, err := NewClient("https://ledger.example", "0xcontract", httpClient)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	receipt, err := client.Submit(context.Background(), domain.LedgerOpCreateRequest, map[string]any{
		"data_id": "DATA-AB12CD34EF56",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if gotMethod != "vault_submit" {
		t.Fatalf("expected vault_submit, got %s", gotMethod)
	}
	if gotParams["op"] != domain.LedgerOpCreateRequest || gotParams["contract"] != "0xcontract" {
		t.Fatalf("unexpected params %v", gotParams)
	}
	if receipt.TxID != "0xabc123" || receipt.BlockNumber != 42 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if !receipt.Mirrored() {
		t.Fatalf("expected mirrored receipt, got status %s", receipt.Status)
	}
}

func TestSubmitRPCError(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(`{"error":{"code":-32000,"message":"reverted"}}`), nil
		}),
	}
	client, _ := NewClient("https://ledger.example", "0xcontract", httpClient)
	if _, err := client.Submit(context.Background(), "op", nil); err == nil {
		t.Fatal("expected rpc error to surface")
	}
}

func TestSubmitTransportError(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}
	client, _ := NewClient("https://ledger.example", "0xcontract", httpClient)
	if _, err := client.Submit(context.Background(), "op", nil); err == nil {
		t.Fatal("expected transport error to surface")
	}
}

func TestHealthWrapsLedgerUnavailable(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}),
	}
	client, _ := NewClient("https://ledger.example", "0xcontract", httpClient)
	if err := client.Health(context.Background()); !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(`{"result":{"pending":3}}`), nil
		}),
	}
	client, _ := NewClient("https://ledger.example", "0xcontract", httpClient)
	raw, err := client.Query(context.Background(), "getPendingRequestsCount", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var out struct {
		Pending int `json:"pending"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Pending != 3 {
		t.Fatalf("expected 3, got %d", out.Pending)
	}
}
