package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"vaultd/internal/domain"
)

// Client talks JSON-RPC to the ledger gateway in front of the vault
// contract. The handle is injected where it is needed; there is no package
// level connection state.
type Client struct {
	baseURL    string
	contract   string
	httpClient *http.Client
	nextID     atomic.Int64
	connected  atomic.Bool
}

func NewClient(baseURL, contract string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("ledger base url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		contract:   contract,
		httpClient: httpClient,
	}, nil
}

// Connect performs the initial health check. Callers may serve traffic even
// when this fails; mirroring simply records failed attempts until the ledger
// comes back.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Health(ctx); err != nil {
		return err
	}
	c.connected.Store(true)
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	var result string
	if err := c.call(ctx, "vault_health", nil, &result); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
	}
	return nil
}

type submitResult struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber int64  `json:"block_number"`
	Status      int    `json:"status"`
}

// Submit invokes a named contract operation and waits for its receipt.
func (c *Client) Submit(ctx context.Context, op string, args map[string]any) (domain.LedgerReceipt, error) {
	params := map[string]any{
		"contract": c.contract,
		"op":       op,
		"args":     args,
	}
	var result submitResult
	if err := c.call(ctx, "vault_submit", params, &result); err != nil {
		return domain.LedgerReceipt{}, err
	}
	if result.TxHash == "" {
		return domain.LedgerReceipt{}, errors.New("ledger returned empty tx hash")
	}
	return domain.LedgerReceipt{
		Op:          op,
		Status:      domain.MirrorStatusMirrored,
		TxID:        result.TxHash,
		BlockNumber: result.BlockNumber,
	}, nil
}

// Query runs a read-only contract call.
func (c *Client) Query(ctx context.Context, op string, args map[string]any) (json.RawMessage, error) {
	params := map[string]any{
		"contract": c.contract,
		"op":       op,
		"args":     args,
	}
	var result json.RawMessage
	if err := c.call(ctx, "vault_query", params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger rpc status %d", resp.StatusCode)
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("ledger rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}
