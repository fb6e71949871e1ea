package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BlockSource fetches block data from the external ledger. Implementations
// return (nil, nil) when the height does not resolve to a block.
type BlockSource interface {
	GetBlock(ctx context.Context, height int64) (*Block, error)
}

// Client is a BlockSource over a condenser-style JSON-RPC endpoint.
type Client struct {
	nodeURL string
	client  *http.Client
}

// NewClient returns nil when nodeURL is empty, which disables syncing.
func NewClient(nodeURL string) *Client {
	if nodeURL == "" {
		return nil
	}
	return &Client{
		nodeURL: nodeURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GetBlock fetches a block by height. A null result (unknown or not yet
// produced height) returns (nil, nil).
func (c *Client) GetBlock(ctx context.Context, height int64) (*Block, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "condenser_api.get_block",
		Params:  []interface{}{height},
		ID:      1,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get_block: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		Result *Block    `json:"result"`
		Error  *rpcError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("get_block: decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("get_block: rpc error %d: %s", result.Error.Code, result.Error.Message)
	}
	return result.Result, nil
}
