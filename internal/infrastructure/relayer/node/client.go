package nodeclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cityofzion/faucetd/internal/core/domain"
	"github.com/cityofzion/faucetd/internal/core/ports"
)

const requestTimeout = 10 * time.Second

type client struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Int64
}

// New returns a Relayer backed by the ledger node's JSON-RPC endpoint at
// addr (host:port).
func New(addr string) (ports.Relayer, error) {
	if len(addr) <= 0 {
		return nil, fmt.Errorf("missing node address")
	}
	return &client{
		url:        fmt.Sprintf("http://%s", addr),
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// Relay submits the raw signed transaction. The node answers with a plain
// boolean: accepted or rejected by its peers.
func (c *client) Relay(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if !tx.Signed() || len(tx.Raw) <= 0 {
		return false, fmt.Errorf("refusing to relay unsigned transaction %s", tx.ID)
	}

	var accepted bool
	if err := c.call(
		ctx, "sendrawtransaction", []interface{}{hex.EncodeToString(tx.Raw)}, &accepted,
	); err != nil {
		return false, fmt.Errorf("failed to relay transaction %s: %w", tx.ID, err)
	}
	return accepted, nil
}

func (c *client) PersistBlocks(ctx context.Context) error {
	var persisted int64
	return c.call(ctx, "persistblocks", nil, &persisted)
}

func (c *client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *client) call(
	ctx context.Context, method string, params []interface{}, result interface{},
) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	// nolint
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned status %d: %s", resp.StatusCode, buf)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return fmt.Errorf("invalid rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if result != nil && len(envelope.Result) > 0 {
		return json.Unmarshal(envelope.Result, result)
	}
	return nil
}
