package walletclient

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

const (
	requestTimeout = 10 * time.Second

	// -300 is the wallet daemon's "insufficient funds" error code.
	rpcCodeInsufficientFunds = -300
)

type client struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Int64
}

// New returns a WalletService backed by the wallet daemon's JSON-RPC
// endpoint at addr (host:port).
func New(addr string) (ports.WalletService, error) {
	if len(addr) <= 0 {
		return nil, fmt.Errorf("missing wallet address")
	}
	return &client{
		url:        fmt.Sprintf("http://%s", addr),
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

func (c *client) Open(ctx context.Context, path, password string) error {
	var opened bool
	if err := c.call(ctx, "openwallet", []interface{}{path, password}, &opened); err != nil {
		return fmt.Errorf("failed to open wallet: %w", err)
	}
	if !opened {
		return fmt.Errorf("wallet daemon refused to open wallet at %s", path)
	}
	return nil
}

func (c *client) Balance(
	ctx context.Context, asset domain.AssetKind,
) (domain.Fixed8, error) {
	var result struct {
		Balance int64 `json:"balance"`
	}
	if err := c.call(ctx, "getbalance", []interface{}{asset.String()}, &result); err != nil {
		return 0, fmt.Errorf("failed to get %s balance: %w", asset, err)
	}
	return domain.Fixed8(result.Balance), nil
}

func (c *client) Height(ctx context.Context) (uint32, error) {
	var height uint32
	if err := c.call(ctx, "getblockcount", nil, &height); err != nil {
		return 0, fmt.Errorf("failed to get block count: %w", err)
	}
	return height, nil
}

func (c *client) WalletHeight(ctx context.Context) (uint32, error) {
	var height uint32
	if err := c.call(ctx, "getwalletheight", nil, &height); err != nil {
		return 0, fmt.Errorf("failed to get wallet height: %w", err)
	}
	return height, nil
}

func (c *client) ResolveAddress(
	ctx context.Context, addr string,
) (domain.Identity, error) {
	var scriptHash string
	if err := c.call(ctx, "getscripthash", []interface{}{addr}, &scriptHash); err != nil {
		return "", fmt.Errorf("failed to resolve address %s: %w", addr, err)
	}
	return domain.Identity(scriptHash), nil
}

func (c *client) FundTransaction(ctx context.Context, tx *domain.Transaction) error {
	outputs := make([]map[string]interface{}, 0, len(tx.Outputs))
	for _, out := range tx.Outputs {
		outputs = append(outputs, map[string]interface{}{
			"asset":   out.Asset.String(),
			"value":   out.Amount.Value(),
			"address": string(out.To),
		})
	}

	var result struct {
		Txid string `json:"txid"`
	}
	if err := c.call(ctx, "fundtransfer", []interface{}{outputs}, &result); err != nil {
		if rpcErr, ok := err.(*rpcError); ok && rpcErr.Code == rpcCodeInsufficientFunds {
			return ports.ErrInsufficientFunds
		}
		return fmt.Errorf("failed to fund transaction: %w", err)
	}

	tx.ID = result.Txid
	return nil
}

func (c *client) Sign(
	ctx context.Context, tx *domain.Transaction,
) (*ports.SigningContext, error) {
	var result struct {
		Completed bool     `json:"completed"`
		Scripts   []string `json:"scripts"`
		Raw       string   `json:"raw"`
	}
	if err := c.call(ctx, "signtransfer", []interface{}{tx.ID}, &result); err != nil {
		return nil, fmt.Errorf("failed to sign transaction %s: %w", tx.ID, err)
	}

	scripts := make([][]byte, 0, len(result.Scripts))
	for _, s := range result.Scripts {
		script, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid script in signing context: %w", err)
		}
		scripts = append(scripts, script)
	}

	signingCtx := &ports.SigningContext{
		Completed: result.Completed,
		Scripts:   scripts,
	}
	if result.Completed {
		raw, err := hex.DecodeString(result.Raw)
		if err != nil {
			return nil, fmt.Errorf("invalid raw tx in signing context: %w", err)
		}
		signingCtx.Raw = raw
	}
	return signingCtx, nil
}

func (c *client) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	var saved bool
	if err := c.call(ctx, "savetransaction", []interface{}{tx.ID}, &saved); err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
	}
	if !saved {
		return fmt.Errorf("wallet daemon did not save transaction %s", tx.ID)
	}
	return nil
}

func (c *client) ProcessBlocks(ctx context.Context) error {
	var processed int64
	return c.call(ctx, "processblocks", nil, &processed)
}

func (c *client) Rebuild(ctx context.Context) error {
	var ok bool
	return c.call(ctx, "rebuildwallet", nil, &ok)
}

func (c *client) Close() {
	c.httpClient.CloseIdleConnections()
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
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
		return fmt.Errorf("wallet daemon returned status %d: %s", resp.StatusCode, buf)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return fmt.Errorf("invalid rpc response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if result != nil && len(envelope.Result) > 0 {
		return json.Unmarshal(envelope.Result, result)
	}
	return nil
}
