package network

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type fakeClient struct {
	Client

	chainID  *big.Int
	block    uint64
	gasPrice *big.Int
	chainErr error
	blockErr error
	hang     chan struct{}

	mu     sync.Mutex
	closed bool
}

func (c *fakeClient) ChainID(ctx context.Context) (*big.Int, error) {
	if c.hang != nil {
		select {
		case <-c.hang:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.chainID, c.chainErr
}

func (c *fakeClient) BlockNumber(context.Context) (uint64, error) {
	return c.block, c.blockErr
}

func (c *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return c.gasPrice, nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out a fresh client per dial so sessions stay independent.
type fakeDialer struct {
	mu      sync.Mutex
	dialed  []string
	clients []*fakeClient
	factory map[string]func() (*fakeClient, error)
}

func (d *fakeDialer) Dial(_ context.Context, rawURL string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dialed = append(d.dialed, rawURL)
	newClient, ok := d.factory[rawURL]
	if !ok {
		return nil, fmt.Errorf("dial %s: no such host", rawURL)
	}
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	d.clients = append(d.clients, client)
	return client, nil
}

func live(chainID int64, block uint64) func() (*fakeClient, error) {
	return func() (*fakeClient, error) {
		return &fakeClient{chainID: big.NewInt(chainID), block: block, gasPrice: big.NewInt(10_000_000_000)}, nil
	}
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer serves the handful of eth_ methods the prober and diagnoser use.
func newRPCServer(t *testing.T, chainID, block uint64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_chainId":
			resp["result"] = fmt.Sprintf("0x%x", chainID)
		case "eth_blockNumber":
			resp["result"] = fmt.Sprintf("0x%x", block)
		case "eth_gasPrice":
			resp["result"] = "0x2540be400"
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return server
}

// closedServerURL returns a URL nothing listens on any more.
func closedServerURL(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}
