// Package payments is the REST client for the external payment backend,
// which owns the append-only deposit ledger and signature verification.
// Balances are never computed here; this package only reports what the
// ledger says.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"
)

// minorUnitDecimals is the payment backend's fixed-point encoding: all
// amounts are integers denominated in 10^-18 settlement units.
const minorUnitDecimals = 18

// Client talks to the payment backend API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a payment backend client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Received is one incoming payment within a transaction
type Received struct {
	Amount string `json:"amount"` // minor-unit integer string
	From   string `json:"from"`
}

// Transaction is one deposit-ledger entry
type Transaction struct {
	Received []Received `json:"received"`
}

// AddressInfo describes the service's deposit address
type AddressInfo struct {
	Address string `json:"address"`
}

// Verify checks a signed ownership proof for an address
func (c *Client) Verify(ctx context.Context, message, signature, address string) (bool, error) {
	payload, err := json.Marshal(map[string]string{
		"message":   message,
		"signature": signature,
		"address":   address,
	})
	if err != nil {
		return false, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.do(req, &out); err != nil {
		return false, err
	}
	return out.Valid, nil
}

// Transactions lists the deposit ledger's entries for one address
func (c *Client) Transactions(ctx context.Context, address string) ([]Transaction, error) {
	url := c.baseURL + "/transactions"
	if address != "" {
		url += "/" + address
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build transactions request: %w", err)
	}

	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

// Address fetches the service's deposit address
func (c *Client) Address(ctx context.Context) (*AddressInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/address", nil)
	if err != nil {
		return nil, fmt.Errorf("build address request: %w", err)
	}

	var info AddressInfo
	if err := c.do(req, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment backend request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("payment backend request failed: status=%d url=%s body=%s",
			resp.StatusCode, req.URL, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payment backend response: %w", err)
	}
	return nil
}

// SumDeposits totals the received amounts across transactions, converting
// from the backend's minor-unit integer strings to settlement units.
// Amounts routinely exceed int64 range, hence big.Int.
func SumDeposits(txs []Transaction) (float64, error) {
	total := new(big.Int)
	for _, tx := range txs {
		for _, r := range tx.Received {
			amount, ok := new(big.Int).SetString(r.Amount, 10)
			if !ok {
				return 0, fmt.Errorf("malformed deposit amount %q", r.Amount)
			}
			total.Add(total, amount)
		}
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(minorUnitDecimals), nil))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(total), scale).Float64()
	return value, nil
}
