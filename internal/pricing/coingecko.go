package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultCoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoSource fetches the settlement currency's USD rate from the
// CoinGecko simple-price endpoint
type CoinGeckoSource struct {
	baseURL    string
	coinID     string
	httpClient *http.Client
}

// NewCoinGeckoSource creates a rate source for the given CoinGecko coin
// id (e.g. "binancecoin")
func NewCoinGeckoSource(coinID string) *CoinGeckoSource {
	return &CoinGeckoSource{
		baseURL: defaultCoinGeckoBaseURL,
		coinID:  coinID,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// NewCoinGeckoSourceWithBaseURL overrides the API endpoint, for tests
func NewCoinGeckoSourceWithBaseURL(coinID, baseURL string) *CoinGeckoSource {
	s := NewCoinGeckoSource(coinID)
	s.baseURL = baseURL
	return s
}

// FetchRate implements RateSource
func (s *CoinGeckoSource) FetchRate(ctx context.Context) (float64, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		s.baseURL, url.QueryEscape(s.coinID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("fetch rate: status=%d body=%s", resp.StatusCode, raw)
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode rate response: %w", err)
	}

	rate, ok := payload[s.coinID]["usd"]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("rate response missing usd price for %s", s.coinID)
	}

	return rate, nil
}
