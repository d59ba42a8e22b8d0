package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	krakenTickerPath     = "/0/public/Ticker"
	krakenAssetPairsPath = "/0/public/AssetPairs"
)

// KrakenOptions parameterise the Kraken public API client.
type KrakenOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Kraken fetches spot prices and tradable pairs from the Kraken public API.
type Kraken struct {
	opts    KrakenOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewKraken constructs a Kraken client.
func NewKraken(opts KrakenOptions, logger zerolog.Logger) *Kraken {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kraken.com"
	}

	return &Kraken{
		opts:    opts,
		logger:  logger.With().Str("component", "kraken_provider").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchPrice retrieves the last traded price for a pair identifier.
func (k *Kraken) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	if strings.TrimSpace(pair) == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty pair", ErrPairNotFound)
	}

	endpoint := k.baseURL + krakenTickerPath + "?pair=" + url.QueryEscape(pair)

	var tickers map[string]krakenTicker
	if err := k.get(ctx, endpoint, &tickers); err != nil {
		return decimal.Decimal{}, err
	}

	// Kraken normalises the pair name in the response key, so take the
	// single entry instead of indexing by the request value.
	for name, ticker := range tickers {
		if len(ticker.Close) == 0 {
			return decimal.Decimal{}, fmt.Errorf("ticker %s carries no close data", name)
		}
		price, err := decimal.NewFromString(ticker.Close[0])
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse last price: %w", err)
		}
		return price, nil
	}

	return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrPairNotFound, pair)
}

// FetchUSDPairs retrieves every tradable pair quoted in US dollars, sorted
// by display name.
func (k *Kraken) FetchUSDPairs(ctx context.Context) ([]Pair, error) {
	endpoint := k.baseURL + krakenAssetPairsPath

	var assetPairs map[string]krakenAssetPair
	if err := k.get(ctx, endpoint, &assetPairs); err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(assetPairs))
	for id, ap := range assetPairs {
		if ap.Quote != "ZUSD" && ap.Quote != "USD" {
			continue
		}
		display := ap.WSName
		if display == "" {
			display = ap.Altname
		}
		pairs = append(pairs, Pair{
			ID:          id,
			DisplayName: display,
			Base:        ap.Base,
			Quote:       ap.Quote,
		})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].DisplayName < pairs[j].DisplayName })

	k.logger.Debug().Int("pairs", len(pairs)).Msg("fetched USD asset pairs")
	return pairs, nil
}

func (k *Kraken) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(k.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "pairwatch/1.0")
	}

	resp, err := k.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseKrakenHTTPError(resp.StatusCode, payload)
	}

	var envelope krakenEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode kraken response: %w", err)
	}
	if len(envelope.Error) > 0 {
		return mapKrakenError(envelope.Error)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode kraken result: %w", err)
	}
	return nil
}

type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

type krakenTicker struct {
	Close []string `json:"c"`
}

type krakenAssetPair struct {
	Altname string `json:"altname"`
	WSName  string `json:"wsname"`
	Base    string `json:"base"`
	Quote   string `json:"quote"`
}

// mapKrakenError folds the API error list into a single error, surfacing
// unknown-pair responses as ErrPairNotFound.
func mapKrakenError(errs []string) error {
	msg := strings.Join(errs, "; ")
	if strings.Contains(msg, "Unknown asset pair") {
		return fmt.Errorf("%w: %s", ErrPairNotFound, msg)
	}
	return fmt.Errorf("kraken api error: %s", msg)
}

func parseKrakenHTTPError(status int, payload []byte) error {
	var envelope krakenEnvelope
	if err := json.Unmarshal(payload, &envelope); err == nil && len(envelope.Error) > 0 {
		return fmt.Errorf("kraken api error (%d): %s", status, strings.Join(envelope.Error, "; "))
	}
	if len(payload) > 0 {
		return fmt.Errorf("kraken api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("kraken api error (%d)", status)
}

var (
	_ PriceSource = (*Kraken)(nil)
	_ PairCatalog = (*Kraken)(nil)
)
