package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const metadataGeneralInfoPath = "/data/coin/generalinfo"

// CryptoCompareOptions parameterise the CryptoCompare metadata client.
type CryptoCompareOptions struct {
	BaseURL  string
	ImageURL string
	APIKey   string
	Timeout  time.Duration
}

// CryptoCompare fetches coin display metadata from the CryptoCompare API.
type CryptoCompare struct {
	opts     CryptoCompareOptions
	logger   zerolog.Logger
	client   *http.Client
	baseURL  string
	imageURL string
}

// NewCryptoCompare constructs a CryptoCompare metadata client.
func NewCryptoCompare(opts CryptoCompareOptions, logger zerolog.Logger) *CryptoCompare {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://min-api.cryptocompare.com"
	}

	imageURL := strings.TrimRight(opts.ImageURL, "/")
	if imageURL == "" {
		imageURL = "https://www.cryptocompare.com"
	}

	return &CryptoCompare{
		opts:     opts,
		logger:   logger.With().Str("component", "metadata_provider").Logger(),
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		imageURL: imageURL,
	}
}

// FetchMetadata retrieves the full name and logo for a base-asset symbol.
func (c *CryptoCompare) FetchMetadata(ctx context.Context, symbol string) (Metadata, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Metadata{}, fmt.Errorf("%w: empty symbol", ErrMetadataNotFound)
	}

	query := url.Values{}
	query.Set("fsyms", symbol)
	query.Set("tsym", "USD")
	endpoint := c.baseURL + metadataGeneralInfoPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Metadata{}, err
	}
	req.Header.Set("Accept", "application/json")
	if key := strings.TrimSpace(c.opts.APIKey); key != "" {
		req.Header.Set("Authorization", "Apikey "+key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Metadata{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Metadata{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Metadata{}, fmt.Errorf("cryptocompare api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var info generalInfoResponse
	if err := json.Unmarshal(payload, &info); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata response: %w", err)
	}
	if info.Response == "Error" {
		return Metadata{}, fmt.Errorf("cryptocompare api error: %s", info.Message)
	}
	if len(info.Data) == 0 {
		return Metadata{}, fmt.Errorf("%w: %s", ErrMetadataNotFound, symbol)
	}

	coin := info.Data[0].CoinInfo
	meta := Metadata{
		Symbol:   coin.Name,
		FullName: coin.FullName,
	}
	if coin.ImageURL != "" {
		meta.LogoURL = c.imageURL + coin.ImageURL
	}

	c.logger.Debug().Str("symbol", symbol).Str("full_name", meta.FullName).Msg("fetched coin metadata")
	return meta, nil
}

type generalInfoResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     []struct {
		CoinInfo struct {
			Name     string `json:"Name"`
			FullName string `json:"FullName"`
			ImageURL string `json:"ImageUrl"`
		} `json:"CoinInfo"`
	} `json:"Data"`
}

var _ MetadataSource = (*CryptoCompare)(nil)
