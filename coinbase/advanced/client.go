// Copyright (c) 2023 BVK Chaitanya

// Package advanced implements a minimal client for the Coinbase Advanced
// Trade REST API. Requests are signed with the CDP API key, but the client
// doesn't throttle or retry; callers are expected to dispatch every call
// through a rate-limited executor.
package advanced

import (
	"context"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"path"
	"strconv"
	"time"

	jose "gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

type Client struct {
	opts Options

	kid string

	signer jose.Signer

	client *http.Client
}

type nonceSource struct{}

func (n nonceSource) Nonce() (string, error) {
	r, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// New creates a client for coinbase exchange with the API key name (kid) and
// its PEM encoded EC private key.
func New(kid, pemtext string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = new(Options)
	}
	v := *opts
	v.setDefaults()

	if kid == "" {
		return nil, fmt.Errorf("api key name cannot be empty: %w", os.ErrInvalid)
	}
	block, _ := pem.Decode([]byte(pemtext))
	if block == nil {
		slog.Error("could not parse the PEM private key")
		return nil, fmt.Errorf("could not decode api secret as PEM: %w", os.ErrInvalid)
	}
	priKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		slog.Error("could not parse the EC private key", "err", err)
		return nil, fmt.Errorf("could not parse the EC private key: %w", err)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: priKey},
		(&jose.SignerOptions{NonceSource: nonceSource{}}).WithType("JWT").WithHeader("kid", kid),
	)
	if err != nil {
		slog.Error("could not create go-jose.v2 pkg signer", "err", err)
		return nil, err
	}

	c := &Client{
		opts:   v,
		kid:    kid,
		signer: signer,
		client: &http.Client{
			Timeout: v.HttpClientTimeout,
		},
	}
	return c, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type APIKeyClaims struct {
	*jwt.Claims
	URI string `json:"uri"`
}

func (c *Client) signJWT(uri string) (string, error) {
	now := time.Now()
	cl := &APIKeyClaims{
		Claims: &jwt.Claims{
			Subject:   c.kid,
			Issuer:    "cdp",
			NotBefore: jwt.NewNumericDate(now),
			Expiry:    jwt.NewNumericDate(now.Add(2 * time.Minute)),
		},
		URI: uri,
	}
	return jwt.Signed(c.signer).Claims(cl).CompactSerialize()
}

func (c *Client) getJSON(ctx context.Context, url *url.URL, signed bool, result interface{}) error {
	urlStr := url.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		slog.Error("could not create http get request with context", "url", urlStr, "err", err)
		return err
	}
	if signed {
		token, err := c.signJWT(fmt.Sprintf("%s %s%s", req.Method, req.URL.Host, req.URL.Path))
		if err != nil {
			slog.Error("could not create signed jwt token for GET", "url", urlStr, "err", err)
			return err
		}
		req.Header.Add("Authorization", "Bearer "+token)
	}

	at := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(at)
	if latency > c.opts.HttpClientTimeout {
		slog.Warn("GET request took longer than the desired timeout", "desired", c.opts.HttpClientTimeout, "taken", latency)
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Error("could not do http client request", "url", urlStr, "err", err)
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read http response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &HTTPError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}
	slog.Debug("Coinbase GET", "url", urlStr, "latency", latency, "response", string(data))

	if err := json.Unmarshal(data, result); err != nil {
		slog.Error("could not decode response to json", "url", urlStr, "err", err)
		return fmt.Errorf("could not decode response to json: %w", err)
	}
	return nil
}

func (c *Client) newURL(p string, values url.Values) *url.URL {
	u := &url.URL{
		Scheme: c.opts.Scheme,
		Host:   c.opts.RestHostname,
		Path:   p,
	}
	if len(values) > 0 {
		u.RawQuery = values.Encode()
	}
	return u
}

// ListProducts returns the spot product catalog.
func (c *Client) ListProducts(ctx context.Context) (*RawProductsResponse, error) {
	values := make(url.Values)
	values.Set("product_type", "SPOT")

	url := c.newURL("/api/v3/brokerage/products", values)
	resp := new(RawProductsResponse)
	if err := c.getJSON(ctx, url, true /* signed */, resp); err != nil {
		return nil, fmt.Errorf("could not list products: %w", err)
	}
	return resp, nil
}

// GetPublicCandles returns the candles for a product in the [start, end]
// range from the public market data endpoint.
func (c *Client) GetPublicCandles(ctx context.Context, productID string, start, end time.Time, granularity string) (*RawCandlesResponse, error) {
	values := make(url.Values)
	values.Set("start", strconv.FormatInt(start.Unix(), 10))
	values.Set("end", strconv.FormatInt(end.Unix(), 10))
	values.Set("granularity", granularity)

	url := c.newURL(path.Join("/api/v3/brokerage/market/products/", productID, "candles"), values)
	resp := new(RawCandlesResponse)
	if err := c.getJSON(ctx, url, false /* signed */, resp); err != nil {
		return nil, fmt.Errorf("could not http-get product candles %q: %w", productID, err)
	}
	return resp, nil
}

// GetKeyPermissions returns the permissions of the api key in use.
func (c *Client) GetKeyPermissions(ctx context.Context) (*KeyPermissionsResponse, error) {
	url := c.newURL("/api/v3/brokerage/key_permissions", nil)
	resp := new(KeyPermissionsResponse)
	if err := c.getJSON(ctx, url, true /* signed */, resp); err != nil {
		return nil, fmt.Errorf("could not get api key permissions: %w", err)
	}
	return resp, nil
}
