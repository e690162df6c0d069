// Package kvhttp is a client of akvd http api.
package kvhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/horockey/akv/internal/controller/http_controller/dto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// ErrEmptyKey is returned for single-key calls with empty key,
// which can not be addressed by url path.
var ErrEmptyKey = errors.New("empty key is not addressable over http")

type Client struct {
	cl      *resty.Client
	metrics *metrics
	logger  zerolog.Logger
}

// New creates client of server at baseURL, e.g. http://localhost:7070.
func New(baseURL string, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		metrics: newMetrics(),
		logger:  logger,
		cl: resty.New().
			SetBaseURL(baseURL).
			SetHeader("X-Api-Key", apiKey).
			SetRetryCount(0),
	}
}

func (c *Client) Metrics() []prometheus.Collector {
	return c.metrics.list()
}

// Get reports false if key is missing on server.
func (c *Client) Get(ctx context.Context, key string) (res []byte, found bool, resErr error) {
	defer c.observe(time.Now(), &resErr)

	if key == "" {
		return nil, false, ErrEmptyKey
	}

	c.logger.Debug().Str("key", key).Msg("getting value from remote")

	resp, err := c.cl.R().
		SetContext(ctx).
		SetPathParam("key", key).
		Get("/kv/{key}")
	if err != nil {
		return nil, false, fmt.Errorf("executing request: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		break
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String())
	}

	return resp.Body(), true, nil
}

func (c *Client) Set(ctx context.Context, key string, value []byte) (resErr error) {
	defer c.observe(time.Now(), &resErr)

	if key == "" {
		return ErrEmptyKey
	}

	resp, err := c.cl.R().
		SetContext(ctx).
		SetPathParam("key", key).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(value).
		Put("/kv/{key}")
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	return checkOK(resp)
}

func (c *Client) Delete(ctx context.Context, key string) (resErr error) {
	defer c.observe(time.Now(), &resErr)

	if key == "" {
		return ErrEmptyKey
	}

	resp, err := c.cl.R().
		SetContext(ctx).
		SetPathParam("key", key).
		Delete("/kv/{key}")
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	return checkOK(resp)
}

// SetMany sends all pairs in one request. Empty key is allowed here.
func (c *Client) SetMany(ctx context.Context, data map[string][]byte) (resErr error) {
	defer c.observe(time.Now(), &resErr)

	resp, err := c.cl.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dto.NewKVs(data)).
		Post("/kv")
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	return checkOK(resp)
}

func (c *Client) GetWithPrefix(ctx context.Context, prefix string) (res map[string][]byte, resErr error) {
	defer c.observe(time.Now(), &resErr)

	resp, err := c.cl.R().
		SetContext(ctx).
		SetQueryParam("prefix", prefix).
		Get("/kv")
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if err := checkOK(resp); err != nil {
		return nil, err
	}

	kvs := []dto.KV{}
	if err := json.Unmarshal(resp.Body(), &kvs); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	res, err = dto.KVsToMap(kvs)
	if err != nil {
		return nil, fmt.Errorf("converting dto kvs to map: %w", err)
	}

	return res, nil
}

// DeleteWithPrefix removes every key starting with prefix. Empty prefix removes everything.
func (c *Client) DeleteWithPrefix(ctx context.Context, prefix string) (resErr error) {
	defer c.observe(time.Now(), &resErr)

	resp, err := c.cl.R().
		SetContext(ctx).
		SetQueryParam("prefix", prefix).
		Delete("/kv")
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	return checkOK(resp)
}

// Keys returns sorted keys starting with prefix.
func (c *Client) Keys(ctx context.Context, prefix string) (res []string, resErr error) {
	defer c.observe(time.Now(), &resErr)

	resp, err := c.cl.R().
		SetContext(ctx).
		SetQueryParam("prefix", prefix).
		Get("/keys")
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	if err := checkOK(resp); err != nil {
		return nil, err
	}

	keys := dto.Keys{}
	if err := json.Unmarshal(resp.Body(), &keys); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	return keys.Keys, nil
}

// Flush waits until server persists every write made before the call.
func (c *Client) Flush(ctx context.Context) (resErr error) {
	defer c.observe(time.Now(), &resErr)

	resp, err := c.cl.R().
		SetContext(ctx).
		Post("/flush")
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}

	return checkOK(resp)
}

func (c *Client) observe(ts time.Time, resErr *error) {
	c.metrics.requestsCnt.Inc()
	c.metrics.requestTimeHist.Observe(float64(time.Since(ts)))

	switch *resErr {
	case nil:
		c.metrics.successProcessCnt.Inc()
	default:
		c.metrics.errProcessCnt.Inc()
	}
}

func checkOK(resp *resty.Response) error {
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String())
	}
	return nil
}
