package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxRetries = 3

// HTTPClient ходит в удаленный todo API. Транспортные ошибки повторяются
// с экспоненциальной паузой, ошибки протокола - нет: create это upsert по
// id, так что повторы безопасны, но бессмысленны при отвергнутом запросе.
type HTTPClient struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{},
		logger: logger,
	}
}

func (c *HTTPClient) List(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *HTTPClient) Create(ctx context.Context, req CreateRequest) (CreatedTask, error) {
	var resp CreateResponse
	if err := c.do(ctx, http.MethodPost, "/todos", req, &resp); err != nil {
		return CreatedTask{}, err
	}
	return resp.Data, nil
}

func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	op := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Debug("remote request failed, will retry", zap.String("path", path), zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusInternalServerError {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, serr))
			}
			return backoff.Permanent(serr)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}
