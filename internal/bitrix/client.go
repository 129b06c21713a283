// Package bitrix is the Bitrix Client (spec.md §4.A): typed, retrying,
// paginating access to a single Bitrix24 tenant's REST-over-webhook API.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/bitrixepl/engine/internal/observability"
)

// Retry/backoff policy constants from spec.md §4.A: only RateLimited is
// retried, exponential backoff base 1s, floor 4s, ceiling 60s, 5 attempts.
const (
	retryBaseDelay = 1 * time.Second
	retryMinDelay  = 4 * time.Second
	retryMaxDelay  = 60 * time.Second
	maxAttempts    = 5
)

// Client is a single per-tenant Bitrix24 webhook client.
type Client struct {
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *observability.Logger
}

// New builds a Client bound to one tenant's webhook base URL
// (https://<portal>/rest/<user>/<token>/, no trailing method).
func New(webhookURL string, timeout time.Duration, logger *observability.Logger) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		// Client-side pacing ahead of Bitrix's own QUERY_LIMIT_EXCEEDED:
		// 2 req/s with a burst of 2, conservative relative to Bitrix's
		// documented ~2 req/s-per-webhook ceiling.
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		logger:  logger,
	}
}

// response is the shape of every Bitrix REST reply.
type response struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Total            *int            `json:"total"`
	Next             *int            `json:"next"`
}

// Call performs a single Bitrix REST call with client-side rate pacing
// and the RateLimited retry policy from spec.md §4.A. Any other typed
// error short-circuits immediately.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	result, _, _, err := c.callWithEnvelope(ctx, method, params)
	return result, err
}

// GetAll transparently pages a method until Bitrix reports no more
// pages, never silently truncating.
func (c *Client) GetAll(ctx context.Context, method string, params map[string]any) ([]map[string]any, error) {
	all := make([]map[string]any, 0)
	start := 0

	for {
		pageParams := cloneParams(params)
		pageParams["start"] = start

		page, total, next, err := c.callWithEnvelope(ctx, method, pageParams)
		if err != nil {
			return nil, err
		}

		records, err := decodeRecordList(page)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)

		if next == nil || total == nil || len(all) >= *total {
			break
		}
		start = *next
	}

	return all, nil
}

// callWithEnvelope performs one (possibly retried) Bitrix call, returning
// the unwrapped result plus any pagination metadata.
func (c *Client) callWithEnvelope(ctx context.Context, method string, params map[string]any) (json.RawMessage, *int, *int, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.MaxInterval = retryMaxDelay
	bo.Multiplier = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, nil, err
		}

		body := encodeParams(params)
		endpoint, err := url.JoinPath(c.webhookURL, method+".json")
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bitrix: build url for %s: %w", method, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(body.Encode()))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bitrix: build request for %s: %w", method, err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		duration := time.Since(start)
		if err != nil {
			wrapped := asOperationTimeLimit(fmt.Errorf("bitrix: call %s: %w", method, err))
			if c.logger != nil {
				c.logger.LogBitrixCall(ctx, method, 0, duration, wrapped)
			}
			return nil, nil, nil, wrapped
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, nil, nil, fmt.Errorf("bitrix: read response for %s: %w", method, readErr)
		}

		var parsed response
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, nil, nil, asOperationTimeLimit(fmt.Errorf("bitrix: decode response for %s: %w", method, err))
		}

		if parsed.Error != "" {
			classified := classifyError(parsed.Error, parsed.ErrorDescription)
			if c.logger != nil {
				c.logger.LogBitrixCall(ctx, method, 0, duration, classified)
			}
			rl, isRateLimited := classified.(*RateLimitedError)
			if !isRateLimited {
				return nil, nil, nil, classified
			}
			lastErr = rl
			if attempt == maxAttempts {
				break
			}
			delay := clampDelay(bo.NextBackOff())
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, nil, nil, ctx.Err()
			case <-timer.C:
			}
			continue
		}

		if c.logger != nil {
			c.logger.LogBitrixCall(ctx, method, http.StatusOK, duration, nil)
		}
		return parsed.Result, parsed.Total, parsed.Next, nil
	}

	return nil, nil, nil, lastErr
}

func clampDelay(d time.Duration) time.Duration {
	if d < retryMinDelay {
		return retryMinDelay
	}
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

func cloneParams(params map[string]any) map[string]any {
	clone := make(map[string]any, len(params)+1)
	for k, v := range params {
		clone[k] = v
	}
	return clone
}

// decodeRecordList unwraps a `result` payload that may be a flat array,
// or (per the GetEntities dispatch rules for tasks/stage history) a
// list-of-batches / dict-with-items shape. It tolerates both, per
// spec.md §9's open question on pagination envelope variance.
func decodeRecordList(raw json.RawMessage) ([]map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var asList []json.RawMessage
	if err := json.Unmarshal(raw, &asList); err == nil {
		records := make([]map[string]any, 0, len(asList))
		for _, item := range asList {
			rec, err := decodeAsRecordOrBatch(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec...)
		}
		return records, nil
	}

	var asDict map[string]any
	if err := json.Unmarshal(raw, &asDict); err == nil {
		if items, ok := asDict["items"]; ok {
			return recordsFromAny(items), nil
		}
		return []map[string]any{asDict}, nil
	}

	return nil, fmt.Errorf("bitrix: unrecognized result shape: %s", string(raw))
}

// decodeAsRecordOrBatch handles one element of a top-level array that may
// itself be a plain record or a batch dict containing "items"/"tasks".
func decodeAsRecordOrBatch(item json.RawMessage) ([]map[string]any, error) {
	var dict map[string]any
	if err := json.Unmarshal(item, &dict); err != nil {
		return nil, fmt.Errorf("bitrix: unrecognized list element: %w", err)
	}
	if items, ok := dict["items"]; ok {
		return recordsFromAny(items), nil
	}
	if tasks, ok := dict["tasks"]; ok {
		return recordsFromAny(tasks), nil
	}
	return []map[string]any{dict}, nil
}

func recordsFromAny(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	records := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records
}

// encodeParams flattens a params map into Bitrix's bracket-nested form
// encoding (filter[>ID]=0, select[]=UF_*, ...).
func encodeParams(params map[string]any) url.Values {
	values := url.Values{}
	for k, v := range params {
		encodeValue(values, k, v)
	}
	return values
}

func encodeValue(values url.Values, key string, v any) {
	switch typed := v.(type) {
	case map[string]any:
		for k, inner := range typed {
			encodeValue(values, fmt.Sprintf("%s[%s]", key, k), inner)
		}
	case []string:
		for _, inner := range typed {
			values.Add(key+"[]", inner)
		}
	case []any:
		for _, inner := range typed {
			values.Add(key+"[]", fmt.Sprintf("%v", inner))
		}
	case nil:
		// omit
	case string:
		values.Set(key, typed)
	case int:
		values.Set(key, strconv.Itoa(typed))
	case int64:
		values.Set(key, strconv.FormatInt(typed, 10))
	case bool:
		values.Set(key, strconv.FormatBool(typed))
	default:
		values.Set(key, fmt.Sprintf("%v", typed))
	}
}
