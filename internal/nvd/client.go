// Package nvd queries the National Vulnerability Database CVE API 2.0.
package nvd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/riskgate/api/schemas"
	"github.com/xkilldash9x/riskgate/internal/config"
	"github.com/xkilldash9x/riskgate/internal/network"
)

const (
	// MaxResultsLimit is the hard per-request cap enforced by NVD.
	MaxResultsLimit = 2000
	// maxWindowDays is the widest publication range NVD accepts in one query.
	maxWindowDays = 120
)

// SearchResult is the outcome of one keyword search. On failure Error is set
// and the result is otherwise empty, which callers treat as "no results".
type SearchResult struct {
	Vulnerabilities []schemas.Vulnerability `json:"vulnerabilities"`
	TotalResults    int                     `json:"total_results"`
	ElapsedTime     time.Duration           `json:"elapsed_time"`
	Error           string                  `json:"error,omitempty"`
}

// Client is safe for concurrent use.
type Client struct {
	cfg            config.NVDConfig
	httpClient     *http.Client
	limiter        *rate.Limiter
	cache          Cache
	logger         *zap.Logger
	now            func() time.Time
	backoffFactory func() backoff.BackOff
}

// NewClient creates a client. cache may be nil.
func NewClient(cfg config.NVDConfig, cache Cache, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.WindowDays <= 0 || cfg.WindowDays > maxWindowDays {
		cfg.WindowDays = maxWindowDays
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: network.NewAPIClient(timeout, logger),
		limiter:    rate.NewLimiter(limit, 1),
		cache:      cache,
		logger:     logger.Named("nvd"),
		now:        time.Now,
	}
	c.backoffFactory = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 2 * time.Second
		b.MaxElapsedTime = c.cfg.MaxRetryElapsed
		if b.MaxElapsedTime <= 0 {
			return &backoff.StopBackOff{}
		}
		return b
	}
	return c
}

// window is a publication-date range [start, end).
type window struct {
	start, end time.Time
}

// splitWindow slices [now-daysBack, now] into ranges of at most width days, newest first.
func splitWindow(now time.Time, daysBack, width int) []window {
	start := now.AddDate(0, 0, -daysBack)
	step := time.Duration(width) * 24 * time.Hour

	var out []window
	for end := now; end.After(start); {
		s := end.Add(-step)
		if s.Before(start) {
			s = start
		}
		out = append(out, window{start: s, end: end})
		end = s
	}
	return out
}

// Search looks up CVEs matching software published in the last daysBack days.
// maxResults is capped at MaxResultsLimit. Transport failures are soft.
func (c *Client) Search(ctx context.Context, software string, daysBack, maxResults int) *SearchResult {
	start := time.Now()
	if daysBack <= 0 {
		daysBack = c.cfg.DaysBack
	}
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}
	if maxResults > MaxResultsLimit {
		maxResults = MaxResultsLimit
	}

	result := &SearchResult{Vulnerabilities: []schemas.Vulnerability{}}
	windows := splitWindow(c.now().UTC(), daysBack, c.cfg.WindowDays)

	for _, w := range windows {
		if len(result.Vulnerabilities) >= maxResults {
			break
		}
		page, err := c.fetchWindow(ctx, software, w, maxResults)
		if err != nil {
			c.logger.Warn("NVD query failed; treating as no results",
				zap.String("software", software), zap.Error(err))
			return &SearchResult{
				Vulnerabilities: []schemas.Vulnerability{},
				ElapsedTime:     time.Since(start),
				Error:           err.Error(),
			}
		}
		result.TotalResults += page.TotalResults
		result.Vulnerabilities = append(result.Vulnerabilities, page.Vulnerabilities...)
	}

	if len(result.Vulnerabilities) > maxResults {
		result.Vulnerabilities = result.Vulnerabilities[:maxResults]
	}
	result.ElapsedTime = time.Since(start)

	c.logger.Info("NVD search complete",
		zap.String("software", software),
		zap.Int("found", len(result.Vulnerabilities)),
		zap.Int("total_results", result.TotalResults),
		zap.Int("windows", len(windows)),
		zap.Duration("elapsed", result.ElapsedTime))
	return result
}

func (c *Client) fetchWindow(ctx context.Context, keyword string, w window, perPage int) (*Page, error) {
	key := cacheKey(keyword, w, perPage)
	if c.cache != nil {
		payload, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.logger.Debug("NVD cache read failed", zap.Error(err))
		case ok:
			if page, perr := ParseResponse(payload); perr == nil {
				c.logger.Debug("NVD cache hit", zap.String("key", key))
				return page, nil
			}
		}
	}

	payload, err := c.request(ctx, keyword, w, perPage)
	if err != nil {
		return nil, err
	}
	page, err := ParseResponse(payload)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, payload); err != nil {
			c.logger.Debug("NVD cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

func (c *Client) request(ctx context.Context, keyword string, w window, perPage int) ([]byte, error) {
	params := url.Values{}
	params.Set("keywordSearch", keyword)
	params.Set("resultsPerPage", strconv.Itoa(perPage))
	params.Set("pubStartDate", w.start.Format(publishedLayout))
	params.Set("pubEndDate", w.end.Format(publishedLayout))
	target := c.cfg.BaseURL + "?" + params.Encode()

	var body []byte
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter wait: %w", err))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create NVD request: %w", err))
		}
		if c.cfg.APIKey != "" {
			req.Header.Set("apiKey", c.cfg.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("NVD request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read NVD response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("NVD API returned status %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("Transient NVD error, retrying", zap.Int("status", resp.StatusCode))
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		body = data
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return body, nil
}
