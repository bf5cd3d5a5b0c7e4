package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/cache"
	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/errors"
	"github.com/m-p-esser/data-job-pipeline/internal/models"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("data-job-pipeline/source")

// searchIDNamespace derives deterministic search IDs for responses that
// arrive without one, so the same combination always lands under the same key.
var searchIDNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

type Params struct {
	Query    string
	Location string
	Start    int
}

// Client fetches job-search results for one parameter combination.
type Client interface {
	Search(ctx context.Context, params Params) (*models.SearchEnvelope, error)
}

type client struct {
	http   *http.Client
	logger *zap.Logger
	config *config.Config
	cache  cache.Cache
}

func NewClient(logger *zap.Logger, config *config.Config, c cache.Cache) Client {
	return &client{
		http: &http.Client{
			Timeout: config.SourceAPITimeout,
		},
		logger: logger,
		config: config,
		cache:  c,
	}
}

func (c *client) Search(ctx context.Context, params Params) (*models.SearchEnvelope, error) {
	ctx, span := tracer.Start(ctx, "Search")
	defer span.End()

	span.SetAttributes(
		telemetry.String("search.query", params.Query),
		telemetry.String("search.location", params.Location),
		telemetry.Int("search.start", params.Start),
	)

	cacheKey := fmt.Sprintf("search:%s:%s:%s:%d",
		c.config.SourceAPIEngine, params.Query, params.Location, params.Start)

	var cached models.SearchEnvelope
	err := c.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		c.logger.Debug("cache hit for search",
			zap.String("query", params.Query),
			zap.String("location", params.Location))
		return &cached, nil
	} else if err != cache.ErrNotFound {
		span.SetAttributes(telemetry.String("cache.result", "error"))
		span.RecordError(err)
		c.logger.Warn("cache error for search", zap.Error(err))
	} else {
		span.SetAttributes(telemetry.String("cache.result", "miss"))
	}

	searchURL := c.buildURL(params)
	c.logger.Debug("cache miss, requesting search endpoint",
		zap.String("query", params.Query),
		zap.String("location", params.Location),
		zap.Int("start", params.Start))
	span.SetAttributes(telemetry.String("http.url", searchURL))

	var envelope *models.SearchEnvelope
	for attempt := 0; ; attempt++ {
		var fetchErr error
		envelope, fetchErr = c.fetch(ctx, searchURL)
		if fetchErr == nil {
			break
		}
		if attempt >= c.config.MaxRetries || !retryable(fetchErr) {
			span.RecordError(fetchErr)
			return nil, fetchErr
		}

		c.logger.Warn("retrying search request",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", c.config.MaxRetries),
			zap.Error(fetchErr))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.config.RetryDelay):
		}
	}

	c.normalize(envelope, params)

	c.logger.Debug("successfully fetched search results",
		zap.String("search_id", envelope.SearchMetadata.ID),
		zap.String("status", envelope.SearchMetadata.Status),
		zap.Int("job_results", len(envelope.JobResults)))

	if envelope.Successful() {
		if err := c.cache.Set(ctx, cacheKey, envelope, c.config.CacheTTL); err != nil {
			c.logger.Warn("failed to cache search results", zap.Error(err))
		}
	}

	return envelope, nil
}

// fetch performs one request against the search endpoint and maps the
// response to an envelope or a domain error.
func (c *client) fetch(ctx context.Context, searchURL string) (*models.SearchEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, errors.Internal("creating request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("failed to execute request", zap.Error(err))
		return nil, errors.Unavailable("executing request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Warn("search endpoint not found", zap.String("url", searchURL))
		return nil, errors.NotFound("search endpoint not found", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("search endpoint rate limited")
		return nil, errors.RateLimited("search endpoint rate limited", nil)
	case resp.StatusCode != http.StatusOK:
		c.logger.Error("unexpected status code", zap.Int("status_code", resp.StatusCode))
		return nil, errors.Internal(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	var envelope models.SearchEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.logger.Error("failed to decode response", zap.Error(err))
		return nil, errors.Internal("decoding response", err)
	}
	return &envelope, nil
}

// retryable reports whether a fetch error is worth another attempt. Rate
// limits and transport failures pass; 404s and malformed payloads do not.
func retryable(err error) bool {
	return errors.IsType(err, errors.ErrTypeRateLimit) ||
		errors.IsType(err, errors.ErrTypeUnavailable)
}

func (c *client) buildURL(params Params) string {
	values := url.Values{}
	values.Set("engine", c.config.SourceAPIEngine)
	values.Set("q", params.Query)
	values.Set("location", params.Location)
	values.Set("hl", c.config.SearchLanguage)
	values.Set("gl", c.config.SearchCountry)
	values.Set("start", strconv.Itoa(params.Start))
	if c.config.SourceAPIKey != "" {
		values.Set("api_key", c.config.SourceAPIKey)
	}
	return fmt.Sprintf("%s/search?%s", c.config.SourceAPIBaseURL, values.Encode())
}

// normalize fills fields the API may omit so downstream stages can rely on
// them: every envelope gets an ID, a status and a creation time, and its
// parameters reflect the request that produced it.
func (c *client) normalize(envelope *models.SearchEnvelope, params Params) {
	if envelope.SearchMetadata.ID == "" {
		seed := fmt.Sprintf("%s|%s|%s|%d",
			c.config.SourceAPIEngine, params.Query, params.Location, params.Start)
		envelope.SearchMetadata.ID = uuid.NewSHA1(searchIDNamespace, []byte(seed)).String()
	}
	if envelope.SearchMetadata.Status == "" {
		envelope.SearchMetadata.Status = models.StatusSuccess
	}
	if envelope.SearchMetadata.CreatedAt.IsZero() {
		envelope.SearchMetadata.CreatedAt = time.Now().UTC()
	}
	if envelope.SearchParameters.Query == "" {
		envelope.SearchParameters.Query = params.Query
	}
	if envelope.SearchParameters.Location == "" {
		envelope.SearchParameters.Location = params.Location
	}
	if envelope.SearchParameters.Engine == "" {
		envelope.SearchParameters.Engine = c.config.SourceAPIEngine
	}
	if envelope.SearchParameters.Language == "" {
		envelope.SearchParameters.Language = c.config.SearchLanguage
	}
	if envelope.SearchParameters.Country == "" {
		envelope.SearchParameters.Country = c.config.SearchCountry
	}
	envelope.SearchParameters.Start = params.Start
}
