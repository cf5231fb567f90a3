// Package searchclient implements the rate-limited, paginated, retrying
// single-source External Search Client (SPEC_FULL.md §4.1), grounded on
// internal/providers/arxiv/provider.go's request-building/pagination shape
// and internal/providers/tavily/types.go's free-text-summary response shape
// (the external scholar search endpoint itself is an out-of-scope
// collaborator per SPEC_FULL.md §1, so this client targets a generic
// JSON search API of that shape rather than any one named provider).
package searchclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	apperrors "scifind-backend/internal/errors"
	"scifind-backend/internal/models"
)

const pageSize = 20

// Config configures one source's External Search Client instance.
type Config struct {
	Name           string
	BaseURL        string
	APIKey         string
	RequestsPerSec float64
	MaxRetries     int
	Timeout        time.Duration
	// MaxCalls bounds the total number of HTTP requests this client issues
	// over its lifetime; zero means unlimited (SPEC_FULL.md §6).
	MaxCalls int
}

// Client is a rate-limited, paginated, retrying adapter over one search source.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      *apperrors.RetryExecutor
	classifier *apperrors.ErrorClassifier
	logger     *slog.Logger
	callCount  atomic.Int64
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		// rate.NewLimiter enforces the spec's "single mutex-protected
		// last-timestamp variable" semantics internally; using the ecosystem
		// limiter here is preferred to hand-rolling the same primitive twice.
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		retry:      apperrors.NewRetryExecutor(apperrors.RetryConfig{MaxAttempts: cfg.MaxRetries}, logger),
		classifier: apperrors.NewErrorClassifier(),
		logger:     logger,
	}
}

// Search fetches up to maxResults papers for a single free-text query,
// paginating in pages of pageSize and stopping at the first empty page, a
// cumulative count >= maxResults, or a mid-stream pagination error. On a
// transient error the results collected so far are returned without an
// error; on a permanent error (e.g. 401/403) they are returned together
// with that error — SPEC_FULL.md §4.1.
func (c *Client) Search(ctx context.Context, query string, maxResults int, yearFrom, yearTo *int, language string) ([]models.RawPaper, error) {
	var out []models.RawPaper
	start := 0

	for len(out) < maxResults {
		page, err := c.fetchPage(ctx, query, start, pageSize, yearFrom, yearTo, language)
		if err != nil {
			if apperrors.IsPermanent(err) {
				return out, err
			}
			// Transient failure mid-pagination: stop, keep what we have.
			c.logger.Warn("search pagination stopped early", slog.String("source", c.cfg.Name), slog.String("error", err.Error()))
			return out, nil
		}
		if len(page) == 0 {
			break
		}
		out = append(out, page...)
		start += pageSize
	}

	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

// SearchAdvanced fans a per-query budget across strategy.Queries (DESIGN.md
// open-question #1) and deduplicates by provider result-id, then URL, then
// normalized(title+year), per SPEC_FULL.md §4.1. A 401/403 rejection from the
// source is returned as an error; any other per-query failure is logged and
// that query is dropped.
func (c *Client) SearchAdvanced(ctx context.Context, strategy models.SearchStrategy) ([]models.RawPaper, error) {
	maxResults := strategy.Filters.MaxResults
	if maxResults <= 0 {
		maxResults = pageSize
	}

	var all []models.RawPaper
	for _, q := range strategy.Queries {
		papers, err := c.Search(ctx, q.BooleanQuery, maxResults, strategy.Filters.YearFrom, strategy.Filters.YearTo, strategy.Filters.Language)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Type == apperrors.ErrorTypeSearchPermanent {
				if status, _ := appErr.Details["status_code"].(int); status == http.StatusUnauthorized || status == http.StatusForbidden {
					return nil, err
				}
			}
			c.logger.Warn("search_advanced query failed, dropping", slog.String("source", c.cfg.Name), slog.String("query", q.BooleanQuery), slog.String("error", err.Error()))
			continue
		}
		all = append(all, papers...)
	}
	return dedupeByIdentity(all), nil
}

func dedupeByIdentity(papers []models.RawPaper) []models.RawPaper {
	seenResult := make(map[string]struct{})
	seenURL := make(map[string]struct{})
	seenTitleYear := make(map[string]struct{})
	out := make([]models.RawPaper, 0, len(papers))

	for _, p := range papers {
		if p.ProviderResult != "" {
			if _, ok := seenResult[p.ProviderResult]; ok {
				continue
			}
			seenResult[p.ProviderResult] = struct{}{}
		}
		if p.FullTextURL != nil && *p.FullTextURL != "" {
			if _, ok := seenURL[*p.FullTextURL]; ok {
				continue
			}
			seenURL[*p.FullTextURL] = struct{}{}
		}
		key := normalizeTitleYear(p.Title, p.Year)
		if _, ok := seenTitleYear[key]; ok {
			continue
		}
		seenTitleYear[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func normalizeTitleYear(title string, year *int) string {
	t := strings.ToLower(strings.Join(strings.Fields(title), " "))
	y := 0
	if year != nil {
		y = *year
	}
	return fmt.Sprintf("%s|%d", t, y)
}

// providerResponse is the generic JSON shape of the external search API:
// an array of results, each carrying a free-text summary rather than
// structured author/year/venue fields.
type providerResponse struct {
	Results []providerResult `json:"results"`
	Error   string           `json:"error,omitempty"`
}

type providerResult struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	URL           string `json:"url"`
	CitationCount *int   `json:"citation_count,omitempty"`
}

func (c *Client) fetchPage(ctx context.Context, query string, start, count int, yearFrom, yearTo *int, language string) ([]models.RawPaper, error) {
	if c.cfg.MaxCalls > 0 && c.callCount.Add(1) > int64(c.cfg.MaxCalls) {
		return nil, apperrors.NewSearchPermanentError(c.cfg.Name, "search call ceiling reached", 0)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewCancellationError(c.cfg.Name)
	}

	var page []models.RawPaper
	err := c.retry.Execute(ctx, "search."+c.cfg.Name, func(attempt int) error {
		p, attemptErr := c.doFetch(ctx, query, start, count, yearFrom, yearTo, language)
		if attemptErr != nil {
			return attemptErr
		}
		page = p
		return nil
	})
	return page, err
}

func (c *Client) doFetch(ctx context.Context, query string, start, count int, yearFrom, yearTo *int, language string) ([]models.RawPaper, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("start", strconv.Itoa(start))
	q.Set("count", strconv.Itoa(count))
	if yearFrom != nil {
		q.Set("year_from", strconv.Itoa(*yearFrom))
	}
	if yearTo != nil {
		q.Set("year_to", strconv.Itoa(*yearTo))
	}
	if language != "" {
		q.Set("language", language)
	}

	reqURL := c.cfg.BaseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.Header.Set("User-Agent", "scifind-backend/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifier.ClassifyHTTPStatus(c.cfg.Name, 0, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifier.ClassifyHTTPStatus(c.cfg.Name, resp.StatusCode, string(body))
	}

	var parsed providerResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.NewSearchPermanentError(c.cfg.Name, "malformed search response", resp.StatusCode)
	}
	if parsed.Error != "" {
		// "200 with provider-level error field is permanent" — SPEC_FULL.md §4.1.
		return nil, apperrors.NewSearchPermanentError(c.cfg.Name, parsed.Error, resp.StatusCode)
	}

	out := make([]models.RawPaper, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, parseResult(c.cfg.Name, r))
	}
	return out, nil
}

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/\S+`)

// hostnameLike matches tokens that look like a bare domain name, which the
// free-text split sometimes strands where a venue should be.
var hostnameLike = regexp.MustCompile(`^[a-z0-9.-]+\.(com|org|net|edu|io)$`)

// parseResult extracts authors/year/venue from the free-text summary using
// the spec's "-"-split heuristic: the summary is expected to be structured
// roughly as "Authors - Venue - Year - snippet...", and any field the split
// can't find is left absent rather than guessed.
func parseResult(source string, r providerResult) models.RawPaper {
	paper := models.RawPaper{
		ID:             r.ID,
		Title:          r.Title,
		ProviderResult: r.ID,
		Source:         source,
	}
	if r.URL != "" {
		u := r.URL
		paper.FullTextURL = &u
	}
	if r.CitationCount != nil {
		paper.CitationCount = *r.CitationCount
	}

	parts := strings.Split(r.Summary, " - ")
	var rest string
	if len(parts) >= 1 {
		authors := splitAuthors(parts[0])
		if len(authors) > 0 {
			paper.Authors = authors
		}
	}
	if len(parts) >= 2 {
		venue := strings.TrimSpace(parts[1])
		if venue != "" && !hostnameLike.MatchString(strings.ToLower(venue)) {
			paper.Venue = &venue
		}
	}
	if len(parts) >= 3 {
		if y, err := strconv.Atoi(strings.TrimSpace(parts[2])); err == nil {
			paper.Year = &y
		}
		rest = strings.Join(parts[3:], " - ")
	} else if len(parts) > 0 {
		rest = parts[len(parts)-1]
	}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		paper.Snippet = &rest
	}

	if doi := doiPattern.FindString(r.URL + " " + r.Summary); doi != "" {
		d := strings.ToLower(doi)
		paper.DOI = &d
	}

	return paper
}

func splitAuthors(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
