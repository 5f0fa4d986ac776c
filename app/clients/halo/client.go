package halo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
	"github.com/davidhouweling/guilty-spark-sub001/config"
)

// MatchHistoryPageSize is the upstream page size for match history listings.
const MatchHistoryPageSize = 25

// Client is the game-stats API client. Requests carry an OAuth2 client
// credentials token and are paced by a shared rate limiter. Non-2xx
// responses other than 404 classify as retryable infrastructure errors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a stats API client from configuration.
func NewClient(cfg config.HaloConfig, logger *slog.Logger) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}

	httpClient := cc.Client(context.Background())
	httpClient.Timeout = 15 * time.Second

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		// ~10 requests per second with a small burst allowance.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  logger,
	}
}

// get performs a rate-limited GET and decodes the JSON response.
// 404 returns errs.ErrNotFound; other non-2xx return errs.ErrRetryLater.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stats API request failed: %w", errs.ErrRetryLater)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.WarnContext(ctx, "Stats API returned non-2xx status",
			attr.String("path", path),
			attr.Int("status", resp.StatusCode),
			attr.String("body", string(body)),
		)
		return fmt.Errorf("stats API status %d: %w", resp.StatusCode, errs.ErrRetryLater)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FindByGamertag looks up one account by display name. A missing account
// returns (nil, nil).
func (c *Client) FindByGamertag(ctx context.Context, gamertag string) (*Account, error) {
	var resp userResponse
	err := c.get(ctx, "/users/"+url.PathEscape(gamertag), nil, &resp)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Account{ID: sharedtypes.XboxUserID(resp.XUID), Gamertag: resp.Gamertag}, nil
}

// ListMatches returns one newest-first page of the account's match history.
func (c *Client) ListMatches(ctx context.Context, id sharedtypes.XboxUserID, start, count int) ([]sharedtypes.MatchSummary, error) {
	query := url.Values{}
	query.Set("start", fmt.Sprintf("%d", start))
	query.Set("count", fmt.Sprintf("%d", count))

	var resp matchListResponse
	if err := c.get(ctx, "/players/"+url.PathEscape(string(id))+"/matches", query, &resp); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}

	out := make([]sharedtypes.MatchSummary, 0, len(resp.Results))
	for _, entry := range resp.Results {
		startTime, err := time.Parse(time.RFC3339, entry.StartTime)
		if err != nil {
			return nil, fmt.Errorf("bad start_time %q: %w", entry.StartTime, err)
		}
		endTime, err := time.Parse(time.RFC3339, entry.EndTime)
		if err != nil {
			return nil, fmt.Errorf("bad end_time %q: %w", entry.EndTime, err)
		}
		out = append(out, sharedtypes.MatchSummary{
			MatchID:   sharedtypes.MatchID(entry.MatchID),
			StartTime: startTime,
			EndTime:   endTime,
		})
	}
	return out, nil
}

// GetMatchDetails fetches full detail for a batch of match ids.
func (c *Client) GetMatchDetails(ctx context.Context, ids []sharedtypes.MatchID) ([]sharedtypes.MatchDetail, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}
	query := url.Values{}
	query.Set("ids", strings.Join(raw, ","))

	var resp matchStatsResponse
	if err := c.get(ctx, "/matches/stats", query, &resp); err != nil {
		return nil, err
	}

	out := make([]sharedtypes.MatchDetail, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		startTime, err := time.Parse(time.RFC3339, m.StartTime)
		if err != nil {
			return nil, fmt.Errorf("bad start_time %q: %w", m.StartTime, err)
		}
		duration, err := time.ParseDuration(m.Duration)
		if err != nil {
			return nil, fmt.Errorf("bad duration %q: %w", m.Duration, err)
		}

		roster := make([]sharedtypes.MatchRosterEntry, 0, len(m.Players))
		for _, p := range m.Players {
			roster = append(roster, sharedtypes.MatchRosterEntry{
				XboxUserID:         sharedtypes.XboxUserID(p.XUID),
				Gamertag:           p.Gamertag,
				TeamID:             p.TeamID,
				PresentAtBeginning: p.PresentAtBeginning,
			})
		}

		scores := make(map[int]int, len(m.Teams))
		for _, t := range m.Teams {
			scores[t.TeamID] = t.Score
		}

		out = append(out, sharedtypes.MatchDetail{
			MatchID:   sharedtypes.MatchID(m.MatchID),
			StartTime: startTime,
			Duration:  duration,
			GameMode:  m.GameMode,
			MapName:   m.MapName,
			Roster:    roster,
			Scores:    scores,
		})
	}
	return out, nil
}

// HasRetrievableHistory probes whether the account's match history is
// fetchable at all. A 404 means the account exists but games are hidden.
func (c *Client) HasRetrievableHistory(ctx context.Context, id sharedtypes.XboxUserID) (bool, error) {
	_, err := c.ListMatches(ctx, id, 0, 1)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
