package sleeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"leaguelingo/internal/domain"
	"leaguelingo/internal/infra/metrics"
)

const (
	defaultBaseURL = "https://api.sleeper.app/v1"

	playersCacheKey = "players:nfl"
	playersCacheTTL = 24 * time.Hour
	trendingTTL     = time.Hour
)

// Client читает публичный API Sleeper.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	cache   domain.Cache
}

var _ domain.LeagueSource = (*Client)(nil)

// Option настраивает клиента.
type Option func(*Client)

// WithCache включает кэширование справочника игроков и трендов.
func WithCache(cache domain.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithHTTPClient подменяет http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient создаёт клиента. rps <= 0 отключает ограничение частоты.
func NewClient(baseURL string, rps float64, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get выполняет GET и возвращает тело. Пустое тело и "null" считаются недоступностью источника.
func (c *Client) get(ctx context.Context, operation, path string) ([]byte, error) {
	op := "sleeper." + operation
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, domain.E(domain.KindInternal, op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveNetworkRequest("sleeper", operation, "api.sleeper.app", start, err)
		return nil, domain.E(domain.KindUpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err == nil && resp.StatusCode >= 300 {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err == nil {
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			err = errors.New("empty response")
		}
	}
	metrics.ObserveNetworkRequest("sleeper", operation, "api.sleeper.app", start, err)
	if err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, op, err)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, operation, path string, out any) error {
	body, err := c.get(ctx, operation, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.E(domain.KindUpstreamUnavailable, "sleeper."+operation, fmt.Errorf("decode: %w", err))
	}
	return nil
}

// cached отдаёт тело из кэша или скачивает и кладёт его туда.
func (c *Client) cached(ctx context.Context, key string, ttl time.Duration, operation, path string) ([]byte, error) {
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil {
			return data, nil
		}
	}
	body, err := c.get(ctx, operation, path)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		// Ошибка кэша не ломает запрос.
		_ = c.cache.Set(ctx, key, body, ttl)
	}
	return body, nil
}

type leaguePayload struct {
	LeagueID        string   `json:"league_id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	Season          string   `json:"season"`
	TotalRosters    int      `json:"total_rosters"`
	RosterPositions []string `json:"roster_positions"`
	Settings        struct {
		PlayoffTeams     int `json:"playoff_teams"`
		PlayoffWeekStart int `json:"playoff_week_start"`
		WaiverBudget     int `json:"waiver_budget"`
		TradeDeadline    int `json:"trade_deadline"`
	} `json:"settings"`
	Metadata struct {
		LatestLeagueWinnerRosterID string `json:"latest_league_winner_roster_id"`
	} `json:"metadata"`
}

// FetchLeague возвращает настройки лиги.
func (c *Client) FetchLeague(ctx context.Context, sleeperLeagueID string) (domain.League, error) {
	var p leaguePayload
	if err := c.getJSON(ctx, "league", "/league/"+url.PathEscape(sleeperLeagueID), &p); err != nil {
		return domain.League{}, err
	}
	id := p.LeagueID
	if id == "" {
		id = sleeperLeagueID
	}
	return domain.League{
		SleeperLeagueID:      id,
		Name:                 p.Name,
		Status:               p.Status,
		Season:               p.Season,
		NumTeams:             p.TotalRosters,
		PlayoffTeams:         p.Settings.PlayoffTeams,
		PlayoffWeekStart:     p.Settings.PlayoffWeekStart,
		WaiverBudget:         p.Settings.WaiverBudget,
		TradeDeadline:        p.Settings.TradeDeadline,
		RosterPositions:      p.RosterPositions,
		LatestWinnerRosterID: p.Metadata.LatestLeagueWinnerRosterID,
	}, nil
}

type rosterPayload struct {
	RosterID int      `json:"roster_id"`
	OwnerID  string   `json:"owner_id"`
	CoOwners []string `json:"co_owners"`
	Players  []string `json:"players"`
	Starters []string `json:"starters"`
}

// FetchRosters возвращает составы команд.
func (c *Client) FetchRosters(ctx context.Context, sleeperLeagueID string) ([]domain.Roster, error) {
	var payload []rosterPayload
	if err := c.getJSON(ctx, "rosters", "/league/"+url.PathEscape(sleeperLeagueID)+"/rosters", &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Roster, 0, len(payload))
	for _, r := range payload {
		out = append(out, domain.Roster{
			RosterID: r.RosterID,
			OwnerID:  r.OwnerID,
			CoOwners: r.CoOwners,
			Players:  r.Players,
			Starters: r.Starters,
		})
	}
	return out, nil
}

type userPayload struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	IsOwner     bool   `json:"is_owner"`
	Metadata    struct {
		TeamName string `json:"team_name"`
	} `json:"metadata"`
}

// FetchUsers возвращает участников лиги.
func (c *Client) FetchUsers(ctx context.Context, sleeperLeagueID string) ([]domain.Team, error) {
	var payload []userPayload
	if err := c.getJSON(ctx, "users", "/league/"+url.PathEscape(sleeperLeagueID)+"/users", &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Team, 0, len(payload))
	for _, u := range payload {
		out = append(out, domain.Team{
			UserID:      u.UserID,
			DisplayName: u.DisplayName,
			TeamName:    u.Metadata.TeamName,
			Avatar:      u.Avatar,
			IsOwner:     u.IsOwner,
		})
	}
	return out, nil
}

type matchupPayload struct {
	MatchupID      *int      `json:"matchup_id"`
	RosterID       int       `json:"roster_id"`
	Points         float64   `json:"points"`
	Starters       []string  `json:"starters"`
	StartersPoints []float64 `json:"starters_points"`
	Players        []string  `json:"players"`
}

// FetchMatchups возвращает встречи недели. Команды без пары (bye) пропускаются.
func (c *Client) FetchMatchups(ctx context.Context, sleeperLeagueID string, week int) ([]domain.Matchup, error) {
	var payload []matchupPayload
	path := fmt.Sprintf("/league/%s/matchups/%d", url.PathEscape(sleeperLeagueID), week)
	if err := c.getJSON(ctx, "matchups", path, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Matchup, 0, len(payload))
	for _, m := range payload {
		if m.MatchupID == nil {
			continue
		}
		out = append(out, domain.Matchup{
			MatchupID:      *m.MatchupID,
			RosterID:       m.RosterID,
			Points:         m.Points,
			Starters:       m.Starters,
			StartersPoints: m.StartersPoints,
			Players:        m.Players,
		})
	}
	return out, nil
}

type transactionPayload struct {
	TransactionID string         `json:"transaction_id"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	Creator       string         `json:"creator"`
	RosterIDs     []int          `json:"roster_ids"`
	Adds          map[string]int `json:"adds"`
	Drops         map[string]int `json:"drops"`
	Created       int64          `json:"created"`
}

// FetchTransactions возвращает транзакции недели.
func (c *Client) FetchTransactions(ctx context.Context, sleeperLeagueID string, week int) ([]domain.Transaction, error) {
	var payload []transactionPayload
	path := fmt.Sprintf("/league/%s/transactions/%d", url.PathEscape(sleeperLeagueID), week)
	if err := c.getJSON(ctx, "transactions", path, &payload); err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(payload))
	for _, t := range payload {
		out = append(out, domain.Transaction{
			ID:        t.TransactionID,
			Type:      t.Type,
			Status:    t.Status,
			Creator:   t.Creator,
			RosterIDs: t.RosterIDs,
			Adds:      t.Adds,
			Drops:     t.Drops,
			Created:   time.UnixMilli(t.Created).UTC(),
		})
	}
	return out, nil
}

type playerPayload struct {
	PlayerID       string `json:"player_id"`
	FullName       string `json:"full_name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Position       string `json:"position"`
	Team           string `json:"team"`
	InjuryStatus   string `json:"injury_status"`
	InjuryBodyPart string `json:"injury_body_part"`
	SearchRank     *int   `json:"search_rank"`
}

// FetchPlayers возвращает справочник игроков НФЛ. Ответ большой, поэтому кэшируется на сутки.
func (c *Client) FetchPlayers(ctx context.Context) (map[string]domain.Player, error) {
	body, err := c.cached(ctx, playersCacheKey, playersCacheTTL, "players", "/players/nfl")
	if err != nil {
		return nil, err
	}
	var payload map[string]playerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "sleeper.players", fmt.Errorf("decode: %w", err))
	}
	out := make(map[string]domain.Player, len(payload))
	for id, p := range payload {
		name := strings.TrimSpace(p.FullName)
		if name == "" {
			name = strings.TrimSpace(p.FirstName + " " + p.LastName)
		}
		player := domain.Player{
			ID:             id,
			FullName:       name,
			Position:       p.Position,
			Team:           p.Team,
			InjuryStatus:   p.InjuryStatus,
			InjuryBodyPart: p.InjuryBodyPart,
		}
		if p.SearchRank != nil {
			player.SearchRank = *p.SearchRank
		}
		out[id] = player
	}
	return out, nil
}

type trendingPayload struct {
	PlayerID string `json:"player_id"`
	Count    int    `json:"count"`
}

// FetchTrending возвращает самых добавляемых или удаляемых игроков.
func (c *Client) FetchTrending(ctx context.Context, kind domain.TrendingKind, lookbackHours, limit int) ([]domain.TrendingPlayer, error) {
	if kind != domain.TrendingAdd && kind != domain.TrendingDrop {
		return nil, domain.E(domain.KindInternal, "sleeper.trending", fmt.Errorf("unknown trending kind %q", kind))
	}
	q := url.Values{}
	q.Set("lookback_hours", strconv.Itoa(lookbackHours))
	q.Set("limit", strconv.Itoa(limit))
	path := "/players/nfl/trending/" + string(kind) + "?" + q.Encode()
	key := fmt.Sprintf("trending:%s:%d:%d", kind, lookbackHours, limit)

	body, err := c.cached(ctx, key, trendingTTL, "trending", path)
	if err != nil {
		return nil, err
	}
	var payload []trendingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.E(domain.KindUpstreamUnavailable, "sleeper.trending", fmt.Errorf("decode: %w", err))
	}
	out := make([]domain.TrendingPlayer, 0, len(payload))
	for _, p := range payload {
		out = append(out, domain.TrendingPlayer{PlayerID: p.PlayerID, Count: p.Count})
	}
	return out, nil
}

type statePayload struct {
	Week        int    `json:"week"`
	DisplayWeek int    `json:"display_week"`
	Season      string `json:"season"`
	SeasonType  string `json:"season_type"`
}

// FetchCurrentWeek возвращает текущую неделю сезона НФЛ.
func (c *Client) FetchCurrentWeek(ctx context.Context) (int, error) {
	var state statePayload
	if err := c.getJSON(ctx, "state", "/state/nfl", &state); err != nil {
		return 0, err
	}
	week := state.Week
	if week <= 0 {
		week = state.DisplayWeek
	}
	if week <= 0 {
		return 0, domain.E(domain.KindUpstreamUnavailable, "sleeper.state", errors.New("no current week"))
	}
	return week, nil
}
