package content

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"leaguelingo/internal/domain"
)

const (
	trendingLookbackHours = 24
	trendingLimit         = 25
	waiverPicks           = 3
)

type moveFact struct {
	Type        string   `json:"type"`
	FantasyTeam string   `json:"fantasy_team"`
	Added       []string `json:"added,omitempty"`
	Dropped     []string `json:"dropped,omitempty"`
}

type trendingFact struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Position    string `json:"position,omitempty"`
	Team        string `json:"team,omitempty"`
	FantasyTeam string `json:"fantasy_team,omitempty"`
}

// WaiverWatch разбирает тренды вейверов: кого взять и от кого избавиться.
type WaiverWatch struct{ deps Deps }

// NewWaiverWatch создаёт задачу.
func NewWaiverWatch(deps Deps) *WaiverWatch { return &WaiverWatch{deps: deps} }

func (t *WaiverWatch) Name() string { return domain.LabelWaiverWatch }

func (t *WaiverWatch) Run(ctx context.Context, league domain.League, week int) error {
	facts, err := t.deps.loadFacts(ctx, league)
	if err != nil {
		return err
	}
	adds, err := t.deps.Source.FetchTrending(ctx, domain.TrendingAdd, trendingLookbackHours, trendingLimit)
	if err != nil {
		return err
	}
	drops, err := t.deps.Source.FetchTrending(ctx, domain.TrendingDrop, trendingLookbackHours, trendingLimit)
	if err != nil {
		return err
	}

	owners := rosteredBy(facts)
	up := trendingUp(facts, adds, owners)
	down := trendingDown(facts, drops, owners)
	if len(up) == 0 && len(down) == 0 {
		return domain.E(domain.KindUpstreamUnavailable, "content.waiver_watch", errors.New("нет трендовых игроков"))
	}

	var moves []moveFact
	txs, err := t.deps.Source.FetchTransactions(ctx, league.SleeperLeagueID, week)
	if err != nil {
		t.deps.Log.Warn().Err(err).Int64("league_id", league.ID).Int("week", week).Msg("транзакции недоступны, статья без ходов лиги")
	} else {
		moves = leagueMoves(facts, txs)
	}

	user := fmt.Sprintf(waiverUser, week, week, toJSON(up), toJSON(down), week, toJSON(moves))
	article, err := t.deps.Generator.GenerateArticle(ctx, withLeaguePrompt(waiverSystem, league.CustomSystemPrompt), user)
	if err != nil {
		return err
	}
	title := article.Title
	if title == "" {
		title = fmt.Sprintf("Week %d Waiver Watch", week)
	}
	return t.deps.save(ctx, league, week, domain.LabelWaiverWatch, title, article.Content)
}

// rosteredBy возвращает roster_id владельца для каждого игрока лиги.
func rosteredBy(f leagueFacts) map[string]int {
	out := make(map[string]int)
	for _, r := range sortedRosters(f) {
		for _, id := range r.Players {
			if _, ok := out[id]; !ok {
				out[id] = r.RosterID
			}
		}
	}
	return out
}

// trendingUp - самые добавляемые игроки, которых нет ни в одном составе лиги.
func trendingUp(f leagueFacts, trending []domain.TrendingPlayer, owners map[string]int) []trendingFact {
	out := make([]trendingFact, 0, waiverPicks)
	for _, tp := range trending {
		if _, rostered := owners[tp.PlayerID]; rostered {
			continue
		}
		p, ok := f.player(tp.PlayerID)
		if !ok {
			continue
		}
		out = append(out, trendingFact{Name: p.Name, Count: tp.Count, Position: p.Position, Team: p.Team})
		if len(out) == waiverPicks {
			break
		}
	}
	return out
}

// trendingDown - самые удаляемые игроки, которые всё ещё в составах лиги.
func trendingDown(f leagueFacts, trending []domain.TrendingPlayer, owners map[string]int) []trendingFact {
	out := make([]trendingFact, 0, waiverPicks)
	for _, tp := range trending {
		rosterID, rostered := owners[tp.PlayerID]
		if !rostered {
			continue
		}
		p, ok := f.player(tp.PlayerID)
		if !ok {
			continue
		}
		out = append(out, trendingFact{Name: p.Name, Count: tp.Count, Position: p.Position, Team: p.Team, FantasyTeam: f.teamName(rosterID)})
		if len(out) == waiverPicks {
			break
		}
	}
	return out
}

// leagueMoves описывает завершённые транзакции лиги: кто кого взял и отпустил.
func leagueMoves(f leagueFacts, txs []domain.Transaction) []moveFact {
	out := make([]moveFact, 0, len(txs))
	for _, tx := range txs {
		if tx.Status != "complete" {
			continue
		}
		byRoster := make(map[int]*moveFact)
		var order []int
		entry := func(rosterID int) *moveFact {
			if m, ok := byRoster[rosterID]; ok {
				return m
			}
			m := &moveFact{Type: tx.Type, FantasyTeam: f.teamName(rosterID)}
			byRoster[rosterID] = m
			order = append(order, rosterID)
			return m
		}
		for _, id := range sortedKeys(tx.Adds) {
			if p, ok := f.player(id); ok {
				m := entry(tx.Adds[id])
				m.Added = append(m.Added, p.Name)
			}
		}
		for _, id := range sortedKeys(tx.Drops) {
			if p, ok := f.player(id); ok {
				m := entry(tx.Drops[id])
				m.Dropped = append(m.Dropped, p.Name)
			}
		}
		for _, rosterID := range order {
			out = append(out, *byRoster[rosterID])
		}
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
