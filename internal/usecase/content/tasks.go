package content

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
)

// Deps - общие зависимости задач генерации.
type Deps struct {
	Source    domain.LeagueSource
	Generator domain.Generator
	Articles  domain.ArticleRepo
	Log       zerolog.Logger
}

// Tasks возвращает все встроенные задачи по имени.
func Tasks(deps Deps) map[string]domain.Task {
	tasks := []domain.Task{
		NewLeagueOverview(deps),
		NewMatchupPreviews(deps),
		NewLastWeekRecap(deps),
		NewRosterRoast(deps),
		NewWaiverWatch(deps),
	}
	out := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		out[t.Name()] = t
	}
	return out
}

func (d Deps) save(ctx context.Context, league domain.League, week int, label, title, content string) error {
	_, err := d.Articles.UpsertArticle(ctx, domain.Article{
		LeagueID: league.ID,
		Week:     week,
		Label:    label,
		Title:    title,
		Content:  content,
		Status:   domain.ArticleStatusDraft,
	})
	if err != nil {
		return fmt.Errorf("сохранение статьи %s: %w", label, err)
	}
	d.Log.Info().Int64("league_id", league.ID).Int("week", week).Str("label", label).Msg("статья сохранена")
	return nil
}

func (d Deps) loadFacts(ctx context.Context, league domain.League) (leagueFacts, error) {
	rosters, err := d.Source.FetchRosters(ctx, league.SleeperLeagueID)
	if err != nil {
		return leagueFacts{}, err
	}
	users, err := d.Source.FetchUsers(ctx, league.SleeperLeagueID)
	if err != nil {
		return leagueFacts{}, err
	}
	players, err := d.Source.FetchPlayers(ctx)
	if err != nil {
		return leagueFacts{}, err
	}
	return newLeagueFacts(rosters, users, players), nil
}

// LeagueOverview описывает настройки лиги.
type LeagueOverview struct{ deps Deps }

// NewLeagueOverview создаёт задачу.
func NewLeagueOverview(deps Deps) *LeagueOverview { return &LeagueOverview{deps: deps} }

func (t *LeagueOverview) Name() string { return domain.LabelLeagueOverview }

func (t *LeagueOverview) Run(ctx context.Context, league domain.League, week int) error {
	winner := "None"
	if league.LatestWinnerRosterID != "" {
		rosters, err := t.deps.Source.FetchRosters(ctx, league.SleeperLeagueID)
		if err != nil {
			return err
		}
		users, err := t.deps.Source.FetchUsers(ctx, league.SleeperLeagueID)
		if err != nil {
			return err
		}
		facts := newLeagueFacts(rosters, users, nil)
		var id int
		if _, err := fmt.Sscanf(league.LatestWinnerRosterID, "%d", &id); err == nil {
			if _, ok := facts.rosters[id]; ok {
				winner = facts.teamName(id)
			}
		}
	}

	user := fmt.Sprintf(overviewUser, league.Name, winner, league.WaiverBudget, league.PlayoffTeams,
		league.NumTeams, league.PlayoffWeekStart, league.TradeDeadline, strings.Join(league.RosterPositions, ", "))
	text, err := t.deps.Generator.Generate(ctx, withLeaguePrompt(overviewSystem, league.CustomSystemPrompt), user)
	if err != nil {
		return err
	}
	return t.deps.save(ctx, league, week, domain.LabelLeagueOverview, fmt.Sprintf("Welcome to %s", league.Name), text)
}

// RosterRoast высмеивает составы всех команд.
type RosterRoast struct{ deps Deps }

// NewRosterRoast создаёт задачу.
func NewRosterRoast(deps Deps) *RosterRoast { return &RosterRoast{deps: deps} }

func (t *RosterRoast) Name() string { return domain.LabelRosterRoast }

func (t *RosterRoast) Run(ctx context.Context, league domain.League, week int) error {
	facts, err := t.deps.loadFacts(ctx, league)
	if err != nil {
		return err
	}
	if len(facts.rosters) == 0 {
		return domain.E(domain.KindUpstreamUnavailable, "content.roster_roast", errors.New("в лиге нет составов"))
	}

	var teams []teamFact
	for _, roster := range sortedRosters(facts) {
		starters := make(map[string]bool, len(roster.Starters))
		for _, id := range roster.Starters {
			starters[id] = true
		}
		team := teamFact{TeamName: facts.teamName(roster.RosterID), Starters: []playerFact{}}
		for _, id := range roster.Players {
			p, ok := facts.player(id)
			if !ok {
				continue
			}
			if starters[id] {
				team.Starters = append(team.Starters, p)
			} else {
				team.Bench = append(team.Bench, p)
			}
		}
		if len(team.Starters) > 0 || len(team.Bench) > 0 {
			teams = append(teams, team)
		}
	}
	if len(teams) == 0 {
		return domain.E(domain.KindUpstreamUnavailable, "content.roster_roast", errors.New("нет данных об игроках"))
	}

	user := fmt.Sprintf(roastUser, league.Name, toJSON(teams))
	text, err := t.deps.Generator.Generate(ctx, withLeaguePrompt(roastSystem, league.CustomSystemPrompt), user)
	if err != nil {
		return err
	}
	return t.deps.save(ctx, league, week, domain.LabelRosterRoast, fmt.Sprintf("Week %d Roster Roast", week), text)
}

func sortedRosters(f leagueFacts) []domain.Roster {
	ids := make([]int, 0, len(f.rosters))
	for id := range f.rosters {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]domain.Roster, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.rosters[id])
	}
	return out
}
