package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leaguelingo/internal/domain"
)

const articleSeparator = "\n\n---\n\n"

// MatchupPreviews пишет разбор каждой встречи недели и сводную статью.
type MatchupPreviews struct{ deps Deps }

// NewMatchupPreviews создаёт задачу.
func NewMatchupPreviews(deps Deps) *MatchupPreviews { return &MatchupPreviews{deps: deps} }

func (t *MatchupPreviews) Name() string { return domain.LabelThisWeekMatchup }

func (t *MatchupPreviews) Run(ctx context.Context, league domain.League, week int) error {
	matchups, err := t.deps.Source.FetchMatchups(ctx, league.SleeperLeagueID, week)
	if err != nil {
		return err
	}
	if len(matchups) == 0 {
		return domain.E(domain.KindUpstreamUnavailable, "content.matchups", fmt.Errorf("нет встреч на неделе %d", week))
	}
	facts, err := t.deps.loadFacts(ctx, league)
	if err != nil {
		return err
	}
	system := withLeaguePrompt(matchupSystem, league.CustomSystemPrompt)

	ids, groups := groupMatchups(matchups)
	var writeups []string
	for _, id := range ids {
		sides := groups[id]
		if len(sides) != 2 {
			t.deps.Log.Warn().Int64("league_id", league.ID).Int("matchup_id", id).Int("sides", len(sides)).Msg("встреча пропущена: ожидали две команды")
			continue
		}
		teams := make([]teamFact, 0, 2)
		for _, side := range sides {
			teams = append(teams, teamFact{TeamName: facts.teamName(side.RosterID), Starters: facts.playerList(startersOf(facts, side))})
		}
		text, err := t.deps.Generator.Generate(ctx, system, fmt.Sprintf(matchupUser, week, toJSON(teams)))
		if err != nil {
			t.deps.Log.Error().Err(err).Int64("league_id", league.ID).Int("matchup_id", id).Str("kind", string(domain.KindOf(err))).Msg("разбор встречи не сгенерирован")
			continue
		}
		if err := t.deps.save(ctx, league, week, domain.MatchupLabel(id), fmt.Sprintf("Matchup %d", id), text); err != nil {
			return err
		}
		writeups = append(writeups, text)
	}
	if len(writeups) == 0 {
		return errors.New("ни одного разбора встречи не сгенерировано")
	}
	return t.deps.save(ctx, league, week, domain.LabelThisWeekMatchup,
		fmt.Sprintf("Week %d Matchup Previews", week), strings.Join(writeups, articleSeparator))
}

// startersOf берёт стартеров из встречи, а если их нет, из состава.
func startersOf(f leagueFacts, side domain.Matchup) []string {
	if len(side.Starters) > 0 {
		return side.Starters
	}
	return f.rosters[side.RosterID].Starters
}

// LastWeekRecap подводит итоги встреч прошлой недели. На первой неделе ничего не делает.
type LastWeekRecap struct{ deps Deps }

// NewLastWeekRecap создаёт задачу.
func NewLastWeekRecap(deps Deps) *LastWeekRecap { return &LastWeekRecap{deps: deps} }

func (t *LastWeekRecap) Name() string { return domain.LabelLastWeekRecap }

// Run пишет итоги каждой встречи под неделей week-1 и сводку под текущей неделей.
func (t *LastWeekRecap) Run(ctx context.Context, league domain.League, week int) error {
	target := week - 1
	if target < 1 {
		t.deps.Log.Info().Int64("league_id", league.ID).Int("week", week).Msg("итоги не нужны: прошлой недели нет")
		return nil
	}
	matchups, err := t.deps.Source.FetchMatchups(ctx, league.SleeperLeagueID, target)
	if err != nil {
		return err
	}
	if len(matchups) == 0 {
		return domain.E(domain.KindUpstreamUnavailable, "content.recap", fmt.Errorf("нет встреч на неделе %d", target))
	}
	facts, err := t.deps.loadFacts(ctx, league)
	if err != nil {
		return err
	}
	system := withLeaguePrompt(recapSystem, league.CustomSystemPrompt)

	ids, groups := groupMatchups(matchups)
	var recaps []string
	for _, id := range ids {
		sides := groups[id]
		if len(sides) != 2 {
			t.deps.Log.Warn().Int64("league_id", league.ID).Int("matchup_id", id).Int("sides", len(sides)).Msg("встреча пропущена: ожидали две команды")
			continue
		}
		teams := make([]teamFact, 0, 2)
		for _, side := range sides {
			points := side.Points
			teams = append(teams, teamFact{TeamName: facts.teamName(side.RosterID), Points: &points, Starters: scoredStarters(facts, side)})
		}
		text, err := t.deps.Generator.Generate(ctx, system, fmt.Sprintf(recapUser, target, toJSON(teams)))
		if err != nil {
			t.deps.Log.Error().Err(err).Int64("league_id", league.ID).Int("matchup_id", id).Str("kind", string(domain.KindOf(err))).Msg("итог встречи не сгенерирован")
			continue
		}
		if err := t.deps.save(ctx, league, target, domain.MatchupRecapLabel(id), fmt.Sprintf("Matchup Recap %d", id), text); err != nil {
			return err
		}
		recaps = append(recaps, text)
	}
	if len(recaps) == 0 {
		return errors.New("ни одного итога встречи не сгенерировано")
	}
	return t.deps.save(ctx, league, week, domain.LabelLastWeekRecap,
		fmt.Sprintf("Week %d Matchup Recaps", target), strings.Join(recaps, articleSeparator))
}

func scoredStarters(f leagueFacts, side domain.Matchup) []playerFact {
	out := make([]playerFact, 0, len(side.Starters))
	for i, id := range side.Starters {
		p, ok := f.player(id)
		if !ok {
			continue
		}
		if i < len(side.StartersPoints) {
			points := side.StartersPoints[i]
			p.Points = &points
		}
		p.InjuryStatus, p.InjuryBodyPart = "", ""
		out = append(out, p)
	}
	return out
}
