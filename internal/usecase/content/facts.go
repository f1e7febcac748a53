package content

import (
	"encoding/json"
	"fmt"
	"sort"

	"leaguelingo/internal/domain"
)

type playerFact struct {
	Name           string   `json:"name"`
	Position       string   `json:"position,omitempty"`
	Team           string   `json:"team,omitempty"`
	SearchRank     int      `json:"search_rank,omitempty"`
	Points         *float64 `json:"points,omitempty"`
	InjuryStatus   string   `json:"injury_status,omitempty"`
	InjuryBodyPart string   `json:"injury_body_part,omitempty"`
}

type teamFact struct {
	TeamName string       `json:"team_name"`
	Points   *float64     `json:"points,omitempty"`
	Starters []playerFact `json:"starters"`
	Bench    []playerFact `json:"bench,omitempty"`
}

// leagueFacts связывает roster_id с названием команды и справочником игроков.
type leagueFacts struct {
	rosters map[int]domain.Roster
	names   map[int]string
	players map[string]domain.Player
}

func newLeagueFacts(rosters []domain.Roster, users []domain.Team, players map[string]domain.Player) leagueFacts {
	byUser := make(map[string]domain.Team, len(users))
	for _, u := range users {
		byUser[u.UserID] = u
	}
	f := leagueFacts{
		rosters: make(map[int]domain.Roster, len(rosters)),
		names:   make(map[int]string, len(rosters)),
		players: players,
	}
	for _, r := range rosters {
		f.rosters[r.RosterID] = r
		if team, ok := byUser[r.OwnerID]; ok {
			f.names[r.RosterID] = team.Name()
		} else {
			f.names[r.RosterID] = "Team " + r.OwnerID
		}
	}
	return f
}

func (f leagueFacts) teamName(rosterID int) string {
	if name, ok := f.names[rosterID]; ok {
		return name
	}
	return fmt.Sprintf("Team %d", rosterID)
}

// player возвращает факт об игроке. Игроки без имени в справочнике пропускаются.
func (f leagueFacts) player(id string) (playerFact, bool) {
	p, ok := f.players[id]
	if !ok || p.FullName == "" {
		return playerFact{}, false
	}
	return playerFact{
		Name:           p.FullName,
		Position:       p.Position,
		Team:           p.Team,
		SearchRank:     p.SearchRank,
		InjuryStatus:   p.InjuryStatus,
		InjuryBodyPart: p.InjuryBodyPart,
	}, true
}

func (f leagueFacts) playerList(ids []string) []playerFact {
	out := make([]playerFact, 0, len(ids))
	for _, id := range ids {
		if p, ok := f.player(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// groupMatchups группирует стороны встреч по matchup_id в порядке возрастания id.
func groupMatchups(matchups []domain.Matchup) ([]int, map[int][]domain.Matchup) {
	groups := make(map[int][]domain.Matchup)
	for _, m := range matchups {
		groups[m.MatchupID] = append(groups[m.MatchupID], m)
	}
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, groups
}

func toJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
