package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
)

type fakeSource struct {
	domain.LeagueSource
	rosters  []domain.Roster
	users    []domain.Team
	matchups map[int][]domain.Matchup
	players  map[string]domain.Player
	adds     []domain.TrendingPlayer
	drops    []domain.TrendingPlayer
	txs      []domain.Transaction
	txErr    error
	weeks    []int
}

func (f *fakeSource) FetchTransactions(context.Context, string, int) ([]domain.Transaction, error) {
	return f.txs, f.txErr
}

func (f *fakeSource) FetchRosters(context.Context, string) ([]domain.Roster, error) { return f.rosters, nil }
func (f *fakeSource) FetchUsers(context.Context, string) ([]domain.Team, error)     { return f.users, nil }
func (f *fakeSource) FetchPlayers(context.Context) (map[string]domain.Player, error) {
	return f.players, nil
}

func (f *fakeSource) FetchMatchups(_ context.Context, _ string, week int) ([]domain.Matchup, error) {
	f.weeks = append(f.weeks, week)
	return f.matchups[week], nil
}

func (f *fakeSource) FetchTrending(_ context.Context, kind domain.TrendingKind, _, _ int) ([]domain.TrendingPlayer, error) {
	if kind == domain.TrendingAdd {
		return f.adds, nil
	}
	return f.drops, nil
}

type fakeGenerator struct {
	calls   int
	failOn  int
	systems []string
	users   []string
	article domain.GeneratedArticle
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	if f.calls == f.failOn {
		return "", domain.E(domain.KindUpstreamUnavailable, "test", errors.New("boom"))
	}
	return "text " + string(rune('A'+f.calls-1)), nil
}

func (f *fakeGenerator) GenerateArticle(_ context.Context, system, user string) (domain.GeneratedArticle, error) {
	f.calls++
	f.systems = append(f.systems, system)
	f.users = append(f.users, user)
	return f.article, nil
}

type memArticles struct {
	saved []domain.Article
}

func (m *memArticles) UpsertArticle(_ context.Context, a domain.Article) (domain.Article, error) {
	for i, existing := range m.saved {
		if existing.LeagueID == a.LeagueID && existing.Week == a.Week && existing.Label == a.Label {
			a.ID = existing.ID
			m.saved[i] = a
			return a, nil
		}
	}
	a.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, a)
	return a, nil
}

func (m *memArticles) ListArticles(_ context.Context, leagueID int64, week int) ([]domain.Article, error) {
	var out []domain.Article
	for _, a := range m.saved {
		if a.LeagueID == leagueID && a.Week == week {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memArticles) byLabel(label string) (domain.Article, bool) {
	for _, a := range m.saved {
		if a.Label == label {
			return a, true
		}
	}
	return domain.Article{}, false
}

func leagueFixture() (domain.League, *fakeSource) {
	league := domain.League{ID: 1, SleeperLeagueID: "sl", Name: "Dynasty Bros", CustomSystemPrompt: "Mention tacos."}
	src := &fakeSource{
		rosters: []domain.Roster{
			{RosterID: 1, OwnerID: "u1", Players: []string{"p1", "p2"}, Starters: []string{"p1"}},
			{RosterID: 2, OwnerID: "u2", Players: []string{"p3"}, Starters: []string{"p3"}},
			{RosterID: 3, OwnerID: "u3", Players: []string{"p4"}, Starters: []string{"p4"}},
			{RosterID: 4, OwnerID: "u4", Players: []string{"p5"}, Starters: []string{"p5"}},
		},
		users: []domain.Team{
			{UserID: "u1", DisplayName: "alice", TeamName: "Gridiron Gurus"},
			{UserID: "u2", DisplayName: "bob"},
		},
		players: map[string]domain.Player{
			"p1": {ID: "p1", FullName: "Patrick Mahomes", Position: "QB", Team: "KC"},
			"p2": {ID: "p2", FullName: "Bench Guy", Position: "WR"},
			"p3": {ID: "p3", FullName: "Josh Allen", Position: "QB", Team: "BUF"},
			"p4": {ID: "p4", FullName: "Saquon Barkley", Position: "RB"},
			"p5": {ID: "p5", FullName: "CeeDee Lamb", Position: "WR"},
			"p9": {ID: "p9", FullName: "Waiver Darling", Position: "RB"},
		},
	}
	return league, src
}

func TestMatchupPreviewsStoresPerMatchupAndCombined(t *testing.T) {
	league, src := leagueFixture()
	src.matchups = map[int][]domain.Matchup{3: {
		{MatchupID: 2, RosterID: 3, Starters: []string{"p4"}},
		{MatchupID: 1, RosterID: 1, Starters: []string{"p1"}},
		{MatchupID: 1, RosterID: 2, Starters: []string{"p3"}},
		{MatchupID: 2, RosterID: 4, Starters: []string{"p5"}},
	}}
	gen := &fakeGenerator{}
	articles := &memArticles{}
	task := NewMatchupPreviews(Deps{Source: src, Generator: gen, Articles: articles, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 3); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := articles.byLabel("matchup_1"); !ok {
		t.Fatalf("ожидали разбор matchup_1")
	}
	if _, ok := articles.byLabel("matchup_2"); !ok {
		t.Fatalf("ожидали разбор matchup_2")
	}
	combined, ok := articles.byLabel(domain.LabelThisWeekMatchup)
	if !ok {
		t.Fatalf("ожидали сводную статью")
	}
	if combined.Title != "Week 3 Matchup Previews" || combined.Content != "text A\n\n---\n\ntext B" {
		t.Fatalf("unexpected combined article: %+v", combined)
	}
	if !strings.Contains(gen.users[0], "Gridiron Gurus") || !strings.Contains(gen.users[0], "Team bob") {
		t.Fatalf("ожидали названия команд в промпте: %s", gen.users[0])
	}
	if !strings.HasSuffix(gen.systems[0], "\n\nMention tacos.") {
		t.Fatalf("ожидали пользовательский промпт лиги в системном сообщении")
	}
}

func TestMatchupPreviewsSkipsFailedMatchup(t *testing.T) {
	league, src := leagueFixture()
	src.matchups = map[int][]domain.Matchup{3: {
		{MatchupID: 1, RosterID: 1}, {MatchupID: 1, RosterID: 2},
		{MatchupID: 2, RosterID: 3}, {MatchupID: 2, RosterID: 4},
	}}
	gen := &fakeGenerator{failOn: 1}
	articles := &memArticles{}
	task := NewMatchupPreviews(Deps{Source: src, Generator: gen, Articles: articles, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 3); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok := articles.byLabel("matchup_1"); ok {
		t.Fatalf("не ожидали разбор упавшей встречи")
	}
	combined, _ := articles.byLabel(domain.LabelThisWeekMatchup)
	if combined.Content != "text B" {
		t.Fatalf("unexpected combined content %q", combined.Content)
	}
}

func TestMatchupPreviewsNoMatchups(t *testing.T) {
	league, src := leagueFixture()
	task := NewMatchupPreviews(Deps{Source: src, Generator: &fakeGenerator{}, Articles: &memArticles{}, Log: zerolog.Nop()})

	err := task.Run(context.Background(), league, 3)
	if domain.KindOf(err) != domain.KindUpstreamUnavailable {
		t.Fatalf("ожидали upstream_unavailable, получили %v", err)
	}
}

func TestLastWeekRecapTargetsPreviousWeek(t *testing.T) {
	league, src := leagueFixture()
	src.matchups = map[int][]domain.Matchup{4: {
		{MatchupID: 1, RosterID: 1, Points: 120.5, Starters: []string{"p1"}, StartersPoints: []float64{30.2}},
		{MatchupID: 1, RosterID: 2, Points: 88, Starters: []string{"p3"}, StartersPoints: []float64{12}},
	}}
	gen := &fakeGenerator{}
	articles := &memArticles{}
	task := NewLastWeekRecap(Deps{Source: src, Generator: gen, Articles: articles, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 5); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(src.weeks) != 1 || src.weeks[0] != 4 {
		t.Fatalf("ожидали запрос встреч недели 4, получили %v", src.weeks)
	}
	recap, ok := articles.byLabel("matchup_recap_1")
	if !ok || recap.Week != 4 {
		t.Fatalf("ожидали итог встречи под неделей 4: %+v", recap)
	}
	combined, ok := articles.byLabel(domain.LabelLastWeekRecap)
	if !ok || combined.Week != 5 || combined.Title != "Week 4 Matchup Recaps" {
		t.Fatalf("unexpected combined recap: %+v", combined)
	}
	if !strings.Contains(gen.users[0], "30.2") {
		t.Fatalf("ожидали очки игрока в промпте: %s", gen.users[0])
	}
}

func TestLastWeekRecapSkipsWeekOne(t *testing.T) {
	league, src := leagueFixture()
	gen := &fakeGenerator{}
	task := NewLastWeekRecap(Deps{Source: src, Generator: gen, Articles: &memArticles{}, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gen.calls != 0 || len(src.weeks) != 0 {
		t.Fatalf("не ожидали обращений на первой неделе")
	}
}

func TestWaiverWatchFiltersByRosters(t *testing.T) {
	league, src := leagueFixture()
	src.adds = []domain.TrendingPlayer{{PlayerID: "p1", Count: 900}, {PlayerID: "p9", Count: 500}}
	src.drops = []domain.TrendingPlayer{{PlayerID: "p9", Count: 400}, {PlayerID: "p2", Count: 300}}
	gen := &fakeGenerator{article: domain.GeneratedArticle{Title: "Grab Him Now", Content: "body"}}
	articles := &memArticles{}
	task := NewWaiverWatch(Deps{Source: src, Generator: gen, Articles: articles, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 2); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	prompt := gen.users[0]
	up := prompt[strings.Index(prompt, "Trending Up"):strings.Index(prompt, "Trending Down")]
	down := prompt[strings.Index(prompt, "Trending Down"):]
	if strings.Contains(up, "Patrick Mahomes") || !strings.Contains(up, "Waiver Darling") {
		t.Fatalf("в трендах вверх должны быть только свободные игроки: %s", up)
	}
	if !strings.Contains(down, "Bench Guy") || !strings.Contains(down, "Gridiron Gurus") || strings.Contains(down, "\"Waiver Darling\"") {
		t.Fatalf("в трендах вниз должны быть только игроки из составов: %s", down)
	}
	saved, ok := articles.byLabel(domain.LabelWaiverWatch)
	if !ok || saved.Title != "Grab Him Now" {
		t.Fatalf("unexpected article: %+v", saved)
	}
}

func TestWaiverWatchIncludesLeagueMoves(t *testing.T) {
	league, src := leagueFixture()
	src.adds = []domain.TrendingPlayer{{PlayerID: "p9", Count: 500}}
	src.txs = []domain.Transaction{
		{ID: "t1", Type: "waiver", Status: "complete", Adds: map[string]int{"p9": 2}, Drops: map[string]int{"p2": 2}},
		{ID: "t2", Type: "free_agent", Status: "failed", Adds: map[string]int{"p4": 3}},
	}
	gen := &fakeGenerator{article: domain.GeneratedArticle{Title: "Moves", Content: "body"}}
	task := NewWaiverWatch(Deps{Source: src, Generator: gen, Articles: &memArticles{}, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 2); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	moves := gen.users[0][strings.Index(gen.users[0], "League Moves"):]
	if !strings.Contains(moves, "Waiver Darling") || !strings.Contains(moves, "Bench Guy") || !strings.Contains(moves, `"fantasy_team": "Team bob"`) {
		t.Fatalf("в промпте нет ходов лиги: %s", moves)
	}
	if strings.Contains(moves, "free_agent") {
		t.Fatalf("незавершённые транзакции не должны попадать в промпт: %s", moves)
	}
}

func TestWaiverWatchWithoutTransactions(t *testing.T) {
	league, src := leagueFixture()
	src.adds = []domain.TrendingPlayer{{PlayerID: "p9", Count: 500}}
	src.txErr = domain.E(domain.KindUpstreamUnavailable, "sleeper.transactions", errors.New("502"))
	gen := &fakeGenerator{article: domain.GeneratedArticle{Title: "Moves", Content: "body"}}
	articles := &memArticles{}
	task := NewWaiverWatch(Deps{Source: src, Generator: gen, Articles: articles, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 2); err != nil {
		t.Fatalf("сбой транзакций не должен ронять статью: %v", err)
	}
	if _, ok := articles.byLabel(domain.LabelWaiverWatch); !ok {
		t.Fatalf("статья не сохранена")
	}
}

func TestRosterRoastSplitsStartersAndBench(t *testing.T) {
	league, src := leagueFixture()
	gen := &fakeGenerator{}
	articles := &memArticles{}
	task := NewRosterRoast(Deps{Source: src, Generator: gen, Articles: articles, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(gen.users[0], `"bench"`) || !strings.Contains(gen.users[0], "Bench Guy") {
		t.Fatalf("ожидали скамейку в промпте: %s", gen.users[0])
	}
	if _, ok := articles.byLabel(domain.LabelRosterRoast); !ok {
		t.Fatalf("ожидали сохранённую статью")
	}
}

func TestLeagueOverviewResolvesWinner(t *testing.T) {
	league, src := leagueFixture()
	league.LatestWinnerRosterID = "1"
	league.RosterPositions = []string{"QB", "RB", "FLEX"}
	gen := &fakeGenerator{}
	articles := &memArticles{}
	task := NewLeagueOverview(Deps{Source: src, Generator: gen, Articles: articles, Log: zerolog.Nop()})

	if err := task.Run(context.Background(), league, 1); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(gen.users[0], "Latest League Winner Team Name: Gridiron Gurus") {
		t.Fatalf("ожидали чемпиона в промпте: %s", gen.users[0])
	}
	if !strings.Contains(gen.users[0], "QB, RB, FLEX") {
		t.Fatalf("ожидали позиции в промпте")
	}
}

func TestTasksRegistersAllLabels(t *testing.T) {
	tasks := Tasks(Deps{Log: zerolog.Nop()})
	for _, name := range []string{domain.LabelLeagueOverview, domain.LabelThisWeekMatchup, domain.LabelLastWeekRecap, domain.LabelRosterRoast, domain.LabelWaiverWatch} {
		if _, ok := tasks[name]; !ok {
			t.Fatalf("задача %s не зарегистрирована", name)
		}
	}
}
