package domain

import (
	"fmt"
	"strings"
	"time"
)

// Статусы лиги, которые возвращает Sleeper. Источник может прислать и другие строки.
const (
	LeagueStatusPreDraft = "pre_draft"
	LeagueStatusInSeason = "in_season"
	LeagueStatusComplete = "complete"
)

// League описывает фэнтези-лигу, отслеживаемую системой.
type League struct {
	ID                   int64
	SleeperLeagueID      string
	Name                 string
	Status               string
	Season               string
	NumTeams             int
	PlayoffTeams         int
	PlayoffWeekStart     int
	WaiverBudget         int
	TradeDeadline        int
	RosterPositions      []string
	LatestWinnerRosterID string
	CustomSystemPrompt   string
	ScheduledDay         *time.Weekday
	ScheduledTime        *TimeOfDay
	LastRunTime          *time.Time
	ScheduleUpdatedAt    *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasSchedule сообщает, настроены ли день и время рассылки.
func (l League) HasSchedule() bool {
	return l.ScheduledDay != nil && l.ScheduledTime != nil
}

// TimeOfDay хранит время суток без даты.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay разбирает строки вида "12:00" и "12:00:30".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q", raw)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// On возвращает момент этого времени в указанный день и часовом поясе.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, loc)
}

// ParseWeekday понимает английские названия дней недели без учёта регистра.
func ParseWeekday(raw string) (time.Weekday, error) {
	candidate := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if candidate == name || (len(candidate) == 3 && strings.HasPrefix(name, candidate)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", raw)
}

// Recipient описывает подписчика рассылки лиги.
type Recipient struct {
	ID                   int64
	LeagueID             int64
	Email                string
	Confirmed            bool
	Unsubscribed         bool
	SubscribedAt         time.Time
	LastConfirmationSent *time.Time
}

// Deliverable сообщает, можно ли отправлять письмо этому подписчику.
func (r Recipient) Deliverable() bool {
	return r.Confirmed && !r.Unsubscribed
}

// Статусы статьи.
const (
	ArticleStatusDraft   = "draft"
	ArticleStatusPending = "pending"
	ArticleStatusSent    = "sent"
)

// Метки статей, которые создают задачи пайплайна.
const (
	LabelLeagueOverview  = "league_overview"
	LabelThisWeekMatchup = "this_weeks_matchups"
	LabelLastWeekRecap   = "last_week_recap"
	LabelRosterRoast     = "roster_roast"
	LabelWaiverWatch     = "waiver_watch"

	// LabelMatchupPrefix помечает разбор одной встречи.
	LabelMatchupPrefix = "matchup_"
	// LabelMatchupRecapPrefix помечает итог одной встречи прошлой недели.
	LabelMatchupRecapPrefix = "matchup_recap_"
)

// Article хранит сгенерированный текст для лиги, недели и метки.
type Article struct {
	ID        int64
	LeagueID  int64
	Week      int
	Label     string
	Title     string
	Content   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNewsletterSection сообщает, попадает ли статья с такой меткой в выпуск.
// Разборы отдельных встреч служат только входом для сводных статей.
func IsNewsletterSection(label string) bool {
	return !strings.HasPrefix(label, LabelMatchupPrefix) && !strings.HasPrefix(label, LabelMatchupRecapPrefix)
}

// MatchupLabel возвращает метку разбора встречи.
func MatchupLabel(matchupID int) string {
	return fmt.Sprintf("%s%d", LabelMatchupPrefix, matchupID)
}

// MatchupRecapLabel возвращает метку итога встречи.
func MatchupRecapLabel(matchupID int) string {
	return fmt.Sprintf("%s%d", LabelMatchupRecapPrefix, matchupID)
}

// Newsletter описывает собранный выпуск лиги за неделю.
type Newsletter struct {
	ID           int64
	LeagueID     int64
	Week         int
	DocumentPath string
	DocumentURL  string
	ArticleIDs   []int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewsletterDocument содержит всё, что нужно для рендера выпуска.
type NewsletterDocument struct {
	LeagueName string
	Week       int
	Articles   []Article
}

// DispatchResult описывает итог отправки выпуска.
type DispatchResult struct {
	NewsletterID int64
	Articles     int
	Sent         int
	Failed       int
	DocumentURL  string
}

// Roster описывает состав команды в лиге.
type Roster struct {
	RosterID int
	OwnerID  string
	CoOwners []string
	Players  []string
	Starters []string
}

// Team описывает участника лиги.
type Team struct {
	UserID      string
	DisplayName string
	TeamName    string
	Avatar      string
	IsOwner     bool
}

// Name возвращает название команды или запасное имя.
func (t Team) Name() string {
	if strings.TrimSpace(t.TeamName) != "" {
		return t.TeamName
	}
	return "Team " + t.DisplayName
}

// Matchup описывает одну сторону встречи недели.
type Matchup struct {
	MatchupID      int
	RosterID       int
	Points         float64
	Starters       []string
	StartersPoints []float64
	Players        []string
}

// Transaction описывает событие лиги: обмен, вейвер, свободный агент.
type Transaction struct {
	ID        string
	Type      string
	Status    string
	Creator   string
	RosterIDs []int
	Adds      map[string]int
	Drops     map[string]int
	Created   time.Time
}

// Player описывает игрока НФЛ из справочника Sleeper.
type Player struct {
	ID             string
	FullName       string
	Position       string
	Team           string
	InjuryStatus   string
	InjuryBodyPart string
	SearchRank     int
}

// TrendingKind выбирает направление тренда.
type TrendingKind string

const (
	TrendingAdd  TrendingKind = "add"
	TrendingDrop TrendingKind = "drop"
)

// TrendingPlayer - игрок и число добавлений или удалений за период.
type TrendingPlayer struct {
	PlayerID string
	Count    int
}

// GeneratedArticle - заголовок и текст от генератора.
type GeneratedArticle struct {
	Title   string
	Content string
}
