package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leaguelingo/internal/domain"
)

var (
	// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrScheduleLocked возвращается, если расписание уже меняли на этой неделе.
	ErrScheduleLocked = errors.New("schedule can only be changed once a week")
)

// ChangeInterval - минимальный интервал между изменениями расписания.
const ChangeInterval = 7 * 24 * time.Hour

// ShouldRun решает, пора ли запускать рассылку лиги в момент now.
// Лига без дня или времени никогда не запускается.
func ShouldRun(league domain.League, now time.Time, loc *time.Location) bool {
	eligible, _ := Evaluate(league, now, loc)
	return eligible
}

// Evaluate как ShouldRun, но дополнительно возвращает причину отказа для логов.
// Для лиги без расписания причина имеет вид domain.KindScheduleMissing.
func Evaluate(league domain.League, now time.Time, loc *time.Location) (bool, error) {
	if !league.HasSchedule() {
		return false, domain.E(domain.KindScheduleMissing, "schedule.evaluate", nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if local.Weekday() != *league.ScheduledDay {
		return false, nil
	}
	target := league.ScheduledTime.On(local, loc)
	if local.Before(target) {
		return false, nil
	}
	if league.LastRunTime != nil && !league.LastRunTime.Before(target) {
		return false, nil
	}
	return true, nil
}

// Evaluator фиксирует часовой пояс фильтра.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator создаёт фильтр в поясе loc.
func NewEvaluator(loc *time.Location) Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return Evaluator{loc: loc}
}

// Evaluate вызывает Evaluate в поясе фильтра.
func (e Evaluator) Evaluate(league domain.League, now time.Time) (bool, error) {
	return Evaluate(league, now, e.loc)
}

// Service отвечает за расписание лиги.
type Service struct {
	leagues domain.LeagueRepo
	now     func() time.Time
}

// NewService создаёт сервис.
func NewService(leagues domain.LeagueRepo) *Service {
	return &Service{leagues: leagues, now: time.Now}
}

// UpdateSchedule задаёт день и время рассылки. Менять расписание можно раз в неделю.
func (s *Service) UpdateSchedule(ctx context.Context, leagueID int64, dayRaw, timeRaw string) (domain.League, error) {
	day, err := domain.ParseWeekday(dayRaw)
	if err != nil {
		return domain.League{}, err
	}
	at, err := domain.ParseTimeOfDay(timeRaw)
	if err != nil {
		return domain.League{}, err
	}
	league, err := s.leagues.GetLeague(ctx, leagueID)
	if err != nil {
		return domain.League{}, fmt.Errorf("получение лиги: %w", err)
	}
	now := s.now()
	if league.ScheduleUpdatedAt != nil && now.Sub(*league.ScheduleUpdatedAt) < ChangeInterval {
		return domain.League{}, ErrScheduleLocked
	}
	if err := s.leagues.UpdateSchedule(ctx, leagueID, day, at, now); err != nil {
		return domain.League{}, fmt.Errorf("обновление расписания: %w", err)
	}
	league.ScheduledDay = &day
	league.ScheduledTime = &at
	league.ScheduleUpdatedAt = &now
	return league, nil
}

// LoadLocation разбирает название часового пояса, прощая регистр и пробелы.
func LoadLocation(raw string) (*time.Location, error) {
	name, err := normalizeTimezone(raw)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(name)
}

func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}
