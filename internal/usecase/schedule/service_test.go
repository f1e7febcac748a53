package schedule

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"leaguelingo/internal/domain"
)

func phoenix(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Phoenix")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func scheduled(day time.Weekday, at domain.TimeOfDay, lastRun *time.Time) domain.League {
	return domain.League{ID: 1, ScheduledDay: &day, ScheduledTime: &at, LastRunTime: lastRun}
}

func TestShouldRunFirstEligibleMoment(t *testing.T) {
	loc := phoenix(t)
	league := scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, nil)
	now := time.Date(2024, 9, 5, 12, 1, 0, 0, loc)

	if !ShouldRun(league, now, loc) {
		t.Fatalf("ожидали запуск в четверг 12:01")
	}
}

func TestShouldRunAfterRunSameDay(t *testing.T) {
	loc := phoenix(t)
	lastRun := time.Date(2024, 9, 5, 12, 0, 0, 0, loc)
	league := scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, &lastRun)
	now := time.Date(2024, 9, 5, 12, 5, 0, 0, loc)

	if ShouldRun(league, now, loc) {
		t.Fatalf("не ожидали повторный запуск в тот же день")
	}
}

func TestShouldRunCases(t *testing.T) {
	loc := phoenix(t)
	lastWeek := time.Date(2024, 8, 29, 12, 3, 0, 0, loc)
	todayLater := time.Date(2024, 9, 5, 12, 30, 0, 0, loc)

	cases := []struct {
		name    string
		league  domain.League
		now     time.Time
		want    bool
		missing bool
	}{
		{name: "без расписания", league: domain.League{ID: 1}, now: time.Date(2024, 9, 5, 12, 1, 0, 0, loc), missing: true},
		{name: "другой день", league: scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, nil), now: time.Date(2024, 9, 6, 12, 1, 0, 0, loc)},
		{name: "ещё рано", league: scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, nil), now: time.Date(2024, 9, 5, 11, 59, 59, 0, loc)},
		{name: "ровно в срок", league: scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, nil), now: time.Date(2024, 9, 5, 12, 0, 0, 0, loc), want: true},
		{name: "запуск прошлой недели", league: scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, &lastWeek), now: time.Date(2024, 9, 5, 18, 0, 0, 0, loc), want: true},
		{name: "уже запускали сегодня", league: scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, &todayLater), now: time.Date(2024, 9, 5, 23, 0, 0, 0, loc)},
		{name: "now в UTC сравнивается в поясе лиги", league: scheduled(time.Thursday, domain.TimeOfDay{Hour: 20}, nil), now: time.Date(2024, 9, 6, 3, 30, 0, 0, time.UTC), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := Evaluate(tc.league, tc.now, loc)
			if got != tc.want {
				t.Fatalf("ожидали %v, получили %v", tc.want, got)
			}
			if tc.missing && domain.KindOf(reason) != domain.KindScheduleMissing {
				t.Fatalf("ожидали schedule_missing, получили %v", reason)
			}
		})
	}
}

func TestShouldRunOncePerDay(t *testing.T) {
	loc := phoenix(t)
	league := scheduled(time.Thursday, domain.TimeOfDay{Hour: 9, Minute: 30}, nil)
	start := time.Date(2024, 9, 5, 0, 0, 0, 0, loc)

	runs := 0
	for minute := 0; minute < 24*60; minute += 7 {
		now := start.Add(time.Duration(minute) * time.Minute)
		if ShouldRun(league, now, loc) {
			runs++
			at := now
			league.LastRunTime = &at
		}
	}
	if runs != 1 {
		t.Fatalf("ожидали ровно один запуск за день, получили %d", runs)
	}
}

type fakeLeagues struct {
	domain.LeagueRepo
	league  domain.League
	updated bool
	day     time.Weekday
	at      domain.TimeOfDay
}

func (f *fakeLeagues) GetLeague(_ context.Context, id int64) (domain.League, error) {
	if id != f.league.ID {
		return domain.League{}, domain.ErrNotFound
	}
	return f.league, nil
}

func (f *fakeLeagues) UpdateSchedule(_ context.Context, _ int64, day time.Weekday, at domain.TimeOfDay, _ time.Time) error {
	f.updated, f.day, f.at = true, day, at
	return nil
}

func TestUpdateSchedule(t *testing.T) {
	repo := &fakeLeagues{league: domain.League{ID: 3}}
	svc := NewService(repo)

	league, err := svc.UpdateSchedule(context.Background(), 3, "thursday", "12:00")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !repo.updated || repo.day != time.Thursday || repo.at.Hour != 12 {
		t.Fatalf("расписание не сохранено: %+v", repo)
	}
	if !league.HasSchedule() || league.ScheduleUpdatedAt == nil {
		t.Fatalf("ожидали обновлённую лигу: %+v", league)
	}
}

func TestUpdateScheduleOnceAWeek(t *testing.T) {
	now := time.Date(2024, 9, 5, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-6 * 24 * time.Hour)
	repo := &fakeLeagues{league: domain.League{ID: 3, ScheduleUpdatedAt: &recent}}
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	if _, err := svc.UpdateSchedule(context.Background(), 3, "Fri", "09:00"); !errors.Is(err, ErrScheduleLocked) {
		t.Fatalf("ожидали ErrScheduleLocked, получили %v", err)
	}

	old := now.Add(-8 * 24 * time.Hour)
	repo.league.ScheduleUpdatedAt = &old
	if _, err := svc.UpdateSchedule(context.Background(), 3, "Fri", "09:00"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
}

func TestUpdateScheduleRejectsBadInput(t *testing.T) {
	svc := NewService(&fakeLeagues{league: domain.League{ID: 3}})
	if _, err := svc.UpdateSchedule(context.Background(), 3, "Funday", "12:00"); err == nil {
		t.Fatalf("ожидали ошибку дня недели")
	}
	if _, err := svc.UpdateSchedule(context.Background(), 3, "Monday", "noon"); err == nil {
		t.Fatalf("ожидали ошибку времени")
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("america/phoenix")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if loc.String() != "America/Phoenix" {
		t.Fatalf("unexpected location %s", loc)
	}
	if _, err := LoadLocation("Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("ожидали ErrInvalidTimezone, получили %v", err)
	}
}

func TestEvaluatorUsesItsLocation(t *testing.T) {
	loc := phoenix(t)
	league := scheduled(time.Thursday, domain.TimeOfDay{Hour: 12}, nil)
	evaluator := NewEvaluator(loc)

	// 19:01 UTC = 12:01 в Финиксе.
	ok, err := evaluator.Evaluate(league, time.Date(2024, 9, 5, 19, 1, 0, 0, time.UTC))
	if !ok || err != nil {
		t.Fatalf("ожидали запуск, получили %v, %v", ok, err)
	}
	ok, err = evaluator.Evaluate(domain.League{ID: 2}, time.Date(2024, 9, 5, 19, 1, 0, 0, time.UTC))
	if ok || domain.KindOf(err) != domain.KindScheduleMissing {
		t.Fatalf("ожидали schedule_missing, получили %v, %v", ok, err)
	}
}
