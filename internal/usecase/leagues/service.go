package leagues

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"leaguelingo/internal/domain"
)

// ErrLeagueIDInvalid возвращается, если во вводе нет идентификатора лиги Sleeper.
var ErrLeagueIDInvalid = errors.New("некорректный идентификатор лиги")

var leagueIDRegex = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?(?:sleeper\.(?:com|app)/leagues/)?([0-9]{6,25})(?:/.*)?$`)

// Service синхронизирует лиги с Sleeper.
type Service struct {
	source domain.LeagueSource
	repo   domain.LeagueRepo
	log    zerolog.Logger
}

// NewService создаёт сервис лиг.
func NewService(source domain.LeagueSource, repo domain.LeagueRepo, logger zerolog.Logger) *Service {
	return &Service{source: source, repo: repo, log: logger.With().Str("component", "leagues").Logger()}
}

// ParseLeagueID приводит ввод пользователя к идентификатору лиги Sleeper.
// Понимает голый номер и ссылку вида https://sleeper.com/leagues/<id>/...
func ParseLeagueID(input string) (string, error) {
	matches := leagueIDRegex.FindStringSubmatch(strings.TrimSpace(input))
	if len(matches) < 2 {
		return "", ErrLeagueIDInvalid
	}
	return matches[1], nil
}

// Refresh загружает настройки лиги из Sleeper и сохраняет их.
// Расписание и пользовательский промпт при этом не трогаются.
func (s *Service) Refresh(ctx context.Context, input string) (domain.League, error) {
	sleeperID, err := ParseLeagueID(input)
	if err != nil {
		return domain.League{}, err
	}
	fetched, err := s.source.FetchLeague(ctx, sleeperID)
	if err != nil {
		return domain.League{}, fmt.Errorf("загрузка лиги %s: %w", sleeperID, err)
	}
	if fetched.SleeperLeagueID == "" {
		fetched.SleeperLeagueID = sleeperID
	}
	saved, err := s.repo.UpsertLeague(ctx, fetched)
	if err != nil {
		return domain.League{}, fmt.Errorf("сохранение лиги: %w", err)
	}
	s.log.Info().Int64("league_id", saved.ID).Str("sleeper_id", sleeperID).Str("status", saved.Status).Msg("лига обновлена")
	return saved, nil
}

// RefreshAll обновляет все известные лиги. Ошибка одной лиги не останавливает остальные.
func (s *Service) RefreshAll(ctx context.Context, statuses ...string) (int, error) {
	list, err := s.repo.ListLeaguesByStatus(ctx, statuses...)
	if err != nil {
		return 0, fmt.Errorf("список лиг: %w", err)
	}
	refreshed := 0
	for _, l := range list {
		if _, err := s.Refresh(ctx, l.SleeperLeagueID); err != nil {
			s.log.Error().Err(err).Int64("league_id", l.ID).Str("kind", string(domain.KindOf(err))).Msg("не удалось обновить лигу")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// Get возвращает лигу по внутреннему идентификатору.
func (s *Service) Get(ctx context.Context, id int64) (domain.League, error) {
	return s.repo.GetLeague(ctx, id)
}
