package pipeline

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"leaguelingo/internal/domain"
)

// Registry сопоставляет неделе сезона упорядоченный список задач.
type Registry struct {
	tasks    map[string]domain.Task
	byWeek   map[int][]string
	defaults []string
}

// DefaultPlan - встроенное расписание задач по неделям.
func DefaultPlan() (map[int][]string, []string) {
	byWeek := map[int][]string{
		1: {domain.LabelLeagueOverview, domain.LabelRosterRoast},
		2: {domain.LabelLeagueOverview, domain.LabelWaiverWatch, domain.LabelThisWeekMatchup},
	}
	defaults := []string{domain.LabelLastWeekRecap, domain.LabelThisWeekMatchup, domain.LabelWaiverWatch}
	return byWeek, defaults
}

// NewRegistry проверяет, что все имена в плане известны.
func NewRegistry(tasks map[string]domain.Task, byWeek map[int][]string, defaults []string) (*Registry, error) {
	check := func(where string, names []string) error {
		for _, name := range names {
			if _, ok := tasks[name]; !ok {
				return fmt.Errorf("registry: %s: неизвестная задача %q", where, name)
			}
		}
		return nil
	}
	if err := check("default", defaults); err != nil {
		return nil, err
	}
	for week, names := range byWeek {
		if week <= 0 {
			return nil, fmt.Errorf("registry: неделя должна быть положительной, получили %d", week)
		}
		if err := check(fmt.Sprintf("week %d", week), names); err != nil {
			return nil, err
		}
	}
	return &Registry{tasks: tasks, byWeek: byWeek, defaults: defaults}, nil
}

// Default строит реестр по встроенному плану.
func Default(tasks map[string]domain.Task) (*Registry, error) {
	byWeek, defaults := DefaultPlan()
	return NewRegistry(tasks, byWeek, defaults)
}

type planFile struct {
	Default []string         `yaml:"default"`
	Weeks   map[int][]string `yaml:"weeks"`
}

// Load читает план из YAML:
//
//	default: [last_week_recap, this_weeks_matchups]
//	weeks:
//	  1: [league_overview, roster_roast]
//
// Пустой путь означает встроенный план.
func Load(path string, tasks map[string]domain.Task) (*Registry, error) {
	if path == "" {
		return Default(tasks)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	var plan planFile
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("registry: разбор %s: %w", path, err)
	}
	if plan.Weeks == nil {
		plan.Weeks = map[int][]string{}
	}
	return NewRegistry(tasks, plan.Weeks, plan.Default)
}

// Names возвращает имена задач недели.
func (r *Registry) Names(week int) []string {
	if names, ok := r.byWeek[week]; ok {
		return names
	}
	return r.defaults
}

// ForWeek возвращает задачи недели в порядке плана.
func (r *Registry) ForWeek(week int) []domain.Task {
	names := r.Names(week)
	out := make([]domain.Task, 0, len(names))
	for _, name := range names {
		out = append(out, r.tasks[name])
	}
	return out
}

// Task ищет задачу по имени.
func (r *Registry) Task(name string) (domain.Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Weeks возвращает недели с собственным планом по возрастанию.
func (r *Registry) Weeks() []int {
	out := make([]int, 0, len(r.byWeek))
	for w := range r.byWeek {
		out = append(out, w)
	}
	sort.Ints(out)
	return out
}
