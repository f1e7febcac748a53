package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"leaguelingo/internal/app"
	"leaguelingo/internal/infra/config"
	"leaguelingo/internal/infra/log"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "leaguelingo",
		Short:         "Weekly fantasy football newsletters for Sleeper leagues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runScheduledCmd())
	rootCmd.AddCommand(sendNewsletterCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(refreshLeagueCmd())
	rootCmd.AddCommand(refreshLeaguesCmd())
	rootCmd.AddCommand(tasksCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp собирает зависимости и отдаёт их команде.
func withApp(run func(ctx context.Context, a *app.App, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := log.NewLogger(cfg.AppEnv).With().Str("service", "cli").Str("command", cmd.Name()).Logger()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(ctx, a, args)
	}
}

func parseLeagueID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный id лиги %q", raw)
	}
	return id, nil
}

func resolveWeek(ctx context.Context, a *app.App, flag int) (int, error) {
	if flag > 0 {
		return flag, nil
	}
	return a.CurrentWeek(ctx)
}

func runScheduledCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-scheduled",
		Short: "Run the weekly pipeline for every league whose schedule is due",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			summary, err := a.Runner.RunScheduled(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("run %s: week %d, %d evaluated, %d ran, %d failed tasks\n",
				summary.RunID, summary.Week, summary.Evaluated, len(summary.Leagues), summary.FailedTasks())
			return nil
		}),
	}
}

func sendNewsletterCmd() *cobra.Command {
	var week int
	cmd := &cobra.Command{
		Use:   "send-newsletter <league-id>",
		Short: "Assemble and email the newsletter of one league",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			id, err := parseLeagueID(args[0])
			if err != nil {
				return err
			}
			league, err := a.Leagues.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("лига %d: %w", id, err)
			}
			w, err := resolveWeek(ctx, a, week)
			if err != nil {
				return err
			}
			res, err := a.Dispatcher.Dispatch(ctx, league, w)
			if err != nil {
				return err
			}
			fmt.Printf("league %d week %d: %d articles, %d sent, %d failed %s\n", league.ID, w, res.Articles, res.Sent, res.Failed, res.DocumentURL)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&week, "week", "w", 0, "Week number (defaults to the current week)")
	return cmd
}

func generateCmd() *cobra.Command {
	var week int
	cmd := &cobra.Command{
		Use:   "generate <task> <league-id>",
		Short: "Run one content task for one league",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			task, ok := a.Registry.Task(args[0])
			if !ok {
				return fmt.Errorf("неизвестная задача %q", args[0])
			}
			id, err := parseLeagueID(args[1])
			if err != nil {
				return err
			}
			league, err := a.Leagues.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("лига %d: %w", id, err)
			}
			w, err := resolveWeek(ctx, a, week)
			if err != nil {
				return err
			}
			if err := task.Run(ctx, league, w); err != nil {
				return err
			}
			fmt.Printf("%s: league %d week %d done\n", task.Name(), league.ID, w)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&week, "week", "w", 0, "Week number (defaults to the current week)")
	return cmd
}

func refreshLeagueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-league <sleeper-league-id>",
		Short: "Fetch league settings from Sleeper and store them",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app.App, args []string) error {
			league, err := a.Leagues.Refresh(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("league %d %q (%s), status %s\n", league.ID, league.Name, league.SleeperLeagueID, league.Status)
			return nil
		}),
	}
}

func refreshLeaguesCmd() *cobra.Command {
	var statuses []string
	cmd := &cobra.Command{
		Use:   "refresh-leagues",
		Short: "Refresh every stored league from Sleeper",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app.App, _ []string) error {
			n, err := a.Leagues.RefreshAll(ctx, statuses...)
			if err != nil {
				return err
			}
			fmt.Printf("%d leagues refreshed\n", n)
			return nil
		}),
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Only leagues with these statuses (default: all)")
	return cmd
}

func tasksCmd() *cobra.Command {
	var week int
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Print the task plan",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			registry, err := app.Plan(cfg.TasksFile)
			if err != nil {
				return err
			}
			if week > 0 {
				fmt.Printf("week %d: %v\n", week, registry.Names(week))
				return nil
			}
			for _, w := range registry.Weeks() {
				fmt.Printf("week %d: %v\n", w, registry.Names(w))
			}
			fmt.Printf("default: %v\n", registry.Names(0))
			return nil
		},
	}
	cmd.Flags().IntVarP(&week, "week", "w", 0, "Show the plan of one week")
	return cmd
}
