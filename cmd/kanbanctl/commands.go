package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kanbandash/internal/config"
	"kanbandash/internal/dashboard"
	"kanbandash/internal/gateway"
	"kanbandash/internal/kanban"
	"kanbandash/internal/optimistic"
)

func loginCmd(cfg *config.ClientConfig) *cobra.Command {
	var register bool
	var name string

	cmd := &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Sign in and print the session variables",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := gateway.New(cfg.BaseURL, gateway.Session{}, gateway.WithTimeout(cfg.HTTPTimeout))

			var (
				session gateway.Session
				err     error
			)
			if register {
				session, err = client.Register(cmd.Context(), args[0], name, args[1])
			} else {
				session, err = client.Login(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "export KANBAN_TOKEN=%s\nexport KANBAN_USER_ID=%s\n", session.Token, session.UserID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "Create the account first")
	cmd.Flags().StringVar(&name, "name", "", "Display name when registering")

	return cmd
}

func boardCmd(cfg *config.ClientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Print the board",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dashboard.Render(a.board.View()))
			return nil
		},
	}
}

func addCmd(cfg *config.ClientConfig) *cobra.Command {
	var priority, due string

	cmd := &cobra.Command{
		Use:   "add <column> <title>",
		Short: "Create a task at the top of a column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}

			columnID, err := resolveColumn(a.board.View(), args[0])
			if err != nil {
				return err
			}
			if err := a.board.BeginCreate(columnID); err != nil {
				return err
			}
			task, err := a.board.ConfirmCreate(cmd.Context(), dashboard.Draft{
				Title:    args[1],
				Priority: kanban.Priority(priority),
				DueDate:  due,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), task.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&priority, "priority", "p", string(kanban.PriorityMedium), "Priority (low, medium, high)")
	cmd.Flags().StringVarP(&due, "due", "d", "", "Due date (YYYY-MM-DD)")

	return cmd
}

func archiveCmd(cfg *config.ClientConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <task-id>",
		Short: "Archive a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}
			return a.board.Archive(cmd.Context(), args[0])
		},
	}
}

func moveCmd(cfg *config.ClientConfig) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "move <task-id> <column>",
		Short: "Move a task to another column or position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context()); err != nil {
				return err
			}

			view := a.board.View()
			to, err := resolveColumn(view, args[1])
			if err != nil {
				return err
			}

			from, err := columnOf(view, args[0])
			if err != nil {
				return err
			}
			if from == to {
				// Reordering inside a column is not a drag between columns.
				_, err := a.engine.Move(cmd.Context(), optimistic.MoveInput{TaskID: args[0], ToColumnID: to, Index: index})
				return err
			}

			a.tracker.Start(args[0], from)
			a.tracker.OverAt(to, index)
			r, err := a.tracker.Drop(cmd.Context())
			if err != nil {
				return err
			}
			if !r.Moved {
				fmt.Fprintln(cmd.OutOrStdout(), "task was not moved")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Position in the destination column, 0 is the top")

	return cmd
}

func watchCmd(cfg *config.ClientConfig) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Render the board and keep it up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			updates, unsubscribe := a.cache.Subscribe()
			defer unsubscribe()

			if metricsAddr != "" {
				a.serveMetrics(ctx, metricsAddr)
			}
			a.cache.Start(ctx)

			watchErr := make(chan error, 1)
			go func() {
				watchErr <- a.client.Watch(ctx, gateway.WatchHandlers{
					OnEvent: func(gateway.Event) {
						if err := a.cache.Revalidate(context.WithoutCancel(ctx)); err != nil {
							a.logger.WithError(err).Warn("refresh after push failed")
						}
					},
					OnReconnect: a.cache.Reconnected,
				})
			}()

			out := cmd.OutOrStdout()
			draw := func() {
				fmt.Fprint(out, "\033[H\033[2J")
				fmt.Fprintln(out, dashboard.Render(a.board.View()))
			}
			draw()

			for {
				select {
				case <-updates:
					draw()
				case err := <-watchErr:
					if ctx.Err() != nil {
						return nil
					}
					return err
				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9091")

	return cmd
}
