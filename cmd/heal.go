// File: cmd/heal.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mendbot/api/schemas"
	"github.com/xkilldash9x/mendbot/internal/healer"
	"github.com/xkilldash9x/mendbot/internal/observability"
)

var (
	healTeamName   string
	healLeaderName string
	healWait       bool
)

// newHealCmd creates the one-shot healing command: start a session for a
// single repository and optionally wait for it to finish.
func newHealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heal <repo-url>",
		Short: "Run one healing session against a GitHub repository.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			app, closer, err := buildApp(cfg, logger)
			if err != nil {
				return err
			}
			defer closer()

			id, err := app.Healer.StartHealing(cmd.Context(), healer.StartRequest{
				RepoURL:    args[0],
				TeamName:   healTeamName,
				LeaderName: healLeaderName,
			})
			if err != nil {
				return fmt.Errorf("could not start healing session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s started\n", id)

			if !healWait {
				return nil
			}
			return waitForSession(cmd.Context(), app, id, logger)
		},
	}

	cmd.Flags().StringVar(&healTeamName, "team", "", "team name used in the healing branch")
	cmd.Flags().StringVar(&healLeaderName, "leader", "", "leader name used in the healing branch")
	cmd.Flags().BoolVar(&healWait, "wait", true, "wait for the session to reach a terminal state")
	return cmd
}

// waitForSession follows the progress stream until the session is terminal,
// then prints the outcome.
func waitForSession(ctx context.Context, app *appDeps, id string, logger *zap.Logger) error {
	events, cancel := app.Registry.Subscribe(id)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return printOutcome(ctx, app, id)
			}
			logger.Info("Progress", zap.String("kind", string(ev.Kind)), zap.Any("payload", ev.Payload))
			if ev.Kind == schemas.EventStatus {
				if sess, err := app.Store.Get(ctx, id); err == nil && sess.Status.Terminal() {
					return printOutcome(ctx, app, id)
				}
			}
		case <-time.After(30 * time.Second):
			// Keepalive poll in case the stream went quiet.
			if sess, err := app.Store.Get(ctx, id); err == nil && sess.Status.Terminal() {
				return printOutcome(ctx, app, id)
			}
		}
	}
}

func printOutcome(ctx context.Context, app *appDeps, id string) error {
	sess, err := app.Store.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("session %s finished: %s\n", sess.ID, sess.Status)
	if sess.Score != nil {
		fmt.Printf("score: %d/100 (%d/%d bugs fixed, %d attempts)\n",
			sess.Score.Final, sess.Score.BugsFixed, sess.Score.TotalBugs, sess.Score.AttemptsUsed)
	}
	if sess.PRURL != "" {
		fmt.Printf("pull request: %s\n", sess.PRURL)
	}
	if sess.Status == schemas.StatusFailed {
		return errors.New(sess.Error)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newHealCmd())
}
