package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/adaptiq/internal/history"
	"github.com/abhisek/adaptiq/internal/session"
	"github.com/abhisek/adaptiq/internal/store"
	"github.com/abhisek/adaptiq/internal/ui/report"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run adaptive assessment sessions",
}

// withEngine opens the store and catalog and hands fn a ready orchestrator.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store, o *session.Orchestrator) error) error {
	graph, err := loadGraph()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st, newOrchestrator(st, graph))
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a session for a learner and concept",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		concept, _ := cmd.Flags().GetString("concept")

		return withEngine(cmd, func(ctx context.Context, _ *store.Store, o *session.Orchestrator) error {
			s, err := o.InitializeSession(ctx, user, concept)
			if err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			return render(cmd, s, func() string { return report.Session(s) })
		})
	},
}

var sessionTurnCmd = &cobra.Command{
	Use:   "turn <session-id>",
	Short: "Record the previous item's score and get the next item",
	Long: `Record the score of the item just answered and get the difficulty of the
next one. Omit --score on the first turn, before any item has been served.
With --type the score is also stored in the learner's response history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		parent, _ := cmd.Flags().GetString("parent")
		typ, _ := cmd.Flags().GetString("type")

		in := session.TurnInput{QuestionID: question, ParentQuestionID: parent}
		if cmd.Flags().Changed("score") {
			score, _ := cmd.Flags().GetInt("score")
			if score < 0 || score > 100 {
				return fmt.Errorf("invalid --score %d: must be between 0 and 100", score)
			}
			in.Score = session.Score(score)
		}

		var rt history.ResponseType
		if typ != "" {
			if in.Score == nil {
				return errors.New("--type requires --score")
			}
			var err error
			if rt, err = history.ParseResponseType(typ); err != nil {
				return err
			}
		}
		confidence, err := confidenceFlag(cmd)
		if err != nil {
			return err
		}

		return withEngine(cmd, func(ctx context.Context, st *store.Store, o *session.Orchestrator) error {
			before, err := o.Session(ctx, args[0])
			if err != nil {
				return err
			}
			r, err := o.ConductAssessment(ctx, args[0], in)
			if err != nil {
				return fmt.Errorf("conduct assessment: %w", err)
			}

			if rt != "" {
				resp := history.Response{
					UserID:     before.UserID,
					ConceptID:  before.ConceptID,
					Type:       rt,
					Score:      *in.Score,
					Date:       time.Now().UTC(),
					Difficulty: before.CurrentDifficulty,
				}
				if confidence != nil {
					resp.CalibrationDelta = *confidence - resp.Score
				}
				if err := recordResponse(ctx, st, resp); err != nil {
					return err
				}
			}
			return render(cmd, r, func() string { return report.Turn(r) })
		})
	},
}

var sessionRecalibrateCmd = &cobra.Command{
	Use:   "recalibrate <session-id>",
	Short: "Shift difficulty when the session shows a strong trend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *store.Store, o *session.Orchestrator) error {
			r, err := o.RecalibrateSession(ctx, args[0])
			if err != nil {
				return fmt.Errorf("recalibrate: %w", err)
			}
			return render(cmd, r, func() string { return report.Recalibration(r) })
		})
	},
}

var sessionCheckCmd = &cobra.Command{
	Use:   "check <session-id>",
	Short: "Check whether the session should end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *store.Store, o *session.Orchestrator) error {
			s, err := o.Session(ctx, args[0])
			if err != nil {
				return err
			}
			c, err := o.ShouldTerminate(ctx, s.ID, s.ConceptID)
			if err != nil {
				return fmt.Errorf("termination check: %w", err)
			}
			return render(cmd, c, func() string { return report.Termination(c) })
		})
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "End the session on a confidence-building item and summarize it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd, func(ctx context.Context, _ *store.Store, o *session.Orchestrator) error {
			sum, err := o.EndStrategically(ctx, args[0])
			if err != nil {
				return fmt.Errorf("end session: %w", err)
			}
			logger.Info("session ended",
				zap.String("session_id", sum.SessionID),
				zap.Int("questions", sum.TotalQuestions),
				zap.String("mastery", string(sum.MasteryStatus)))
			return render(cmd, sum, func() string { return report.Summary(sum) })
		})
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session and its trajectory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		s, err := st.Sessions().GetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, s, func() string { return report.Session(s) })
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := queryOpts(cmd)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.Sessions().ListSessions(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		return render(cmd, sessions, func() string { return report.SessionList(sessions) })
	},
}

var sessionSummaryCmd = &cobra.Command{
	Use:   "summary [session-id]",
	Short: "Show a stored session summary, or the learner's latest with --user",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		if len(args) == 0 && user == "" {
			return errors.New("pass a session ID or --user")
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		var sum *session.Summary
		if len(args) == 1 {
			sum, err = st.Summaries().Get(cmd.Context(), args[0])
		} else {
			sum, err = st.Summaries().Latest(cmd.Context(), user)
		}
		if err != nil {
			return fmt.Errorf("load summary: %w", err)
		}
		if sum == nil {
			return errors.New("no summary found")
		}
		return render(cmd, sum, func() string { return report.Summary(sum) })
	},
}

// confidenceFlag returns --confidence when set, checked against 0-100.
func confidenceFlag(cmd *cobra.Command) (*int, error) {
	if !cmd.Flags().Changed("confidence") {
		return nil, nil
	}
	v, _ := cmd.Flags().GetInt("confidence")
	if v < 0 || v > 100 {
		return nil, fmt.Errorf("invalid --confidence %d: must be between 0 and 100", v)
	}
	return &v, nil
}

// recordResponse stores a response and refreshes the learner's calibration
// window when it carries a confidence rating. The response is kept even when
// the refresh fails; the window is rebuilt on the next rated response.
func recordResponse(ctx context.Context, st *store.Store, r history.Response) error {
	if err := st.Responses().Append(ctx, r); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	if r.CalibrationDelta == 0 {
		return nil
	}
	w, err := st.Responses().RefreshCalibration(ctx, r.UserID, r.ConceptID, r.Date)
	if err != nil {
		logger.Warn("calibration refresh failed",
			zap.String("user_id", r.UserID),
			zap.String("concept_id", r.ConceptID),
			zap.Error(err))
		return nil
	}
	if w != nil {
		logger.Debug("calibration refreshed",
			zap.String("user_id", r.UserID),
			zap.String("concept_id", r.ConceptID),
			zap.Float64("correlation", w.Correlation))
	}
	return nil
}

// queryOpts reads the shared --user, --concept, --since and --limit filters.
func queryOpts(cmd *cobra.Command) (store.QueryOpts, error) {
	var opts store.QueryOpts
	opts.UserID, _ = cmd.Flags().GetString("user")
	opts.ConceptID, _ = cmd.Flags().GetString("concept")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return opts, fmt.Errorf("invalid --since %q: %w", since, err)
		}
		opts.From = t
	}
	return opts, nil
}

func addFilterFlags(cmd *cobra.Command, limit int) {
	cmd.Flags().String("user", "", "Filter by learner ID")
	cmd.Flags().String("concept", "", "Filter by concept ID")
	cmd.Flags().String("since", "", "Only include records on or after this date (YYYY-MM-DD)")
	cmd.Flags().Int("limit", limit, "Maximum number of records (0 = all)")
}

func init() {
	sessionStartCmd.Flags().String("user", "", "Learner ID")
	sessionStartCmd.Flags().String("concept", "", "Concept ID from the catalog")
	_ = sessionStartCmd.MarkFlagRequired("user")
	_ = sessionStartCmd.MarkFlagRequired("concept")

	sessionTurnCmd.Flags().Int("score", 0, "Score of the item just answered (0-100)")
	sessionTurnCmd.Flags().String("question", "", "ID of the item just answered")
	sessionTurnCmd.Flags().String("parent", "", "Original question ID when the item was a follow-up")
	sessionTurnCmd.Flags().String("type", "", "Response type; stores the score in the learner's history")
	sessionTurnCmd.Flags().Int("confidence", 0, "Learner's self-rated confidence (0-100), used with --type")

	addFilterFlags(sessionListCmd, 20)

	sessionSummaryCmd.Flags().String("user", "", "Show the learner's latest summary")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionTurnCmd)
	sessionCmd.AddCommand(sessionRecalibrateCmd)
	sessionCmd.AddCommand(sessionCheckCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionSummaryCmd)
}
