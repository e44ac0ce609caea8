package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptiq/internal/irt"
	"github.com/abhisek/adaptiq/internal/ui/components"
	"github.com/abhisek/adaptiq/internal/ui/report"
)

var irtCmd = &cobra.Command{
	Use:   "irt",
	Short: "Item response theory tools",
}

type estimateOutput struct {
	*irt.Estimate
	NextDifficulty   int     `json:"next_difficulty,omitempty"`
	ExpectedAccuracy float64 `json:"expected_accuracy,omitempty"`
}

var irtEstimateCmd = &cobra.Command{
	Use:   "estimate <difficulty:score>...",
	Short: "Estimate ability from scored items",
	Long: `Estimate ability from scored items given as difficulty:score pairs on the
0-100 scale, for example "adaptiq irt estimate 50:90 65:70 80:40". An item
counts as correct when its score reaches session.correct_score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, err := parseObservations(args, cfg.Session.CorrectScore)
		if err != nil {
			return err
		}
		e, err := irt.New(cfg.IRT).Estimate(obs)
		if err != nil {
			return err
		}

		out := estimateOutput{Estimate: e}
		if cmd.Flags().Changed("next") {
			out.NextDifficulty, _ = cmd.Flags().GetInt("next")
			out.ExpectedAccuracy = irt.ProbabilityCorrect(e.Theta, float64(out.NextDifficulty))
		}
		return render(cmd, out, func() string {
			view := report.Estimate(e)
			if out.NextDifficulty > 0 {
				view += "\n" + components.NewMeter(
					fmt.Sprintf("P(correct) at %d", out.NextDifficulty),
					out.ExpectedAccuracy*100, true, 50).View()
			}
			return view
		})
	},
}

func parseObservations(args []string, correctScore int) ([]irt.Observation, error) {
	obs := make([]irt.Observation, 0, len(args))
	for _, a := range args {
		d, s, ok := strings.Cut(a, ":")
		if !ok {
			return nil, fmt.Errorf("invalid item %q: want difficulty:score", a)
		}
		difficulty, err := strconv.Atoi(d)
		if err != nil || difficulty < 0 || difficulty > 100 {
			return nil, fmt.Errorf("invalid difficulty in %q", a)
		}
		score, err := strconv.Atoi(s)
		if err != nil || score < 0 || score > 100 {
			return nil, fmt.Errorf("invalid score in %q", a)
		}
		obs = append(obs, irt.Observation{Difficulty: float64(difficulty), Correct: score >= correctScore})
	}
	return obs, nil
}

func init() {
	irtEstimateCmd.Flags().Int("next", 0, "Also report the chance of answering an item of this difficulty")

	irtCmd.AddCommand(irtEstimateCmd)
}
