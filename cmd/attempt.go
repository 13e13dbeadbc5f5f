package cmd

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathprogress/internal/engine"
	"github.com/abhisek/mathprogress/internal/ui/components"
	"github.com/abhisek/mathprogress/internal/ui/theme"
)

var attemptCmd = &cobra.Command{
	Use:   "attempt",
	Short: "Run a practice attempt one step at a time",
}

var attemptStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a practice attempt",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, _ := cmd.Flags().GetString("student")
		concepts, _ := cmd.Flags().GetStringSlice("concept")
		total, _ := cmd.Flags().GetInt("total")
		test, _ := cmd.Flags().GetString("test")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := rt.engine(cmd.Context())
		if err != nil {
			return err
		}
		a, err := svc.StartAttempt(cmd.Context(), engine.StartInput{
			StudentID:  student,
			TestID:     test,
			ConceptIDs: concepts,
			TotalCount: total,
		})
		if err != nil {
			return err
		}

		fmt.Println(theme.Heading("Attempt started"))
		fmt.Printf("ID:          %s\n", a.ID)
		fmt.Printf("Concepts:    %s\n", strings.Join(a.ConceptIDs, ", "))
		fmt.Printf("Questions:   %d\n", a.TotalCount)
		fmt.Printf("Difficulty:  %d\n", a.CurrentDifficulty)
		return nil
	},
}

var attemptNextCmd = &cobra.Command{
	Use:   "next <attempt-id>",
	Short: "Show the question to answer next",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := rt.engine(cmd.Context())
		if err != nil {
			return err
		}
		s, err := svc.NextQuestion(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Println("No questions left. Finish with:")
			fmt.Printf("  mathprogress attempt complete %s\n", args[0])
			return nil
		}

		title := fmt.Sprintf("Question %s", components.Fraction(s.Position, s.Total))
		if s.IsRetry {
			title = fmt.Sprintf("Retry (round %d)", s.Round)
		}
		fmt.Println(theme.Heading(title))
		fmt.Println(theme.Card.Render(s.DisplayText))
		fmt.Printf("%s %s   %s %d\n",
			theme.Label.Render("id"), s.Question.ID,
			theme.Label.Render("difficulty"), s.Difficulty)
		if len(s.Blanks) > 0 {
			ids := make([]string, len(s.Blanks))
			for i, b := range s.Blanks {
				ids[i] = b.ID + "=..."
			}
			fmt.Printf("%s --blank %s\n", theme.Label.Render("answer with"), strings.Join(ids, " --blank "))
		}
		return nil
	},
}

var attemptSubmitCmd = &cobra.Command{
	Use:   "submit <attempt-id> <question-id> [answer]",
	Short: "Submit an answer to the served question",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		blankAnswers, _ := cmd.Flags().GetStringToString("blank")

		var answer any
		switch {
		case len(blankAnswers) > 0:
			answer = blankAnswers
		case len(args) == 3:
			answer = args[2]
		default:
			return errors.New("provide an answer or --blank values")
		}

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := rt.engine(cmd.Context())
		if err != nil {
			return err
		}
		sub, err := svc.SubmitAnswer(cmd.Context(), args[0], args[1], answer)
		if err != nil {
			return err
		}

		fmt.Printf("%s  %d/%d points\n", theme.Verdict(sub.IsCorrect), sub.PointsEarned, sub.PointsPossible)
		if sub.Grade.Total > 1 {
			fmt.Printf("Blanks:  %d of %d right\n", sub.Grade.Correct, sub.Grade.Total)
		}
		if sub.ComboPoints > sub.PointsEarned {
			fmt.Printf("Combo:   %d in a row, %d points\n", sub.Streak, sub.ComboPoints)
		}
		if sub.ReviewGraduated {
			fmt.Println("Review:  graduated")
		}
		if sub.Hint != nil {
			fmt.Println(theme.Hint.Render("Hint: " + sub.Hint.Text))
		}
		if sub.MovedToFocusCheck {
			fmt.Println("Moved to focus check after", sub.RetryCount, "misses.")
		}
		return nil
	},
}

var attemptCompleteCmd = &cobra.Command{
	Use:   "complete <attempt-id>",
	Short: "Finish an attempt and update mastery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := rt.engine(cmd.Context())
		if err != nil {
			return err
		}
		c, err := svc.CompleteAttempt(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Println(theme.Heading("Attempt complete"))
		fmt.Printf("Answered:  %d (planned %d)\n", c.Answered, c.Planned)
		fmt.Printf("Correct:   %d\n", c.Correct)
		fmt.Printf("Points:    %d/%d\n", c.PointsEarned, c.PointsPossible)
		for _, id := range slices.Sorted(maps.Keys(c.Mastery)) {
			fmt.Printf("  %-24s %s\n", id, components.Meter{Percent: c.Mastery[id], Width: 20}.View())
		}
		if len(c.NewlyMastered) > 0 {
			fmt.Println(theme.Correct.Render("Mastered: " + strings.Join(c.NewlyMastered, ", ")))
		}
		if len(c.Unlocked) > 0 {
			fmt.Println(theme.Hint.Render("Unlocked: " + strings.Join(c.Unlocked, ", ")))
		}
		return nil
	},
}

func init() {
	f := attemptStartCmd.Flags()
	f.String("student", "", "Student ID")
	f.StringSlice("concept", nil, "Concept ID to practice (repeatable)")
	f.Int("total", 0, "Number of new questions (default from config)")
	f.String("test", "", "Test ID to record with the attempt")
	_ = attemptStartCmd.MarkFlagRequired("student")
	_ = attemptStartCmd.MarkFlagRequired("concept")

	attemptSubmitCmd.Flags().StringToString("blank", nil, "Blank answer as id=word (repeatable)")

	attemptCmd.AddCommand(attemptStartCmd)
	attemptCmd.AddCommand(attemptNextCmd)
	attemptCmd.AddCommand(attemptSubmitCmd)
	attemptCmd.AddCommand(attemptCompleteCmd)
}
