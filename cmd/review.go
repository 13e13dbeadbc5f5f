package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathprogress/internal/ui/theme"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect spaced reviews and focus checks",
}

var reviewDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List questions due for review today",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, _ := cmd.Flags().GetString("student")
		limit, _ := cmd.Flags().GetInt("limit")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := rt.engine(cmd.Context())
		if err != nil {
			return err
		}
		due, err := svc.DueReviews(cmd.Context(), student, limit)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			fmt.Println("Nothing due today.")
			return nil
		}

		fmt.Println(theme.Heading("Due for review"))
		fmt.Printf("%-28s  %5s  %6s  %-10s  %s\n", "Question", "Stage", "Missed", "Due", "Last missed")
		fmt.Println(strings.Repeat("─", 76))
		for _, rv := range due {
			fmt.Printf("%-28s  %5d  %6d  %-10s  %s\n",
				truncate(rv.QuestionID, 28), rv.Stage, rv.WrongCount, rv.NextReviewDate,
				rv.LastWrongAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var reviewStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize review progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, _ := cmd.Flags().GetString("student")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := rt.engine(cmd.Context())
		if err != nil {
			return err
		}
		st, err := svc.ReviewStats(cmd.Context(), student)
		if err != nil {
			return err
		}

		fmt.Println(theme.Heading("Review statistics"))
		fmt.Printf("Tracked:     %d\n", st.Tracked)
		fmt.Printf("Graduated:   %d\n", st.Graduated)
		fmt.Printf("Due today:   %d\n", st.DueToday)
		fmt.Printf("Total misses: %d\n", st.TotalWrong)
		for stage := 1; stage <= 5; stage++ {
			fmt.Printf("  stage %d    %d\n", stage, st.ByStage[stage])
		}
		return nil
	},
}

var reviewFocusCmd = &cobra.Command{
	Use:   "focus",
	Short: "List questions flagged for a focus check",
	RunE: func(cmd *cobra.Command, args []string) error {
		student, _ := cmd.Flags().GetString("student")
		all, _ := cmd.Flags().GetBool("all")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		svc, err := rt.engine(cmd.Context())
		if err != nil {
			return err
		}
		items, err := svc.FocusChecks(cmd.Context(), student, !all)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No focus checks.")
			return nil
		}

		fmt.Println(theme.Heading("Focus checks"))
		fmt.Printf("%-28s  %-36s  %6s  %s\n", "Question", "Attempt", "Misses", "Flagged")
		fmt.Println(strings.Repeat("─", 96))
		for _, it := range items {
			fmt.Printf("%-28s  %-36s  %6d  %s\n",
				truncate(it.QuestionID, 28), it.AttemptID, it.WrongCount,
				it.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reviewDueCmd, reviewStatsCmd, reviewFocusCmd} {
		c.Flags().String("student", "", "Student ID")
		_ = c.MarkFlagRequired("student")
	}
	reviewDueCmd.Flags().IntP("limit", "n", 0, "Maximum number of reviews to list")
	reviewFocusCmd.Flags().Bool("all", false, "Include resolved items")

	reviewCmd.AddCommand(reviewDueCmd)
	reviewCmd.AddCommand(reviewStatsCmd)
	reviewCmd.AddCommand(reviewFocusCmd)
}
