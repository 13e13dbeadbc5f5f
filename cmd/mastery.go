package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathprogress/internal/store"
	"github.com/abhisek/mathprogress/internal/ui/components"
	"github.com/abhisek/mathprogress/internal/ui/theme"
)

var masteryCmd = &cobra.Command{
	Use:   "mastery",
	Short: "Show concept mastery",
}

var masteryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a student's mastery of every concept",
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
		overview, err := svc.MasteryOverview(cmd.Context(), student)
		if err != nil {
			return err
		}
		if len(overview) == 0 {
			fmt.Println("No concepts imported yet.")
			return nil
		}

		fmt.Println(theme.Heading("Mastery"))
		for _, cs := range overview {
			state := theme.Label.Render("locked")
			switch {
			case cs.Mastery.IsMastered:
				state = theme.Correct.Render("mastered")
			case cs.Mastery.IsUnlocked:
				state = theme.Hint.Render("unlocked")
			}
			fmt.Printf("%-28s %s  %s\n",
				truncate(cs.Concept.Name, 28),
				components.Meter{Percent: cs.Mastery.MasteryPercentage, Width: 20, Mark: cs.Mastery.IsMastered}.View(),
				state)
			if !cs.PrerequisitesMet {
				fmt.Printf("  %s\n", theme.Label.Render("needs "+strings.Join(cs.Unmet, ", ")))
			}
		}
		return nil
	},
}

var masteryEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List mastery and unlock events",
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
		events, err := svc.MasteryEvents(cmd.Context(), student, store.QueryOpts{Limit: limit})
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No mastery events yet.")
			return nil
		}

		fmt.Printf("%-19s  %-10s  %-24s  %7s\n", "Timestamp", "Event", "Concept", "Mastery")
		fmt.Println(strings.Repeat("─", 66))
		for _, e := range events {
			fmt.Printf("%-19s  %-10s  %-24s  %6d%%\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Kind, truncate(e.ConceptID, 24), e.MasteryPercentage)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{masteryShowCmd, masteryEventsCmd} {
		c.Flags().String("student", "", "Student ID")
		_ = c.MarkFlagRequired("student")
	}
	masteryEventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")

	masteryCmd.AddCommand(masteryShowCmd)
	masteryCmd.AddCommand(masteryEventsCmd)
}
