package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mathprogress/internal/store"
	"github.com/abhisek/mathprogress/internal/ui/theme"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM hint providers and requests",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		events, err := rt.store.Events().QueryLLMRequests(cmd.Context(), store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}

		if len(events) == 0 {
			fmt.Println("No LLM events found.")
			return nil
		}

		// Header.
		fmt.Printf("%-5s  %-19s  %-10s  %-28s  %-6s  %-6s  %-7s  %s\n",
			"Seq", "Timestamp", "Purpose", "Model", "In", "Out", "Ms", "OK")
		fmt.Println(strings.Repeat("─", 96))

		for _, e := range events {
			if purpose != "" && e.Purpose != purpose {
				continue
			}
			ok := "✓"
			if !e.Success {
				ok = "✗"
			}
			fmt.Printf("%-5d  %-19s  %-10s  %-28s  %-6d  %-6d  %-7d  %s\n",
				e.Sequence,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Purpose,
				truncate(e.Model, 28),
				e.InputTokens,
				e.OutputTokens,
				e.LatencyMs,
				ok,
			)
			if e.ErrorMessage != "" {
				fmt.Printf("       %s\n", theme.Incorrect.Render(truncate(e.ErrorMessage, 88)))
			}
		}
		return nil
	},
}

type usage struct {
	calls, failed int
	in, out       int
	latencyMs     int64
}

var llmStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated LLM token usage by purpose",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		events, err := rt.store.Events().QueryLLMRequests(cmd.Context(), store.QueryOpts{})
		if err != nil {
			return fmt.Errorf("query events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No LLM usage recorded yet.")
			return nil
		}

		byPurpose := make(map[string]*usage)
		for _, e := range events {
			u, ok := byPurpose[e.Purpose]
			if !ok {
				u = &usage{}
				byPurpose[e.Purpose] = u
			}
			u.calls++
			if !e.Success {
				u.failed++
			}
			u.in += e.InputTokens
			u.out += e.OutputTokens
			u.latencyMs += e.LatencyMs
		}
		purposes := make([]string, 0, len(byPurpose))
		for p := range byPurpose {
			purposes = append(purposes, p)
		}
		sort.Strings(purposes)

		fmt.Println(theme.Heading("Usage by Purpose"))
		fmt.Println(strings.Repeat("─", 72))
		fmt.Printf("%-12s  %6s  %6s  %10s  %10s  %8s\n",
			"Purpose", "Calls", "Failed", "Input", "Output", "Avg Ms")
		fmt.Println(strings.Repeat("─", 72))

		var total usage
		for _, p := range purposes {
			u := byPurpose[p]
			fmt.Printf("%-12s  %6d  %6d  %10d  %10d  %8d\n",
				p, u.calls, u.failed, u.in, u.out, u.latencyMs/int64(u.calls))
			total.calls += u.calls
			total.failed += u.failed
			total.in += u.in
			total.out += u.out
		}
		fmt.Println(strings.Repeat("─", 72))
		fmt.Printf("%-12s  %6d  %6d  %10d  %10d\n",
			"TOTAL", total.calls, total.failed, total.in, total.out)
		return nil
	},
}

var llmProvidersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List hint providers and whether they are configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		cfg, enabled := rt.cfg.LLMProvider(os.Getenv)
		active := "none (authored hints only)"
		if enabled {
			active = cfg.Provider
		}
		fmt.Printf("Active: %s\n\n", active)

		fmt.Printf("%-12s  %-36s  %s\n", "Provider", "Model", "Key")
		fmt.Println(strings.Repeat("─", 60))
		for _, p := range cfg.Providers() {
			key := theme.Label.Render("missing")
			if p.Configured {
				key = theme.Correct.Render("set")
			}
			fmt.Printf("%-12s  %-36s  %s\n", p.Name, truncate(p.Model, 36), key)
		}
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (e.g. hint)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmStatsCmd)
	llmCmd.AddCommand(llmProvidersCmd)
}
