package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/luna-svc/luna/internal/api"
	"github.com/luna-svc/luna/internal/config"
	"github.com/luna-svc/luna/internal/mcp"
)

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for API access",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret is not configured (set LUNA_SERVER_JWT_SECRET)")
		}

		ttlHours, _ := cmd.Flags().GetInt("ttl")
		token, err := api.IssueToken(cfg.Server.JWTSecret, args[0], time.Duration(ttlHours)*time.Hour)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int("ttl", 24, "token lifetime in hours")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send a one-off request to the running server",
	Long: `Send a one-off request to the running server.

Examples:
  luna ask "write a factorial function" --task code_generation --language python
  luna ask "why does this panic" --task debugging --language go`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskType, _ := cmd.Flags().GetString("task")
		language, _ := cmd.Flags().GetString("language")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/mcp/process", map[string]any{
			"task_type": taskType,
			"prompt":    args[0],
			"language":  language,
			"user_id":   "cli",
		})
		if err != nil {
			return err
		}

		var result mcp.Response
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Status == mcp.StatusError {
			printError("%s", result.ErrorMessage)
			return fmt.Errorf("request failed")
		}

		if result.GeneratedCode != "" {
			fmt.Println(result.GeneratedCode)
			fmt.Println()
		}
		if result.Explanation != "" {
			fmt.Println(result.Explanation)
		}
		for _, s := range result.Suggestions {
			printStep("%s", s)
		}
		printStatus("Confidence", "%.1f", result.ConfidenceScore)
		printStatus("Tokens", "%d", result.TokensUsed)
		return nil
	},
}

func init() {
	askCmd.Flags().String("task", "code_generation", "task type")
	askCmd.Flags().String("language", "", "programming language")
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		sessionID, _ := cmd.Flags().GetString("session")
		days, _ := cmd.Flags().GetInt("days")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/analytics?user_id=%s&session_id=%s&window_days=%d", userID, sessionID, days)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var stats mcp.AggregateStats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Metric", "Value"})
		tw.AppendRow(table.Row{"Total requests", stats.TotalRequests})
		tw.AppendRow(table.Row{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate)})
		tw.AppendRow(table.Row{"Avg response time", fmt.Sprintf("%.2fs", stats.AvgResponseTime)})
		tw.AppendRow(table.Row{"Total tokens", stats.TotalTokens})
		tw.Render()

		if len(stats.TaskTypeBreakdown) > 0 {
			bw := table.NewWriter()
			bw.SetOutputMirror(os.Stdout)
			bw.AppendHeader(table.Row{"Task type", "Requests"})
			for _, t := range mcp.TaskTypes() {
				if n, ok := stats.TaskTypeBreakdown[string(t)]; ok {
					bw.AppendRow(table.Row{string(t), n})
				}
			}
			bw.Render()
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().String("user", "", "filter by user id")
	statsCmd.Flags().String("session", "", "filter by session id")
	statsCmd.Flags().Int("days", 0, "only include the last N days")
}

// --- automations ---

var automationsCmd = &cobra.Command{
	Use:   "automations",
	Short: "List configured automation jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/automations")
		if err != nil {
			return err
		}

		var jobs []struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Type   string `json:"type"`
			Status string `json:"status"`
		}
		if err := decodeJSON(resp, &jobs); err != nil {
			return err
		}

		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"ID", "Name", "Type", "Status"})
		for _, j := range jobs {
			tw.AppendRow(table.Row{j.ID, j.Name, j.Type, j.Status})
		}
		tw.Render()
		return nil
	},
}
