package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/checkin-sync-agent/internal/dto"
	"github.com/noah-isme/checkin-sync-agent/internal/models"
)

// NewLoginCommand logs the agent in and prints the access token.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log the agent in against the backend and print an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res models.LoginResponse
			req := models.LoginRequest{Email: email, Password: password}
			if _, err := opts.client().do(http.MethodPost, "/auth/login", req, &res); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", res.User.Email, res.User.Role)
			fmt.Fprintf(cmd.OutOrStdout(), "export CHECKIN_TOKEN=%s\n", res.AccessToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "organizer email")
	cmd.Flags().StringVar(&password, "password", "", "organizer password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewStatusCommand prints connectivity, queue depth and the last sync pass.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queued check-ins and the last sync pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			var conn models.ConnectivityState
			if _, err := c.do(http.MethodGet, "/connectivity", nil, &conn); err != nil {
				return err
			}
			var pending dto.PendingResponse
			if _, err := c.do(http.MethodGet, "/sync/pending", nil, &pending); err != nil {
				return err
			}
			var last *models.SyncResult
			var result models.SyncResult
			if _, err := c.do(http.MethodGet, "/sync/last", nil, &result); err == nil {
				last = &result
			} else if apiErr := (*APIError)(nil); !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
				return err
			}

			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"connectivity": conn,
					"pending":      pending.Count,
					"lastSync":     last,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "connected: %t\n", conn.IsConnected)
			fmt.Fprintf(out, "pending:   %d\n", pending.Count)
			if last == nil {
				fmt.Fprintln(out, "last sync: never")
				return nil
			}
			fmt.Fprintf(out, "last sync: %s (%s) synced=%d failed=%d remaining=%d\n",
				last.FinishedAt.Format("2006-01-02 15:04:05"), last.Trigger, last.Synced, last.Failed, last.Remaining)
			return nil
		},
	}
}

// NewPendingCommand lists queued check-ins.
func NewPendingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List check-ins waiting to be synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			var pending dto.PendingResponse
			if _, err := opts.client().do(http.MethodGet, "/sync/pending", nil, &pending); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), pending)
			}
			out := cmd.OutOrStdout()
			if pending.Count == 0 {
				fmt.Fprintln(out, "queue is empty")
				return nil
			}
			for _, p := range pending.Pending {
				fmt.Fprintf(out, "event=%d attendee=%d tapped=%s\n", p.EventID, p.AttendeeID, p.Timestamp)
			}
			return nil
		},
	}
}

// NewSyncCommand runs a manual sync pass.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a sync pass now, resetting retry limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result models.SyncResult
			if _, err := opts.client().do(http.MethodPost, "/sync", nil, &result); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "attempted=%d synced=%d failed=%d skipped=%d remaining=%d\n",
				result.Attempted, result.Synced, result.Failed, result.Skipped, result.Remaining)
			for _, item := range result.Items {
				if item.Outcome == models.SyncOutcomeFailed {
					fmt.Fprintf(out, "  event=%d attendee=%d %s: %s\n", item.EventID, item.AttendeeID, item.ErrorCode, item.Error)
				}
			}
			return nil
		},
	}
}

// NewConnectivityCommand pushes a connectivity change to the agent.
func NewConnectivityCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "connectivity online|offline",
		Short:     "Tell the agent whether the device is online",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"online", "offline"},
		RunE: func(cmd *cobra.Command, args []string) error {
			online := strings.EqualFold(args[0], "online")
			var state models.ConnectivityState
			if _, err := opts.client().do(http.MethodPut, "/connectivity", dto.ConnectivityRequest{IsConnected: &online}, &state); err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "connected: %t\n", state.IsConnected)
			return nil
		},
	}
}

// NewRosterCommand downloads a roster export.
func NewRosterCommand(opts *RootOptions) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "roster EVENT_ID",
		Short: "Export the attendee roster of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || eventID <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			if format != string(dto.RosterFormatCSV) && format != string(dto.RosterFormatPDF) {
				return fmt.Errorf("invalid roster format %q: must be csv or pdf", format)
			}
			data, _, err := opts.client().raw(http.MethodGet, fmt.Sprintf("/events/%d/roster?format=%s", eventID, format), nil)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write roster: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(data), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "type", string(dto.RosterFormatCSV), "export type (csv|pdf)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	return cmd
}
