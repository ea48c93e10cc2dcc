package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ops-ticket-bot/internal/app"
	"github.com/spec-kit/ops-ticket-bot/internal/config"
	"github.com/spec-kit/ops-ticket-bot/internal/domain"
	"github.com/spec-kit/ops-ticket-bot/internal/registry"
)

var statusColors = map[domain.TicketStatus]*color.Color{
	domain.TicketStatusUnassigned: color.New(color.FgYellow),
	domain.TicketStatusAssigned:   color.New(color.FgCyan),
	domain.TicketStatusResolved:   color.New(color.FgGreen),
	domain.TicketStatusRejected:   color.New(color.FgRed),
	domain.TicketStatusHandedOff:  color.New(color.FgMagenta),
}

// TicketsCmd lists tickets held in the registry.
func TicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List tickets in the registry",
		Long: `List tickets in the registry, newest first.

Only the redis registry is shared between processes; with the memory
backend this command always sees an empty registry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statusStr, _ := cmd.Flags().GetString("status")
			categoryStr, _ := cmd.Flags().GetString("category")
			limit, _ := cmd.Flags().GetInt("limit")

			filter := registry.Filter{Limit: limit}
			if statusStr != "" {
				for _, part := range strings.Split(statusStr, ",") {
					status := domain.TicketStatus(strings.TrimSpace(part))
					if !status.Valid() {
						return fmt.Errorf("unknown status %q", status)
					}
					filter.Statuses = append(filter.Statuses, status)
				}
			}
			if categoryStr != "" {
				filter.Category = domain.Category(categoryStr)
				if !filter.Category.Valid() {
					return fmt.Errorf("unknown category %q", categoryStr)
				}
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// the registry alone is enough; skip opening the ledger
			cfg.Ledger.Backend = app.BackendMemory
			storage, err := app.OpenStorage(cmd.Context(), cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer storage.Close()

			tickets, err := storage.Registry.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			printTickets(cmd.OutOrStdout(), tickets, cfg.App.Location())
			return nil
		},
	}
	cmd.Flags().String("status", "", "Filter by status (comma separated)")
	cmd.Flags().String("category", "", "Filter by category")
	cmd.Flags().Int("limit", 50, "Maximum number of tickets")
	return cmd
}

func printTickets(w io.Writer, tickets []*domain.Ticket, loc *time.Location) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, "No tickets found.")
		return
	}
	if loc == nil {
		loc = time.UTC
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tSTATUS\tREPORTER\tASSIGNEE\tREPORTED")
	fmt.Fprintln(tw, "--\t--------\t------\t--------\t--------\t--------")
	for _, t := range tickets {
		assignee := "-"
		if t.Assignee != nil {
			assignee = t.Assignee.DisplayName()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.Category,
			colorStatus(t.Status),
			t.Reporter.DisplayName(),
			assignee,
			t.ReportedAt.In(loc).Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d ticket(s)\n", len(tickets))
}

func colorStatus(s domain.TicketStatus) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}
