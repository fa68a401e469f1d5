package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/wareneingang/internal/tickets"
)

func newTicketCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Open and work cases against receipt batches",
	}

	var subject, priority, description string
	open := &cobra.Command{
		Use:   "open BATCH",
		Short: "Open a case against a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := tickets.ParsePriority(priority)
			if err != nil {
				return err
			}
			ticket, err := rt.container.Tickets.CreateTicket(cmd.Context(), tickets.CreateInput{
				ReceiptID:   args[0],
				Subject:     subject,
				Priority:    p,
				Description: description,
				Author:      rt.actor,
			})
			if err != nil {
				return err
			}
			return rt.printTicket(cmd, ticket)
		},
	}
	open.Flags().StringVar(&subject, "subject", "", "case subject (required)")
	open.Flags().StringVar(&priority, "priority", "Normal", "Normal, High or Urgent")
	open.Flags().StringVar(&description, "text", "", "problem description (required)")
	_ = open.MarkFlagRequired("subject")
	_ = open.MarkFlagRequired("text")

	var replyText string
	var closeCase bool
	reply := &cobra.Command{
		Use:   "reply ID",
		Short: "Reply to a case, optionally closing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticket, err := rt.container.Tickets.ReplyTicket(cmd.Context(), args[0], tickets.ReplyInput{
				Author: rt.actor,
				Text:   replyText,
				Close:  closeCase,
			})
			if err != nil {
				return err
			}
			return rt.printTicket(cmd, ticket)
		},
	}
	reply.Flags().StringVar(&replyText, "text", "", "reply text")
	reply.Flags().BoolVar(&closeCase, "close", false, "close the case after the reply")

	reopen := &cobra.Command{
		Use:   "reopen ID",
		Short: "Reopen a closed case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticket, err := rt.container.Tickets.ReopenTicket(cmd.Context(), args[0], rt.actor)
			if err != nil {
				return err
			}
			return rt.printTicket(cmd, ticket)
		},
	}

	list := &cobra.Command{
		Use:   "list BATCH",
		Short: "List the cases of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := rt.container.Tickets.ListByReceipt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, found)
			}
			for _, t := range found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Subject)
			}
			return nil
		},
	}

	cmd.AddCommand(open, reply, reopen, list)
	return cmd
}

func (rt *runtime) printTicket(cmd *cobra.Command, ticket tickets.Ticket) error {
	if rt.jsonOut {
		return rt.printJSON(cmd, ticket)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s [%s, %s] %s\n", ticket.ID, ticket.Status, ticket.Priority, ticket.Subject)
	printThread(out, ticket.Messages)
	return nil
}

func printThread(out io.Writer, messages []tickets.Message) {
	for _, group := range tickets.GroupByDay(messages, time.Local) {
		fmt.Fprintf(out, "-- %s --\n", group.Day.Format(time.DateOnly))
		for _, msg := range group.Messages {
			fmt.Fprintf(out, "  %s %s: %s\n", msg.Timestamp.In(time.Local).Format(time.TimeOnly), msg.Author, msg.Text)
		}
	}
}
