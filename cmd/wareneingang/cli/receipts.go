package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/wareneingang/internal/receiving"
)

// receiptFile is the on-disk draft accepted by "receipt submit" and "receipt preview".
type receiptFile struct {
	LieferscheinNr    string     `json:"lieferscheinNr"`
	BestellNr         string     `json:"bestellNr"`
	Lieferdatum       *time.Time `json:"lieferdatum"`
	Lieferant         string     `json:"lieferant"`
	WarehouseLocation string     `json:"warehouseLocation"`
	Status            string     `json:"status"`
	Lines             []struct {
		SKU            string `json:"sku"`
		Name           string `json:"name"`
		Quantity       int    `json:"quantity"`
		IsDamaged      bool   `json:"isDamaged"`
		IssueNotes     string `json:"issueNotes"`
		TargetLocation string `json:"targetLocation"`
	} `json:"lines"`
}

func readReceiptFile(path string) (receiptFile, error) {
	var draft receiptFile
	data, err := os.ReadFile(path)
	if err != nil {
		return draft, err
	}
	if err := json.Unmarshal(data, &draft); err != nil {
		return draft, fmt.Errorf("decode receipt: %w", err)
	}
	return draft, nil
}

func (f receiptFile) cart() []receiving.CartLine {
	lines := make([]receiving.CartLine, 0, len(f.Lines))
	for _, l := range f.Lines {
		lines = append(lines, receiving.CartLine{
			SKU:              l.SKU,
			Name:             l.Name,
			QuantityReceived: l.Quantity,
			IsDamaged:        l.IsDamaged,
			IssueNotes:       l.IssueNotes,
			TargetLocation:   l.TargetLocation,
		})
	}
	return lines
}

func (f receiptFile) submitInput(actor string) (receiving.SubmitInput, error) {
	input := receiving.SubmitInput{
		Header: receiving.HeaderInput{
			LieferscheinNr:    f.LieferscheinNr,
			BestellNr:         f.BestellNr,
			Lieferant:         f.Lieferant,
			WarehouseLocation: f.WarehouseLocation,
			CreatedByName:     actor,
		},
		Lines: f.cart(),
	}
	if f.Lieferdatum != nil {
		input.Header.Lieferdatum = *f.Lieferdatum
	}
	if f.Status != "" {
		status, err := receiving.ParseStatus(f.Status)
		if err != nil {
			return input, err
		}
		input.Status = status
	}
	return input, nil
}

func newReceiptCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "receipt",
		Aliases: []string{"wareneingang"},
		Short:   "Record and book goods receipts",
	}

	var previewFile string
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Reconcile a draft against its purchase order without saving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := readReceiptFile(previewFile)
			if err != nil {
				return err
			}
			rec, err := rt.container.Receiving.Preview(cmd.Context(), receiving.Draft{BestellNr: draft.BestellNr, Lines: draft.cart()})
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, rec)
			}
			printReconciliation(cmd.OutOrStdout(), rec)
			return nil
		},
	}
	preview.Flags().StringVarP(&previewFile, "file", "f", "", "receipt JSON file (required)")
	_ = preview.MarkFlagRequired("file")

	var submitFile string
	submit := &cobra.Command{
		Use:   "submit",
		Short: "Save a receipt and finalize it to the suggested or given status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := readReceiptFile(submitFile)
			if err != nil {
				return err
			}
			input, err := draft.submitInput(rt.actor)
			if err != nil {
				return err
			}
			receipt, rec, err := rt.container.Receiving.SubmitReceipt(cmd.Context(), input)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, map[string]any{"receipt": receipt, "reconciliation": rec})
			}
			printReconciliation(cmd.OutOrStdout(), rec)
			fmt.Fprintf(cmd.OutOrStdout(), "batch %s saved with status %s\n", receipt.Header.BatchID, receipt.Header.Status)
			return nil
		},
	}
	submit.Flags().StringVarP(&submitFile, "file", "f", "", "receipt JSON file (required)")
	_ = submit.MarkFlagRequired("file")

	finalize := &cobra.Command{
		Use:   "finalize BATCH STATUS",
		Short: "Change the status of a batch; Gebucht books it into stock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := receiving.ParseStatus(args[1])
			if err != nil {
				return err
			}
			header, err := rt.container.Receiving.FinalizeReceiptStatus(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, header)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", header.BatchID, header.Status)
			return nil
		},
	}

	review := &cobra.Command{
		Use:   "review BATCH",
		Short: "Recompute the suggested status of a saved batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := rt.container.Receiving.ReviewReceipt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, rec)
			}
			printReconciliation(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show BATCH",
		Short: "Print a batch with its lines and comment trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := rt.container.Receiving.GetReceipt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, receipt)
			}
			out := cmd.OutOrStdout()
			h := receipt.Header
			fmt.Fprintf(out, "%s  Lieferschein %s  %s [%s]\n", h.BatchID, h.LieferscheinNr, h.Status, h.Status.Tone())
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, item := range receipt.Items {
				fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\n", item.SKU, item.Name, item.Quantity, item.TargetLocation)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, c := range receipt.Comments {
				fmt.Fprintf(out, "  %s %s (%s): %s\n", c.Timestamp.Format(time.DateTime), c.Author, c.Type, c.Text)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List receipt batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			headers, err := rt.container.Receiving.ListReceipts(cmd.Context())
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, headers)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BATCH\tLIEFERSCHEIN\tBESTELLUNG\tSTATUS\tPOSITIONEN")
			for _, h := range headers {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", h.BatchID, h.LieferscheinNr, h.BestellNr, h.Status, h.ItemCount)
			}
			return tw.Flush()
		},
	}

	var commentText, commentType string
	comment := &cobra.Command{
		Use:   "comment BATCH",
		Short: "Add a note, call or email record to a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rt.container.Receiving.AddComment(cmd.Context(), args[0], receiving.CommentInput{
				Author: rt.actor,
				Text:   commentText,
				Type:   receiving.CommentType(commentType),
			})
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, c)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comment %s added\n", c.ID)
			return nil
		},
	}
	comment.Flags().StringVar(&commentText, "text", "", "comment text (required)")
	comment.Flags().StringVar(&commentType, "type", "note", "note, call or email")
	_ = comment.MarkFlagRequired("text")

	cmd.AddCommand(preview, submit, finalize, review, show, list, comment)
	return cmd
}

func printReconciliation(out io.Writer, rec receiving.Reconciliation) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tGELIEFERT\tBESTELLT\tFEHLT\tZUVIEL")
	for _, line := range rec.Lines {
		ordered := "-"
		if line.HasOrder {
			ordered = fmt.Sprint(line.Ordered)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\n", line.SKU, line.Received, ordered, line.Shortage, line.Overage)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "suggested status: %s\n", rec.Suggested)
	switch rec.Banner {
	case receiving.BannerPerfect:
		fmt.Fprintln(out, "delivery matches the order")
	case receiving.BannerPartial:
		fmt.Fprintln(out, "partial delivery")
	}
	if rec.OpenTicket {
		fmt.Fprintln(out, "open ticket on this batch")
	}
}
