package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/wareneingang/internal/procurement"
)

func newOrdersCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Manage purchase orders",
	}

	var linkable bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List purchase orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := rt.container.Procurement
			var (
				orders []procurement.PurchaseOrder
				err    error
			)
			if linkable {
				orders, err = svc.ListLinkable(cmd.Context())
			} else {
				orders, err = svc.ListOrders(cmd.Context())
			}
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, orders)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLIEFERANT\tSTATUS\tPOSITIONEN")
			for _, order := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", order.ID, order.Supplier, order.Status, len(order.Items))
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&linkable, "linkable", false, "only orders a receipt can still link to")

	var file string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a purchase order from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var input procurement.CreateOrderInput
			if err := json.Unmarshal(data, &input); err != nil {
				return fmt.Errorf("decode order: %w", err)
			}
			order, err := rt.container.Procurement.CreateOrder(cmd.Context(), input)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, order)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", order.ID, order.Status)
			return nil
		},
	}
	create.Flags().StringVarP(&file, "file", "f", "", "order JSON file (required)")
	_ = create.MarkFlagRequired("file")

	status := &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Set the order status manually",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := rt.container.Procurement.UpdateStatus(cmd.Context(), args[0], procurement.POStatus(args[1]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", order.ID, order.Status)
			return nil
		},
	}

	cmd.AddCommand(list, create, status)
	return cmd
}
