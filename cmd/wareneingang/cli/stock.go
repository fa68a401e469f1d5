package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/wareneingang/internal/catalog"
)

func newStockCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect and maintain the stock table",
	}

	var lowOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stock items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := rt.container.Catalog
			var (
				items []catalog.StockItem
				err   error
			)
			if lowOnly {
				items, err = svc.BelowMinimum(cmd.Context())
			} else {
				items, err = svc.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SKU\tNAME\tBESTAND\tMIN\tLAGERORT\tSTATUS")
			for _, item := range items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", item.SKU, item.Name, item.StockLevel, item.MinStock, item.WarehouseLocation, item.Status)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&lowOnly, "low", false, "only items at or below their minimum stock")

	var importFile string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the stock table from a JSON array or an .xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(importFile)
			if err != nil {
				return err
			}
			var result catalog.ImportResult
			if isWorkbook(importFile) {
				result, err = rt.container.Catalog.ImportWorkbook(cmd.Context(), bytes.NewReader(data))
			} else {
				result, err = rt.container.Catalog.Import(cmd.Context(), data)
			}
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d items, skipped %d rows\n", result.Imported, result.Skipped)
			return nil
		},
	}
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "input file (required)")
	_ = importCmd.MarkFlagRequired("file")

	var exportFile string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stock table as JSON or, for .xlsx targets, as a workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			write := func(out io.Writer) error {
				return writeStock(cmd, rt, out, isWorkbook(exportFile))
			}
			if exportFile == "" || exportFile == "-" {
				return write(cmd.OutOrStdout())
			}
			return writeFile(exportFile, createFile, write)
		},
	}
	exportCmd.Flags().StringVarP(&exportFile, "out", "o", "-", "output file, - for stdout")

	adjust := &cobra.Command{
		Use:   "adjust SKU LEVEL",
		Short: "Set the stock level after a manual count",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("level %q: %w", args[1], err)
			}
			item, err := rt.container.Catalog.AdjustLevel(cmd.Context(), args[0], level)
			if err != nil {
				return err
			}
			if rt.jsonOut {
				return rt.printJSON(cmd, item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", item.SKU, item.StockLevel)
			return nil
		},
	}

	cmd.AddCommand(list, importCmd, exportCmd, adjust)
	return cmd
}

func writeStock(cmd *cobra.Command, rt *runtime, out io.Writer, workbook bool) error {
	if workbook {
		return rt.container.Catalog.ExportWorkbook(cmd.Context(), out)
	}
	data, err := rt.container.Catalog.Export(cmd.Context())
	if err != nil {
		return err
	}
	_, err = out.Write(append(data, '\n'))
	return err
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// writeFile runs write against the file opened by create and reports a failed Close.
func writeFile(path string, create func(string) (io.WriteCloser, error), write func(io.Writer) error) (err error) {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return write(f)
}

func isWorkbook(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}
