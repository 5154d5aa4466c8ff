package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkrupp/storefront/internal/domain"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the product catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all products, seeding the catalog on first use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), rootOpts.Config, false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			products, err := a.catalog.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list products: %w", err)
			}

			return writeProducts(cmd.OutOrStdout(), rootOpts.Format, products)
		},
	})

	return cmd
}

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect the order log",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every recorded order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), rootOpts.Config, false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			orders, err := a.orders.All(cmd.Context())
			if err != nil {
				return fmt.Errorf("list orders: %w", err)
			}

			return writeOrders(cmd.OutOrStdout(), rootOpts.Format, orders)
		},
	})

	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	return nil
}

func writeProducts(w io.Writer, format string, products []domain.Product) error {
	if format == "json" {
		return writeJSON(w, products)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tNAME\tBRAND\tPRICE\tSTOCK")

	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Brand, p.Price, p.Stock)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}

func writeOrders(w io.Writer, format string, orders []domain.Order) error {
	if format == "json" {
		return writeJSON(w, orders)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tUSER\tITEMS\tTOTAL\tSTATUS\tCREATED")

	for _, o := range orders {
		user := "guest"
		if o.UserID != nil {
			user = *o.UserID
		}

		created := time.UnixMilli(o.CreatedAt).UTC().Format(time.RFC3339)

		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\t%s\n", o.ID, user, len(o.Items), o.Amounts.Total, o.Status, created)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}
