package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Capabilities lists the optional columns the connected schema has. Older
// deployments that never ran the later migrations lack some of them, and
// repositories leave those columns out of their queries.
type Capabilities struct {
	CustomerDNI     bool
	ItemUnit        bool
	ProductUnit     bool
	SourceOrderLink bool
	StockLink       bool
}

// FullCapabilities is what the embedded migrations produce.
func FullCapabilities() Capabilities {
	return Capabilities{
		CustomerDNI:     true,
		ItemUnit:        true,
		ProductUnit:     true,
		SourceOrderLink: true,
		StockLink:       true,
	}
}

var requiredTables = []string{
	"products", "stock_items", "stock_movements",
	"invoices", "invoice_items", "orders", "order_items",
}

// ProbeCapabilities inspects information_schema once.
func ProbeCapabilities(ctx context.Context, q DBTX) (Capabilities, error) {
	rows, err := q.Query(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema()
	`)
	if err != nil {
		return Capabilities{}, fmt.Errorf("db: failed to read schema columns: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return Capabilities{}, fmt.Errorf("db: failed to scan schema column: %w", err)
		}
		if columns[table] == nil {
			columns[table] = make(map[string]bool)
		}
		columns[table][column] = true
	}
	if err := rows.Err(); err != nil {
		return Capabilities{}, fmt.Errorf("db: failed to read schema columns: %w", err)
	}

	for _, table := range requiredTables {
		if columns[table] == nil {
			return Capabilities{}, fmt.Errorf("db: required table %q is missing", table)
		}
	}

	caps := Capabilities{
		CustomerDNI:     columns["invoices"]["customer_dni"] && columns["orders"]["customer_dni"],
		ItemUnit:        columns["invoice_items"]["unit"] && columns["order_items"]["unit"],
		ProductUnit:     columns["products"]["unit"],
		SourceOrderLink: columns["invoices"]["source_order_id"],
		StockLink: columns["products"]["stock_item_id"] &&
			columns["invoice_items"]["stock_item_id"] &&
			columns["order_items"]["stock_item_id"],
	}

	log.Info().
		Bool("customer_dni", caps.CustomerDNI).
		Bool("item_unit", caps.ItemUnit).
		Bool("product_unit", caps.ProductUnit).
		Bool("source_order_link", caps.SourceOrderLink).
		Bool("stock_link", caps.StockLink).
		Msg("db: schema capabilities probed")

	return caps, nil
}
