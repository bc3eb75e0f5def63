package store

import (
	"context"
	"fmt"
)

// Column describes one column of the restaurant table.
type Column struct {
	Name             string
	DataType         string
	CharMaxLength    *int32
	NumericPrecision *int32
	NumericScale     *int32
	Nullable         bool
	Default          *string
}

// TypeString renders the data type with its length or precision.
func (c Column) TypeString() string {
	switch {
	case c.CharMaxLength != nil:
		return fmt.Sprintf("%s(%d)", c.DataType, *c.CharMaxLength)
	case c.NumericPrecision != nil && c.NumericScale != nil && *c.NumericScale != 0:
		return fmt.Sprintf("%s(%d,%d)", c.DataType, *c.NumericPrecision, *c.NumericScale)
	case c.NumericPrecision != nil:
		return fmt.Sprintf("%s(%d)", c.DataType, *c.NumericPrecision)
	default:
		return c.DataType
	}
}

// DefaultString returns the column default, "-" when none, shortened to width.
func (c Column) DefaultString(width int) string {
	if c.Default == nil || *c.Default == "" {
		return "-"
	}
	d := *c.Default
	if width > 3 && len(d) > width {
		return d[:width-3] + "..."
	}
	return d
}

// TableInfo is the inspected layout of the restaurant table.
type TableInfo struct {
	Schema  string
	Table   string
	Columns []Column
}

// Verify checks that the restaurant table exists and returns its columns in
// ordinal order. It returns ErrTableMissing when the table is absent.
func (p *Postgres) Verify(ctx context.Context) (*TableInfo, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, p.schema, TableName).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check table: %w", err)
	}
	if !exists {
		return nil, ErrTableMissing
	}

	rows, err := p.pool.Query(ctx, `
		SELECT column_name::text,
		       data_type::text,
		       character_maximum_length::int4,
		       numeric_precision::int4,
		       numeric_scale::int4,
		       is_nullable::text = 'YES',
		       column_default::text
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, p.schema, TableName)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	info := &TableInfo{Schema: p.schema, Table: TableName}
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.CharMaxLength, &c.NumericPrecision, &c.NumericScale, &c.Nullable, &c.Default); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	return info, nil
}
