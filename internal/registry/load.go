package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ppiankov/credtrust/internal/model"
)

// Load reads the registry from Postgres when a DSN is configured,
// otherwise from the CSV path. With neither it returns nil and no error.
func Load(ctx context.Context, cfg model.RegistryConfig) (*model.Registry, error) {
	switch {
	case cfg.PostgresDSN != "":
		return LoadPostgres(ctx, cfg.PostgresDSN, cfg.PostgresTable)
	case cfg.CSVPath != "":
		return LoadCSV(cfg.CSVPath)
	default:
		return nil, nil
	}
}

// LoadCSV reads a registry snapshot from a CSV file with a header row
func LoadCSV(path string) (*model.Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	defer func() { _ = f.Close() }()

	reg, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	reg.Source = path
	return reg, nil
}

// ReadCSV parses CSV registry data. Short rows are padded with empty cells.
func ReadCSV(r io.Reader) (*model.Registry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty registry")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	reg := &model.Registry{Columns: columns}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(reg.Records)+1, err)
		}
		reg.Records = append(reg.Records, newRecord(len(reg.Records), columns, row))
	}
	return reg, nil
}

// LoadPostgres reads every row of table into a registry snapshot
func LoadPostgres(ctx context.Context, dsn, table string) (*model.Registry, error) {
	if table == "" {
		return nil, fmt.Errorf("registry table not configured")
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect registry database: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	ident := pgx.Identifier(strings.Split(table, "."))
	rows, err := conn.Query(ctx, "SELECT * FROM "+ident.Sanitize())
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	reg := &model.Registry{Source: "postgres:" + table, Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		reg.Records = append(reg.Records, newRecord(len(reg.Records), columns, cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry rows: %w", err)
	}
	return reg, nil
}

func newRecord(index int, columns, values []string) model.RegistryRecord {
	rec := model.RegistryRecord{Index: index, Cells: make([]model.Cell, len(columns))}
	for i, col := range columns {
		val := ""
		if i < len(values) {
			val = strings.TrimSpace(values[i])
		}
		rec.Cells[i] = model.Cell{Column: col, Value: val}
	}
	return rec
}
