package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/scott-cotton/cli"

	"gorm.io/microorm/builder"
	"gorm.io/microorm/schema"
)

var operations = []string{"insert", "update", "merge", "query", "delete", "count"}

// plan what to render for a table
type plan struct {
	table      string
	fields     schema.DbFields
	qualifiers []string
	batch      int
}

func (p *plan) identity() string {
	if f := p.fields.Identity(); f != nil {
		return f.Name
	}
	return ""
}

// where the equalities on the qualifiers, rendered with parameter markers
func (p *plan) where() []builder.QueryField {
	where := make([]builder.QueryField, 0, len(p.qualifiers))
	for _, q := range p.qualifiers {
		where = append(where, builder.Eq(q, q))
	}
	return where
}

func (p *plan) render(b builder.StatementBuilder, op string) (string, error) {
	names := p.fields.Names()
	identity := p.identity()
	insert := builder.Exclude(names, identity)

	switch op {
	case "insert":
		if p.batch > 1 {
			return b.InsertAll(p.table, insert, p.batch, identity)
		}
		return b.Insert(p.table, insert, identity)
	case "update":
		set := builder.Exclude(builder.Exclude(names, p.qualifiers...), identity)
		return b.Update(p.table, set, p.qualifiers)
	case "merge":
		merge := insert
		for _, q := range p.qualifiers {
			if strings.EqualFold(q, identity) {
				merge = names
			}
		}
		return b.Merge(p.table, merge, p.qualifiers, identity)
	case "query":
		return b.Query(p.table, names, p.where(), nil, 0)
	case "delete":
		return b.Delete(p.table, p.where())
	case "count":
		return b.Count(p.table, nil)
	}
	return "", fmt.Errorf("%w: unknown operation %q", cli.ErrUsage, op)
}

// write renders ops, every operation when empty. Operations the dialect can
// not render are written as comments.
func (p *plan) write(w io.Writer, b builder.StatementBuilder, ops []string) error {
	if len(ops) == 0 {
		ops = operations
	}
	for _, op := range ops {
		text, err := p.render(b, op)
		switch {
		case err == nil:
			fmt.Fprintf(w, "-- %s\n%s;\n", op, text)
		case len(ops) > 1:
			fmt.Fprintf(w, "-- %s: %v\n", op, err)
		default:
			return err
		}
	}
	return nil
}

func statements(cfg *SQLConfig, cc *cli.Context, args []string) error {
	args, err := cfg.SQL.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: sql requires one table", cli.ErrUsage)
	}
	db, err := cfg.open()
	if err != nil {
		return err
	}
	defer db.Close()

	table := args[0]
	fields, err := db.Fields(context.Background(), table)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", table, err)
	}
	p := &plan{table: table, fields: fields, batch: cfg.Batch}
	if cfg.Qualifiers != "" {
		for _, q := range strings.Split(cfg.Qualifiers, ",") {
			if f := fields.Get(q); f != nil {
				p.qualifiers = append(p.qualifiers, f.Name)
				continue
			}
			return fmt.Errorf("%w: %s is not a column of %s", cli.ErrUsage, q, table)
		}
	} else {
		for _, f := range fields {
			if f.IsPrimary {
				p.qualifiers = append(p.qualifiers, f.Name)
			}
		}
	}

	var ops []string
	if cfg.Op != "" {
		ops = []string{strings.ToLower(cfg.Op)}
	}
	return p.write(cc.Out, db.Builder(), ops)
}
