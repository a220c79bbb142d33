package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/scott-cotton/cli"

	"gorm.io/microorm/schema"
	"gorm.io/microorm/utils"
)

type column struct {
	Name      string `yaml:"name"`
	Database  string `yaml:"database,omitempty"`
	Go        string `yaml:"go,omitempty"`
	Primary   bool   `yaml:"primary,omitempty"`
	Identity  bool   `yaml:"identity,omitempty"`
	Nullable  bool   `yaml:"nullable,omitempty"`
	Size      int    `yaml:"size,omitempty"`
	Precision int    `yaml:"precision,omitempty"`
	Scale     int    `yaml:"scale,omitempty"`
}

func columns(fields schema.DbFields) []column {
	out := make([]column, 0, len(fields))
	for _, f := range fields {
		c := column{
			Name:      f.Name,
			Database:  f.DatabaseType,
			Primary:   f.IsPrimary,
			Identity:  f.IsIdentity,
			Nullable:  f.IsNullable,
			Size:      f.Size,
			Precision: f.Precision,
			Scale:     f.Scale,
		}
		if f.Type != nil {
			c.Go = utils.TypeName(f.Type)
		}
		out = append(out, c)
	}
	return out
}

// writeFields writes tables as a yaml mapping in the order given
func writeFields(w io.Writer, tables []string, fields []schema.DbFields) error {
	doc := make(yaml.MapSlice, 0, len(tables))
	for i, table := range tables {
		doc = append(doc, yaml.MapItem{Key: table, Value: columns(fields[i])})
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func fields(cfg *FieldsConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Fields.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: fields requires at least one table", cli.ErrUsage)
	}
	db, err := cfg.open()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	all := make([]schema.DbFields, 0, len(args))
	for _, table := range args {
		if cfg.Refresh {
			if err := db.ForgetFields(ctx, table); err != nil {
				return err
			}
		}
		f, err := db.Fields(ctx, table)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", table, err)
		}
		all = append(all, f)
	}
	return writeFields(cc.Out, args, all)
}
