package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "microorm").
		WithSynopsis("microorm [opts] command [opts]").
		WithDescription("microorm reads table descriptors and renders the statements mapped entities run.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return microormMain(cfg, cc, args)
		}).
		WithSubs(
			FieldsCommand(cfg),
			SQLCommand(cfg))
}

func microormMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func FieldsCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &FieldsConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Fields, "fields").
		WithAliases("f").
		WithSynopsis("fields [-refresh] <table> [tables]").
		WithDescription("print the column descriptors of tables as yaml").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return fields(cfg, cc, args)
		})
}

func SQLCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &SQLConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.SQL, "sql").
		WithAliases("s").
		WithSynopsis("sql [-op insert|update|merge|query|delete|count] [-q col,col] [-batch n] <table>").
		WithDescription("print the statements generated for a table").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return statements(cfg, cc, args)
		})
}
