package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/w3bsuki/driplo-final/internal/bootstrap"
	"github.com/w3bsuki/driplo-final/pkg/db"
	"github.com/w3bsuki/driplo-final/pkg/migrate"
)

const usage = `usage: migrate <command> [args]

commands:
  up               apply all pending migrations
  down             roll back the latest migration
  to <version>     move the schema to version (YYYYMMDDHHMMSS)
  status           list migrations and whether they are applied
  create <name>    write an empty migration into -dir
  validate         check file names and goose markers in -dir
`

func main() {
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory for create and validate")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	switch command {
	case "create":
		if len(args) != 1 {
			fail("create needs exactly one name argument")
		}
		path, err := migrate.Create(*dir, args[0], time.Now())
		if err != nil {
			fail(err.Error())
		}
		fmt.Println(path)
		return
	case "validate":
		if err := migrate.Validate(os.DirFS(*dir)); err != nil {
			fail(err.Error())
		}
		fmt.Println("ok")
		return
	}

	cfg, logg, err := bootstrap.Load("migrate")
	if err != nil {
		fail(err.Error())
	}
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "command": command})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		bootstrap.Exit(logg, "migrate.db_unavailable", err)
	}
	defer bootstrap.Closer(logg, "database", dbClient.Close)()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "migrate.db_unavailable", err)
		os.Exit(1)
	}
	migrator, err := migrate.New(sqlDB, nil)
	if err != nil {
		logg.Error(ctx, "migrate.init_failed", err)
		os.Exit(1)
	}

	if err := run(ctx, migrator, command, args, os.Stdout); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, m *migrate.Migrator, command string, args []string, out io.Writer) error {
	var (
		applied []migrate.AppliedStep
		err     error
	)
	switch command {
	case "up":
		applied, err = m.Up(ctx)
	case "down":
		applied, err = m.Down(ctx)
	case "to":
		if len(args) != 1 {
			return fmt.Errorf("to needs exactly one version argument")
		}
		applied, err = m.To(ctx, args[0])
	case "status":
		rows, err := m.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tAPPLIED\tFILE")
		for _, row := range rows {
			fmt.Fprintf(tw, "%d\t%t\t%s\n", row.Version, row.Applied, row.File)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	for _, step := range applied {
		fmt.Fprintf(out, "%-4s %d %s (%dms)\n", step.Direction, step.Version, step.File, step.Millis)
	}
	if len(applied) == 0 && err == nil {
		fmt.Fprintln(out, "nothing to do")
	}
	return err
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "migrate:", msg)
	os.Exit(1)
}
