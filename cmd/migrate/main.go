package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"carehome.org/internal/db"
)

func main() {
	log.SetFlags(0)
	var (
		dsn = flag.String("dsn", os.Getenv("CAREHOME_PG_DSN"), "PostgreSQL DSN")
		dir = flag.String("migrations", "", "Path to SQL migrations (default: embedded schema)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or CAREHOME_PG_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: migrate [up|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	var m *db.Migrator
	if *dir != "" {
		m = db.NewMigratorFS(conn, os.DirFS(*dir), ".")
	} else {
		m = db.NewMigrator(conn)
	}

	switch flag.Arg(0) {
	case "up":
		err = m.Up(ctx)
	case "status":
		var history []string
		history, err = m.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s: %v", flag.Arg(0), err)
	}
}
