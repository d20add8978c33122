// Command lineage-audit walks version tables and reports lineages that
// violate the store invariants: version gaps, multiple current rows, open
// rows with valid_to set, or temporal overlap between versions.
//
// Read-only; intended for scheduled integrity sweeps against production.
//
//	SOLACE_POSTGRES_DSN=... lineage-audit -table payment_versions -table policy_versions
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"solace/internal/lineage"
	"solace/internal/platform/config"
	"solace/internal/platform/logger"
	id "solace/pkg/domain"
)

// rawPayload lets one store walk any version table without knowing its
// domain type.
type rawPayload map[string]any

func (rawPayload) Kind() string { return "record" }

type tableList []string

func (t *tableList) String() string { return strings.Join(*t, ",") }

func (t *tableList) Set(v string) error {
	*t = append(*t, v)
	return nil
}

func main() {
	var tables tableList
	flag.Var(&tables, "table", "version table to audit (repeatable)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall audit deadline")
	flag.Parse()

	log := logger.New()

	if len(tables) == 0 {
		log.Fatal("at least one -table is required")
	}

	cfg := config.FromEnv()
	if cfg.PostgresDSN == "" {
		log.Fatal("SOLACE_POSTGRES_DSN is required")
	}

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	violations := 0
	for _, table := range tables {
		n, err := auditTable(ctx, db, table, log)
		if err != nil {
			log.Fatalf("audit %s: %v", table, err)
		}
		violations += n
	}

	if violations > 0 {
		log.Printf("audit finished: %d lineage(s) in violation", violations)
		os.Exit(1)
	}
	log.Print("audit finished: all lineages valid")
}

// auditTable validates every lineage in the table and returns the number in
// violation.
func auditTable(ctx context.Context, db *sql.DB, table string, log *log.Logger) (int, error) {
	store := lineage.NewPostgres[rawPayload](db, table)

	keys, err := listLineageKeys(ctx, db, table)
	if err != nil {
		return 0, err
	}
	log.Printf("%s: auditing %d lineage(s)", table, len(keys))

	violations := 0
	for _, k := range keys {
		history, err := store.FindLineage(ctx, k.scope, k.businessKey)
		if err != nil {
			return violations, fmt.Errorf("load lineage %s/%s: %w", k.scope, k.businessKey, err)
		}
		if err := history.Validate(); err != nil {
			violations++
			log.Printf("%s: scope=%s key=%s INVALID: %v", table, k.scope, k.businessKey, err)
		}
	}
	return violations, nil
}

type lineageKey struct {
	scope       id.HomeID
	businessKey uuid.UUID
}

func listLineageKeys(ctx context.Context, db *sql.DB, table string) ([]lineageKey, error) {
	// Table names come from operator flags, not user input.
	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT scope_key, business_key FROM %s ORDER BY scope_key, business_key`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []lineageKey
	for rows.Next() {
		var scope uuid.UUID
		var k lineageKey
		if err := rows.Scan(&scope, &k.businessKey); err != nil {
			return nil, err
		}
		k.scope = id.HomeID(scope)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
