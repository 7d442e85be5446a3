// Command replay rebuilds a game from a persisted action log, prints its
// checksum and balances, and can copy the log into Postgres.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/magefree/deckledger/internal/actionlog"
	"github.com/magefree/deckledger/internal/config"
	"github.com/magefree/deckledger/internal/game"
	"github.com/magefree/deckledger/internal/game/cards"
	"github.com/magefree/deckledger/internal/persistence"
	"github.com/magefree/deckledger/internal/repository"
)

func main() {
	var (
		filePath    = flag.String("file", "", "JSONL action log (.zst is decompressed)")
		sqlitePath  = flag.String("sqlite", "", "SQLite action log database")
		configPath  = flag.String("config", "", "server config whose game section the log was recorded under")
		catalogPath = flag.String("catalog", "", "YAML card catalog (overrides game.catalog_path)")
		baseline    = flag.Int64("baseline-health", 0, "health granted on entering an encounter (overrides game.baseline_health)")
		importLog   = flag.Bool("import", false, "copy the log into Postgres after a successful replay")
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL for -import")
		batchSize   = flag.Int("batch", 1000, "rows per Postgres import batch")
		verbose     = flag.Bool("v", false, "log replay progress")
	)
	flag.Parse()

	ctx := context.Background()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		logger = l
		defer logger.Sync()
	}

	entries, source, err := loadEntries(ctx, *filePath, *sqlitePath, logger)
	if err != nil {
		log.Fatalf("Failed to load action log: %v", err)
	}
	fmt.Println("=== Action Log Replay ===")
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("Entries: %d\n", len(entries))

	opts, err := gameOptions(*configPath, *catalogPath, *baseline, logger)
	if err != nil {
		log.Fatalf("Failed to prepare game options: %v", err)
	}
	fmt.Printf("Baseline health: %d\n", opts.BaselineHealth)

	start := time.Now()
	g, err := game.Replay(opts, entries)
	if err != nil {
		log.Fatalf("Replay failed: %v", err)
	}
	if err := printSummary(os.Stdout, g); err != nil {
		log.Fatalf("Failed to summarize game: %v", err)
	}
	fmt.Printf("Time taken: %s\n", time.Since(start))

	if !*importLog {
		return
	}
	if *databaseURL == "" {
		log.Fatal("-import needs -database or DATABASE_URL")
	}

	fmt.Println("\nConnecting to database...")
	pool, err := repository.NewDB(ctx, config.DatabaseConfig{URL: *databaseURL, MaxConns: 4}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	fmt.Println("✓ Database connection established")

	store, err := repository.NewPostgresStore(ctx, pool, logger)
	if err != nil {
		log.Fatalf("Failed to prepare action_log table: %v", err)
	}

	start = time.Now()
	imported, err := store.Import(ctx, entries, *batchSize)
	if err != nil {
		log.Fatalf("Import failed after %d entries: %v", imported, err)
	}
	fmt.Println("\n=== Import Complete ===")
	fmt.Printf("✓ Imported: %d entries\n", imported)
	if skipped := len(entries) - imported; skipped > 0 {
		fmt.Printf("Already present: %d entries\n", skipped)
	}
	fmt.Printf("Time taken: %s\n", time.Since(start))
}

// gameOptions rebuilds the options the log was recorded under. Neither the
// catalog nor the baseline health is in the log, so both must match the
// server's for the replay to agree with it. Explicit flags win over the
// config file.
func gameOptions(configPath, catalogPath string, baselineHealth int64, logger *zap.Logger) (game.Options, error) {
	if baselineHealth < 0 {
		return game.Options{}, fmt.Errorf("baseline health must be positive, got %d", baselineHealth)
	}
	opts := game.Options{Logger: logger, BaselineHealth: game.DefaultBaselineHealth}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return game.Options{}, fmt.Errorf("failed to open config: %w", err)
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return game.Options{}, err
		}
		opts.BaselineHealth = cfg.Game.BaselineHealth
		if catalogPath == "" {
			catalogPath = cfg.Game.CatalogPath
		}
	}
	if baselineHealth > 0 {
		opts.BaselineHealth = baselineHealth
	}

	if catalogPath != "" {
		catalog, err := cards.LoadCatalog(catalogPath)
		if err != nil {
			return game.Options{}, fmt.Errorf("failed to load catalog: %w", err)
		}
		opts.Catalog = catalog
	}
	return opts, nil
}

func loadEntries(ctx context.Context, filePath, sqlitePath string, logger *zap.Logger) ([]actionlog.Entry, string, error) {
	switch {
	case filePath != "" && sqlitePath != "":
		return nil, "", fmt.Errorf("use only one of -file and -sqlite")
	case filePath != "":
		entries, err := persistence.ReadFile(filePath)
		return entries, filePath, err
	case sqlitePath != "":
		store, err := repository.OpenSQLite(sqlitePath, logger)
		if err != nil {
			return nil, "", err
		}
		defer store.Close()
		entries, err := store.LoadAll(ctx)
		return entries, sqlitePath, err
	default:
		entries, err := actionlog.ReadEntries(os.Stdin)
		return entries, "stdin", err
	}
}

func printSummary(w io.Writer, g *game.Game) error {
	checksum, err := g.Checksum()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Seed: %d\n", g.Seed())
	fmt.Fprintf(w, "Phase: %s\n", g.Phase())
	if last := g.LastCombat(); last != nil {
		fmt.Fprintf(w, "Last combat: encounter %d, %s in round %d\n", last.EncounterCardID, last.Outcome, last.Round)
	}
	fmt.Fprintln(w, "Balances:")
	for _, a := range g.Balances() {
		fmt.Fprintf(w, "  %-40s %d\n", a.Token, a.Amount)
	}
	fmt.Fprintf(w, "Checksum: %s\n", checksum)
	return nil
}
