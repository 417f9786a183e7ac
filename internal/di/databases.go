package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/papertrader/internal/config"
	"github.com/aristath/papertrader/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens and migrates the journal and backtests databases
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// journal.db - append-only fills from the live engine
	journalDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "journal.db"),
		Profile: database.ProfileLedger,
		Name:    "journal",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal database: %w", err)
	}
	container.JournalDB = journalDB

	// backtests.db - archived runs, rewritable
	backtestsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "backtests.db"),
		Profile: database.ProfileStandard,
		Name:    "backtests",
	})
	if err != nil {
		journalDB.Close()
		return nil, fmt.Errorf("failed to initialize backtests database: %w", err)
	}
	container.BacktestsDB = backtestsDB

	for _, db := range []*database.DB{journalDB, backtestsDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
