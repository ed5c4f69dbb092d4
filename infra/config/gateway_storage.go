package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// GatewayStorage handles persistent storage of per-gateway credential bags.
// Settings are read fresh on every dispatch; nothing is cached here.
type GatewayStorage struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewGatewayStorage opens (or creates) the SQLite settings database.
func NewGatewayStorage(dbPath string) (*GatewayStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	storage := &GatewayStorage{
		db:   db,
		path: dbPath,
	}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates the necessary tables
func (s *GatewayStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS gateway_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		gateway TEXT NOT NULL UNIQUE,
		config_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_gateway ON gateway_configs(gateway);
	`

	_, err := s.db.Exec(query)
	return err
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *GatewayStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// SaveGatewaySettings inserts or replaces the credential bag for a gateway.
func (s *GatewayStorage) SaveGatewaySettings(ctx context.Context, gateway string, settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO gateway_configs (gateway, config_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(gateway)
		DO UPDATE SET
			config_data = excluded.config_data,
			updated_at = CURRENT_TIMESTAMP
		`

		if _, err := s.db.ExecContext(ctx, query, gateway, string(configJSON)); err != nil {
			return fmt.Errorf("failed to save gateway settings: %w", err)
		}
		return nil
	}, 3)
}

// GetGatewaySettings loads the credential bag for a gateway.
func (s *GatewayStorage) GetGatewaySettings(ctx context.Context, gateway string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings map[string]string
	err := s.retryOperation(func() error {
		var configJSON string
		err := s.db.QueryRowContext(ctx,
			`SELECT config_data FROM gateway_configs WHERE gateway = ?`, gateway,
		).Scan(&configJSON)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("no settings found for gateway: %s", gateway)
			}
			return fmt.Errorf("failed to load gateway settings: %w", err)
		}

		if err := json.Unmarshal([]byte(configJSON), &settings); err != nil {
			return fmt.Errorf("failed to unmarshal settings: %w", err)
		}
		return nil
	}, 3)

	return settings, err
}

// ListGateways returns the identifiers of every configured gateway.
func (s *GatewayStorage) ListGateways(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT gateway FROM gateway_configs ORDER BY gateway`)
	if err != nil {
		return nil, fmt.Errorf("failed to query gateways: %w", err)
	}
	defer rows.Close()

	var gateways []string
	for rows.Next() {
		var gateway string
		if err := rows.Scan(&gateway); err != nil {
			return nil, fmt.Errorf("failed to scan gateway: %w", err)
		}
		gateways = append(gateways, gateway)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating gateway rows: %w", err)
	}

	return gateways, nil
}

// DeleteGatewaySettings removes the credential bag for a gateway.
func (s *GatewayStorage) DeleteGatewaySettings(ctx context.Context, gateway string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM gateway_configs WHERE gateway = ?`, gateway)
		if err != nil {
			return fmt.Errorf("failed to delete gateway settings: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("no settings found for gateway: %s", gateway)
		}
		return nil
	}, 3)
}

// Close closes the database connection
func (s *GatewayStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SeedFromEnv fills settings for any gateway that is still unconfigured,
// reading <PREFIX>_<KEY> environment variables. Existing rows win so a
// dashboard edit is never clobbered by a restart.
func (s *GatewayStorage) SeedFromEnv(ctx context.Context, envKeys map[string][]string) error {
	for gateway, keys := range envKeys {
		if _, err := s.GetGatewaySettings(ctx, gateway); err == nil {
			continue
		}

		prefix := strings.ToUpper(strings.NewReplacer("-", "_").Replace(gateway))
		settings := map[string]string{}
		for _, key := range keys {
			envKey := prefix + "_" + strings.ToUpper(key)
			if value := os.Getenv(envKey); value != "" {
				settings[key] = value
			}
		}

		if len(settings) == 0 {
			continue
		}

		if err := s.SaveGatewaySettings(ctx, gateway, settings); err != nil {
			return fmt.Errorf("failed to seed %s settings: %w", gateway, err)
		}
		log.Printf("Seeded %s gateway settings from environment", gateway)
	}

	return nil
}
