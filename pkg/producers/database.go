package producers

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx"
	_ "github.com/lib/pq"              // "postgres"
	_ "modernc.org/sqlite"             // "sqlite"

	"github.com/netbox-metrics/pkg/config"
)

// OpenDatabase 打开 NetBox 数据库连接池。只校验驱动，不建立连接，
// 连通性用 PingDatabase 检查
func OpenDatabase(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	return db, nil
}

// PingDatabase 检查数据库是否可达
func PingDatabase(ctx context.Context, db *sql.DB, cfg *config.DatabaseConfig) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s database: %w", cfg.Driver, err)
	}
	return nil
}
