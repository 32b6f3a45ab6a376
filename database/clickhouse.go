package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseConfig addresses the ClickHouse native endpoint holding events.
type ClickHouseConfig struct {
	Host       string `env:"HOST" envDefault:"localhost"`
	NativePort int    `env:"NATIVE_PORT" envDefault:"9000"`
	Database   string `env:"DB_NAME" envDefault:"default"`
	Username   string `env:"USERNAME" envDefault:"default"`
	Password   string `env:"PASSWORD"`
}

// Addr returns host:port of the native protocol endpoint.
func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.NativePort)
}

// ClickHouseClient holds the native connection to the event warehouse.
type ClickHouseClient struct {
	Conn clickhouse.Conn
}

func NewClickHouseDB(cfg ClickHouseConfig) (*ClickHouseClient, error) {
	if cfg.Host == "" || cfg.NativePort == 0 || cfg.Database == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT, or CLICKHOUSE_DB_NAME is not set")
	}

	options := &clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "mable-funnel", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: time.Second * 5,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse via Native TCP: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	slog.Info("connected to ClickHouse", "addr", cfg.Addr(), "database", cfg.Database)
	return &ClickHouseClient{Conn: conn}, nil
}

func (c *ClickHouseClient) Close() {
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			slog.Error("error closing ClickHouse connection", "error", err)
			return
		}
		slog.Info("ClickHouse connection closed")
	}
}
