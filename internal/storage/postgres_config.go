package storage

import "time"

// PostgresConfig enumerates the tunables for the Postgres-backed repository.
type PostgresConfig struct {
	DSN               string
	MaxConnections    int32
	MinConnections    int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	ApplicationName   string
}
