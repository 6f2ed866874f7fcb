// Package common provides shared configuration, logging and run statistics
// for the ids-finder commands.
package common

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config holds common configuration for all commands.
type Config struct {
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
	LogLevel           string
	MappingFile        string // empty selects the embedded mission table
	MetricsFile        string // node_exporter textfile; empty disables export
}

// DefaultConfig returns configuration from the environment with sensible
// defaults.
func DefaultConfig() *Config {
	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "ids"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            getEnv("IDS_DATA_DIR", "/var/lib/ids-finder"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MappingFile:        getEnv("IDS_MAPPING_FILE", ""),
		MetricsFile:        getEnv("IDS_METRICS_FILE", ""),
	}
}

// ClickHouseAddr returns host:port.
func (c *Config) ClickHouseAddr() string {
	return c.ClickHouseHost + ":" + strconv.Itoa(c.ClickHousePort)
}

// CandidatesDir returns the directory holding per-mission candidate tables.
func (c *Config) CandidatesDir() string {
	return filepath.Join(c.DataDir, "candidates")
}

// StateDir returns the directory holding prepared plasma state tables.
func (c *Config) StateDir() string {
	return filepath.Join(c.DataDir, "state")
}

// CatalogDir returns the directory holding combined and harmonized catalogs.
func (c *Config) CatalogDir() string {
	return filepath.Join(c.DataDir, "catalog")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
