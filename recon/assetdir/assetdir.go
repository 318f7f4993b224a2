// Package assetdir resolves host identity attributes against a CMDB mirror
// kept in Postgres. The mirror is read-mostly: an external sync job keeps the
// asset table current, and the reconciler only queries it.
package assetdir

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MatchMode selects how FindByName compares the candidate name.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchPrefix
)

// Directory is the asset-inventory lookup the matcher and reconciler consume.
// Absent results are reported via the bool, not an error.
type Directory interface {
	FindByIP(ctx context.Context, ip string) (string, bool, error)
	FindByName(ctx context.Context, name string, mode MatchMode) (string, bool, error)
	ResolveDisplayName(ctx context.Context, assetID string) (string, bool, error)
}

// Asset is one CMDB configuration item in the mirror table.
type Asset struct {
	gorm.Model
	SysID       string `gorm:"uniqueIndex"`
	Name        string `gorm:"index"`
	IP          string `gorm:"index"`
	FQDN        string
	Class       string
	OS          string
	Environment string
}

// CMDB is the Postgres-backed Directory implementation.
type CMDB struct {
	db *gorm.DB
}

// Connect opens the CMDB mirror database and ensures the asset table exists.
func Connect(dsn string) (*CMDB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to CMDB mirror: %w", err)
	}
	if err := db.AutoMigrate(&Asset{}); err != nil {
		return nil, fmt.Errorf("migrate asset table: %w", err)
	}
	return &CMDB{db: db}, nil
}

// NewCMDB wraps an existing gorm handle. Used by tests and by callers that
// manage the connection themselves.
func NewCMDB(db *gorm.DB) *CMDB {
	return &CMDB{db: db}
}

// Close releases the underlying connection pool.
func (c *CMDB) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("unwrap CMDB connection: %w", err)
	}
	return sqlDB.Close()
}

// FindByIP returns the sys_id of the first asset with the given IP address.
func (c *CMDB) FindByIP(ctx context.Context, ip string) (string, bool, error) {
	var asset Asset
	err := c.db.WithContext(ctx).Where("ip = ?", ip).Limit(1).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("asset lookup by ip %s: %w", ip, err)
	}
	return asset.SysID, true, nil
}

// FindByName returns the sys_id of the first asset whose name matches the
// candidate, case-insensitively, either exactly or as a prefix. The query is
// limited to one row; when several assets share a prefix the first row the
// database returns is taken as authoritative.
func (c *CMDB) FindByName(ctx context.Context, name string, mode MatchMode) (string, bool, error) {
	if name == "" {
		return "", false, nil
	}

	q := c.db.WithContext(ctx)
	switch mode {
	case MatchPrefix:
		q = q.Where("UPPER(name) LIKE ?", strings.ToUpper(name)+"%")
	default:
		q = q.Where("UPPER(name) = ?", strings.ToUpper(name))
	}

	var asset Asset
	err := q.Limit(1).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("asset lookup by name %s: %w", name, err)
	}
	return asset.SysID, true, nil
}

// ResolveDisplayName maps an asset sys_id back to its CMDB name.
func (c *CMDB) ResolveDisplayName(ctx context.Context, assetID string) (string, bool, error) {
	var asset Asset
	err := c.db.WithContext(ctx).Where("sys_id = ?", assetID).Limit(1).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("display name for asset %s: %w", assetID, err)
	}
	return asset.Name, true, nil
}
