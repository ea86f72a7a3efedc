package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"licensegate/internal/license"
)

// licenseModel maps the licenses table for bun queries.
type licenseModel struct {
	bun.BaseModel `bun:"table:licenses"`

	Key         string         `bun:"key,pk"`
	ProductName string         `bun:"product_name"`
	OwnerName   sql.NullString `bun:"owner_name"`
	Domain      sql.NullString `bun:"domain"`
	Status      string         `bun:"status"`
	ActivatedAt sql.NullTime   `bun:"activated_at"`
	ExpiresAt   sql.NullTime   `bun:"expires_at"`
	CreatedAt   time.Time      `bun:"created_at"`
	UpdatedAt   time.Time      `bun:"updated_at"`
}

const createLicensesTable = `
CREATE TABLE IF NOT EXISTS licenses (
    key          TEXT PRIMARY KEY,
    product_name TEXT NOT NULL,
    owner_name   TEXT,
    domain       TEXT UNIQUE,
    status       TEXT NOT NULL DEFAULT 'unused',
    activated_at TIMESTAMP,
    expires_at   TIMESTAMP,
    created_at   TIMESTAMP NOT NULL,
    updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_licenses_domain ON licenses(domain);
`

// BunStore is the SQLite implementation of Store.
type BunStore struct {
	db  *sql.DB
	bun *bun.DB
}

// NewBunStore opens the SQLite database at dsn and ensures the schema exists.
func NewBunStore(dsn string) (*BunStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// surfacing to callers under concurrent binds.
	sqlDB.SetMaxOpenConns(1)

	bdb := bun.NewDB(sqlDB, sqlitedialect.New())
	s := &BunStore{db: sqlDB, bun: bdb}
	if err := s.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func (s *BunStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createLicensesTable); err != nil {
		return fmt.Errorf("create licenses schema: %w", err)
	}
	return nil
}

// GetByKey loads a license by its key.
func (s *BunStore) GetByKey(ctx context.Context, key string) (*license.License, error) {
	var m licenseModel
	err := s.bun.NewSelect().Model(&m).Where("key = ?", key).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, license.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select license by key: %w", err)
	}
	lic := modelToLicense(m)
	return &lic, nil
}

// GetByDomain loads the license bound to a normalized domain, if any.
func (s *BunStore) GetByDomain(ctx context.Context, domain string) (*license.License, error) {
	var m licenseModel
	err := s.bun.NewSelect().Model(&m).Where("domain = ?", domain).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, license.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select license by domain: %w", err)
	}
	lic := modelToLicense(m)
	return &lic, nil
}

// BindDomain performs the one-time domain binding as a single conditional
// UPDATE. The WHERE clause is the compare half of the compare-and-swap: the
// row must still be bindable when the write lands, so two concurrent
// activations of the same unbound key cannot both claim different domains.
// activated_at is COALESCEd so an idempotent re-bind never overwrites it.
func (s *BunStore) BindDomain(ctx context.Context, key, domain string, now time.Time) (bool, error) {
	res, err := s.bun.NewUpdate().
		Model((*licenseModel)(nil)).
		Set("domain = ?", domain).
		Set("status = ?", string(license.StatusActive)).
		Set("activated_at = COALESCE(activated_at, ?)", now).
		Set("updated_at = ?", now).
		Where("key = ?", key).
		Where("status IN (?, ?)", string(license.StatusUnused), string(license.StatusActive)).
		Where("(domain IS NULL OR domain = ?)", domain).
		Where("(expires_at IS NULL OR expires_at > ?)", now).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("bind domain: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bind domain rows affected: %w", err)
	}
	return rows > 0, nil
}

// Create inserts a new license record. Admin issuance creates records in the
// unused state with no domain.
func (s *BunStore) Create(ctx context.Context, lic *license.License) error {
	now := time.Now().UTC()
	if lic.CreatedAt.IsZero() {
		lic.CreatedAt = now
	}
	lic.UpdatedAt = now
	if lic.Status == "" {
		lic.Status = license.StatusUnused
	}
	m := licenseToModel(*lic)
	if _, err := s.bun.NewInsert().Model(&m).Exec(ctx); err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

// Revoke forces a license into the terminal revoked state.
func (s *BunStore) Revoke(ctx context.Context, key string) error {
	res, err := s.bun.NewUpdate().
		Model((*licenseModel)(nil)).
		Set("status = ?", string(license.StatusRevoked)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke license: %w", err)
	}
	return requireRow(res)
}

// SetExpiry updates the expiry timestamp; nil clears it.
func (s *BunStore) SetExpiry(ctx context.Context, key string, expiresAt *time.Time) error {
	q := s.bun.NewUpdate().
		Model((*licenseModel)(nil)).
		Set("expires_at = ?", nullTime(expiresAt)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("key = ?", key)
	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("set license expiry: %w", err)
	}
	return requireRow(res)
}

// List returns all license records ordered by creation time.
func (s *BunStore) List(ctx context.Context) ([]license.License, error) {
	var models []licenseModel
	if err := s.bun.NewSelect().Model(&models).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	out := make([]license.License, 0, len(models))
	for _, m := range models {
		out = append(out, modelToLicense(m))
	}
	return out, nil
}

// Delete removes a license record.
func (s *BunStore) Delete(ctx context.Context, key string) error {
	res, err := s.bun.NewDelete().
		Model((*licenseModel)(nil)).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	return requireRow(res)
}

// Ping checks store connectivity for the health endpoint.
func (s *BunStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *BunStore) Close() error {
	return s.bun.Close()
}

func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return license.ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func modelToLicense(m licenseModel) license.License {
	lic := license.License{
		Key:         m.Key,
		ProductName: m.ProductName,
		Status:      license.Status(m.Status),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.OwnerName.Valid {
		lic.OwnerName = m.OwnerName.String
	}
	if m.Domain.Valid {
		lic.Domain = m.Domain.String
	}
	if m.ActivatedAt.Valid {
		t := m.ActivatedAt.Time
		lic.ActivatedAt = &t
	}
	if m.ExpiresAt.Valid {
		t := m.ExpiresAt.Time
		lic.ExpiresAt = &t
	}
	return lic
}

func licenseToModel(lic license.License) licenseModel {
	return licenseModel{
		Key:         lic.Key,
		ProductName: lic.ProductName,
		OwnerName:   nullString(lic.OwnerName),
		Domain:      nullString(lic.Domain),
		Status:      string(lic.Status),
		ActivatedAt: nullTime(lic.ActivatedAt),
		ExpiresAt:   nullTime(lic.ExpiresAt),
		CreatedAt:   lic.CreatedAt,
		UpdatedAt:   lic.UpdatedAt,
	}
}
