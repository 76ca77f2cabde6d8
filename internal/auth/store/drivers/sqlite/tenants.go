package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/store"
)

type tenantsRepo struct {
	db DBTX
}

const tenantColumns = `tenant_id, secret_hash, created_at, updated_at`

func (r *tenantsRepo) CreateTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES (?, ?, ?, ?)`,
		t.ID, t.SecretHash, toMillis(t.CreatedAt), toMillis(t.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *tenantsRepo) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = ?`, id)
	t, err := scanTenant(row)
	if err != nil {
		return domain.Tenant{}, mapNotFound(err)
	}
	return t, nil
}

func (r *tenantsRepo) UpdateTenantSecretHash(ctx context.Context, id, secretHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tenants SET secret_hash = ?, updated_at = ? WHERE tenant_id = ?`,
		secretHash, toMillis(now), id,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *tenantsRepo) DeleteTenant(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE tenant_id = ?`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *tenantsRepo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(s scanner) (domain.Tenant, error) {
	var (
		t                    domain.Tenant
		createdAt, updatedAt int64
	)
	if err := s.Scan(&t.ID, &t.SecretHash, &createdAt, &updatedAt); err != nil {
		return domain.Tenant{}, err
	}
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return t, nil
}

// requireOneRow maps "no row matched" to store.ErrNotFound.
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
