package sqlite

import (
	"context"
	"database/sql"

	"github.com/bonkmc/modernauth/internal/auth/domain"
)

type identitiesRepo struct {
	db DBTX
}

func (r *identitiesRepo) CreateIdentity(ctx context.Context, i domain.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (tenant_id, username, identity_hash, email_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		i.TenantID, i.Username, i.IdentityHash, mapStringNull(i.EmailHash), toMillis(i.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *identitiesRepo) GetIdentity(ctx context.Context, tenantID, username string) (domain.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, username, identity_hash, email_hash, created_at
		 FROM identities WHERE tenant_id = ? AND username = ?`,
		tenantID, username,
	)

	var (
		i         domain.Identity
		emailHash sql.NullString
		createdAt int64
	)
	if err := row.Scan(&i.TenantID, &i.Username, &i.IdentityHash, &emailHash, &createdAt); err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	i.EmailHash = mapNullString(emailHash)
	i.CreatedAt = fromMillis(createdAt)
	return i, nil
}

func (r *identitiesRepo) ListEmailHashes(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email_hash FROM identities WHERE tenant_id = ? AND email_hash IS NOT NULL`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *identitiesRepo) DeleteIdentity(ctx context.Context, tenantID, username string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM identities WHERE tenant_id = ? AND username = ?`, tenantID, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
