package sqlite

import (
	"context"
	"strings"

	"github.com/bonkmc/modernauth/internal/auth/domain"
)

type grantsRepo struct {
	db DBTX
}

const grantColumns = `subject_hash, is_admin, tenant_ids, email_hash, created_at, updated_at`

func (r *grantsRepo) GetGrant(ctx context.Context, subjectHash string) (domain.AccessGrant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants WHERE subject_hash = ?`, subjectHash)
	g, err := scanGrant(row)
	if err != nil {
		return domain.AccessGrant{}, mapNotFound(err)
	}
	return g, nil
}

// UpsertGrant keeps the original created_at on overwrite.
func (r *grantsRepo) UpsertGrant(ctx context.Context, g domain.AccessGrant) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_grants (`+grantColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (subject_hash) DO UPDATE SET
		     is_admin   = excluded.is_admin,
		     tenant_ids = excluded.tenant_ids,
		     email_hash = excluded.email_hash,
		     updated_at = excluded.updated_at`,
		g.SubjectHash, boolInt(g.IsAdmin), strings.Join(splitSet(strings.Join(g.TenantIDs, " ")), " "),
		g.EmailHash, toMillis(g.CreatedAt), toMillis(g.UpdatedAt),
	)
	return err
}

func (r *grantsRepo) ListGrants(ctx context.Context) ([]domain.AccessGrant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+grantColumns+` FROM access_grants ORDER BY subject_hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *grantsRepo) DeleteGrant(ctx context.Context, subjectHash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_grants WHERE subject_hash = ?`, subjectHash)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *grantsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM access_grants)`).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists == 0, nil
}

func scanGrant(s scanner) (domain.AccessGrant, error) {
	var (
		g                    domain.AccessGrant
		isAdmin              int
		tenantIDs            string
		createdAt, updatedAt int64
	)
	if err := s.Scan(&g.SubjectHash, &isAdmin, &tenantIDs, &g.EmailHash, &createdAt, &updatedAt); err != nil {
		return domain.AccessGrant{}, err
	}
	g.IsAdmin = isAdmin == 1
	g.TenantIDs = splitSet(tenantIDs)
	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	return g, nil
}
