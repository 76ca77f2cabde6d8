package sqlite

import (
	"context"
	"time"

	"github.com/bonkmc/modernauth/internal/auth/domain"
)

type linkTokensRepo struct {
	db DBTX
}

const linkTokenColumns = `token_hash, tenant_id, username, expires_at, authorized, purpose, extra, created_at`

func (r *linkTokensRepo) CreateLinkToken(ctx context.Context, t domain.LinkToken) error {
	purpose, extra, err := encodePurpose(t.Purpose)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO link_tokens (`+linkTokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TokenHash, t.TenantID, t.Username, toMillis(t.ExpiresAt),
		boolInt(t.Authorized), purpose, extra, toMillis(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *linkTokensRepo) GetLiveLinkToken(ctx context.Context, tokenHash string, now time.Time) (domain.LinkToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+linkTokenColumns+` FROM link_tokens WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, toMillis(now),
	)

	var (
		t                    domain.LinkToken
		expiresAt, createdAt int64
		authorized           int
		purpose              string
		extra                []byte
	)
	err := row.Scan(&t.TokenHash, &t.TenantID, &t.Username, &expiresAt, &authorized, &purpose, &extra, &createdAt)
	if err != nil {
		return domain.LinkToken{}, mapNotFound(err)
	}

	t.Purpose, err = decodePurpose(purpose, extra)
	if err != nil {
		return domain.LinkToken{}, err
	}
	t.ExpiresAt = fromMillis(expiresAt)
	t.CreatedAt = fromMillis(createdAt)
	t.Authorized = authorized == 1
	return t, nil
}

func (r *linkTokensRepo) AuthorizeLinkToken(ctx context.Context, tokenHash string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE link_tokens SET authorized = 1 WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, toMillis(now),
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *linkTokensRepo) DeleteLinkToken(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM link_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *linkTokensRepo) DeleteAuthorizedLinkToken(ctx context.Context, tokenHash, tenantID string, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM link_tokens
		 WHERE token_hash = ? AND tenant_id = ? AND authorized = 1 AND expires_at > ?`,
		tokenHash, tenantID, toMillis(now),
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *linkTokensRepo) DeleteExpiredLinkTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM link_tokens WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
