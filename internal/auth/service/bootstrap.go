package service

import (
	"context"
	"crypto/subtle"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/internal/auth/store"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// Bootstrap makes the caller the first admin. It only works with the
// configured bootstrap token and while no grant exists at all.
func (s *AdminService) Bootstrap(ctx context.Context, who domain.ExternalIdentity, token string) (err error) {
	ctx, span := s.start(ctx, "Bootstrap", "")
	defer func() { endSpan(span, err) }()

	log := slogx.FromContext(ctx)

	if s.BootstrapToken == "" {
		return ErrPermissionDenied
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.BootstrapToken)) != 1 {
		log.Warn("bootstrap attempted with a bad token")
		return ErrAuthentication
	}
	if who.Subject == "" {
		return ErrInvalidRequest
	}

	emailHash, err := s.Access.hashEmail(who.Proof().Email)
	if err != nil {
		return err
	}
	subjectHash := s.Access.Subjects.Fingerprint(who.Subject)

	err = s.Access.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Grants().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrConflict
		}
		return s.Access.grant(ctx, tx, subjectHash, true, nil, emailHash)
	})
	if err != nil {
		return storageErr("bootstrap", err)
	}

	log.Info("bootstrap admin granted")
	return nil
}
