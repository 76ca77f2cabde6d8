package app

import (
	"fmt"
	"log/slog"

	"github.com/bonkmc/modernauth/pkg/cryptox"
	"github.com/bonkmc/modernauth/pkg/jwtx"
)

// InitSessionKeys builds the KeyManager that signs session tokens.
//
// With AUTH_SESSION_KEY_FILE set, the key is loaded from (or generated into)
// that file and sessions survive restarts. Otherwise a key is generated in
// memory and every session ends with the process.
func InitSessionKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{Issuer: cfg.Issuer}

	if cfg.SessionKeyFile == "" {
		km, err := jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral session key: %w", err)
		}
		logger.Warn("using an ephemeral session key; sessions end on restart",
			"kid", km.Signer.KID(),
			"issuer", cfg.Issuer,
		)
		return km, nil
	}

	pemKey, err := cryptox.LoadOrGenerateEd25519Key(cfg.SessionKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load session key: %w", err)
	}
	km, err := jwtx.NewKeyManager(pemKey, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session key: %w", err)
	}
	logger.Info("session key loaded", "kid", km.Signer.KID(), "issuer", cfg.Issuer)
	return km, nil
}
