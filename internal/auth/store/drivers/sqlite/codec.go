package sqlite

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/bonkmc/modernauth/internal/auth/domain"
)

// Invite metadata is stored in link_tokens.extra as deterministic CBOR, so
// the same invite always encodes to the same bytes.
var (
	purposeEncMode cbor.EncMode
	purposeDecMode cbor.DecMode
)

func init() {
	var err error
	purposeEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("sqlite: cbor encode mode: %v", err))
	}
	purposeDecMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		MaxMapPairs: 16,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("sqlite: cbor decode mode: %v", err))
	}
}

// encodePurpose returns the purpose column value and the extra blob.
func encodePurpose(p domain.Purpose) (string, []byte, error) {
	switch v := p.(type) {
	case nil, domain.LoginPurpose:
		return string(domain.PurposeLogin), nil, nil
	case domain.InvitePurpose:
		extra, err := purposeEncMode.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("sqlite: encode invite purpose: %w", err)
		}
		return string(domain.PurposeInvite), extra, nil
	default:
		return "", nil, fmt.Errorf("sqlite: unsupported purpose %T", p)
	}
}

func decodePurpose(kind string, extra []byte) (domain.Purpose, error) {
	switch domain.PurposeKind(kind) {
	case domain.PurposeLogin:
		return domain.LoginPurpose{}, nil
	case domain.PurposeInvite:
		var inv domain.InvitePurpose
		if err := purposeDecMode.Unmarshal(extra, &inv); err != nil {
			return nil, fmt.Errorf("sqlite: decode invite purpose: %w", err)
		}
		return inv, nil
	default:
		return nil, fmt.Errorf("sqlite: unknown purpose %q", kind)
	}
}
