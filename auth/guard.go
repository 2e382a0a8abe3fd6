package auth

import (
	"hidden-talk/domain"
	apperrors "hidden-talk/errors"
)

// Guard admits a request to a room operation only with a well-formed room id
// and a credential issued for that room. It never reads the store, so room
// existence is still checked by the operation itself.
type Guard struct {
	issuer CredentialIssuer
}

func NewGuard(issuer CredentialIssuer) Guard {
	return Guard{issuer: issuer}
}

func (g Guard) Authorize(roomID, token string) (domain.Credential, error) {
	id, err := ValidateRoomID(roomID)
	if err != nil {
		return domain.Credential{}, err
	}
	if token == "" {
		return domain.Credential{}, apperrors.ErrInvalidCredential
	}
	return g.issuer.Validate(token, id)
}
