package authx

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	payloadSubdivisionID = "zup_subdivision_id"
	payloadUserID        = "user_id"
	payloadZupUserID     = "zup_user_id"
)

var requiredPayloadKeys = []string{payloadSubdivisionID, payloadUserID, payloadZupUserID}

// ExtractIdentity returns the caller identity held in claims.payload.zup_user_id.
// The issuer nests its domain fields under "payload"; the other two required
// keys only need to be present.
func ExtractIdentity(claims Claims) (uuid.UUID, error) {
	if _, ok := claims[claimPayload]; !ok {
		return uuid.Nil, newError(ErrCodeInvalidPayload, errors.New("token payload not set"))
	}
	payload, ok := claims.Payload()
	if !ok {
		return uuid.Nil, newError(ErrCodeInvalidPayload, errors.New("token payload is not an object"))
	}
	for _, key := range requiredPayloadKeys {
		if _, ok := payload[key]; !ok {
			return uuid.Nil, newError(ErrCodeInvalidPayload, fmt.Errorf("token payload missing %q", key))
		}
	}

	raw, ok := payload[payloadZupUserID].(string)
	if !ok {
		return uuid.Nil, newError(ErrCodeInvalidPayload, fmt.Errorf("%s is not a string", payloadZupUserID))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, newError(ErrCodeInvalidPayload, fmt.Errorf("%s: %w", payloadZupUserID, err))
	}
	return id, nil
}

// Parser chains token validation and identity extraction.
type Parser struct {
	validator *Validator
}

// NewParser wraps v; a nil validator uses the defaults.
func NewParser(v *Validator) *Parser {
	if v == nil {
		v = defaultValidator
	}
	return &Parser{validator: v}
}

// Parse validates token and returns the caller identity.
func (p *Parser) Parse(token string) (uuid.UUID, error) {
	caller, err := p.ParseCaller(token)
	if err != nil {
		return uuid.Nil, err
	}
	return caller.Identity, nil
}

// ParseCaller validates token and returns the identity together with its claims.
func (p *Parser) ParseCaller(token string) (Caller, error) {
	claims, err := p.validator.Validate(token)
	if err != nil {
		return Caller{}, err
	}
	id, err := ExtractIdentity(claims)
	if err != nil {
		return Caller{}, err
	}
	return Caller{Identity: id, Claims: claims}, nil
}
