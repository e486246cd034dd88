package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/duchuyngn/muaban-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID        uuid.UUID
	ActiveStoreID *uuid.UUID
	Role          enums.ActorRole
	JTI           string
}

// AccessTokenClaims represents the typed JWT issued to clients. Store
// operators carry the store they act for in active_store_id; customers and
// admins do not.
type AccessTokenClaims struct {
	UserID        uuid.UUID       `json:"user_id"`
	ActiveStoreID *uuid.UUID      `json:"active_store_id,omitempty"`
	Role          enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
