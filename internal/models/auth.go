package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// FlexibleID accepts numeric or string identifiers in token claims.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// JWTClaims is the access token payload issued by the external token service.
type JWTClaims struct {
	UserID    FlexibleID `json:"user_id"`
	TokenType string     `json:"token_type,omitempty"`
	Name      string     `json:"nombre,omitempty"`
	jwt.RegisteredClaims
}

// UserContext describes who is talking to the assistant for one turn.
type UserContext struct {
	Authenticated bool
	Token         string
	UserID        string
	DisplayName   string
}

// Greeting name, empty when unknown.
func (u UserContext) Name() string {
	return strings.TrimSpace(u.DisplayName)
}
