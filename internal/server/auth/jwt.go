// Package auth mints and verifies the HS256 access tokens carried by sync
// clients. There is no login flow here: tokens are provisioned out of band
// and the server only verifies them.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldstock/shiftledger/internal/domain"
)

// Claims carries the standard claims plus the subject (worker) id.
type Claims struct {
	jwt.RegisteredClaims
	SubjectID string
}

// GenerateToken signs a token for subjectID valid for validityDuration.
func GenerateToken(subjectID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		SubjectID: subjectID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// GetSubjectIDFromToken verifies tokenString and extracts the subject id.
// Any parse, signature or expiry failure maps to domain.ErrUnauthorized.
func GetSubjectIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secretKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	if !token.Valid || claims.SubjectID == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.SubjectID, nil
}
