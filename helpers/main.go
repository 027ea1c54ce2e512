package helpers

import (
	"time"

	"bitbucket.org/etuitionbd/backend/models"
	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// TokenTTL is how long a login token stays valid.
const TokenTTL = 7 * 24 * time.Hour

func ParserTokenUnverified(tokenStr string) (jwt.MapClaims, bool) {
	var p jwt.Parser
	token, _, err := p.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return nil, false
	}
	tokendata, ok := token.Claims.(jwt.MapClaims)
	return tokendata, ok
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func AuthenticateHashedPassword(hashed string, inputPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(inputPassword))
	return err == nil
}

// GenerateToken signs the user identity under the "u" claim, which is what
// the user middleware reads back.
func GenerateToken(user *models.User, jwtSecret string, now time.Time) (string, error) {
	claims := struct {
		User map[string]interface{} `json:"u"`
		jwt.StandardClaims
	}{
		map[string]interface{}{
			"email": user.Email,
			"role":  string(user.Role),
			"name":  user.Name,
		},
		jwt.StandardClaims{
			Subject:   user.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(TokenTTL).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	if err != nil {
		return "", err
	}

	return token, nil
}
