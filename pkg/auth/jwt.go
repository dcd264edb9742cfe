// -----------------------------------------------------------------------------
// JWT Requester Claims
// -----------------------------------------------------------------------------
// Token'ı kimlik sağlayıcı üretir; bu paket yalnızca imzayı doğrular ve
// claim'leri Requester'a çevirir. GenerateToken testler ve yerel geliştirme
// içindir.
//
// Token Yapısı:
//
//	{
//	  "sub": "user-uuid",
//	  "perms": ["department:read_all"],
//	  "depts": ["dept-uuid"],
//	  "iss": "orgtree-api",
//	  "exp": 1700000000
//	}
// -----------------------------------------------------------------------------

package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RequesterClaims, token payload'ıdır.
type RequesterClaims struct {
	Permissions   []string `json:"perms,omitempty"`
	DepartmentIDs []string `json:"depts,omitempty"`
	jwt.RegisteredClaims
}

// JWTConfig, token doğrulama ayarlarıdır.
type JWTConfig struct {
	Secret         string        // HMAC imza anahtarı
	Issuer         string        // Beklenen issuer
	ExpirationTime time.Duration // GenerateToken için geçerlilik süresi
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// GenerateToken, requester için imzalı HS256 token üretir.
func GenerateToken(r Requester, config JWTConfig) (string, error) {
	now := time.Now()
	if config.ExpirationTime <= 0 {
		config.ExpirationTime = time.Hour
	}

	claims := RequesterClaims{
		Permissions:   r.Permissions,
		DepartmentIDs: r.DepartmentIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.Issuer,
			Subject:   r.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(config.ExpirationTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.Secret))
}

// ParseRequester, token'ı doğrular ve Requester döner.
//
// Hata Durumları:
// - Format hatası veya beklenmeyen imza algoritması
// - İmza doğrulama hatası
// - Süresi dolmuş token veya yanlış issuer
// - Boş subject
func ParseRequester(tokenString string, config JWTConfig) (*Requester, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}

	claims := &RequesterClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Requester{
		ID:            claims.Subject,
		Permissions:   claims.Permissions,
		DepartmentIDs: claims.DepartmentIDs,
	}, nil
}

// ExtractTokenFromHeader, "Bearer <token>" biçimindeki header'dan token'ı
// çıkarır. Format hatalıysa boş string döner.
func ExtractTokenFromHeader(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) > len(prefix) && strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return strings.TrimSpace(authHeader[len(prefix):])
	}
	return ""
}
