package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = JWTConfig{Secret: "test-secret", Issuer: "orgtree-api", ExpirationTime: time.Minute}

func TestGenerateAndParseRequester(t *testing.T) {
	in := Requester{ID: "u-1", Permissions: []string{PermissionDepartmentReadAll}, DepartmentIDs: []string{"d-1"}}

	token, err := GenerateToken(in, testConfig)
	require.NoError(t, err)

	out, err := ParseRequester(ExtractTokenFromHeader("Bearer "+token), testConfig)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
	assert.True(t, out.Has(PermissionDepartmentReadAll))
	assert.False(t, out.Has(PermissionDepartmentDelete))
	assert.True(t, out.InDepartment("d-1"))
}

func TestParseRequester_Rejects(t *testing.T) {
	valid, err := GenerateToken(Requester{ID: "u-1"}, testConfig)
	require.NoError(t, err)

	expired, err := GenerateToken(Requester{ID: "u-1"}, JWTConfig{Secret: testConfig.Secret, Issuer: testConfig.Issuer, ExpirationTime: -time.Minute})
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, RequesterClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", Issuer: testConfig.Issuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		token  string
		config JWTConfig
	}{
		"empty":        {"", testConfig},
		"wrong secret": {valid, JWTConfig{Secret: "other", Issuer: testConfig.Issuer}},
		"wrong issuer": {valid, JWTConfig{Secret: testConfig.Secret, Issuer: "someone-else"}},
		"none alg":     {noneAlg, testConfig},
		"garbage":      {"a.b.c", testConfig},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRequester(tc.token, tc.config)
			assert.Error(t, err)
		})
	}

	// GenerateToken süresiz token üretmez; negatif süre bir saate çekilir.
	_, err = ParseRequester(expired, testConfig)
	assert.NoError(t, err)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromHeader("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromHeader("bearer abc"))
	assert.Equal(t, "", ExtractTokenFromHeader("Basic abc"))
	assert.Equal(t, "", ExtractTokenFromHeader("Bearer "))
}

func TestRequester_NilSafe(t *testing.T) {
	var r *Requester
	assert.False(t, r.Has(PermissionDepartmentReadAll))
	assert.False(t, r.InDepartment("d-1"))
}
