package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	svc := NewJWT("test-secret")

	token, err := svc.Sign("patient-42")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	uid, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uid != "patient-42" {
		t.Fatalf("expected patient-42, got %q", uid)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()
	svc := NewJWT("test-secret")

	cases := map[string]string{
		"garbage":      "not-a-token",
		"empty":        "",
		"wrong secret": mustSign(t, NewJWT("other-secret"), "patient-42"),
	}
	for name, token := range cases {
		if _, err := svc.Verify(token); err == nil {
			t.Fatalf("%s: expected verification failure", name)
		}
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	t.Parallel()
	svc := NewJWT("test-secret")

	claims := jwt.MapClaims{"iat": time.Now().Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Verify(token); err == nil {
		t.Fatalf("expected failure for token without sub")
	}
}

func mustSign(t *testing.T, svc *JWT, userID string) string {
	t.Helper()
	token, err := svc.Sign(userID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}
