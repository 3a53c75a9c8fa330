package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

func TestPasswordHashAndVerify(t *testing.T) {
    hash, err := HashPassword("s3cret", 4)
    if err != nil {
        t.Fatalf("HashPassword: %v", err)
    }
    if hash == "s3cret" {
        t.Fatal("hash must not equal the plain password")
    }
    if !VerifyPassword(hash, "s3cret") {
        t.Fatal("correct password rejected")
    }
    if VerifyPassword(hash, "wrong") {
        t.Fatal("wrong password accepted")
    }
}

func TestAccessTokenClaims(t *testing.T) {
    at, err := NewAccessToken("test-secret", 42, "USER", 15)
    if err != nil {
        t.Fatalf("NewAccessToken: %v", err)
    }
    parsed, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
        return []byte("test-secret"), nil
    })
    if err != nil || !parsed.Valid {
        t.Fatalf("token does not verify: %v", err)
    }
    claims, ok := parsed.Claims.(jwt.MapClaims)
    if !ok {
        t.Fatal("unexpected claims type")
    }
    if claims["role"] != "USER" {
        t.Fatalf("role claim = %v, want USER", claims["role"])
    }
    if sub, _ := claims["sub"].(float64); uint64(sub) != 42 {
        t.Fatalf("sub claim = %v, want 42", claims["sub"])
    }
    if !at.Exp.After(time.Now()) {
        t.Fatal("expiration must be in the future")
    }
}

func TestRefreshTokenHashing(t *testing.T) {
    rt1, err := NewRefreshToken(7)
    if err != nil {
        t.Fatalf("NewRefreshToken: %v", err)
    }
    rt2, err := NewRefreshToken(7)
    if err != nil {
        t.Fatalf("NewRefreshToken: %v", err)
    }
    if rt1.Raw == rt2.Raw {
        t.Fatal("two refresh tokens must not collide")
    }
    if HashRefreshRaw(rt1.Raw) != HashRefreshRaw(rt1.Raw) {
        t.Fatal("hashing must be deterministic")
    }
    if HashRefreshRaw(rt1.Raw) == rt1.Raw {
        t.Fatal("stored hash must differ from the raw token")
    }
}
