package auth

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pavelanni/examgrader/internal/model"
)

func TestIssueAndParse(t *testing.T) {
	tokens, err := NewTokens("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	u := model.User{ID: "u-1", Role: model.UserRoleTeacher}

	raw, issued, err := tokens.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := tokens.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != model.UserRoleTeacher {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Errorf("token id mismatch: %q vs %q", claims.ID, issued.ID)
	}

	_, second, _ := tokens.Issue(u)
	if second.ID == issued.ID {
		t.Error("each token should get a fresh id")
	}
}

func TestParseRejects(t *testing.T) {
	tokens, _ := NewTokens("secret", time.Hour)
	other, _ := NewTokens("other-secret", time.Hour)
	expired, _ := NewTokens("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	u := model.User{ID: "u-1", Role: model.UserRoleStudent}
	wrongKey, _, _ := other.Issue(u)
	stale, _, _ := expired.Issue(u)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name string
		raw  string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong key", wrongKey},
		{"expired", stale},
		{"unsigned", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Parse(tt.raw)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
	tk, err := NewTokens("s", 0)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	if tk.ttl != DefaultTTL {
		t.Errorf("expected default ttl, got %v", tk.ttl)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the password")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "hunter3") {
		t.Error("wrong password accepted")
	}
}

func TestNewStudentCode(t *testing.T) {
	re := regexp.MustCompile(`^STD[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for range 20 {
		code := NewStudentCode()
		if !re.MatchString(code) {
			t.Fatalf("unexpected code format %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Error("codes should vary")
	}
}
