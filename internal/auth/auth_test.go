package auth

import "testing"

func TestJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateJWT("user-42", secret)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	subject, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("ValidateJWT failed: %v", err)
	}
	if subject != "user-42" {
		t.Errorf("expected subject user-42, got %s", subject)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-42", []byte("secret-a"))
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}

	if _, err := ValidateJWT(token, []byte("secret-b")); err == nil {
		t.Fatal("expected validation to fail with wrong secret")
	}
}

func TestValidateJWTGarbage(t *testing.T) {
	if _, err := ValidateJWT("not-a-token", []byte("secret")); err == nil {
		t.Fatal("expected validation to fail for garbage token")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the plaintext password")
	}

	if !CheckPasswordHash("hunter2", hash) {
		t.Error("expected correct password to verify")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("expected wrong password to fail verification")
	}
}
