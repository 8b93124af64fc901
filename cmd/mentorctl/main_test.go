package main

import (
	"bytes"
	"strings"
	"testing"

	"mentormatch/internal/pkg/auth/jwt"
)

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	root := buildRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--id", "7", "--name", "Ada", "--role", "mentor", "--secret", "s3cret"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	payload, err := jwt.ParseToken(strings.TrimSpace(out.String()), "s3cret")
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if payload.ID != "7" || payload.Name != "Ada" || payload.Role != "mentor" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestTokenCommandRequiresID(t *testing.T) {
	root := buildRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"token", "--secret", "s3cret"})

	if err := root.Execute(); err == nil {
		t.Fatal("Execute() without --id should fail")
	}
}

func TestSendActivityValidatesType(t *testing.T) {
	root := buildRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"send", "activity", "--session", "42", "--type", "poem", "hi"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown activity type") {
		t.Fatalf("Execute() error = %v", err)
	}
}
