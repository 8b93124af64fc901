package realtime

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSessionIDUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    SessionID
		wantErr bool
	}{
		{`42`, "42", false},
		{`1234567890123456789`, "1234567890123456789", false},
		{`12345678901234567890`, "", true},
		{`"42"`, "42", false},
		{`"abc-DEF_1"`, "abc-DEF_1", false},
		{`null`, "", false},
		{`4.2`, "", true},
		{`"has space"`, "", true},
		{`""`, "", true},
		{`{}`, "", true},
	}

	for _, tt := range tests {
		var got SessionID
		err := json.Unmarshal([]byte(tt.in), &got)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidSessionID", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSessionIDMarshal(t *testing.T) {
	tests := map[SessionID]string{
		"42":    `42`,
		"0":     `0`,
		"042":   `"042"`,
		"abc":   `"abc"`,
		"-5":    `"-5"`,
		"12345": `12345`,

		"123456789012345":     `123456789012345`,
		"1234567890123456":    `"1234567890123456"`,
		"1234567890123456789": `"1234567890123456789"`,
	}
	for id, want := range tests {
		got, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal(%q) error = %v", id, err)
		}
		if string(got) != want {
			t.Errorf("Marshal(%q) = %s, want %s", id, got, want)
		}
	}
}

func TestDecodeEnvelope(t *testing.T) {
	if _, err := DecodeEnvelope([]byte(`{"data":{}}`)); err == nil {
		t.Error("envelope without event should fail")
	}
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Error("invalid JSON should fail")
	}

	frame, err := Encode(EventPing, map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	env, err := DecodeEnvelope(frame)
	if err != nil || env.Event != EventPing || string(env.Data) != `{"n":1}` {
		t.Fatalf("DecodeEnvelope(Encode()) = %+v, %v", env, err)
	}
}

func TestTypingContextNormalize(t *testing.T) {
	if c, ok := TypingContext("").Normalize(); !ok || c != TypingChat {
		t.Errorf("empty context = %q, %v", c, ok)
	}
	if _, ok := TypingContext("notes").Normalize(); !ok {
		t.Error("notes should be valid")
	}
	if _, ok := TypingContext("email").Normalize(); ok {
		t.Error("email should be rejected")
	}
}
