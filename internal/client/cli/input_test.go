package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("alice\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Enter user key", &out)
	if err != nil || got != "alice" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if !strings.Contains(out.String(), "Enter user key") {
		t.Fatalf("prompt not printed: %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Enter user key", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetPassword_Error(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return nil, errors.New("boom")
	}
	var out bytes.Buffer
	if _, err := GetPassword(&out, "Enter password"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(int) ([]byte, error) {
		return []byte("secret1"), nil
	}
	var out bytes.Buffer
	pw, err := GetPassword(&out, "Enter password")
	if err != nil || string(pw) != "secret1" {
		t.Fatalf("got %q, err=%v", string(pw), err)
	}
	if !strings.Contains(out.String(), "Enter password") {
		t.Fatalf("prompt not printed: %q", out.String())
	}
}
