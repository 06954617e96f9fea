package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestRemoteDSNLifecycle(t *testing.T) {
	gokeyring.MockInit()

	dsn := "postgres://habitat@localhost:5432/habitat?sslmode=disable"
	if err := SetRemoteDSN(dsn); err != nil {
		t.Fatalf("SetRemoteDSN() failed: %v", err)
	}

	got, err := GetRemoteDSN()
	if err != nil {
		t.Fatalf("GetRemoteDSN() failed: %v", err)
	}
	if got != dsn {
		t.Errorf("GetRemoteDSN() = %q, want %q", got, dsn)
	}

	if err := DeleteRemoteDSN(); err != nil {
		t.Fatalf("DeleteRemoteDSN() failed: %v", err)
	}
	if _, err := GetRemoteDSN(); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRemoteDSN() after delete error = %v, want %v", err, ErrNotFound)
	}
}

func TestSetRemoteDSNEmpty(t *testing.T) {
	gokeyring.MockInit()

	if err := SetRemoteDSN(""); err == nil {
		t.Error("SetRemoteDSN(\"\") should return an error")
	}
}

func TestDeleteRemoteDSNNotFound(t *testing.T) {
	gokeyring.MockInit()

	if err := DeleteRemoteDSN(); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteRemoteDSN() error = %v, want %v", err, ErrNotFound)
	}
}

func TestUnavailable(t *testing.T) {
	gokeyring.MockInitWithError(errors.New("no dbus session"))
	t.Cleanup(gokeyring.MockInit)

	if IsAvailable() {
		t.Error("IsAvailable() = true with a failing keyring")
	}
	if _, err := GetRemoteDSN(); !errors.Is(err, ErrKeyringUnavailable) {
		t.Errorf("GetRemoteDSN() error = %v, want %v", err, ErrKeyringUnavailable)
	}
}
