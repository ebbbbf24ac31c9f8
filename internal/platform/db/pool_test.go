package db

import (
	"context"
	"testing"
)

func TestNewPool_RejectsMalformedURL(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{URL: "://not-a-url"})
	if err == nil {
		t.Fatal("expected error for malformed database url")
	}
}

func TestNewPool_RejectsUnknownScheme(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{URL: "mysql://localhost/carelink"})
	if err == nil {
		t.Fatal("expected error for non-postgres url")
	}
}
