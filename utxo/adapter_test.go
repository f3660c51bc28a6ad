package utxo

import (
	"context"
	"testing"
)

func TestOracleAdapterDelegatesToClient(t *testing.T) {
	mock := &Mock{Unspent: map[string]bool{"txo-1": true, "txo-2": false}}
	adapter := NewOracleAdapter(mock, context.Background())

	unspent, err := adapter.IsUnspentTxo("txo-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !unspent {
		t.Fatal("expected txo-1 to be reported unspent")
	}

	spent, err := adapter.IsUnspentTxo("txo-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spent {
		t.Fatal("expected txo-2 to be reported spent")
	}

	unknown, err := adapter.IsUnspentTxo("txo-missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unknown {
		t.Fatal("expected an untracked sid to default to spent")
	}
}
