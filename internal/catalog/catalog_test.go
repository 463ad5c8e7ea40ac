package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDoc = `{
  "items": [
    {"id": "aave-usdc", "title": "Aave USDC", "chain": "evm", "asset": "USDC", "apy": "4.2", "risk": "low", "lockup": "none", "action": {"kind": "link", "url": "https://app.aave.com"}},
    {"id": "jito-sol", "title": "Jito staked SOL", "chain": "sol", "asset": "SOL", "apy": "7.9", "risk": "medium", "lockup": "none", "action": {"kind": "link", "url": "https://jito.network"}}
  ]
}`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opportunities.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return path
}

func TestLookupHitAndMiss(t *testing.T) {
	cat := New(writeDoc(t, sampleDoc))

	opp, ok, err := cat.Lookup("USDC", "evm")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if opp.APY.String() != "4.2" {
		t.Fatalf("unexpected apy %s", opp.APY.String())
	}

	if _, ok, _ := cat.Lookup("USDC", "sol"); ok {
		t.Fatal("expected catalog miss for (USDC, sol)")
	}
}

func TestListReloadsOnEveryRead(t *testing.T) {
	path := writeDoc(t, sampleDoc)
	cat := New(path)

	items, err := cat.List()
	if err != nil || len(items) != 2 {
		t.Fatalf("expected 2 items, got %d err=%v", len(items), err)
	}

	// Edit the document in place; the next read must observe it.
	if err := os.WriteFile(path, []byte(`{"items": []}`), 0o644); err != nil {
		t.Fatalf("rewrite doc: %v", err)
	}
	items, err = cat.List()
	if err != nil || len(items) != 0 {
		t.Fatalf("catalog must be re-read on every access, got %d items err=%v", len(items), err)
	}
}

func TestListByChain(t *testing.T) {
	cat := New(writeDoc(t, sampleDoc))
	items, err := cat.ListByChain("sol")
	if err != nil {
		t.Fatalf("list by chain: %v", err)
	}
	if len(items) != 1 || items[0].ID != "jito-sol" {
		t.Fatalf("unexpected filter result: %#v", items)
	}
}

func TestMissingFileIsError(t *testing.T) {
	cat := New(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := cat.List(); err == nil {
		t.Fatal("missing document should be an error")
	}
}
