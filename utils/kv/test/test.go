// Package test provides a conformance test for key-value buckets.
package test

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/piecework/piecework/utils/kv"
)

// TestBucket exercises b, which should start out empty.
func TestBucket(t *testing.T, b kv.TraversingBucket) {
	ctx := context.Background()

	_, err := b.Get(ctx, "missing")
	if !errors.Is(err, kv.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, have: %v", err)
	}

	if err = kv.SetMap(ctx, b, map[string][]byte{
		"pfx.a": []byte("1"),
		"pfx.b": []byte("2"),
		"other": []byte("3"),
	}); err != nil {
		t.Fatal(err)
	}

	v, err := b.Get(ctx, "pfx.a")
	if err != nil {
		t.Fatal(err)
	}
	if want, have := []byte("1"), v; !bytes.Equal(want, have) {
		t.Errorf("want: %s, have: %s", want, have)
	}

	found, err := b.Has(ctx, "other")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Error("expected key to exist")
	}

	keys := kv.KeysPrefix(ctx, b, "pfx.")
	sort.Strings(keys)
	if want, have := 2, len(keys); want != have {
		t.Fatalf("keys: want: %d, have: %d", want, have)
	}
	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("unexpected keys: %v", keys)
	}

	type record struct {
		Name string `json:"name"`
	}
	if err = kv.SetJSON(ctx, b, "json", &record{Name: "hello"}); err != nil {
		t.Fatal(err)
	}
	rec := new(record)
	if err = kv.GetJSON(ctx, b, "json", rec); err != nil {
		t.Fatal(err)
	}
	if want, have := "hello", rec.Name; want != have {
		t.Errorf("want: %s, have: %s", want, have)
	}
	if err = kv.GetJSON(ctx, b, "json.missing", rec); !errors.Is(err, kv.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, have: %v", err)
	}

	if err = kv.DeleteSlice(ctx, b, []string{"pfx.a", "pfx.b", "other", "json"}); err != nil {
		t.Fatal(err)
	}
	found, err = b.Has(ctx, "pfx.a")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected key to be deleted")
	}

	// deleting a missing key is not an error
	if err = b.Delete(ctx, "pfx.a"); err != nil {
		t.Error(err)
	}
}
