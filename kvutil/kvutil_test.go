// Copyright (c) 2023 BVK Chaitanya

package kvutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bvk/candlebot/gobs"
	"github.com/bvkgo/kv"
	"github.com/bvkgo/kv/kvmemdb"
)

func TestAscendLast(t *testing.T) {
	ctx := context.Background()
	db := kvmemdb.New()

	for i, key := range []string{"/candles/BTC-USD/a", "/candles/BTC-USD/b", "/candles/ETH-USD/a"} {
		if err := SetDB(ctx, db, key, &gobs.Candle{Start: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	begin, end := PathRange("/candles/BTC-USD")
	var keys []string
	collect := func(ctx context.Context, r kv.Reader, k string, v *gobs.Candle) error {
		keys = append(keys, k)
		return nil
	}
	if err := AscendDB(ctx, db, begin, end, collect); err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("want 2 keys under the prefix, got %v", keys)
	}

	key, last, err := LastDB[gobs.Candle](ctx, db, begin, end)
	if err != nil {
		t.Fatal(err)
	}
	if key != "/candles/BTC-USD/b" || last.Start != 1 {
		t.Fatalf("unexpected last entry %q %v", key, last)
	}

	begin, end = PathRange("/missing")
	if key, last, err := LastDB[gobs.Candle](ctx, db, begin, end); err != nil || key != "" || last != nil {
		t.Fatalf("want empty result for an empty range, got %q %v %v", key, last, err)
	}
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "backup.gob")

	src := kvmemdb.New()
	if err := SetDB(ctx, src, "/candles/BTC-USD/x", &gobs.Candle{Start: 100, Close: "1.5"}); err != nil {
		t.Fatal(err)
	}
	if err := BackupDB(ctx, src, file); err != nil {
		t.Fatal(err)
	}

	dst := kvmemdb.New()
	if err := SetDB(ctx, dst, "/stale", &gobs.KeyValue{Key: "stale"}); err != nil {
		t.Fatal(err)
	}
	if err := RestoreDB(ctx, dst, file); err != nil {
		t.Fatal(err)
	}

	v, err := GetDB[gobs.Candle](ctx, dst, "/candles/BTC-USD/x")
	if err != nil {
		t.Fatal(err)
	}
	if v.Start != 100 || v.Close != "1.5" {
		t.Fatalf("unexpected restored value %+v", v)
	}
	if _, err := GetDB[gobs.KeyValue](ctx, dst, "/stale"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want stale key to be removed, got %v", err)
	}
}
