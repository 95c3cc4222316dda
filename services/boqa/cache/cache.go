// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache persists the engine's query-result cache in
// BadgerDB, gzip-compressed and validated against a fingerprint
// derived from the loaded ontology/annotation corpus (spec.md §6). A
// fingerprint mismatch on load is treated as a cold cache, not an
// error: the caller recomputes silently.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	keyPrefixEntry      = "boqa:cache:entry:"
	keyFingerprint      = "boqa:cache:fingerprint"
	fingerprintSeparator = "\x1f"
)

// Fingerprint computes the cache-invalidation hash described in
// spec.md §6: a SHA256 over all item names, all term identifiers, all
// term names, the score-distribution size and the max cached query
// size. Any change to the loaded corpus or these tunables changes the
// fingerprint, so a stale on-disk cache is silently discarded rather
// than served.
func Fingerprint(itemNames, termExternalIDs, termNames []string, scoreDistributionSize, maxCachedQuerySize int) string {
	h := sha256.New()
	write := func(s string) { io.WriteString(h, s); io.WriteString(h, fingerprintSeparator) }

	sortedItems := append([]string(nil), itemNames...)
	sort.Strings(sortedItems)
	for _, s := range sortedItems {
		write(s)
	}
	for i := range termExternalIDs {
		write(termExternalIDs[i])
		write(termNames[i])
	}
	write(strconv.Itoa(scoreDistributionSize))
	write(strconv.Itoa(maxCachedQuerySize))

	return hex.EncodeToString(h.Sum(nil))
}

// Cache wraps a BadgerDB handle with gzip compression and fingerprint
// validation. A Cache is tied to exactly one fingerprint for its
// lifetime; Open clears any prior generation's entries automatically.
//
// Thread Safety: BadgerDB serializes its own writes; Get/Put are safe
// for concurrent use by any number of goroutines (spec.md §5's
// "reader/writer discipline" for auxiliary caches).
type Cache struct {
	db          *badger.DB
	fingerprint string
	logger      *slog.Logger
}

// Open wires a Cache around an already-opened BadgerDB handle. If the
// database's stored fingerprint does not match fingerprint, every
// entry under keyPrefixEntry is dropped before returning — a "cold
// start", not an error.
func Open(ctx context.Context, db *badger.DB, fingerprint string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{db: db, fingerprint: fingerprint, logger: logger}

	stale, err := c.fingerprintStale()
	if err != nil {
		return nil, fmt.Errorf("cache: reading stored fingerprint: %w", err)
	}
	if stale {
		logger.InfoContext(ctx, "cache fingerprint mismatch, recomputing", "fingerprint", fingerprint)
		if err := c.dropAll(); err != nil {
			return nil, fmt.Errorf("cache: dropping stale entries: %w", err)
		}
		if err := c.storeFingerprint(); err != nil {
			return nil, fmt.Errorf("cache: storing fingerprint: %w", err)
		}
	}
	return c, nil
}

func (c *Cache) fingerprintStale() (bool, error) {
	var stored string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyFingerprint))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			stored = string(val)
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return stored != c.fingerprint, nil
}

func (c *Cache) storeFingerprint() error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyFingerprint), []byte(c.fingerprint))
	})
}

func (c *Cache) dropAll() error {
	return c.db.DropPrefix([]byte(keyPrefixEntry))
}

func (c *Cache) entryKey(key string) []byte {
	return []byte(keyPrefixEntry + key)
}

// Put gzip-compresses value and stores it under key.
func (c *Cache) Put(ctx context.Context, key string, value []byte) error {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("cache: creating gzip writer: %w", err)
	}
	if _, err := gw.Write(value); err != nil {
		return fmt.Errorf("cache: compressing value: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("cache: closing gzip writer: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(c.entryKey(key), buf.Bytes())
	})
}

// Get retrieves and gunzips the value stored under key. found is
// false when the key is absent — never an error.
func (c *Cache) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(c.entryKey(key))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		found = true
		return item.Value(func(compressed []byte) error {
			gr, gzErr := gzip.NewReader(bytes.NewReader(compressed))
			if gzErr != nil {
				return gzErr
			}
			defer gr.Close()
			decompressed, readErr := io.ReadAll(gr)
			if readErr != nil {
				return readErr
			}
			value = decompressed
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %q: %w", key, err)
	}
	return value, found, nil
}

// Entry is one decompressed cache record, as returned by DumpAll.
type Entry struct {
	Key        string
	Value      []byte
	SizeOnDisk int
}

// DumpAll iterates every cache entry in db regardless of its stored
// fingerprint and returns each decompressed, sorted by key. Unlike
// Open, it never drops entries on a fingerprint mismatch — it is a
// read-only diagnostic for the cache-dump CLI command, which has no
// fingerprint of its own to compare against.
func DumpAll(ctx context.Context, db *badger.DB) ([]Entry, error) {
	var entries []Entry
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), keyPrefixEntry)
			sizeOnDisk := int(item.EstimatedSize())

			err := item.Value(func(compressed []byte) error {
				gr, gzErr := gzip.NewReader(bytes.NewReader(compressed))
				if gzErr != nil {
					return gzErr
				}
				defer gr.Close()
				decompressed, readErr := io.ReadAll(gr)
				if readErr != nil {
					return readErr
				}
				entries = append(entries, Entry{Key: key, Value: decompressed, SizeOnDisk: sizeOnDisk})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: dump: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// QueryKey canonicalizes a query's sorted-space term IDs into a stable
// cache key, independent of input order.
func QueryKey(sortedTermIDs []int) string {
	ids := append([]int(nil), sortedTermIDs...)
	sort.Ints(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "query:" + strings.Join(parts, ",")
}
