package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"hidden-talk/infrastructure/storage"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// badger_inspect lists the keys of a stopped (or live, read-only) Badger store
// with their remaining lifetime. List items are folded into their header unless -items is set.
func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan, e.g. meta:")
	items := flag.Bool("items", false, "Also print every list item")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer func() { _ = db.Close() }()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Size", "TTL", "Expires at"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	now := time.Now()
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if storage.IsListItem(key) && !*items {
				continue
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			table.Append([]string{
				displayKey(key),
				kindOf(key),
				sizeOf(key, value),
				ttlOf(item.ExpiresAt(), now),
				expiresAt(item.ExpiresAt()),
			})
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	table.Render()
}

func displayKey(key []byte) string {
	if head, index, found := strings.Cut(string(key), "\x00"); found {
		if index = strings.TrimLeft(index, "0"); index == "" {
			index = "0"
		}
		return fmt.Sprintf("%s[%s]", head, index)
	}
	return string(key)
}

func kindOf(key []byte) string {
	raw := string(key)
	switch {
	case storage.IsListItem(key):
		return "item"
	case strings.Contains(raw, "messages:"):
		return "history"
	case strings.Contains(raw, "participants:"):
		return "participants"
	case strings.Contains(raw, "meta:"):
		return "room"
	default:
		return "other"
	}
}

// sizeOf reports the item count of list headers and the byte size of everything else.
func sizeOf(key, value []byte) string {
	if !storage.IsListItem(key) && len(value) == 8 && kindOf(key) != "room" {
		return fmt.Sprintf("%d items", binary.BigEndian.Uint64(value))
	}
	return fmt.Sprintf("%d B", len(value))
}

func ttlOf(expires uint64, now time.Time) string {
	if expires == 0 {
		return "none"
	}
	left := time.Unix(int64(expires), 0).Sub(now)
	if left <= 0 {
		return "expired"
	}
	return left.Truncate(time.Second).String()
}

func expiresAt(expires uint64) string {
	if expires == 0 {
		return "-"
	}
	return time.Unix(int64(expires), 0).UTC().Format(time.RFC3339)
}
