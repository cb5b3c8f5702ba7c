package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema. Every record of a pair lives under the pair key, with
// fixed-width binary suffixes so range scans parse without guessing:
//
//	meta:lastoid                          → u64 BE   (order-id counter)
//	book:<pair>                           → Book JSON
//	ord:<pair>:<oid 8 BE>                 → Order JSON
//	odp:<pair>:<price 16 BE>:<oid 8 BE>   → direction byte
//	odb:<pair>:<addr 20>:<oid 8 BE>       → direction byte
//	odd:<pair>:<dir 1>:<oid 8 BE>         → direction byte
//	tick:<pair>:<dir 1>:<price 16 BE>     → u64 BE   (resting order count)
//
// Order ids and prices are big-endian so byte order equals numeric order and
// the native iterator doubles as FIFO / price scan.
const (
	prefixBook      = "book:"
	prefixOrder     = "ord:"
	prefixByPrice   = "odp:"
	prefixByBidder  = "odb:"
	prefixByDir     = "odd:"
	prefixTick      = "tick:"
	orderIDKeyWidth = 8
)

var keyLastOrderID = []byte("meta:lastoid")

func bookKey(pair []byte) []byte {
	return append([]byte(prefixBook), pair...)
}

func booksPrefix() []byte { return []byte(prefixBook) }

func segmented(prefix string, segments ...[]byte) []byte {
	n := len(prefix)
	for _, s := range segments {
		n += len(s) + 1
	}
	key := make([]byte, 0, n)
	key = append(key, prefix...)
	for _, s := range segments {
		key = append(key, s...)
		key = append(key, ':')
	}
	return key
}

func orderIDBytes(id uint64) []byte {
	var b [orderIDKeyWidth]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func parseOrderIDSuffix(key []byte) (uint64, error) {
	if len(key) < orderIDKeyWidth {
		return 0, fmt.Errorf("index key too short for order id: %d bytes", len(key))
	}
	return binary.BigEndian.Uint64(key[len(key)-orderIDKeyWidth:]), nil
}

// ord:<pair>: ... <oid>
func orderPrefix(pair []byte) []byte {
	return segmented(prefixOrder, pair)
}

func orderKey(pair []byte, id uint64) []byte {
	return append(orderPrefix(pair), orderIDBytes(id)...)
}

// odp:<pair>:<price>: ... <oid>
func priceIndexPrefix(pair, priceKey []byte) []byte {
	return segmented(prefixByPrice, pair, priceKey)
}

func priceIndexKey(pair, priceKey []byte, id uint64) []byte {
	return append(priceIndexPrefix(pair, priceKey), orderIDBytes(id)...)
}

// odb:<pair>:<addr>: ... <oid>
func bidderIndexPrefix(pair []byte, bidder common.Address) []byte {
	return segmented(prefixByBidder, pair, bidder.Bytes())
}

func bidderIndexKey(pair []byte, bidder common.Address, id uint64) []byte {
	return append(bidderIndexPrefix(pair, bidder), orderIDBytes(id)...)
}

// odd:<pair>:<dir>: ... <oid>
func directionIndexPrefix(pair []byte, dir byte) []byte {
	return segmented(prefixByDir, pair, []byte{dir})
}

func directionIndexKey(pair []byte, dir byte, id uint64) []byte {
	return append(directionIndexPrefix(pair, dir), orderIDBytes(id)...)
}

// tick:<pair>:<dir>: ... <price>
func tickPrefix(pair []byte, dir byte) []byte {
	return segmented(prefixTick, pair, []byte{dir})
}

func tickKey(pair []byte, dir byte, priceKey []byte) []byte {
	return append(tickPrefix(pair, dir), priceKey...)
}
