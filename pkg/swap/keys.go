package swap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema:
//
//   ord:<20-digit-id>  → Order (JSON)
//   tok:<address>      → TokenInfo (JSON)
//   meta:next_order_id → decimal counter
//   meta:balance       → decimal tinybars held by the engine
//   meta:weth          → wrapped-native binding (hex address)
//
// Order IDs are zero-padded for lexicographic iteration in creation order.

const (
	prefixOrder = "ord:"
	prefixToken = "tok:"

	keyNextOrderID = "meta:next_order_id"
	keyBalance     = "meta:balance"
	keyWrapped     = "meta:weth"
)

// orderKey returns the key for an order.
// Format: "ord:{id}" with the id zero-padded to 20 digits.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

// orderPrefix returns the prefix for all orders.
func orderPrefix() []byte {
	return []byte(prefixOrder)
}

// tokenKey returns the key for a registry entry.
// Format: "tok:{address}"
func tokenKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixToken, addr.Hex()))
}

// tokenPrefix returns the prefix for all registry entries.
func tokenPrefix() []byte {
	return []byte(prefixToken)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
