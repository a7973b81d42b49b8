package redis

const (
	// KeyPrefix namespaces every key the gallery writes.
	KeyPrefix = "gallery:"
	// KeyHistoryOrder is the sorted set of history URLs scored by view timestamp.
	KeyHistoryOrder = KeyPrefix + "history:order"
	// KeyHistoryItems is the hash of history URL -> JSON-encoded item.
	KeyHistoryItems = KeyPrefix + "history:items"
)

// HistoryOrderKey returns the key of the history ordering set
func HistoryOrderKey() string {
	return KeyHistoryOrder
}

// HistoryItemsKey returns the key of the history payload hash
func HistoryItemsKey() string {
	return KeyHistoryItems
}
