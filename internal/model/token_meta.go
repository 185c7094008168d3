package model

// TokenMeta is what the CLI reads from the pool's token contract to format
// amounts. Symbol and Name may be empty for tokens without them.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}
