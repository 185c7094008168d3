package pool

import "fmt"

// Direction selects which asset is sold into the pool.
type Direction uint8

const (
	NativeToToken Direction = iota + 1
	TokenToNative
)

func (d Direction) String() string {
	switch d {
	case NativeToToken:
		return "native_to_token"
	case TokenToNative:
		return "token_to_native"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection accepts the String form plus the contract method aliases.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "native_to_token", "eth_to_gmon", "buy":
		return NativeToToken, nil
	case "token_to_native", "gmon_to_eth", "sell":
		return TokenToNative, nil
	default:
		return 0, fmt.Errorf("unknown swap direction %q", s)
	}
}
