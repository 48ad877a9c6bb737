package events

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAddresses(addrs []common.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		parts = append(parts, formatAddress(addr))
	}
	return strings.Join(parts, ",")
}
