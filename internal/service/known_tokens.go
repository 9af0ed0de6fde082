package service

import "fmt"

// knownToken carries metadata for tokens we recognize without asking any
// data source
type knownToken struct {
	Symbol   string
	Decimals int
}

// knownTokens maps lowercased Base contract addresses to metadata. Used by
// the fallback path when transfer records carry no usable decimals.
var knownTokens = map[string]knownToken{
	"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913": {Symbol: "USDC", Decimals: 6},
	"0x4200000000000000000000000000000000000006": {Symbol: "WETH", Decimals: 18},
	"0x50c5725949a6f0c72e6c4a641f24049a917db0cb": {Symbol: "DAI", Decimals: 18},
	"0xd9aaec86b65d86f6a7b5b1b0c42ffa531710b6ca": {Symbol: "USDbC", Decimals: 6},
}

// defaultTokenDecimals is assumed when neither the transfer record nor the
// known-token table has decimals for a contract
const defaultTokenDecimals = 18

// nftMarketplaces holds lowercased contract addresses whose appearance as a
// transaction recipient counts as marketplace interaction
var nftMarketplaces = map[string]string{
	"0x00000000000001ad428e4906ae43d8f9852d0dd6": "Seaport 1.5",
	"0x0000000000000068f116a894984e2db1123eb395": "Seaport 1.6",
	"0x1e0049783f008a0085193e00003d00cd54003c71": "OpenSea Conduit",
}

// placeholderSymbol derives a display symbol for a token with no known
// metadata, e.g. "TOKEN-0x8335"
func placeholderSymbol(address string) string {
	if len(address) >= 6 {
		return fmt.Sprintf("TOKEN-%s", address[:6])
	}
	return fmt.Sprintf("TOKEN-%s", address)
}
