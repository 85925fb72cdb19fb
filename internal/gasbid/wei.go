package gasbid

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var gweiInWei = decimal.New(1, 9)

// GasPriceWei converts the bid's gwei price to wei, truncating sub-wei dust.
func (b *Bid) GasPriceWei() *big.Int {
	return b.GasPriceGwei.Mul(gweiInWei).Truncate(0).BigInt()
}
