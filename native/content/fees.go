package content

import "math/big"

// Fee split in basis points. The five shares sum to BpsDenominator; the
// treasury share is never computed from its own rate but absorbs whatever the
// other four truncate away.
const (
	BpsDenominator = 10_000
	OwnerFeeBps    = 8_000
	TreasuryFeeBps = 1_500
	CreatorFeeBps  = 300
	TeamFeeBps     = 100
	ProtocolFeeBps = 100
)

// Split is the per-recipient breakdown of one collect price.
type Split struct {
	Owner    *big.Int
	Treasury *big.Int
	Creator  *big.Int
	Team     *big.Int
	Protocol *big.Int
}

// Total returns the sum of all five shares.
func (s Split) Total() *big.Int {
	total := new(big.Int)
	for _, share := range []*big.Int{s.Owner, s.Treasury, s.Creator, s.Team, s.Protocol} {
		if share != nil {
			total.Add(total, share)
		}
	}
	return total
}

func bpsOf(amount *big.Int, bps int64) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(bps))
	return share.Quo(share, big.NewInt(BpsDenominator))
}

// SplitPrice divides price among the five recipients so that the shares sum
// to exactly price.
func SplitPrice(price *big.Int) Split {
	if price == nil || price.Sign() <= 0 {
		return Split{Owner: big.NewInt(0), Treasury: big.NewInt(0), Creator: big.NewInt(0), Team: big.NewInt(0), Protocol: big.NewInt(0)}
	}
	split := Split{
		Owner:    bpsOf(price, OwnerFeeBps),
		Creator:  bpsOf(price, CreatorFeeBps),
		Team:     bpsOf(price, TeamFeeBps),
		Protocol: bpsOf(price, ProtocolFeeBps),
	}
	treasury := new(big.Int).Set(price)
	treasury.Sub(treasury, split.Owner)
	treasury.Sub(treasury, split.Creator)
	treasury.Sub(treasury, split.Team)
	treasury.Sub(treasury, split.Protocol)
	split.Treasury = treasury
	return split
}
