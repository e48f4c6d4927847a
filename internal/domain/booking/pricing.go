package booking

// DefaultPricePerSeat は1席あたりの既定料金
const DefaultPricePerSeat = 20

// PricePolicy は座席数から料金を計算する
type PricePolicy struct {
	PerSeat int
}

// DefaultPricePolicy は既定の料金ポリシーを返す
func DefaultPricePolicy() PricePolicy {
	return PricePolicy{PerSeat: DefaultPricePerSeat}
}

// Price は合計金額を返す
func (p PricePolicy) Price(seatCount int) int {
	return seatCount * p.PerSeat
}
