package synthetic

// BlueChip resembles a large cap main board stock.
func BlueChip(startPrice float64) Params {
	return Params{
		StartPrice: startPrice,
		Mu:         0.05,
		Sigma:      0.22,
		LimitRatio: 0.10,
		AvgVolume:  5_000_000,
		LotSize:    100,
	}
}

// Growth resembles a volatile STAR board stock that is occasionally suspended.
func Growth(startPrice float64) Params {
	return Params{
		StartPrice:         startPrice,
		Mu:                 0.12,
		Sigma:              0.55,
		LimitRatio:         0.20,
		AvgVolume:          800_000,
		LotSize:            200,
		SuspendProbability: 0.01,
	}
}
