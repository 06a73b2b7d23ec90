package fixed

func Sum(points []Point) Point {
	sum := Zero
	for _, point := range points {
		sum = sum.Add(point)
	}
	return sum
}

func Mean(points []Point) Point {
	if len(points) == 0 {
		return Zero
	}
	return Sum(points).DivInt(len(points))
}

func StdDev(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}
	return squaredDiffs(points, mean).DivInt(len(points)).Sqrt()
}

func SampleStdDev(points []Point, mean Point) Point {
	if len(points) <= 1 {
		return Zero
	}
	return squaredDiffs(points, mean).DivInt(len(points) - 1).Sqrt()
}

// DownsideDev only accounts for points below riskFreeRate.
func DownsideDev(points []Point, riskFreeRate Point) Point {
	sum := Zero
	count := 0
	for _, point := range points {
		if point.Lt(riskFreeRate) {
			diff := point.Sub(riskFreeRate)
			sum = sum.Add(diff.Mul(diff))
			count++
		}
	}
	if count <= 1 {
		return Zero
	}
	return sum.DivInt(count).Sqrt()
}

func SharpeRatio(points []Point, riskFreeRate Point) Point {
	if len(points) == 0 {
		return Zero
	}
	mean := Mean(points)
	volatility := StdDev(points, mean)
	if volatility.IsZero() {
		return Zero
	}
	return mean.Sub(riskFreeRate).Div(volatility)
}

func SortinoRatio(points []Point, riskFreeRate Point) Point {
	if len(points) == 0 {
		return Zero
	}
	downside := DownsideDev(points, riskFreeRate)
	if downside.IsZero() {
		return Zero
	}
	return Mean(points).Sub(riskFreeRate).Div(downside)
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of the peak.
func MaxDrawdown(values []Point) Point {
	maxDrawdown := Zero
	if len(values) == 0 {
		return maxDrawdown
	}
	peak := values[0]
	for _, value := range values {
		if value.Gt(peak) {
			peak = value
		}
		if !peak.IsPos() {
			continue
		}
		if drawdown := peak.Sub(value).Div(peak); drawdown.Gt(maxDrawdown) {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

func squaredDiffs(points []Point, mean Point) Point {
	sum := Zero
	for _, point := range points {
		diff := point.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}
	return sum
}
