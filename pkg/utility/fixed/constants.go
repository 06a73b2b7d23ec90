package fixed

var (
	NegOne  = New(-1, 0)
	Zero    = New(0, 0)
	One     = New(1, 0)
	Two     = New(2, 0)
	Hundred = New(100, 0)

	// Sqrt252 annualizes daily volatility over trading days.
	Sqrt252 = MustParse("15.874507866387544")
)
