package synthetic

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/replay/pkg/common"
	"github.com/peter-kozarec/replay/pkg/datasource"
	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

const (
	minutesPerSession  = 240
	tradingDaysPerYear = 252.0
)

// Params describes the geometric brownian motion a security follows.
type Params struct {
	StartPrice float64
	// Mu and Sigma are annualised drift and volatility.
	Mu    float64
	Sigma float64
	// LimitRatio clamps every close to the daily price band, 0 disables it.
	LimitRatio float64
	AvgVolume  int64
	LotSize    int64
	// SuspendProbability is the chance a given day produces no trades.
	SuspendProbability float64
}

type stream struct {
	params    Params
	rng       *rand.Rand
	day       time.Time
	generated int
	preClose  float64
	pending   []common.Bar
}

// Generator produces reproducible bars for a set of securities. Streams of
// different securities draw from independent generators derived from the
// seed, so the order in which they are consumed does not matter.
type Generator struct {
	seed   int64
	start  time.Time
	days   int
	params map[string]Params

	streams map[streamKey]*stream
}

type streamKey struct {
	security  string
	frequency common.Frequency
}

func NewGenerator(seed int64, start time.Time, days int) *Generator {
	return &Generator{
		seed:    seed,
		start:   common.TradingDay(start),
		days:    days,
		params:  make(map[string]Params),
		streams: make(map[streamKey]*stream),
	}
}

func (g *Generator) Add(security string, params Params) {
	if params.LotSize <= 0 {
		params.LotSize = 100
	}
	g.params[security] = params
}

func (g *Generator) Next(security string, frequency common.Frequency) (common.Bar, error) {
	p, ok := g.params[security]
	if !ok || !frequency.Valid() {
		return common.Bar{}, datasource.ErrEndOfStream
	}

	k := streamKey{security, frequency}
	s, ok := g.streams[k]
	if !ok {
		s = g.newStream(security, p)
		g.streams[k] = s
	}

	for len(s.pending) == 0 {
		if s.generated >= g.days {
			return common.Bar{}, datasource.ErrEndOfStream
		}
		s.pending = s.nextDay(security, frequency)
		s.generated++
	}

	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, nil
}

func (g *Generator) Reset() {
	for k := range g.streams {
		delete(g.streams, k)
	}
}

func (g *Generator) newStream(security string, p Params) *stream {
	h := fnv.New64a()
	_, _ = h.Write([]byte(security))
	return &stream{
		params:   p,
		rng:      rand.New(rand.NewSource(g.seed ^ int64(h.Sum64()))),
		day:      skipWeekend(g.start),
		preClose: p.StartPrice,
	}
}

func (s *stream) nextDay(security string, frequency common.Frequency) []common.Bar {
	day := s.day
	s.day = skipWeekend(day.AddDate(0, 0, 1))

	if s.rng.Float64() < s.params.SuspendProbability {
		if frequency == common.FrequencyDaily {
			return []common.Bar{s.suspended(security, frequency, sessionClose(day))}
		}
		return nil
	}

	if frequency == common.FrequencyDaily {
		bar := s.step(security, frequency, sessionClose(day), 1)
		return []common.Bar{bar}
	}

	bars := make([]common.Bar, 0, minutesPerSession)
	for _, ts := range sessionMinutes(day) {
		bars = append(bars, s.step(security, frequency, ts, minutesPerSession))
	}
	return bars
}

func (s *stream) step(security string, frequency common.Frequency, ts time.Time, stepsPerDay float64) common.Bar {
	p := s.params
	dt := 1.0 / (tradingDaysPerYear * stepsPerDay)

	drift := (p.Mu - 0.5*p.Sigma*p.Sigma) * dt
	diffusion := p.Sigma * math.Sqrt(dt)

	open := s.preClose * math.Exp(diffusion*0.25*s.rng.NormFloat64())
	closePrice := s.preClose * math.Exp(drift+diffusion*s.rng.NormFloat64())
	high := math.Max(open, closePrice) * (1 + math.Abs(s.rng.NormFloat64())*diffusion*0.5)
	low := math.Min(open, closePrice) * (1 - math.Abs(s.rng.NormFloat64())*diffusion*0.5)
	if p.LimitRatio > 0 {
		up := s.preClose * (1 + p.LimitRatio)
		down := s.preClose * (1 - p.LimitRatio)
		open = clamp(open, down, up)
		closePrice = clamp(closePrice, down, up)
		high = clamp(high, down, up)
		low = clamp(low, down, up)
	}

	volume := int64(float64(p.AvgVolume) / stepsPerDay * math.Exp(0.4*s.rng.NormFloat64()))
	volume = (volume / p.LotSize) * p.LotSize
	if volume <= 0 {
		volume = p.LotSize
	}

	bar := common.Bar{
		Security:  security,
		Frequency: frequency,
		TimeStamp: ts,
		Open:      money.RoundCurrency(open),
		High:      money.RoundCurrency(high),
		Low:       money.RoundCurrency(low),
		Close:     money.RoundCurrency(closePrice),
		Volume:    volume,
		PreClose:  money.RoundCurrency(s.preClose),
	}
	bar.High = fixed.Max(bar.High, fixed.Max(bar.Open, bar.Close))
	bar.Low = fixed.Min(bar.Low, fixed.Min(bar.Open, bar.Close))
	if bar.Low.IsZero() || bar.Low.IsNeg() {
		bar.Low = fixed.New(1, 2)
	}
	bar.Turnover = money.RoundCurrency(float64(volume) * (open + closePrice) / 2)

	// Rounded closes feed the next step so PreClose matches the previous bar.
	s.preClose, _ = bar.Close.Float64()
	return bar
}

func (s *stream) suspended(security string, frequency common.Frequency, ts time.Time) common.Bar {
	price := money.RoundCurrency(s.preClose)
	return common.Bar{
		Security:  security,
		Frequency: frequency,
		TimeStamp: ts,
		Open:      price,
		High:      price,
		Low:       price,
		Close:     price,
		PreClose:  price,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func skipWeekend(day time.Time) time.Time {
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func sessionClose(day time.Time) time.Time {
	return day.Add(15 * time.Hour)
}

// sessionMinutes returns the closing stamps of the morning 09:31-11:30 and
// afternoon 13:01-15:00 minute bars.
func sessionMinutes(day time.Time) []time.Time {
	out := make([]time.Time, 0, minutesPerSession)
	morning := day.Add(9*time.Hour + 30*time.Minute)
	afternoon := day.Add(13 * time.Hour)
	for i := 1; i <= minutesPerSession/2; i++ {
		out = append(out, morning.Add(time.Duration(i)*time.Minute))
	}
	for i := 1; i <= minutesPerSession/2; i++ {
		out = append(out, afternoon.Add(time.Duration(i)*time.Minute))
	}
	return out
}
