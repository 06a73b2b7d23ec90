package exchange

import (
	"errors"
	"fmt"
	"strings"

	"github.com/peter-kozarec/replay/pkg/money"
	"github.com/peter-kozarec/replay/pkg/utility/fixed"
)

var ErrUnknownSecurity = errors.New("unknown security")

type Board string

const (
	BoardMain Board = "MAIN"
	BoardStar Board = "STAR"
	BoardGem  Board = "GEM"
	BoardBse  Board = "BSE"
)

func ParseBoard(s string) (Board, error) {
	switch b := Board(strings.ToUpper(s)); b {
	case BoardMain, BoardStar, BoardGem, BoardBse:
		return b, nil
	}
	return "", fmt.Errorf("unknown board %q", s)
}

type BoardRule struct {
	LotSize    int64
	LimitRatio fixed.Point
}

// Rules holds per board lot sizes and daily price limits. Securities under
// special treatment use STLimitRatio regardless of board.
type Rules struct {
	Boards       map[Board]BoardRule
	STLimitRatio fixed.Point
}

func DefaultRules() Rules {
	return Rules{
		Boards: map[Board]BoardRule{
			BoardMain: {LotSize: 100, LimitRatio: fixed.MustParse("0.10")},
			BoardStar: {LotSize: 200, LimitRatio: fixed.MustParse("0.20")},
			BoardGem:  {LotSize: 100, LimitRatio: fixed.MustParse("0.20")},
			BoardBse:  {LotSize: 100, LimitRatio: fixed.MustParse("0.30")},
		},
		STLimitRatio: fixed.MustParse("0.05"),
	}
}

type SymbolInfo struct {
	Security string
	Name     string
	Board    Board
	// SpecialTreatment marks ST securities with the narrower price limit.
	SpecialTreatment bool
}

// Catalog resolves securities to their trading rules.
type Catalog struct {
	rules   Rules
	symbols map[string]SymbolInfo
}

func NewCatalog(rules Rules, symbols ...SymbolInfo) *Catalog {
	c := &Catalog{rules: rules, symbols: make(map[string]SymbolInfo, len(symbols))}
	for _, s := range symbols {
		c.symbols[s.Security] = s
	}
	return c
}

func (c *Catalog) Add(info SymbolInfo) {
	c.symbols[info.Security] = info
}

func (c *Catalog) Lookup(security string) (SymbolInfo, error) {
	s, ok := c.symbols[security]
	if !ok {
		return SymbolInfo{}, fmt.Errorf("%w: %s", ErrUnknownSecurity, security)
	}
	if _, ok := c.rules.Boards[s.Board]; !ok {
		return SymbolInfo{}, fmt.Errorf("%w: %s has no rule for board %q", ErrUnknownSecurity, security, s.Board)
	}
	return s, nil
}

func (c *Catalog) LotSize(s SymbolInfo) int64 {
	return c.rules.Boards[s.Board].LotSize
}

func (c *Catalog) LimitRatio(s SymbolInfo) fixed.Point {
	if s.SpecialTreatment {
		return c.rules.STLimitRatio
	}
	return c.rules.Boards[s.Board].LimitRatio
}

// Limits are the day's price bounds. A zero value means no limit is known.
type Limits struct {
	Up   fixed.Point
	Down fixed.Point
}

func (l Limits) Known() bool {
	return l.Up.IsPos()
}

// LimitPrices computes RoundCurrency(preClose * (1 +- ratio)). An unknown
// preClose yields unknown limits.
func (c *Catalog) LimitPrices(s SymbolInfo, preClose fixed.Point) Limits {
	if !preClose.IsPos() {
		return Limits{}
	}
	ratio := c.LimitRatio(s)
	pc, _ := preClose.Float64()
	r, _ := ratio.Float64()
	return Limits{
		Up:   money.RoundCurrency(float64(pc * float64(1+r))),
		Down: money.RoundCurrency(float64(pc * float64(1-r))),
	}
}

// SymbolFromCode guesses the board of a mainland security code such as
// "688001.XSHG". Codes that match no known prefix default to the main board.
func SymbolFromCode(security string) SymbolInfo {
	code := security
	if i := strings.IndexByte(code, '.'); i >= 0 {
		code = code[:i]
	}
	board := BoardMain
	switch {
	case strings.HasPrefix(code, "688") || strings.HasPrefix(code, "689"):
		board = BoardStar
	case strings.HasPrefix(code, "300") || strings.HasPrefix(code, "301"):
		board = BoardGem
	case strings.HasPrefix(code, "8") || strings.HasPrefix(code, "43") || strings.HasPrefix(code, "92"):
		board = BoardBse
	}
	return SymbolInfo{Security: security, Board: board}
}
