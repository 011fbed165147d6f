package types

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/asticode/go-astiav"
)

// Rational is a frame rate or a time base. It is parsed from "30",
// "30000/1001", "29.97" (taken exactly) or "~29.97" (snapped to the
// NTSC-style N*1000/1001 when close enough).
type Rational struct {
	Num int
	Den int
}

func (r Rational) Reverse() Rational {
	return Rational{
		Num: r.Den,
		Den: r.Num,
	}
}

func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) Astiav() astiav.Rational {
	return astiav.NewRational(r.Num, r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func ntscRational(f float64) (Rational, bool) {
	r := Rational{Num: int(math.Ceil(f)) * 1000, Den: 1001}
	if math.Abs(f-r.Float64()) < 1e-2 {
		return r, true
	}
	return Rational{}, false
}

func rationalFromBig(rat *big.Rat) (Rational, error) {
	if !rat.Num().IsInt64() || !rat.Denom().IsInt64() {
		return Rational{}, fmt.Errorf("%s is out of range", rat)
	}
	return Rational{Num: int(rat.Num().Int64()), Den: int(rat.Denom().Int64())}, nil
}

func RationalFromString(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) == 0:
		return Rational{}, fmt.Errorf("unable to parse Rational from an empty string")
	case strings.Contains(s, "/"):
		var r Rational
		if _, err := fmt.Sscanf(s, "%d/%d", &r.Num, &r.Den); err != nil {
			return Rational{}, fmt.Errorf("unable to parse Rational from %q: %w", s, err)
		}
		if r.Den == 0 {
			return Rational{}, fmt.Errorf("denominator cannot be zero: %q", s)
		}
		return r, nil
	case s[0] == '~':
		rat, ok := new(big.Rat).SetString(s[1:])
		if !ok {
			return Rational{}, fmt.Errorf("unable to parse Rational from %q", s)
		}
		if rat.IsInt() {
			return rationalFromBig(rat)
		}
		f, _ := rat.Float64()
		if r, ok := ntscRational(f); ok {
			return r, nil
		}
		// keep 1/1000 precision
		rat = new(big.Rat).SetFrac64(int64(math.Round(f*1000)), 1000)
		return rationalFromBig(rat)
	default:
		rat, ok := new(big.Rat).SetString(s)
		if !ok {
			return Rational{}, fmt.Errorf("unable to parse Rational from %q", s)
		}
		return rationalFromBig(rat)
	}
}

func (r *Rational) Set(s string) error {
	v, err := RationalFromString(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func (r Rational) Type() string {
	return "rational"
}
