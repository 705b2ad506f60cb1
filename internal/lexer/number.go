// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Minerva Contributors

package lexer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

var (
	hexNumber        = regexp.MustCompile(`^0[xX][0-9A-Fa-f]+$`)
	octalNumber      = regexp.MustCompile(`^0\d+$`)
	validOctalNumber = regexp.MustCompile(`^0[0-7]+$`)
	decimalNumber    = regexp.MustCompile(`^(0|[1-9]\d*)$`)
	doubleNumber     = regexp.MustCompile(`^\d+(\.\d+)?([eE]-?\d+)?$`)
)

// parseNumber interprets a lexeme matched by the broad number rule.
// Integers respect their written base; a leading 0 without x/X is
// octal and must contain only octal digits.
func parseNumber(lexeme string, pos Position) (*NumberData, error) {
	rangeErr := func() error {
		return &Error{
			Pos: pos,
			Message: fmt.Sprintf("'%s' is not in the range of %d to %d.",
				lexeme, math.MinInt64, math.MaxInt64),
		}
	}

	switch {
	case hexNumber.MatchString(lexeme):
		v, err := strconv.ParseInt(lexeme[2:], 16, 64)
		if err != nil {
			return nil, rangeErr()
		}
		return &NumberData{Int: v, Base: BaseHex}, nil
	case octalNumber.MatchString(lexeme):
		if !validOctalNumber.MatchString(lexeme) {
			return nil, &Error{Pos: pos, Message: fmt.Sprintf("'%s' is not a valid number.", lexeme)}
		}
		v, err := strconv.ParseInt(lexeme[1:], 8, 64)
		if err != nil {
			return nil, rangeErr()
		}
		return &NumberData{Int: v, Base: BaseOctal}, nil
	case decimalNumber.MatchString(lexeme):
		v, err := strconv.ParseInt(lexeme, 10, 64)
		if err != nil {
			return nil, rangeErr()
		}
		return &NumberData{Int: v, Base: BaseDecimal}, nil
	case doubleNumber.MatchString(lexeme):
		v, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			return nil, rangeErr()
		}
		return &NumberData{IsFloat: true, Float: v, Base: BaseDecimal}, nil
	}
	return nil, &Error{Pos: pos, Message: fmt.Sprintf("'%s' is not a valid number.", lexeme)}
}
