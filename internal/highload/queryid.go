package highload

import (
	"fmt"

	"github.com/openbuilders/highload-sender/internal/errors"
)

const BIT_NUMBER_SIZE = 10  // 10 bits
const SHIFT_SIZE = 13       // 13 bits
const QUERY_ID_SIZE = 23    // SHIFT_SIZE + BIT_NUMBER_SIZE
const MAX_BIT_NUMBER = 1022 // (2^10) - 2, 1023 is reserved
const MAX_SHIFT = 8191      // (2^13) - 1

// BIT_NUMBER_SPAN is the number of usable slots per shift.
const BIT_NUMBER_SPAN = MAX_BIT_NUMBER + 1

// MAX_QUERY_ID is the integer value of the last query id in the space.
const MAX_QUERY_ID = MAX_SHIFT*BIT_NUMBER_SPAN + MAX_BIT_NUMBER

// QueryID is a coordinate in the processed-messages bitmap of the highload
// wallet: shift selects a 1023-slot row and bitnumber the slot inside it.
// The zero value is the first query id.
type QueryID struct {
	shift     uint64 // [0 .. 8191]
	bitnumber uint64 // [0 .. 1022]
}

// FromShiftAndBitNumber safely creates a new QueryID.
func FromShiftAndBitNumber(shift, bitnumber uint64) (QueryID, error) {
	if shift > MAX_SHIFT {
		return QueryID{}, errors.New(CodeRange,
			"invalid shift %d: must be in [0, %d]", shift, MAX_SHIFT)
	}
	if bitnumber > MAX_BIT_NUMBER {
		return QueryID{}, errors.New(CodeRange,
			"invalid bitnumber %d: must be in [0, %d]", bitnumber, MAX_BIT_NUMBER)
	}

	return QueryID{shift: shift, bitnumber: bitnumber}, nil
}

// FromInteger restores a QueryID from the value returned by Uint64.
func FromInteger(queryID uint64) (QueryID, error) {
	if queryID > MAX_QUERY_ID {
		return QueryID{}, errors.New(CodeRange,
			"invalid query id %d: must be in [0, %d]", queryID, MAX_QUERY_ID)
	}

	return QueryID{
		shift:     queryID / BIT_NUMBER_SPAN,
		bitnumber: queryID % BIT_NUMBER_SPAN,
	}, nil
}

func (q QueryID) Shift() uint64 {
	return q.shift
}

func (q QueryID) BitNumber() uint64 {
	return q.bitnumber
}

// Uint64 returns the 23-bit integer stored in the external message.
func (q QueryID) Uint64() uint64 {
	return q.shift*BIT_NUMBER_SPAN + q.bitnumber
}

// Next returns the query id following q. It never wraps around: once the
// last slot of the last shift is reached ErrExhausted is returned.
func (q QueryID) Next() (QueryID, error) {
	if q.bitnumber < MAX_BIT_NUMBER {
		return QueryID{shift: q.shift, bitnumber: q.bitnumber + 1}, nil
	}

	if q.shift >= MAX_SHIFT {
		return QueryID{}, errors.New(CodeExhausted,
			"overload: cannot generate more query ids after %s", q)
	}

	return QueryID{shift: q.shift + 1, bitnumber: 0}, nil
}

func (q QueryID) HasNext() bool {
	return q.bitnumber < MAX_BIT_NUMBER || q.shift < MAX_SHIFT
}

// Compare returns -1, 0 or 1. The order is the numeric order of Uint64.
func (q QueryID) Compare(other QueryID) int {
	switch {
	case q.shift < other.shift:
		return -1
	case q.shift > other.shift:
		return 1
	case q.bitnumber < other.bitnumber:
		return -1
	case q.bitnumber > other.bitnumber:
		return 1
	}

	return 0
}

func (q QueryID) String() string {
	return fmt.Sprintf("%d(shift=%d, bitnumber=%d)", q.Uint64(), q.shift, q.bitnumber)
}
