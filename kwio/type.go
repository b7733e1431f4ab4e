package kwio

// Type identifies the element type of a record payload.
type Type uint8

const (
	// TypeInte holds 32-bit signed integers.
	TypeInte Type = iota
	// TypeReal holds 32-bit floats.
	TypeReal
	// TypeDoub holds 64-bit floats.
	TypeDoub
	// TypeLogi holds booleans, stored as 32-bit integers on disk.
	TypeLogi
	// TypeChar holds strings of at most 8 characters.
	TypeChar
	// TypeMess carries no payload; the record is its own message.
	TypeMess
)

var mnemonics = [...]string{
	TypeInte: "INTE",
	TypeReal: "REAL",
	TypeDoub: "DOUB",
	TypeLogi: "LOGI",
	TypeChar: "CHAR",
	TypeMess: "MESS",
}

// String returns the 4-character type mnemonic used on disk.
func (t Type) String() string {
	if int(t) < len(mnemonics) {
		return mnemonics[t]
	}
	return "????"
}

// Numeric reports whether payloads of this type can be converted with
// Payload.Float64s.
func (t Type) Numeric() bool {
	return t == TypeInte || t == TypeReal || t == TypeDoub
}

// ElemSize returns the on-disk size in bytes of one element in the
// unformatted encoding. TypeMess has no elements and returns 0.
func (t Type) ElemSize() int {
	switch t {
	case TypeInte, TypeReal, TypeLogi:
		return 4
	case TypeDoub, TypeChar:
		return 8
	default:
		return 0
	}
}

// blockSize returns the maximum element count of one payload record.
func (t Type) blockSize() int {
	if t == TypeChar {
		return blockChar
	}
	return blockNumeric
}

// ParseType maps a type mnemonic to its Type. The second return is
// false for unrecognized mnemonics.
func ParseType(s string) (Type, bool) {
	for t, m := range mnemonics {
		if s == m {
			return Type(t), true
		}
	}
	return 0, false
}
