package kwio

import "fmt"

// Payload is a decoded record payload: one typed array. Construct
// payloads with NewInts and friends; the zero value is an empty
// TypeInte payload.
//
// The typed accessors follow the reflect.Value convention: asking for
// the wrong element type is a programming error and panics. Check
// Type first when the type is not known statically.
type Payload struct {
	typ  Type
	data any
}

// NewInts returns a TypeInte payload over v. The slice is not copied.
func NewInts(v []int32) Payload { return Payload{typ: TypeInte, data: v} }

// NewReals returns a TypeReal payload over v. The slice is not copied.
func NewReals(v []float32) Payload { return Payload{typ: TypeReal, data: v} }

// NewDoubs returns a TypeDoub payload over v. The slice is not copied.
func NewDoubs(v []float64) Payload { return Payload{typ: TypeDoub, data: v} }

// NewBools returns a TypeLogi payload over v. The slice is not copied.
func NewBools(v []bool) Payload { return Payload{typ: TypeLogi, data: v} }

// NewStrings returns a TypeChar payload over v. The slice is not
// copied. Elements longer than NameLen bytes are rejected at write
// time, not here.
func NewStrings(v []string) Payload { return Payload{typ: TypeChar, data: v} }

// NewMessage returns the empty TypeMess payload.
func NewMessage() Payload { return Payload{typ: TypeMess} }

// Type returns the element type of the payload.
func (p Payload) Type() Type { return p.typ }

// Len returns the number of elements.
func (p Payload) Len() int {
	switch v := p.data.(type) {
	case []int32:
		return len(v)
	case []float32:
		return len(v)
	case []float64:
		return len(v)
	case []bool:
		return len(v)
	case []string:
		return len(v)
	default:
		return 0
	}
}

// Ints returns the elements of a TypeInte payload.
func (p Payload) Ints() []int32 {
	p.mustType(TypeInte)
	v, _ := p.data.([]int32)
	return v
}

// Reals returns the elements of a TypeReal payload.
func (p Payload) Reals() []float32 {
	p.mustType(TypeReal)
	v, _ := p.data.([]float32)
	return v
}

// Doubs returns the elements of a TypeDoub payload.
func (p Payload) Doubs() []float64 {
	p.mustType(TypeDoub)
	v, _ := p.data.([]float64)
	return v
}

// Bools returns the elements of a TypeLogi payload.
func (p Payload) Bools() []bool {
	p.mustType(TypeLogi)
	v, _ := p.data.([]bool)
	return v
}

// Strings returns the elements of a TypeChar payload, trimmed of
// trailing padding.
func (p Payload) Strings() []string {
	p.mustType(TypeChar)
	v, _ := p.data.([]string)
	return v
}

// Float64s converts a numeric payload (TypeInte, TypeReal or TypeDoub)
// to float64 elements. The result is always freshly allocated. It
// panics for non-numeric payloads.
func (p Payload) Float64s() []float64 {
	switch p.typ {
	case TypeInte:
		src := p.Ints()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case TypeReal:
		src := p.Reals()
		out := make([]float64, len(src))
		for i, v := range src {
			out[i] = float64(v)
		}
		return out
	case TypeDoub:
		src := p.Doubs()
		out := make([]float64, len(src))
		copy(out, src)
		return out
	default:
		panic(fmt.Sprintf("kwio: Float64s on %s payload", p.typ))
	}
}

func (p Payload) mustType(t Type) {
	if p.typ != t {
		panic(fmt.Sprintf("kwio: %s access on %s payload", t, p.typ))
	}
}
