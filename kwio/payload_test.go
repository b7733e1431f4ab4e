package kwio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayload_Accessors(t *testing.T) {
	t.Parallel()

	p := NewInts([]int32{1, 2})
	assert.Equal(t, TypeInte, p.Type())
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, []int32{1, 2}, p.Ints())

	p = NewStrings([]string{"OP1"})
	assert.Equal(t, TypeChar, p.Type())
	assert.Equal(t, []string{"OP1"}, p.Strings())

	p = NewMessage()
	assert.Equal(t, TypeMess, p.Type())
	assert.Equal(t, 0, p.Len())
}

func TestPayload_ZeroValue(t *testing.T) {
	t.Parallel()

	var p Payload
	assert.Equal(t, TypeInte, p.Type())
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Ints())
}

func TestPayload_WrongTypePanics(t *testing.T) {
	t.Parallel()

	p := NewReals([]float32{1})
	assert.Panics(t, func() { p.Ints() })
	assert.Panics(t, func() { p.Strings() })
	assert.NotPanics(t, func() { p.Reals() })
}

func TestPayload_Float64s(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{1, -2}, NewInts([]int32{1, -2}).Float64s())
	assert.Equal(t, []float64{0.5}, NewReals([]float32{0.5}).Float64s())
	assert.Equal(t, []float64{2.5}, NewDoubs([]float64{2.5}).Float64s())
	assert.Panics(t, func() { NewStrings([]string{"X"}).Float64s() })
	assert.Panics(t, func() { NewMessage().Float64s() })
}

func TestType_Properties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ      Type
		mnemonic string
		elemSize int
		numeric  bool
	}{
		{TypeInte, "INTE", 4, true},
		{TypeReal, "REAL", 4, true},
		{TypeDoub, "DOUB", 8, true},
		{TypeLogi, "LOGI", 4, false},
		{TypeChar, "CHAR", 8, false},
		{TypeMess, "MESS", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.mnemonic, func(t *testing.T) {
			assert.Equal(t, tt.mnemonic, tt.typ.String())
			assert.Equal(t, tt.elemSize, tt.typ.ElemSize())
			assert.Equal(t, tt.numeric, tt.typ.Numeric())

			parsed, ok := ParseType(tt.mnemonic)
			assert.True(t, ok)
			assert.Equal(t, tt.typ, parsed)
		})
	}

	_, ok := ParseType("BOOL")
	assert.False(t, ok)
}
