package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/servicekit/errors"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		kind  Kind
	}{
		{"bool", Bool(true), KindBool},
		{"int", Int(-3), KindInt},
		{"uint", Uint(42), KindUint},
		{"float", Float(2.5), KindFloat},
		{"string", String("x"), KindString},
		{"bytes", Bytes([]byte{1, 2}), KindBytes},
		{"filter", FilterValue(NewFilter()), KindFilter},
		{"enum", EnumValue("info", 2), KindEnum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.value.Kind())
		})
	}
}

func TestValueAccessorsRejectWrongKind(t *testing.T) {
	v := String("hello")

	_, ok := v.Bool()
	assert.False(t, ok)
	_, ok = v.Uint()
	assert.False(t, ok)

	s, ok := v.Str()
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Uint(7).Equal(Uint(7)))
	assert.False(t, Uint(7).Equal(Uint(8)))
	assert.False(t, Uint(7).Equal(Int(7)))
	assert.True(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1, 2})))
	assert.False(t, Bytes([]byte{1, 2}).Equal(Bytes([]byte{1, 3})))
	assert.True(t, EnumValue("a", 1).Equal(EnumValue("a", 1)))
	assert.False(t, EnumValue("a", 1).Equal(EnumValue("b", 1)))

	f := NewFilter()
	assert.True(t, FilterValue(f).Equal(FilterValue(f)))
	assert.False(t, FilterValue(f).Equal(FilterValue(NewFilter())))
}

func TestPropertiesGetters(t *testing.T) {
	props := Properties{
		KeyPriority: Uint(50),
		"flag":      Bool(true),
		"label":     String("edge"),
		"ratio":     Float(0.5),
	}

	assert.Equal(t, uint64(50), props.GetUint(KeyPriority, 1000))
	assert.Equal(t, uint64(1000), props.GetUint("absent", 1000))
	assert.Equal(t, uint64(9), props.GetUint("flag", 9), "wrong kind falls back")
	assert.True(t, props.GetBool("flag", false))
	assert.Equal(t, "edge", props.GetString("label", ""))
	assert.InDelta(t, 0.5, props.GetFloat("ratio", 0), 1e-9)
	assert.Nil(t, props.GetFilter(KeyFilter))
}

func TestPropertiesGetEnum(t *testing.T) {
	props := Properties{KeyLogLevel: EnumValue("debug", 1)}

	e, err := props.GetEnum(KeyLogLevel)
	require.NoError(t, err)
	assert.Equal(t, Enum{Name: "debug", Ordinal: 1}, e)

	_, err = props.GetEnum("absent")
	assert.ErrorIs(t, err, errors.ErrPropertyNotFound)

	props["bad"] = Uint(1)
	_, err = props.GetEnum("bad")
	assert.ErrorIs(t, err, errors.ErrPropertyKind)
}

func TestPropertiesClone(t *testing.T) {
	props := Properties{"a": Uint(1)}
	clone := props.Clone()
	clone["a"] = Uint(2)

	v, _ := props["a"].Uint()
	assert.Equal(t, uint64(1), v)
	assert.Nil(t, Properties(nil).Clone())
}
