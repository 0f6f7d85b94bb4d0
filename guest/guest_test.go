package guest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssiccha/GAP.jl/guest"
)

func TestKind_String(t *testing.T) {
	assert.Equal(t, "int64", guest.KindInt64.String())
	assert.Equal(t, "nothing", guest.KindNothing.String())
	assert.Equal(t, "kind(99)", guest.Kind(99).String())
}

func TestKind_IsInteger(t *testing.T) {
	for _, k := range []guest.Kind{
		guest.KindInt8, guest.KindInt16, guest.KindInt32, guest.KindInt64,
		guest.KindUint8, guest.KindUint16, guest.KindUint32, guest.KindUint64,
	} {
		assert.True(t, k.IsInteger(), "%s", k)
	}
	for _, k := range []guest.Kind{
		guest.KindInvalid, guest.KindNothing, guest.KindBool,
		guest.KindFloat32, guest.KindFloat64, guest.KindString,
		guest.KindArray, guest.KindFunction, guest.KindOther,
	} {
		assert.False(t, k.IsInteger(), "%s", k)
	}
}
