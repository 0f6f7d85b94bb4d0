package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ssiccha/GAP.jl/guest"
)

// builtinFunc is the signature of callables in the base namespace.
type builtinFunc func(in *Interp, args []*object) (*object, error)

// object is the interpreter's boxed value. Every object except the nothing
// singleton and builtin callables lives on the interpreter heap and is
// subject to collection.
type object struct {
	kind guest.Kind

	i64  int64
	f64  float64
	str  string
	b    bool
	arr  []*object
	elem guest.ElemType
	fn   builtinFunc
	name string

	marked bool
	freed  bool
}

// checkLive panics on reclaimed objects. A freed object reached from host
// code means a guest reference escaped without an anchor.
func (o *object) checkLive() {
	if o.freed {
		panic(fmt.Sprintf("interp: use of collected guest value (%s)", o.kind))
	}
}

func (o *object) goString() string {
	o.checkLive()
	switch o.kind {
	case guest.KindNothing:
		return "nothing"
	case guest.KindBool:
		return strconv.FormatBool(o.b)
	case guest.KindInt64, guest.KindUint16, guest.KindUint32:
		return strconv.FormatInt(o.i64, 10)
	case guest.KindFloat64:
		return strconv.FormatFloat(o.f64, 'g', -1, 64)
	case guest.KindString:
		return o.str
	case guest.KindArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range o.arr {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.goString())
		}
		sb.WriteByte(']')
		return sb.String()
	case guest.KindFunction:
		return fmt.Sprintf("function %s", o.name)
	default:
		return fmt.Sprintf("<%s>", o.kind)
	}
}
