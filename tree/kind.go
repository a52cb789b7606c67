package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the on-disk element type of a branch or class member.  The
// numeric values are the container's own type tags so that descriptors
// produced by other tools can be loaded without translation.
type Kind int

const (
	KindInvalid    Kind = 0
	KindInt8       Kind = 1
	KindInt16      Kind = 2
	KindInt32      Kind = 3
	KindInt64      Kind = 4
	KindFloat32    Kind = 5
	KindCounter    Kind = 6
	KindCharStar   Kind = 7
	KindFloat64    Kind = 8
	KindDouble32   Kind = 9
	KindLegacyChar Kind = 10
	KindUint8      Kind = 11
	KindUint16     Kind = 12
	KindUint32     Kind = 13
	KindUint64     Kind = 14
	KindBits       Kind = 15
	KindLong64     Kind = 16
	KindULong64    Kind = 17
	KindBool       Kind = 18
	KindFloat16    Kind = 19
	// KindChars is a fixed-size char array decoded as a string.  The
	// container stores it as an int8 array; it gets its own tag here so
	// the decoder is chosen once.
	KindChars   Kind = 21
	KindObject  Kind = 61
	KindAny     Kind = 62
	KindTString Kind = 65
)

var kindNames = map[Kind]string{
	KindInt8:       "int8",
	KindInt16:      "int16",
	KindInt32:      "int32",
	KindInt64:      "int64",
	KindFloat32:    "float32",
	KindCounter:    "counter",
	KindCharStar:   "charstar",
	KindFloat64:    "float64",
	KindDouble32:   "double32",
	KindLegacyChar: "legacychar",
	KindUint8:      "uint8",
	KindUint16:     "uint16",
	KindUint32:     "uint32",
	KindUint64:     "uint64",
	KindBits:       "bits",
	KindLong64:     "long64",
	KindULong64:    "ulong64",
	KindBool:       "bool",
	KindFloat16:    "float16",
	KindChars:      "chars",
	KindObject:     "object",
	KindAny:        "any",
	KindTString:    "string",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts either a kind name or its numeric tag.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := kindNames[Kind(n)]; ok {
			return Kind(n), nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown element kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	kind, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// IsInteger is true for kinds whose decoded values are always integral.
func (k Kind) IsInteger() bool {
	switch k {
	case KindInt8, KindInt16, KindInt32, KindInt64, KindCounter, KindLegacyChar,
		KindUint8, KindUint16, KindUint32, KindUint64, KindBits, KindLong64,
		KindULong64, KindBool:
		return true
	}
	return false
}

// IsNumeric is true for kinds that decode to a single number and thus can
// be decoded in bulk into a float64 slice.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindFloat32, KindFloat64, KindDouble32, KindFloat16:
		return true
	}
	return k.IsInteger()
}

// Size is the fixed encoded width of a scalar kind or 0 when the width
// depends on the data or on packing parameters.
func (k Kind) Size() int {
	switch k {
	case KindInt8, KindUint8, KindLegacyChar, KindBool:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindInt32, KindUint32, KindCounter, KindBits, KindFloat32:
		return 4
	case KindInt64, KindUint64, KindLong64, KindULong64, KindFloat64:
		return 8
	}
	return 0
}
