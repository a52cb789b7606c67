// Package units holds byte sizes that can be given as flags or in YAML
// as "64KiB", "10MB" or a plain number of bytes.
package units

import (
	"strconv"
	"strings"

	"github.com/alecthomas/units"
)

type Bytes int64

func ParseBytes(s string) (Bytes, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Bytes(n), nil
	}
	n, err := units.ParseStrictBytes(s)
	return Bytes(n), err
}

func (b Bytes) String() string {
	return units.Base2Bytes(b).String()
}

func (b *Bytes) Set(s string) error {
	n, err := ParseBytes(s)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

func (Bytes) Type() string {
	return "bytes"
}

func (b Bytes) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Bytes) UnmarshalText(text []byte) error {
	return b.Set(string(text))
}
