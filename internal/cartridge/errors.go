package cartridge

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedImage is returned when a program image fails structural checks at load.
	ErrMalformedImage = errors.New("malformed program image")

	// ErrUnsupportedMapper is returned when the header names a mapper this package does not implement.
	ErrUnsupportedMapper = errors.New("unsupported mapper")
)

// MapperViolation reports an access the active mapper cannot resolve, such as
// PRG RAM access on a board without PRG RAM. It is recoverable: the memory
// system substitutes the open-bus value for reads and drops writes.
type MapperViolation struct {
	Mapper  string
	Address uint16
	Op      string
	Reason  string
}

func (e *MapperViolation) Error() string {
	return fmt.Sprintf("%s: %s $%04X: %s", e.Mapper, e.Op, e.Address, e.Reason)
}

// IsMapperViolation reports whether err is, or wraps, a MapperViolation.
func IsMapperViolation(err error) bool {
	var v *MapperViolation
	return errors.As(err, &v)
}
