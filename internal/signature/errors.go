package signature

import "github.com/rotisserie/eris"

// Input-fatal conditions. No signature is produced when one is returned.
var (
	// ErrFileEmpty is returned for zero-byte, whitespace-only or record-less input.
	ErrFileEmpty = eris.New("FILE_EMPTY")
	// ErrTooManyColumns is returned when a file has more columns than Options.MaxColumns.
	ErrTooManyColumns = eris.New("TOO_MANY_COLUMNS")
	// ErrUnreadable is returned when the byte stream cannot be read or parsed.
	ErrUnreadable = eris.New("UNREADABLE")
)

func unreadable(name string, err error) error {
	return eris.Wrapf(ErrUnreadable, "signature: %s: %v", name, err)
}
