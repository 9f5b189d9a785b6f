package consolein

import "errors"

var (
	// ErrorInputName contains the name of this driver.
	ErrorInputName = "error"

	// ErrDriver is the error returned once the driver has failed.
	ErrDriver = errors.New("DRV_ERROR")
)

// ErrorInput stands in for a connection which drops.
//
// Any options, as in "error:hello", are delivered first; every read
// after that fails with ErrDriver.
type ErrorInput struct {
	before []byte
}

// SetOptions sets the text delivered before the failure.
func (ei *ErrorInput) SetOptions(options string) {
	ei.before = []byte(options)
}

// Setup is a NOP.
func (ei *ErrorInput) Setup() error {
	return nil
}

// TearDown is a NOP.
func (ei *ErrorInput) TearDown() error {
	return nil
}

// PendingInput is always true, there is either text or an error to
// return.
func (ei *ErrorInput) PendingInput() bool {
	return true
}

// GetName returns the name of this driver, "error".
func (ei *ErrorInput) GetName() string {
	return ErrorInputName
}

// BlockForCharacterNoEcho returns the next byte of text, then fails.
func (ei *ErrorInput) BlockForCharacterNoEcho() (byte, error) {
	if len(ei.before) == 0 {
		return 0x00, ErrDriver
	}
	c := ei.before[0]
	ei.before = ei.before[1:]
	return c, nil
}

func init() {
	Register(ErrorInputName, func() ConsoleInput {
		return new(ErrorInput)
	})
}
