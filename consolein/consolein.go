// Package consolein handles the reading of console input, on behalf of
// a door session.
//
// Input is read a byte at a time from one of several drivers, chosen by
// name, and handed to the session untouched: door programs expect a raw
// terminal, and do their own echoing and line-editing.
package consolein

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// pollInterval is how long Pump sleeps when no input is pending.
const pollInterval = 5 * time.Millisecond

// ConsoleInput is the interface that must be implemented by anything
// that wishes to be used as an input driver.
//
// Providing this interface is implemented an object may register itself,
// by name, via the Register method.
type ConsoleInput interface {

	// Setup performs any specific setup which is required.
	Setup() error

	// TearDown performs any specific cleanup which is required.
	TearDown() error

	// PendingInput returns true if there is pending input available
	// to be read.
	PendingInput() bool

	// BlockForCharacterNoEcho reads a single character from the
	// console, without echoing it.
	BlockForCharacterNoEcho() (byte, error)

	// GetName will return the name of the driver.
	GetName() string
}

// Configurable is implemented by drivers which accept options, given
// after a colon in the driver name, as "file:input.txt".
type Configurable interface {

	// SetOptions passes the text after the colon.
	SetOptions(options string)
}

// Finite is implemented by drivers whose input can run out.
type Finite interface {

	// Exhausted returns true once every character has been read.
	Exhausted() bool
}

// This is a map of known-drivers
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Constructor is the signature of a constructor-function
// which is used to instantiate an instance of a driver.
type Constructor func() ConsoleInput

// Register makes a console driver available, by name.
//
// When one needs to be created the constructor can be called
// to create an instance of it.
func Register(name string, obj Constructor) {
	// Downcase for consistency.
	name = strings.ToLower(name)

	handlers.m[name] = obj
}

// ConsoleIn holds our state, which is basically just a
// pointer to the object handling our input.
type ConsoleIn struct {

	// driver is the thing that actually reads our input.
	driver ConsoleInput

	// stuffed holds fake input which is returned before anything
	// the driver provides.
	stuffed []byte
}

// New is our constructor, it creates an input device which uses
// the specified driver.
//
// The name may be followed by a colon and driver-specific options.
func New(name string) (*ConsoleIn, error) {

	options := ""
	if strings.Contains(name, ":") {
		parts := strings.SplitN(name, ":", 2)
		name = parts[0]
		options = parts[1]
	}

	// Downcase for consistency.
	name = strings.ToLower(name)

	// Do we have a constructor with the given name?
	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup driver by name '%s'", name)
	}

	drv := ctor()
	if c, ok := drv.(Configurable); ok && options != "" {
		c.SetOptions(options)
	}

	// OK we do, return ourselves with that driver.
	return &ConsoleIn{
		driver: drv,
	}, nil
}

// GetDriver allows getting our driver at runtime.
func (ci *ConsoleIn) GetDriver() ConsoleInput {
	return ci.driver
}

// GetName returns the name of our selected driver.
func (ci *ConsoleIn) GetName() string {
	return ci.driver.GetName()
}

// GetDrivers returns all available driver-names.
//
// We hide the internal "error" driver.
func (ci *ConsoleIn) GetDrivers() []string {
	valid := []string{}

	for x := range handlers.m {
		if x != ErrorInputName {
			valid = append(valid, x)
		}
	}
	return valid
}

// Setup proxies into our registered console-input driver.
func (ci *ConsoleIn) Setup() error {
	return ci.driver.Setup()
}

// TearDown proxies into our registered console-input driver.
func (ci *ConsoleIn) TearDown() error {
	return ci.driver.TearDown()
}

// StuffInput inserts fake values into our input-buffer.
func (ci *ConsoleIn) StuffInput(input string) {
	ci.stuffed = append(ci.stuffed, input...)
}

// PendingInput returns true if there is pending input.
func (ci *ConsoleIn) PendingInput() bool {
	if len(ci.stuffed) > 0 {
		return true
	}
	return ci.driver.PendingInput()
}

// BlockForCharacterNoEcho returns the next character from the console,
// blocking until one is available.
func (ci *ConsoleIn) BlockForCharacterNoEcho() (byte, error) {
	if len(ci.stuffed) > 0 {
		c := ci.stuffed[0]
		ci.stuffed = ci.stuffed[1:]
		return c, nil
	}
	return ci.driver.BlockForCharacterNoEcho()
}

// exhausted returns true if the driver has no more input to give.
func (ci *ConsoleIn) exhausted() bool {
	if len(ci.stuffed) > 0 {
		return false
	}
	f, ok := ci.driver.(Finite)
	return ok && f.Exhausted()
}

// Pump passes each character read to sink, until ctx is canceled or the
// input runs out.
//
// Running out of input is not an error, and returns nil.
func (ci *ConsoleIn) Pump(ctx context.Context, sink func([]byte)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if ci.exhausted() {
			return nil
		}

		if !ci.PendingInput() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}

		c, err := ci.BlockForCharacterNoEcho()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		sink([]byte{c})
	}
}
