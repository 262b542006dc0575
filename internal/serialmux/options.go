package serialmux

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the NMEA 0183 line rate.
const DefaultBaudRate = 9600

// DefaultFraming is what nearly every NMEA receiver ships with.
const DefaultFraming = "8N1"

// PortOptions are the line settings of the receiver port.
type PortOptions struct {
	BaudRate int
	// Framing is data bits, parity and stop bits in the usual short form,
	// e.g. "8N1" or "7E2". Empty means DefaultFraming.
	Framing string
}

// ParsePortOptions reads "BAUD[,FRAMING]", e.g. "4800" or "9600,8N1". An
// empty string yields the defaults.
func ParsePortOptions(s string) (PortOptions, error) {
	var o PortOptions
	s = strings.TrimSpace(s)
	if s == "" {
		return o.withDefaults(), nil
	}
	baud, framing, _ := strings.Cut(s, ",")
	rate, err := strconv.Atoi(strings.TrimSpace(baud))
	if err != nil || rate <= 0 {
		return o, fmt.Errorf("invalid baud rate %q", baud)
	}
	o = PortOptions{BaudRate: rate, Framing: strings.TrimSpace(framing)}
	if _, err := o.SerialMode(); err != nil {
		return PortOptions{}, err
	}
	return o.withDefaults(), nil
}

func (o PortOptions) withDefaults() PortOptions {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.Framing == "" {
		o.Framing = DefaultFraming
	}
	o.Framing = strings.ToUpper(o.Framing)
	return o
}

// String is the inverse of ParsePortOptions.
func (o PortOptions) String() string {
	o = o.withDefaults()
	return fmt.Sprintf("%d,%s", o.BaudRate, o.Framing)
}

// SerialMode is the go.bug.st/serial form of o.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	o = o.withDefaults()
	f := o.Framing
	if len(f) != 3 {
		return nil, fmt.Errorf("invalid framing %q, want e.g. 8N1", f)
	}

	mode := &serial.Mode{BaudRate: o.BaudRate}
	if f[0] < '5' || f[0] > '8' {
		return nil, fmt.Errorf("invalid framing %q: data bits must be 5 to 8", f)
	}
	mode.DataBits = int(f[0] - '0')

	switch f[1] {
	case 'N':
		mode.Parity = serial.NoParity
	case 'E':
		mode.Parity = serial.EvenParity
	case 'O':
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("invalid framing %q: parity must be N, E or O", f)
	}

	switch f[2] {
	case '1':
		mode.StopBits = serial.OneStopBit
	case '2':
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid framing %q: stop bits must be 1 or 2", f)
	}
	return mode, nil
}
