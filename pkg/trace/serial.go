package trace

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaud is the UART rate of the trace port.
const DefaultBaud = 115200

// OpenSerial opens a UART at baud, 8N1.
func OpenSerial(port string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", port, err)
	}
	return p, nil
}

// Ports lists the serial ports present on the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
