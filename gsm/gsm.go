// Package gsm sends an SMS notification over a GSM modem's AT command
// set whenever a trusted key is recognized (a supplemented feature:
// the original firmware's buzzer/LED alert generalized to an
// off-site notification channel for an unattended gate). The serial
// transport is grounded in the teacher's src/serial_port.go wrapper
// around github.com/pkg/term; the AT dialog itself is this package's
// own addition, since the teacher never drove a modem.
package gsm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/term"
)

const (
	responseTimeout = 3 * time.Second
	ctrlZ            = "\x1a"
)

// serialPort is the subset of *term.Term this package drives, pulled
// out as an interface so tests can substitute an in-memory fake
// without a real serial device.
type serialPort interface {
	io.Reader
	io.Writer
	io.Closer
}

// Notifier owns one open serial connection to a GSM modem and sends
// every SMS over it, mirroring the teacher's one-handle-per-port
// serial ownership model (see package radio's Hamlib driver for the
// analogous single-owner pattern on the radio side). It has no lock
// of its own: overlapping Notify calls interleave on the port.
type Notifier struct {
	port   serialPort
	lines  *bufio.Scanner
	number string
}

// Open opens device at baud and configures the modem for text-mode SMS
// (AT+CMGF=1) addressed to number.
func Open(device string, baud int, number string) (*Notifier, error) {
	fd, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("gsm: open %s: %w", device, err)
	}
	if baud != 0 {
		if err := fd.SetSpeed(baud); err != nil {
			fd.Close()
			return nil, fmt.Errorf("gsm: set speed %d: %w", baud, err)
		}
	}
	return newNotifier(fd, number)
}

func newNotifier(port serialPort, number string) (*Notifier, error) {
	n := &Notifier{port: port, lines: bufio.NewScanner(port), number: number}
	if err := n.command("AT+CMGF=1"); err != nil {
		port.Close()
		return nil, fmt.Errorf("gsm: enter text mode: %w", err)
	}
	return n, nil
}

// Notify sends body as an SMS to the configured number.
func (n *Notifier) Notify(body string) error {
	if err := n.write(fmt.Sprintf("AT+CMGS=\"%s\"\r\n", n.number)); err != nil {
		return err
	}
	if err := n.write(body + ctrlZ); err != nil {
		return err
	}
	return n.expectOK(10 * time.Second)
}

// command sends an AT command and waits for an OK response.
func (n *Notifier) command(cmd string) error {
	if err := n.write(cmd + "\r\n"); err != nil {
		return err
	}
	return n.expectOK(responseTimeout)
}

func (n *Notifier) write(s string) error {
	_, err := n.port.Write([]byte(s))
	if err != nil {
		return fmt.Errorf("gsm: write: %w", err)
	}
	return nil
}

// expectOK scans lines from the modem until it sees "OK" or "ERROR".
// github.com/pkg/term exposes no read deadline, so timeout only bounds
// the case where the modem answers but never with one of those two
// tokens; a modem that stops responding mid-line can still block here,
// same caveat the teacher's serial_port_get1 byte-polling loop had.
func (n *Notifier) expectOK(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	scanner := n.lines
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "OK":
			return nil
		case line == "ERROR", strings.HasPrefix(line, "+CME ERROR"):
			return fmt.Errorf("gsm: modem reported %s", line)
		}
		if time.Now().After(deadline) {
			break
		}
	}
	return fmt.Errorf("gsm: no response within %s", timeout)
}

// Close releases the underlying serial handle.
func (n *Notifier) Close() error {
	return n.port.Close()
}
