package ui

import (
	"github.com/arlens/flicker/internal/dispatcher"
)

// CommandUI is the dispatcher command that carries UI calls.
const CommandUI = "ui.call"

type opcode int

const (
	opShowMessage opcode = iota
	opShowError
	opHide
	opScanBusy
	opResetEnabled
)

type call struct {
	op   opcode
	text string
	flag bool
}

// Marshaled is a Reporter that forwards every call to target through a single
// buffered dispatcher handler. All target calls therefore run in order on one
// goroutine, whichever goroutine made the call.
type Marshaled struct {
	d *dispatcher.Dispatcher
}

// NewMarshaled registers the UI handler on d and returns the forwarding reporter.
func NewMarshaled(d *dispatcher.Dispatcher, target Reporter, bufferSize int) *Marshaled {
	d.Register(CommandUI, func(e dispatcher.Event) (any, error) {
		c := e.Payload.(call)
		switch c.op {
		case opShowMessage:
			target.ShowMessage(c.text)
		case opShowError:
			target.ShowError(c.text)
		case opHide:
			target.Hide()
		case opScanBusy:
			target.SetScanBusy(c.flag)
		case opResetEnabled:
			target.SetResetEnabled(c.flag)
		}
		return nil, nil
	}, dispatcher.Buffered(bufferSize), dispatcher.Blocking())
	return &Marshaled{d: d}
}

func (m *Marshaled) ShowMessage(msg string)       { m.post(call{op: opShowMessage, text: msg}) }
func (m *Marshaled) ShowError(msg string)         { m.post(call{op: opShowError, text: msg}) }
func (m *Marshaled) Hide()                        { m.post(call{op: opHide}) }
func (m *Marshaled) SetScanBusy(busy bool)        { m.post(call{op: opScanBusy, flag: busy}) }
func (m *Marshaled) SetResetEnabled(enabled bool) { m.post(call{op: opResetEnabled, flag: enabled}) }

// post drops the call once the dispatcher is closed.
func (m *Marshaled) post(c call) {
	_, _ = m.d.Dispatch(dispatcher.Event{Command: CommandUI, Payload: c})
}
