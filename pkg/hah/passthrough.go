package hah

import "strings"

type engineState int

const (
	// stateStructured classifies and dispatches each line
	stateStructured engineState = iota
	// statePassthrough copies each line into the cursor's text
	statePassthrough
)

// passthrough tracks raw regions. A region is opened by a raw node and ends
// with the first line that carries the trigger after exactly baseline
// whitespace characters. Regions do not nest.
type passthrough struct {
	state    engineState
	trigger  string
	baseline int
}

func (p *passthrough) open(trigger string, baseline int) {
	p.state = statePassthrough
	p.trigger = trigger
	p.baseline = baseline
}

func (p *passthrough) active() bool {
	return p.state == statePassthrough
}

// consume appends line to cursor's text while a region is open and reports
// whether it did. The closing line is the last one consumed.
func (p *passthrough) consume(line string, cursor *Node) bool {
	if !p.active() {
		return false
	}
	if p.closes(line) {
		p.state = stateStructured
	}
	cursor.Value += line
	return true
}

func (p *passthrough) closes(line string) bool {
	if len(line) < p.baseline {
		return false
	}
	for i := 0; i < p.baseline; i++ {
		if !isSpace(line[i]) {
			return false
		}
	}
	return strings.HasPrefix(line[p.baseline:], p.trigger)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
