package io

// Feeds a buffered work channel without ever blocking the owner. Units that do not fit in the
// channel wait in a backlog that is flushed on every tick, in submission order.
type StandardProducer struct {
	work    chan<- *WorkUnit
	backlog []*WorkUnit
	closed  bool
}

func NewStandardProducer(work chan<- *WorkUnit) *StandardProducer {
	return &StandardProducer{
		work: work,
	}
}

func (p *StandardProducer) Produce(unit *WorkUnit) bool {
	if p.closed {
		return false
	}

	// keep the submission order when units are already waiting
	if len(p.backlog) > 0 || !p.trySend(unit) {
		p.backlog = append(p.backlog, unit)
	}
	return true
}

func (p *StandardProducer) Flush() int {
	if p.closed {
		return 0
	}

	sent := 0
	for _, unit := range p.backlog {
		// tiles deleted while queued are dropped here
		if unit.context().Err() != nil {
			sent++
			continue
		}
		if !p.trySend(unit) {
			break
		}
		sent++
	}

	remaining := copy(p.backlog, p.backlog[sent:])
	for i := remaining; i < len(p.backlog); i++ {
		p.backlog[i] = nil
	}
	p.backlog = p.backlog[:remaining]
	return remaining
}

func (p *StandardProducer) Pending() int {
	return len(p.backlog)
}

func (p *StandardProducer) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.backlog = nil
	close(p.work)
}

func (p *StandardProducer) trySend(unit *WorkUnit) bool {
	select {
	case p.work <- unit:
		return true
	default:
		return false
	}
}
