package wizard

// Buffer size of the message channel. The value is chosen for no particular
// reason.
const msgChSize = 128

// A generic engine loop manager. It serializes all engine work onto the
// goroutine that calls run: posted messages and render passes never run in
// parallel, so the hook store, the differ, and the patcher need no locking.
type loop struct {
	msgCh    chan func()
	renderCh chan struct{}
	returnCh chan error
	passCb   func()
}

func newLoop(passCb func()) *loop {
	return &loop{
		msgCh:    make(chan func(), msgChSize),
		renderCh: make(chan struct{}, 1),
		returnCh: make(chan error, 1),
		passCb:   passCb,
	}
}

// post queues fn to run on the loop goroutine. It may block if the message
// buffer is full.
func (lp *loop) post(fn func()) {
	lp.msgCh <- fn
}

// requestRender requests a render pass. Repeated requests before the next
// pass coalesce into one. It never blocks.
func (lp *loop) requestRender() {
	select {
	case lp.renderCh <- struct{}{}:
	default:
	}
}

// ret requests the loop to return. It never blocks; only the first call per
// loop run takes effect.
func (lp *loop) ret(err error) {
	select {
	case lp.returnCh <- err:
	default:
	}
}

// run runs the loop until ret is called. Before every pass it consumes all
// queued messages, so every state write posted before a render request is
// visible to the pass that request produces.
func (lp *loop) run() error {
	for {
		select {
		case fn := <-lp.msgCh:
			fn()
			lp.drainMsgs()
		case <-lp.renderCh:
			lp.drainMsgs()
			lp.passCb()
		case err := <-lp.returnCh:
			return err
		}
	}
}

func (lp *loop) drainMsgs() {
	for {
		select {
		case fn := <-lp.msgCh:
			fn()
		default:
			return
		}
	}
}
