package agent

// signal is a one-shot edge between the two loop goroutines. raise never
// blocks and collapses into the already-raised state if the other side has
// not consumed yet; wait blocks until raised and clears the signal.
type signal struct {
	c chan struct{}
}

func newSignal(raised bool) *signal {
	s := &signal{c: make(chan struct{}, 1)}
	if raised {
		s.c <- struct{}{}
	}
	return s
}

func (s *signal) raise() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

func (s *signal) wait() {
	<-s.c
}
