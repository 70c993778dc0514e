package websocket

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// PingScheduler sends periodic ping frames on a connection. Each tick of
// its interval timer also waits on a token bucket that refills at one
// token per interval, so pings never go out faster than that rate beyond
// the initial burst.
type PingScheduler struct {
	conn     *Conn
	interval time.Duration
	limiter  *rate.Limiter
	payload  []byte

	stop chan struct{}
	done chan struct{}
}

// NewPingScheduler creates a scheduler that pings conn roughly every
// interval. burst bounds how many pings may fire back-to-back before the
// limiter starts pacing them to the steady interval rate; burst <= 0 is
// treated as 1 (strict pacing, no bursting).
func NewPingScheduler(conn *Conn, interval time.Duration, burst int) *PingScheduler {
	if burst <= 0 {
		burst = 1
	}

	return &PingScheduler{
		conn:     conn,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), burst),
		payload:  []byte("ping"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run drives the ping loop until Stop is called or a ping fails, e.g.
// because the peer went away. Intended to be run in its own goroutine:
//
//	sched := websocket.NewPingScheduler(conn, 30*time.Second, 1)
//	go sched.Run()
//	defer sched.Stop()
func (s *PingScheduler) Run() error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return nil
		case <-ticker.C:
			if err := s.limiter.Wait(context.Background()); err != nil {
				return err
			}
			if err := s.conn.Ping(s.payload); err != nil {
				return err
			}
		}
	}
}

// Stop signals the scheduler to exit and blocks until Run has returned.
// Run must already be running in another goroutine before Stop is called.
func (s *PingScheduler) Stop() {
	close(s.stop)
	<-s.done
}
