package netx

import (
	"context"
	"io"
	"sync"

	"golang.org/x/time/rate"
)

// progressReader counts bytes as the transport pulls them and optionally
// throttles reads with a token bucket (one token per byte).
type progressReader struct {
	ctx     context.Context
	r       io.Reader
	total   int64
	fn      ProgressFunc
	limiter *rate.Limiter

	mu       sync.Mutex
	sent     int64
	reported int64
	started  bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.limiter != nil && len(b) > p.limiter.Burst() {
		b = b[:p.limiter.Burst()]
	}

	n, err := p.r.Read(b)
	if n > 0 {
		if p.limiter != nil {
			if werr := p.limiter.WaitN(p.ctx, n); werr != nil {
				return n, werr
			}
		}
		p.add(int64(n))
	}
	return n, err
}

func (p *progressReader) add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent += n
	if p.sent > p.total {
		p.sent = p.total
	}
	p.report()
}

// finish emits the final sent == total call if the transport never read the
// whole body through us, which happens for empty bodies.
func (p *progressReader) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = p.total
	p.report()
}

func (p *progressReader) report() {
	if p.fn == nil {
		return
	}
	if p.started && p.sent <= p.reported {
		return
	}
	p.started = true
	p.reported = p.sent
	p.fn(p.sent, p.total)
}
