package app

import (
	"time"

	"gfxcore/internal/config"
)

// suspendedFPS caps the loop while the display is suspended.
const suspendedFPS = 10

// FPSLimiter paces the frame loop to the configured rate.
type FPSLimiter struct {
	next time.Time
}

func NewFPSLimiter() *FPSLimiter {
	return &FPSLimiter{}
}

// Wait blocks until the next frame is due. A limit of 0 disables pacing.
// Sleeps cover most of the wait and a short spin covers the rest.
func (f *FPSLimiter) Wait(suspended bool) {
	limit := config.GetFPSLimit()
	if suspended && (limit <= 0 || limit > suspendedFPS) {
		limit = suspendedFPS
	}
	if limit <= 0 {
		f.next = time.Time{}
		return
	}

	target := time.Second / time.Duration(limit)
	if f.next.IsZero() {
		f.next = time.Now().Add(target)
	} else {
		f.next = f.next.Add(target)
	}

	for {
		remaining := time.Until(f.next)
		if remaining <= 0 {
			break
		}
		if remaining > 200*time.Microsecond {
			time.Sleep(remaining - 200*time.Microsecond)
		}
		if time.Until(f.next) <= 0 {
			break
		}
	}

	// resync after a hitch instead of racing to catch up
	if late := -time.Until(f.next); late > target {
		f.next = time.Now().Add(target)
	}
}
