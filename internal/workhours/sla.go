package workhours

import "time"

// DefaultBudget is the working time each escalation level gets before it breaches.
const DefaultBudget = 2 * time.Hour

// SLA is a timer start and the deadline derived from it.
type SLA struct {
	StartedAt time.Time
	Deadline  time.Time
}

// Calculator computes SLA windows for tickets.
type Calculator struct {
	window Window
	budget time.Duration
}

// NewCalculator builds a calculator. A non-positive budget falls back to DefaultBudget.
func NewCalculator(window Window, budget time.Duration) *Calculator {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Calculator{window: window, budget: budget}
}

// Window exposes the working window the calculator uses.
func (c *Calculator) Window() Window {
	return c.window
}

// Budget returns the per-level working duration.
func (c *Calculator) Budget() time.Duration {
	return c.budget
}

// Compute anchors an SLA at ref. Outside the window the timer starts at the next
// day's window start, even when ref is early in the morning of a working day.
func (c *Calculator) Compute(ref time.Time) SLA {
	start := ref
	if !c.window.IsWorkingInstant(ref) {
		start = c.window.NextWorkingDayStart(ref)
	}
	return SLA{
		StartedAt: start,
		Deadline:  c.window.Advance(start, c.budget),
	}
}
