package limiter

// Slots caps how many conversions decode and encode at the same time.
// A zero or negative max means no limit.
type Slots struct {
    ch chan struct{}
}

func New(max int) *Slots {
    if max <= 0 { return &Slots{} }
    return &Slots{ch: make(chan struct{}, max)}
}

// Allow tries to reserve a slot without waiting.
// Returns a release function and true if allowed; otherwise a no-op and false.
func (s *Slots) Allow() (func(), bool) {
    if s == nil || s.ch == nil { return func() {}, true }
    select {
    case s.ch <- struct{}{}:
        return func() { <-s.ch }, true
    default:
        return func() {}, false
    }
}

// InUse reports the currently held slots.
func (s *Slots) InUse() int {
    if s == nil || s.ch == nil { return 0 }
    return len(s.ch)
}
