package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryProcessor is an in-process processor for local runs and tests.
// Calls are idempotent by key: a repeated key returns the first result.
type MemoryProcessor struct {
	mu       sync.Mutex
	results  map[string]Result
	holds    map[string]int64
	captured map[string]int64
	refunded map[string]int64
	voided   map[string]bool

	failures map[string][]error
	calls    map[string]int
}

func NewMemoryProcessor() *MemoryProcessor {
	return &MemoryProcessor{
		results:  make(map[string]Result),
		holds:    make(map[string]int64),
		captured: make(map[string]int64),
		refunded: make(map[string]int64),
		voided:   make(map[string]bool),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// FailNext queues errors returned by upcoming calls to op
// ("authorize", "capture", "refund" or "void") before the real work runs.
func (m *MemoryProcessor) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], errs...)
}

// Calls returns how many times op was invoked, failures included.
func (m *MemoryProcessor) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Captured returns the total captured against ref.
func (m *MemoryProcessor) Captured(ref string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captured[ref]
}

func (m *MemoryProcessor) Refunded(ref string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refunded[ref]
}

// Voided reports whether the hold behind ref was released by Void.
func (m *MemoryProcessor) Voided(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voided[ref]
}

// Held reports whether ref still holds funds.
func (m *MemoryProcessor) Held(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.holds[ref]
	return ok
}

func (m *MemoryProcessor) begin(op string) error {
	m.calls[op]++
	if queued := m.failures[op]; len(queued) > 0 {
		m.failures[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (m *MemoryProcessor) Authorize(ctx context.Context, in AuthorizeInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin("authorize"); err != nil {
		return "", err
	}
	if res, ok := m.results[in.IdempotencyKey]; ok {
		if m.voided[res.Ref] {
			return "", fmt.Errorf("%w: authorization %s was voided", ErrDeclined, res.Ref)
		}
		return res.Ref, nil
	}
	if in.PaymentMethod == "" {
		return "", fmt.Errorf("%w: missing payment method", ErrDeclined)
	}

	ref := "chrg_" + uuid.NewString()
	m.holds[ref] = in.Amount
	m.results[in.IdempotencyKey] = Result{Ref: ref, Amount: in.Amount}
	return ref, nil
}

func (m *MemoryProcessor) Capture(ctx context.Context, ref, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin("capture"); err != nil {
		return Result{}, err
	}
	if res, ok := m.results[key]; ok {
		return res, nil
	}
	amount, ok := m.holds[ref]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown authorization %s", ErrDeclined, ref)
	}

	m.captured[ref] += amount
	res := Result{Ref: ref, Amount: amount}
	m.results[key] = res
	return res, nil
}

func (m *MemoryProcessor) Refund(ctx context.Context, ref string, amount int64, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin("refund"); err != nil {
		return Result{}, err
	}
	if res, ok := m.results[key]; ok {
		return res, nil
	}
	hold, ok := m.holds[ref]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown authorization %s", ErrDeclined, ref)
	}
	if m.refunded[ref]+amount > hold {
		return Result{}, fmt.Errorf("%w: refund exceeds hold", ErrDeclined)
	}

	m.refunded[ref] += amount
	res := Result{Ref: "rfnd_" + uuid.NewString(), Amount: amount}
	m.results[key] = res
	return res, nil
}

func (m *MemoryProcessor) Void(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin("void"); err != nil {
		return err
	}
	res, ok := m.results[key]
	if !ok || m.voided[res.Ref] || m.captured[res.Ref] > 0 {
		return nil
	}

	delete(m.holds, res.Ref)
	m.voided[res.Ref] = true
	return nil
}
