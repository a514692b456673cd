package erp

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownReference is returned by Fake.CheckStatus for references it never issued.
var ErrUnknownReference = errors.New("erp: unknown reference")

// Fake is an in-memory Adapter for tests and local runs. It accepts every
// document unless told otherwise and issues references ERP-000001, ERP-000002...
type Fake struct {
	mu       sync.Mutex
	seq      int
	sent     []*Document
	statuses map[string]string
	failNext []error
	rejects  []string
}

var _ Adapter = (*Fake)(nil)

// NewFake returns an empty Fake.
func NewFake() *Fake {
	return &Fake{statuses: make(map[string]string)}
}

// FailNext makes the next SendInvoice call return err as a transport error.
func (f *Fake) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = append(f.failNext, err)
}

// RejectNext makes the next SendInvoice call return an unsuccessful Result.
func (f *Fake) RejectNext(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects = append(f.rejects, message)
}

// SetStatus overrides what CheckStatus reports for reference.
func (f *Fake) SetStatus(reference, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[reference] = status
}

// Sent returns the documents accepted or rejected so far.
func (f *Fake) Sent() []*Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Document, len(f.sent))
	copy(out, f.sent)
	return out
}

// SendInvoice implements Adapter.
func (f *Fake) SendInvoice(ctx context.Context, doc *Document) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.failNext) > 0 {
		err := f.failNext[0]
		f.failNext = f.failNext[1:]
		return nil, err
	}

	f.sent = append(f.sent, doc)

	if len(f.rejects) > 0 {
		msg := f.rejects[0]
		f.rejects = f.rejects[1:]
		return &Result{Success: false, Status: StatusRejected, Message: msg}, nil
	}

	f.seq++
	ref := fmt.Sprintf("ERP-%06d", f.seq)
	f.statuses[ref] = StatusAccepted
	return &Result{Success: true, Reference: ref, Status: StatusAccepted}, nil
}

// CheckStatus implements Adapter.
func (f *Fake) CheckStatus(ctx context.Context, reference string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	status, ok := f.statuses[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReference, reference)
	}
	return &Result{
		Success:   status != StatusRejected,
		Reference: reference,
		Status:    status,
	}, nil
}
