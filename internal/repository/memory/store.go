// Package memory provides an in-process repository.Store. A transaction works
// on a private copy of the dataset and swaps it in on commit, so a failed
// unit of work leaves nothing behind. Transactions run one at a time, which
// gives every unit of work the exclusive-lock semantics of SELECT ... FOR UPDATE.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/repository"
)

// Options tunes the store.
type Options struct {
	// LockTimeout bounds how long WithinTx waits for a running transaction.
	// Zero waits until the context is done.
	LockTimeout time.Duration
	// Now stamps created_at/updated_at columns. Defaults to time.Now.
	Now func() time.Time
}

// Store is an in-memory repository.Store.
type Store struct {
	writer chan struct{}
	mu     sync.RWMutex
	data   *dataset
	opts   Options

	faultMu sync.Mutex
	faults  map[string]error
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		writer: make(chan struct{}, 1),
		data:   newDataset(),
		opts:   opts,
		faults: make(map[string]error),
	}
}

// SetFault makes the named write operation fail with err inside transactions,
// for example "audit.append" or "tickets.update". A nil err clears the fault.
func (s *Store) SetFault(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.faults[op]
}

func (s *Store) acquire(ctx context.Context) error {
	waitCtx := ctx
	if s.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.opts.LockTimeout)
		defer cancel()
	}
	select {
	case s.writer <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		return fmt.Errorf("%w: %v", repository.ErrBusy, waitCtx.Err())
	}
}

func (s *Store) release() {
	<-s.writer
}

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	tx := &txView{store: s, data: work}
	if err := fn(ctx, tx.repositories()); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// Reader implements repository.Store. Writes made through the reader commit
// immediately, one statement at a time.
func (s *Store) Reader() repository.Repositories {
	return (&readerView{store: s}).repositories()
}

// view abstracts how repositories reach the dataset.
type view interface {
	read(fn func(d *dataset) error) error
	write(op string, fn func(d *dataset) error) error
	now() time.Time
}

type txView struct {
	store *Store
	data  *dataset
}

func (v *txView) read(fn func(d *dataset) error) error {
	return fn(v.data)
}

func (v *txView) write(op string, fn func(d *dataset) error) error {
	if err := v.store.fault(op); err != nil {
		return err
	}
	return fn(v.data)
}

func (v *txView) now() time.Time { return v.store.opts.Now() }

func (v *txView) repositories() repository.Repositories {
	return newRepositories(v)
}

type readerView struct {
	store *Store
}

func (v *readerView) read(fn func(d *dataset) error) error {
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.data)
}

func (v *readerView) write(op string, fn func(d *dataset) error) error {
	if err := v.store.acquire(context.Background()); err != nil {
		return err
	}
	defer v.store.release()

	v.store.mu.RLock()
	work := v.store.data.clone()
	v.store.mu.RUnlock()
	if err := fn(work); err != nil {
		return err
	}
	v.store.mu.Lock()
	v.store.data = work
	v.store.mu.Unlock()
	return nil
}

func (v *readerView) now() time.Time { return v.store.opts.Now() }

func (v *readerView) repositories() repository.Repositories {
	return newRepositories(v)
}

func newRepositories(v view) repository.Repositories {
	return repository.Repositories{
		Tickets:       &ticketRepository{v: v},
		WorkOrders:    &workOrderRepository{v: v},
		Teams:         &teamRepository{v: v},
		Audit:         &auditRepository{v: v},
		Staff:         &staffRepository{v: v},
		Companies:     &companyRepository{v: v},
		Notifications: &notificationRepository{v: v},
	}
}

type dataset struct {
	tickets       map[string]domain.Ticket
	workOrders    map[string]domain.WorkOrder
	teams         map[string][]domain.WorkOrderTechnician
	audit         []domain.AuditLogEntry
	auditSeq      int64
	staff         map[string]domain.StaffMember
	companies     map[string]domain.Company
	notifications []domain.Notification
}

func newDataset() *dataset {
	return &dataset{
		tickets:    make(map[string]domain.Ticket),
		workOrders: make(map[string]domain.WorkOrder),
		teams:      make(map[string][]domain.WorkOrderTechnician),
		staff:      make(map[string]domain.StaffMember),
		companies:  make(map[string]domain.Company),
	}
}

// clone copies every table. Records are values and pointer fields are only
// ever replaced, never written through, so a shallow copy per record suffices.
func (d *dataset) clone() *dataset {
	out := &dataset{
		tickets:       make(map[string]domain.Ticket, len(d.tickets)),
		workOrders:    make(map[string]domain.WorkOrder, len(d.workOrders)),
		teams:         make(map[string][]domain.WorkOrderTechnician, len(d.teams)),
		audit:         append([]domain.AuditLogEntry(nil), d.audit...),
		auditSeq:      d.auditSeq,
		staff:         make(map[string]domain.StaffMember, len(d.staff)),
		companies:     make(map[string]domain.Company, len(d.companies)),
		notifications: append([]domain.Notification(nil), d.notifications...),
	}
	for k, v := range d.tickets {
		out.tickets[k] = v
	}
	for k, v := range d.workOrders {
		out.workOrders[k] = v
	}
	for k, v := range d.teams {
		out.teams[k] = append([]domain.WorkOrderTechnician(nil), v...)
	}
	for k, v := range d.staff {
		out.staff[k] = v
	}
	for k, v := range d.companies {
		out.companies[k] = v
	}
	return out
}
