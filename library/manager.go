package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LibraryManager is a thin façade over the Library and its Store, keeping CLI
// code simple. It resolves "today" from its clock, logs every circulation
// outcome and, with autosave on, flushes after each successful mutation.
type LibraryManager struct {
	lib      *Library
	store    Store
	log      *zap.Logger
	now      func() time.Time
	autosave bool
}

// Option configures a LibraryManager.
type Option func(*LibraryManager)

func WithLogger(log *zap.Logger) Option {
	return func(lm *LibraryManager) {
		if log != nil {
			lm.log = log
		}
	}
}

func WithAutosave(on bool) Option {
	return func(lm *LibraryManager) { lm.autosave = on }
}

// WithClock replaces the wall clock used to derive today's day-number.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) {
		if now != nil {
			lm.now = now
		}
	}
}

// NewLibraryManager returns a manager over store with an empty library;
// call Load before use.
func NewLibraryManager(store Store, opts ...Option) *LibraryManager {
	lm := &LibraryManager{
		lib:      NewLibrary(nil, nil),
		store:    store,
		log:      zap.NewNop(),
		now:      time.Now,
		autosave: true,
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// Load replaces the in-memory library with the store's contents.
func (lm *LibraryManager) Load(ctx context.Context) error {
	books, err := lm.store.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	accounts, err := lm.store.LoadAccounts(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	lm.lib = NewLibrary(books, accounts)
	lm.log.Info("library loaded", zap.Int("books", len(books)), zap.Int("accounts", len(accounts)))
	return nil
}

// Save writes the catalog and the accounts back to the store.
func (lm *LibraryManager) Save(ctx context.Context) error {
	if err := lm.store.SaveCatalog(ctx, lm.lib.Books()); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	if err := lm.store.SaveAccounts(ctx, lm.lib.Accounts()); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	lm.log.Debug("library saved")
	return nil
}

// Close saves and closes the underlying store.
func (lm *LibraryManager) Close(ctx context.Context) error {
	saveErr := lm.Save(ctx)
	return errors.Join(saveErr, lm.store.Close())
}

// Library exposes the engine for read-only queries.
func (lm *LibraryManager) Library() *Library { return lm.lib }

// Today is the current day-number according to the manager's clock.
func (lm *LibraryManager) Today() Day { return DayOf(lm.now()) }

// logger is the manager's logger carrying any fields stored on ctx.
func (lm *LibraryManager) logger(ctx context.Context) *zap.Logger {
	if fields := LogFields(ctx); len(fields) > 0 {
		return lm.log.With(fields...)
	}
	return lm.log
}

func (lm *LibraryManager) flush(ctx context.Context) error {
	if !lm.autosave {
		return nil
	}
	if err := lm.Save(ctx); err != nil {
		lm.logger(ctx).Error("autosave failed", zap.Error(err))
		return err
	}
	return nil
}

// ------------------ Accounts ------------------

func (lm *LibraryManager) Login(username, password string) (*Account, error) {
	acc, err := lm.lib.Login(username, password)
	if err != nil {
		lm.log.Info("login rejected", zap.String("username", username))
		return nil, err
	}
	lm.log.Info("login", zap.String("username", username), zap.String("role", string(acc.Role())))
	return acc, nil
}

// ------------------ Catalog ------------------

func (lm *LibraryManager) Books() []*Book { return lm.lib.Books() }

func (lm *LibraryManager) FindBook(title string) (*Book, error) { return lm.lib.FindBook(title) }

func (lm *LibraryManager) AddBook(ctx context.Context, b *Book) error {
	log := lm.logger(ctx)
	if err := lm.lib.AddBook(b); err != nil {
		return err
	}
	log.Info("book added", zap.String("title", b.Title), zap.String("isbn", b.ISBN))
	return lm.flush(ctx)
}

func (lm *LibraryManager) RemoveBook(ctx context.Context, title string) (int, error) {
	log := lm.logger(ctx)
	n, err := lm.lib.RemoveBook(title)
	if err != nil {
		return 0, err
	}
	log.Info("book removed", zap.String("title", title), zap.Int("copies", n))
	return n, lm.flush(ctx)
}

// ------------------ Circulation ------------------

// Holdings lists what u currently has out.
func (lm *LibraryManager) Holdings(u *User) []*Book { return lm.lib.Holdings(u.ID) }

func (lm *LibraryManager) Borrow(ctx context.Context, u *User, b *Book) (BorrowReceipt, error) {
	log := lm.logger(ctx)
	today := lm.Today()
	r, err := lm.lib.Borrow(u, b, today)
	if err != nil {
		log.Info("borrow rejected",
			zap.String("user_id", u.ID), zap.String("title", b.Title), zap.Error(err))
		return BorrowReceipt{}, err
	}
	log.Info("borrowed",
		zap.String("user_id", u.ID), zap.String("title", b.Title), zap.Int("due_date", int(r.DueDate)))
	return r, lm.flush(ctx)
}

func (lm *LibraryManager) Return(ctx context.Context, u *User, b *Book) (ReturnReceipt, error) {
	log := lm.logger(ctx)
	today := lm.Today()
	r, err := lm.lib.Return(u, b, today)
	if err != nil {
		log.Info("return rejected",
			zap.String("user_id", u.ID), zap.String("title", b.Title), zap.Error(err))
		return ReturnReceipt{}, err
	}
	log.Info("returned",
		zap.String("user_id", u.ID),
		zap.String("title", r.Title),
		zap.Int("overdue_days", r.OverdueDays),
		zap.Int("fine", r.FineCharged))
	return r, lm.flush(ctx)
}

// PayFines clears u's balance when confirm agrees.
func (lm *LibraryManager) PayFines(ctx context.Context, u *User, confirm func(balance int) bool) (int, error) {
	log := lm.logger(ctx)
	paid, err := u.PayFines(confirm)
	if err != nil {
		return 0, err
	}
	log.Info("fines paid", zap.String("user_id", u.ID), zap.Int("amount", paid))
	return paid, lm.flush(ctx)
}
