package library

import (
	"fmt"
	"strings"
)

// Library holds the catalog and the account registry and runs the
// borrow/return lifecycle against them. It is not safe for concurrent use.
//
// Which books a user holds is never stored on the user; it is recomputed by
// scanning the catalog each time it is needed.
type Library struct {
	books    []*Book
	accounts []*Account
}

// NewLibrary builds a library from already-loaded records.
func NewLibrary(books []*Book, accounts []*Account) *Library {
	return &Library{books: books, accounts: accounts}
}

// ------------------ Catalog ------------------

// Books returns the catalog in insertion order.
func (l *Library) Books() []*Book { return l.books }

// FindBook returns the first book whose title matches exactly.
func (l *Library) FindBook(title string) (*Book, error) {
	for _, b := range l.books {
		if b.Title == title {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrBookNotFound, title)
}

// AddBook appends b to the catalog. Titles identify books, so a title that is
// already present is refused.
func (l *Library) AddBook(b *Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyTitle
	}
	if _, err := l.FindBook(b.Title); err == nil {
		return fmt.Errorf("%w: %q", ErrDuplicateTitle, b.Title)
	}
	l.books = append(l.books, b)
	return nil
}

// RemoveBook drops every book with the given title and returns how many went.
func (l *Library) RemoveBook(title string) (int, error) {
	kept := l.books[:0]
	for _, b := range l.books {
		if b.Title != title {
			kept = append(kept, b)
		}
	}
	removed := len(l.books) - len(kept)
	for i := len(kept); i < len(l.books); i++ {
		l.books[i] = nil
	}
	l.books = kept
	if removed == 0 {
		return 0, fmt.Errorf("%w: %q", ErrBookNotFound, title)
	}
	return removed, nil
}

// ------------------ Accounts ------------------

func (l *Library) Accounts() []*Account { return l.accounts }

// Account looks up an account by username.
func (l *Library) Account(username string) (*Account, bool) {
	for _, a := range l.accounts {
		if a.Username == username {
			return a, true
		}
	}
	return nil, false
}

// Login returns the account when the username exists and the password
// matches. Only the first account with a username is considered.
func (l *Library) Login(username, password string) (*Account, error) {
	acc, ok := l.Account(username)
	if !ok || !acc.CheckPassword(password) {
		return nil, ErrInvalidLogin
	}
	return acc, nil
}

// ------------------ Circulation ------------------

// Holdings lists the books currently borrowed by userID.
func (l *Library) Holdings(userID string) []*Book {
	var held []*Book
	for _, b := range l.books {
		if b.IsHeldBy(userID) {
			held = append(held, b)
		}
	}
	return held
}

// BorrowReceipt describes a successful loan.
type BorrowReceipt struct {
	Title     string
	DueDate   Day
	DueInDays int
}

// ReturnReceipt describes a completed return. BorrowingBlocked is advisory:
// the block itself is applied by the next Borrow.
type ReturnReceipt struct {
	Title            string
	OnTime           bool
	OverdueDays      int
	FineCharged      int
	BorrowingBlocked bool
}

// Borrow lends b to u on day today. A rejected borrow leaves both the book
// and the user untouched.
func (l *Library) Borrow(u *User, b *Book, today Day) (BorrowReceipt, error) {
	p := u.Policy()
	if p.LoanPeriodDays() == 0 {
		return BorrowReceipt{}, ErrBorrowNotPermitted
	}

	holdings := l.Holdings(u.ID)

	if p.BlocksOnLongOverdue() {
		for _, held := range holdings {
			if held.DaysOverdue(today) > FacultyOverdueBlockDays {
				return BorrowReceipt{}, fmt.Errorf("%w: %q", ErrOverdueBlock, held.Title)
			}
		}
	}

	if !u.CanBorrowMore(holdings) {
		return BorrowReceipt{}, ErrBorrowLimit
	}

	if !b.IsAvailable() {
		return BorrowReceipt{}, fmt.Errorf("%w: %q", ErrAlreadyBorrowed, b.Title)
	}

	period := p.LoanPeriodDays()
	b.checkout(u.ID, today, period)
	return BorrowReceipt{Title: b.Title, DueDate: b.DueDate, DueInDays: period}, nil
}

// Return takes b back from u on day today, charging overdue fines through the
// user's policy and recording the title in the user's history.
func (l *Library) Return(u *User, b *Book, today Day) (ReturnReceipt, error) {
	if b.IsAvailable() {
		return ReturnReceipt{}, fmt.Errorf("%w: %q", ErrNotBorrowed, b.Title)
	}
	if b.BorrowedBy != u.ID {
		return ReturnReceipt{}, fmt.Errorf("%w: %q", ErrNotBorrowedByUser, b.Title)
	}

	r := ReturnReceipt{Title: b.Title}
	overdue := b.DaysOverdue(today)
	if overdue > 0 {
		p := u.Policy()
		r.OverdueDays = overdue
		r.FineCharged = p.ResolveOverdue(u, overdue)
		r.BorrowingBlocked = p.BlocksOnLongOverdue() && overdue > FacultyOverdueBlockDays
	} else {
		r.OnTime = true
	}

	b.reset()
	u.AddHistory(r.Title)
	return r, nil
}
