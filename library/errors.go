package library

import "errors"

// Rejections returned by the circulation engine and the stores. None of them
// is fatal; callers report them and carry on.
var (
	ErrInvalidLogin       = errors.New("invalid login")
	ErrBookNotFound       = errors.New("no such book")
	ErrDuplicateTitle     = errors.New("a book with that title already exists")
	ErrEmptyTitle         = errors.New("title cannot be empty")
	ErrUnknownRole        = errors.New("unknown role")
	ErrBorrowNotPermitted = errors.New("this role does not borrow books")
	ErrBorrowLimit        = errors.New("borrowing limit reached or unpaid fines")
	ErrOverdueBlock       = errors.New("an overdue book exceeds 60 days")
	ErrAlreadyBorrowed    = errors.New("book is already borrowed")
	ErrNotBorrowed        = errors.New("book is not borrowed")
	ErrNotBorrowedByUser  = errors.New("book is not borrowed by this user")
	ErrFinesNotApplicable = errors.New("fines do not apply to this role")
	ErrNoFines            = errors.New("no fines to pay")
	ErrPaymentDeclined    = errors.New("payment cancelled")
)
