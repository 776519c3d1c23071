package library

import "fmt"

// Role tags the kind of user behind an account, as written in account records.
type Role string

const (
	RoleStudent   Role = "student"
	RoleFaculty   Role = "faculty"
	RoleLibrarian Role = "librarian"
)

const (
	StudentMaxBooks = 3
	StudentLoanDays = 15
	FinePerDay      = 10

	FacultyMaxBooks         = 5
	FacultyLoanDays         = 30
	FacultyOverdueBlockDays = 60
)

// Policy holds the borrowing rules of one role. Implementations keep no
// per-user state; the fine balance lives on the User passed in.
type Policy interface {
	Role() Role
	// CanBorrowMore decides whether one more loan is allowed on top of holdings.
	CanBorrowMore(u *User, holdings []*Book) bool
	// LoanPeriodDays is zero for roles that never borrow.
	LoanPeriodDays() int
	// ResolveOverdue is called at return time with daysOverdue > 0 and
	// returns the fine charged.
	ResolveOverdue(u *User, daysOverdue int) int
	ChargesFines() bool
	// BlocksOnLongOverdue reports whether holding a book more than
	// FacultyOverdueBlockDays past due blocks new loans.
	BlocksOnLongOverdue() bool
}

// PolicyFor resolves a role tag.
func PolicyFor(role Role) (Policy, error) {
	switch role {
	case RoleStudent:
		return studentPolicy{}, nil
	case RoleFaculty:
		return facultyPolicy{}, nil
	case RoleLibrarian:
		return librarianPolicy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}
}

type studentPolicy struct{}

func (studentPolicy) Role() Role { return RoleStudent }

func (studentPolicy) CanBorrowMore(u *User, holdings []*Book) bool {
	if u.Fine > 0 {
		return false
	}
	return len(holdings) < StudentMaxBooks
}

func (studentPolicy) LoanPeriodDays() int { return StudentLoanDays }

func (studentPolicy) ResolveOverdue(u *User, daysOverdue int) int {
	if daysOverdue <= 0 {
		return 0
	}
	fine := daysOverdue * FinePerDay
	u.Fine += fine
	return fine
}

func (studentPolicy) ChargesFines() bool        { return true }
func (studentPolicy) BlocksOnLongOverdue() bool { return false }

// facultyPolicy never fines. The long-overdue block needs today's date, so
// the engine enforces it through BlocksOnLongOverdue.
type facultyPolicy struct{}

func (facultyPolicy) Role() Role { return RoleFaculty }

func (facultyPolicy) CanBorrowMore(_ *User, holdings []*Book) bool {
	return len(holdings) < FacultyMaxBooks
}

func (facultyPolicy) LoanPeriodDays() int               { return FacultyLoanDays }
func (facultyPolicy) ResolveOverdue(_ *User, _ int) int { return 0 }
func (facultyPolicy) ChargesFines() bool                { return false }
func (facultyPolicy) BlocksOnLongOverdue() bool         { return true }

type librarianPolicy struct{}

func (librarianPolicy) Role() Role                            { return RoleLibrarian }
func (librarianPolicy) CanBorrowMore(_ *User, _ []*Book) bool { return false }
func (librarianPolicy) LoanPeriodDays() int                   { return 0 }
func (librarianPolicy) ResolveOverdue(_ *User, _ int) int     { return 0 }
func (librarianPolicy) ChargesFines() bool                    { return false }
func (librarianPolicy) BlocksOnLongOverdue() bool             { return false }
