package library

import "go.uber.org/zap"

// Status is the circulation state of a book.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusBorrowed  Status = "Borrowed"
)

// NoHolder marks a book that nobody currently holds.
const NoHolder = "-None-"

// Book represents a catalog entry and its current circulation state.
// BorrowDate and DueDate are only meaningful while the book is Borrowed.
type Book struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	ISBN       string `json:"isbn"`
	Publisher  string `json:"publisher"`
	Year       int    `json:"year"`
	Status     Status `json:"status"`
	BorrowDate Day    `json:"borrow_date"`
	DueDate    Day    `json:"due_date"`
	BorrowedBy string `json:"borrowed_by"`
}

// NewBook returns an available book with no holder.
func NewBook(title, author, isbn, publisher string, year int) *Book {
	return &Book{
		Title:      title,
		Author:     author,
		ISBN:       isbn,
		Publisher:  publisher,
		Year:       year,
		Status:     StatusAvailable,
		BorrowedBy: NoHolder,
	}
}

func (b *Book) IsAvailable() bool { return b.Status == StatusAvailable }

// IsHeldBy reports whether the book is currently borrowed by userID.
func (b *Book) IsHeldBy(userID string) bool {
	return b.Status == StatusBorrowed && b.BorrowedBy == userID
}

// DaysOverdue is negative while the due date is still ahead.
func (b *Book) DaysOverdue(today Day) int {
	return DaysBetween(today, b.DueDate)
}

func (b *Book) checkout(userID string, today Day, period int) {
	b.Status = StatusBorrowed
	b.BorrowedBy = userID
	b.BorrowDate = today
	b.DueDate = today.AddDays(period)
}

func (b *Book) reset() {
	b.Status = StatusAvailable
	b.BorrowedBy = NoHolder
	b.BorrowDate = 0
	b.DueDate = 0
}

// Consistent reports whether the holder and dates agree with the status: an
// available book has no holder and zero dates, a borrowed one has a holder.
func (b *Book) Consistent() bool {
	if b.Status == StatusBorrowed {
		return b.BorrowedBy != "" && b.BorrowedBy != NoHolder
	}
	return b.BorrowedBy == NoHolder && b.BorrowDate == 0 && b.DueDate == 0
}

// repairLoaded resets a loaded book that fails Consistent so it can circulate
// again. It reports whether anything changed.
func repairLoaded(b *Book, log *zap.Logger) bool {
	if b.Consistent() {
		return false
	}
	log.Warn("resetting inconsistent book record",
		zap.String("title", b.Title),
		zap.String("status", string(b.Status)),
		zap.String("borrowed_by", b.BorrowedBy))
	b.reset()
	return true
}

// User is the person behind an account. Fine is only charged for roles whose
// policy charges fines; history lists returned titles oldest first.
type User struct {
	Name    string `json:"name"`
	ID      string `json:"user_id"`
	Fine    int    `json:"fine"`
	history []string
	policy  Policy
}

// NewUser binds a user to the policy of role.
func NewUser(name, id string, role Role) (*User, error) {
	p, err := PolicyFor(role)
	if err != nil {
		return nil, err
	}
	return &User{Name: name, ID: id, policy: p}, nil
}

func (u *User) Role() Role          { return u.policy.Role() }
func (u *User) Policy() Policy      { return u.policy }
func (u *User) LoanPeriodDays() int { return u.policy.LoanPeriodDays() }

// CanBorrowMore asks the role policy whether another loan is allowed given
// the user's current holdings.
func (u *User) CanBorrowMore(holdings []*Book) bool {
	return u.policy.CanBorrowMore(u, holdings)
}

// HasUnpaidFines is only ever true for roles that charge fines.
func (u *User) HasUnpaidFines() bool {
	return u.policy.ChargesFines() && u.Fine > 0
}

// PayFines clears the balance once confirm approves the amount shown to it.
func (u *User) PayFines(confirm func(balance int) bool) (int, error) {
	if !u.policy.ChargesFines() {
		return 0, ErrFinesNotApplicable
	}
	if u.Fine == 0 {
		return 0, ErrNoFines
	}
	if confirm == nil || !confirm(u.Fine) {
		return 0, ErrPaymentDeclined
	}
	paid := u.Fine
	u.Fine = 0
	return paid, nil
}

// AddHistory appends a returned title. Duplicates are kept.
func (u *User) AddHistory(title string) {
	u.history = append(u.history, title)
}

// History returns a copy of the returned-book titles.
func (u *User) History() []string {
	out := make([]string, len(u.history))
	copy(out, u.history)
	return out
}

// Account binds login credentials to exactly one user.
type Account struct {
	Username string `json:"username"`
	Password string `json:"-"`
	User     *User  `json:"user"`
}

// NewAccount creates the account and its user for the given role string.
func NewAccount(username, password, role, userID string, fine int) (*Account, error) {
	u, err := NewUser(username, userID, Role(role))
	if err != nil {
		return nil, err
	}
	u.Fine = fine
	return &Account{Username: username, Password: password, User: u}, nil
}

// CheckPassword compares plaintext credentials.
func (a *Account) CheckPassword(candidate string) bool {
	return a.Password == candidate
}

func (a *Account) Role() Role { return a.User.Role() }
