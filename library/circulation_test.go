package library

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type userSnapshot struct {
	fine    int
	history []string
}

func snapUser(u *User) userSnapshot { return userSnapshot{fine: u.Fine, history: u.History()} }

func newTestLibrary(titles ...string) *Library {
	books := make([]*Book, 0, len(titles))
	for _, title := range titles {
		books = append(books, NewBook(title, "Author", "ISBN-"+title, "Pub", 1999))
	}
	return NewLibrary(books, nil)
}

func mustFind(t *testing.T, l *Library, title string) *Book {
	t.Helper()
	b, err := l.FindBook(title)
	require.NoError(t, err)
	return b
}

func requireAvailable(t *testing.T, b *Book) {
	t.Helper()
	require.Equal(t, StatusAvailable, b.Status)
	require.Equal(t, NoHolder, b.BorrowedBy)
	require.Zero(t, b.BorrowDate)
	require.Zero(t, b.DueDate)
}

func TestBorrowReturnOnTime(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("Dune")
	u := mustUser(t, RoleStudent, "S1")
	b := mustFind(t, l, "Dune")

	r, err := l.Borrow(u, b, 100)
	require.NoError(t, err)
	require.Equal(t, BorrowReceipt{Title: "Dune", DueDate: 115, DueInDays: 15}, r)
	require.Equal(t, StatusBorrowed, b.Status)
	require.Equal(t, "S1", b.BorrowedBy)
	require.Equal(t, Day(100), b.BorrowDate)
	require.Equal(t, Day(115), b.DueDate)

	ret, err := l.Return(u, b, 115)
	require.NoError(t, err)
	require.True(t, ret.OnTime)
	require.Zero(t, ret.FineCharged)
	requireAvailable(t, b)
	require.Zero(t, u.Fine)
	require.Equal(t, []string{"Dune"}, u.History())
}

func TestReturnOverdueStudentFined(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("Dune")
	u := mustUser(t, RoleStudent, "S1")
	b := mustFind(t, l, "Dune")

	_, err := l.Borrow(u, b, 100)
	require.NoError(t, err)

	ret, err := l.Return(u, b, 120)
	require.NoError(t, err)
	require.False(t, ret.OnTime)
	require.Equal(t, 5, ret.OverdueDays)
	require.Equal(t, 50, ret.FineCharged)
	require.False(t, ret.BorrowingBlocked)
	require.Equal(t, 50, u.Fine)
	requireAvailable(t, b)

	// the fine now blocks further loans until paid
	_, err = l.Borrow(u, b, 120)
	require.ErrorIs(t, err, ErrBorrowLimit)
	requireAvailable(t, b)

	_, err = u.PayFines(func(int) bool { return true })
	require.NoError(t, err)
	_, err = l.Borrow(u, b, 120)
	require.NoError(t, err)
}

func TestReturnOverdueFacultyNotFined(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("Dune")
	u := mustUser(t, RoleFaculty, "F1")
	b := mustFind(t, l, "Dune")

	r, err := l.Borrow(u, b, 100)
	require.NoError(t, err)
	require.Equal(t, 30, r.DueInDays)

	ret, err := l.Return(u, b, 135)
	require.NoError(t, err)
	require.Equal(t, 5, ret.OverdueDays)
	require.Zero(t, ret.FineCharged)
	require.False(t, ret.BorrowingBlocked)
	require.Zero(t, u.Fine)
	requireAvailable(t, b)
	require.Equal(t, []string{"Dune"}, u.History())
}

func TestFacultyLongOverdueBlocksBorrowing(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("Old", "New")
	u := mustUser(t, RoleFaculty, "F1")
	old := mustFind(t, l, "Old")
	fresh := mustFind(t, l, "New")

	_, err := l.Borrow(u, old, 100) // due 130
	require.NoError(t, err)

	// exactly 60 days over is still allowed
	_, err = l.Borrow(u, fresh, 190)
	require.NoError(t, err)
	_, err = l.Return(u, fresh, 190)
	require.NoError(t, err)

	before := *fresh
	_, err = l.Borrow(u, fresh, 191)
	require.ErrorIs(t, err, ErrOverdueBlock)
	require.Equal(t, before, *fresh)

	ret, err := l.Return(u, old, 191)
	require.NoError(t, err)
	require.Equal(t, 61, ret.OverdueDays)
	require.True(t, ret.BorrowingBlocked)
	require.Zero(t, u.Fine)

	_, err = l.Borrow(u, fresh, 191)
	require.NoError(t, err)
}

func TestFacultyLimitAndOverdueBothChecked(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("A", "B", "C", "D", "E", "F")
	u := mustUser(t, RoleFaculty, "F1")
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		_, err := l.Borrow(u, mustFind(t, l, title), 10)
		require.NoError(t, err)
	}
	_, err := l.Borrow(u, mustFind(t, l, "F"), 10)
	require.ErrorIs(t, err, ErrBorrowLimit)
}

func TestStudentLimit(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("A", "B", "C", "D")
	u := mustUser(t, RoleStudent, "S1")
	for _, title := range []string{"A", "B", "C"} {
		_, err := l.Borrow(u, mustFind(t, l, title), 10)
		require.NoError(t, err)
	}
	require.Len(t, l.Holdings("S1"), 3)

	d := mustFind(t, l, "D")
	_, err := l.Borrow(u, d, 10)
	require.ErrorIs(t, err, ErrBorrowLimit)
	requireAvailable(t, d)
}

func TestLibrarianCannotBorrow(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("A")
	u := mustUser(t, RoleLibrarian, "L1")
	b := mustFind(t, l, "A")
	_, err := l.Borrow(u, b, 10)
	require.ErrorIs(t, err, ErrBorrowNotPermitted)
	requireAvailable(t, b)
}

func TestSecondBorrowerRejected(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("Dune")
	first := mustUser(t, RoleStudent, "S1")
	second := mustUser(t, RoleFaculty, "F1")
	b := mustFind(t, l, "Dune")

	_, err := l.Borrow(first, b, 50)
	require.NoError(t, err)

	before := *b
	secondBefore := snapUser(second)
	_, err = l.Borrow(second, b, 51)
	require.ErrorIs(t, err, ErrAlreadyBorrowed)
	require.Equal(t, before, *b)
	require.Equal(t, secondBefore, snapUser(second))
	require.Empty(t, l.Holdings("F1"))
}

func TestRejectedReturnsDoNotMutate(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("Dune", "Emma")
	owner := mustUser(t, RoleStudent, "S1")
	other := mustUser(t, RoleStudent, "S2")
	dune := mustFind(t, l, "Dune")
	emma := mustFind(t, l, "Emma")

	_, err := l.Borrow(owner, dune, 10)
	require.NoError(t, err)

	t.Run("not borrowed", func(t *testing.T) {
		before := *emma
		userBefore := snapUser(owner)
		_, err := l.Return(owner, emma, 40)
		require.ErrorIs(t, err, ErrNotBorrowed)
		require.Equal(t, before, *emma)
		require.Equal(t, userBefore, snapUser(owner))
	})

	t.Run("held by someone else", func(t *testing.T) {
		before := *dune
		userBefore := snapUser(other)
		_, err := l.Return(other, dune, 40)
		require.ErrorIs(t, err, ErrNotBorrowedByUser)
		require.Equal(t, before, *dune)
		require.Equal(t, userBefore, snapUser(other))
	})
}

func TestHistoryKeepsRepeats(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("Dune", "Emma")
	u := mustUser(t, RoleStudent, "S1")
	for _, title := range []string{"Dune", "Emma", "Dune"} {
		b := mustFind(t, l, title)
		_, err := l.Borrow(u, b, 1)
		require.NoError(t, err)
		_, err = l.Return(u, b, 2)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"Dune", "Emma", "Dune"}, u.History())
}

func TestHoldingsAreDerivedFromCatalog(t *testing.T) {
	t.Parallel()

	l := newTestLibrary("A", "B")
	u := mustUser(t, RoleStudent, "S1")
	_, err := l.Borrow(u, mustFind(t, l, "A"), 1)
	require.NoError(t, err)
	_, err = l.Borrow(u, mustFind(t, l, "B"), 1)
	require.NoError(t, err)
	require.Len(t, l.Holdings("S1"), 2)

	// removing a held book from the catalog drops it from the holdings too
	n, err := l.RemoveBook("A")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	held := l.Holdings("S1")
	require.Len(t, held, 1)
	require.Equal(t, "B", held[0].Title)
}

func TestCatalogOperations(t *testing.T) {
	t.Parallel()

	l := NewLibrary([]*Book{
		NewBook("Twin", "A", "1", "P", 1),
		NewBook("Solo", "A", "2", "P", 2),
		NewBook("Twin", "B", "3", "P", 3),
	}, nil)

	b, err := l.FindBook("Twin")
	require.NoError(t, err)
	require.Equal(t, "1", b.ISBN)

	_, err = l.FindBook("twin")
	require.ErrorIs(t, err, ErrBookNotFound)

	require.ErrorIs(t, l.AddBook(NewBook("Solo", "X", "9", "P", 9)), ErrDuplicateTitle)
	require.ErrorIs(t, l.AddBook(NewBook("  ", "X", "9", "P", 9)), ErrEmptyTitle)
	require.NoError(t, l.AddBook(NewBook("Fresh", "X", "9", "P", 9)))
	require.Len(t, l.Books(), 4)

	n, err := l.RemoveBook("Twin")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, l.Books(), 2)

	_, err = l.RemoveBook("Twin")
	require.ErrorIs(t, err, ErrBookNotFound)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	alice, err := NewAccount("alice", "pw", "student", "S1", 0)
	require.NoError(t, err)
	dup, err := NewAccount("alice", "other", "faculty", "F9", 0)
	require.NoError(t, err)
	l := NewLibrary(nil, []*Account{alice, dup})

	acc, err := l.Login("alice", "pw")
	require.NoError(t, err)
	require.Same(t, alice, acc)

	// only the first account with a username is considered
	_, err = l.Login("alice", "other")
	require.ErrorIs(t, err, ErrInvalidLogin)

	_, err = l.Login("nobody", "pw")
	require.ErrorIs(t, err, ErrInvalidLogin)
}
