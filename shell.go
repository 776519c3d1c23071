package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"library-circulation/library"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Shell is the interactive menu front end. It owns no business rules: it
// reads input, resolves titles and reports what the manager decided.
type Shell struct {
	sc           *bufio.Scanner
	out          io.Writer
	readPassword func(prompt string) (string, error)
	mgr          *library.LibraryManager
	log          *zap.Logger

	// held while a command runs so shutdown never saves mid-mutation
	mu sync.Mutex
}

// NewShell reads commands from in and writes to out. When in is a terminal,
// passwords are read without echo.
func NewShell(in io.Reader, out io.Writer, mgr *library.LibraryManager, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Shell{
		sc:  bufio.NewScanner(in),
		out: out,
		mgr: mgr,
		log: log,
	}
	s.readPassword = s.readLinePassword
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		s.readPassword = func(prompt string) (string, error) {
			fmt.Fprint(s.out, prompt)
			b, err := term.ReadPassword(int(f.Fd()))
			if err != nil {
				return "", err
			}
			fmt.Fprintln(s.out) // Add newline after password input
			return strings.TrimSpace(string(b)), nil
		}
	}
	return s
}

// Stop runs fn once no command is in progress.
func (s *Shell) Stop(fn func()) { s.locked(fn) }

func (s *Shell) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }
func (s *Shell) println(args ...any)               { fmt.Fprintln(s.out, args...) }

// prompt prints label and returns the next trimmed line; ok is false on EOF.
func (s *Shell) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *Shell) readLinePassword(label string) (string, error) {
	line, ok := s.prompt(label)
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

// Run shows the top menu until the user exits or input ends.
func (s *Shell) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		s.println()
		s.println("=== LIBRARY SYSTEM ===")
		s.println("1. Login")
		s.println("0. Exit")
		choice, ok := s.prompt("Choice: ")
		if !ok {
			return nil
		}

		switch choice {
		case "0":
			s.println("Exiting.")
			return nil
		case "1":
			if !s.login(ctx) {
				return nil
			}
		default:
			s.println("Invalid.")
		}
	}
	return ctx.Err()
}

// login authenticates and runs the role menu. It returns false once input is
// exhausted.
func (s *Shell) login(ctx context.Context) bool {
	username, ok := s.prompt("Username: ")
	if !ok {
		return false
	}
	password, err := s.readPassword("Password: ")
	if err != nil {
		return false
	}

	s.mu.Lock()
	acc, err := s.mgr.Login(username, password)
	s.mu.Unlock()
	if err != nil {
		s.println("Invalid login.")
		return true
	}

	session := []zap.Field{
		zap.String("session", ulid.Make().String()),
		zap.String("username", acc.Username),
	}
	ctx = library.WithLogFields(ctx, session...)
	sessionLog := s.log.With(session...)
	sessionLog.Debug("session started")
	defer sessionLog.Debug("session ended")

	if acc.Role() == library.RoleLibrarian {
		return s.librarianMenu(ctx, acc)
	}
	return s.memberMenu(ctx, acc)
}

// ------------------ Librarian ------------------

func (s *Shell) librarianMenu(ctx context.Context, acc *library.Account) bool {
	u := acc.User
	for ctx.Err() == nil {
		s.println()
		s.printf("Hello Librarian %s [%s]\n", u.Name, u.ID)
		s.println("1. List all books")
		s.println("2. Add book")
		s.println("3. Remove book")
		s.println("0. Logout")
		choice, ok := s.prompt("Choice: ")
		if !ok {
			return false
		}

		alive := true
		switch choice {
		case "0":
			return true
		case "1":
			s.locked(func() { s.handleListBooks() })
		case "2":
			alive = s.handleAddBook(ctx)
		case "3":
			alive = s.handleRemoveBook(ctx)
		default:
			s.println("Invalid.")
		}
		if !alive {
			return false
		}
	}
	return false
}

func (s *Shell) handleAddBook(ctx context.Context) bool {
	fields := []string{"Title: ", "Author: ", "ISBN: ", "Publisher: ", "Year: "}
	vals := make([]string, len(fields))
	for i, label := range fields {
		v, ok := s.prompt(label)
		if !ok {
			return false
		}
		vals[i] = v
	}
	year, err := strconv.Atoi(vals[4])
	if err != nil {
		s.printf("Invalid year: %s\n", vals[4])
		return true
	}
	if strings.Contains(strings.Join(vals[:4], ""), ",") {
		s.println("Commas are not allowed in book details.")
		return true
	}

	b := library.NewBook(vals[0], vals[1], vals[2], vals[3], year)
	s.locked(func() { err = s.mgr.AddBook(ctx, b) })
	switch {
	case errors.Is(err, library.ErrDuplicateTitle):
		s.println("A book with that title already exists.")
	case errors.Is(err, library.ErrEmptyTitle):
		s.println("Title cannot be empty.")
	case err != nil:
		s.printf("Book added, but saving failed: %v\n", err)
	default:
		s.println("Book added.")
	}
	return true
}

func (s *Shell) handleRemoveBook(ctx context.Context) bool {
	title, ok := s.prompt("Enter title to remove: ")
	if !ok {
		return false
	}
	var (
		n   int
		err error
	)
	s.locked(func() { n, err = s.mgr.RemoveBook(ctx, title) })
	switch {
	case errors.Is(err, library.ErrBookNotFound):
		s.println("No book with that title.")
	case err != nil:
		s.printf("Removed, but saving failed: %v\n", err)
	case n > 1:
		s.printf("Removed %d copies.\n", n)
	default:
		s.println("Removed.")
	}
	return true
}

// ------------------ Student / Faculty ------------------

func (s *Shell) memberMenu(ctx context.Context, acc *library.Account) bool {
	u := acc.User
	for ctx.Err() == nil {
		s.println()
		s.printf("Hello %s [%s], role=%s\n", u.Name, u.ID, acc.Role())
		s.printf("Your current fine: %d\n", u.Fine)
		s.println("1. List all books")
		s.println("2. Borrow a book")
		s.println("3. Return a book")
		s.println("4. Pay Fines (Student only)")
		s.println("5. Show returned-book history")
		s.println("0. Logout")
		choice, ok := s.prompt("Choice: ")
		if !ok {
			return false
		}

		alive := true
		switch choice {
		case "0":
			return true
		case "1":
			s.locked(func() { s.handleListBooks() })
		case "2":
			alive = s.handleBorrow(ctx, u)
		case "3":
			alive = s.handleReturn(ctx, u)
		case "4":
			alive = s.handlePayFines(ctx, u)
		case "5":
			s.handleHistory(u)
		default:
			s.println("Invalid.")
		}
		if !alive {
			return false
		}
	}
	return false
}

func (s *Shell) handleBorrow(ctx context.Context, u *library.User) bool {
	title, ok := s.prompt("Enter book title to borrow: ")
	if !ok {
		return false
	}

	s.locked(func() {
		b, err := s.mgr.FindBook(title)
		if err != nil {
			s.println("No book found.")
			return
		}
		r, err := s.mgr.Borrow(ctx, u, b)
		switch {
		case errors.Is(err, library.ErrBorrowNotPermitted):
			s.println("Cannot borrow. Your role does not borrow books.")
		case errors.Is(err, library.ErrOverdueBlock):
			s.println("Cannot borrow. You have an overdue book exceeding 60 days.")
		case errors.Is(err, library.ErrBorrowLimit):
			s.println("Cannot borrow. You have reached the borrowing limit or have unpaid fines.")
		case errors.Is(err, library.ErrAlreadyBorrowed):
			s.println("Book is already borrowed.")
		case err != nil:
			s.printf("Borrowed %s, but saving failed: %v\n", b.Title, err)
		default:
			s.printf("Successfully borrowed: %s. Due in %d days.\n", r.Title, r.DueInDays)
		}
	})
	return true
}

func (s *Shell) handleReturn(ctx context.Context, u *library.User) bool {
	title, ok := s.prompt("Enter book title to return: ")
	if !ok {
		return false
	}

	s.locked(func() {
		b, err := s.mgr.FindBook(title)
		if err != nil {
			s.println("No such book.")
			return
		}
		r, err := s.mgr.Return(ctx, u, b)
		switch {
		case errors.Is(err, library.ErrNotBorrowed):
			s.println("Book not borrowed.")
			return
		case errors.Is(err, library.ErrNotBorrowedByUser):
			s.println("That book isn't borrowed by you.")
			return
		}

		if r.OnTime {
			s.println("Returned on time.")
		}
		if r.FineCharged > 0 {
			s.printf("%d days overdue. You were fined %d.\n", r.OverdueDays, r.FineCharged)
		}
		if r.BorrowingBlocked {
			s.println("You cannot borrow new books until overdue books older than 60 days are cleared.")
		}
		if err != nil {
			s.printf("Book returned, but saving failed: %v\n", err)
			return
		}
		s.println("Book returned successfully.")
	})
	return true
}

func (s *Shell) handlePayFines(ctx context.Context, u *library.User) bool {
	alive := true
	confirm := func(balance int) bool {
		// nothing is mutated before confirmation, so release the lock while
		// waiting on input
		s.mu.Unlock()
		defer s.mu.Lock()

		s.printf("Your total fine is %d.\n", balance)
		answer, ok := s.prompt("Pay now? (y/n): ")
		if !ok {
			alive = false
			return false
		}
		return strings.EqualFold(answer, "y")
	}

	s.mu.Lock()
	paid, err := s.mgr.PayFines(ctx, u, confirm)
	s.mu.Unlock()

	switch {
	case errors.Is(err, library.ErrFinesNotApplicable):
		s.printf("%s accounts don't pay fines.\n", roleTitle(u.Role()))
	case errors.Is(err, library.ErrNoFines):
		s.println("No fines to pay.")
	case errors.Is(err, library.ErrPaymentDeclined):
		if alive {
			s.println("Cancelled.")
		}
	case err != nil:
		s.printf("Paid %d, but saving failed: %v\n", paid, err)
	default:
		s.println("Fines cleared.")
	}
	return alive
}

func (s *Shell) handleHistory(u *library.User) {
	history := u.History()
	if len(history) == 0 {
		s.println("No returned-book history.")
		return
	}
	s.println("Returned Books:")
	for _, title := range history {
		s.printf(" - %s\n", title)
	}
}

// ------------------ Shared ------------------

func (s *Shell) handleListBooks() {
	books := s.mgr.Books()
	if len(books) == 0 {
		s.println("No books.")
		return
	}

	s.println("--- All Books ---")
	s.printf("%-30s %-20s %-6s %-10s %-12s %s\n", "Title", "Author", "Year", "Status", "Borrowed By", "Due Day")
	s.println(strings.Repeat("-", 92))
	for _, b := range books {
		due := ""
		if !b.IsAvailable() {
			due = strconv.Itoa(int(b.DueDate))
		}
		s.printf("%-30s %-20s %-6d %-10s %-12s %s\n",
			truncateString(b.Title, 30),
			truncateString(b.Author, 20),
			b.Year,
			b.Status,
			truncateString(b.BorrowedBy, 12),
			due)
	}
}

func (s *Shell) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func roleTitle(r library.Role) string {
	name := string(r)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func truncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
