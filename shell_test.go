package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"library-circulation/library"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	shellBooks    = "Dune,Frank Herbert,111,Ace,1965,Available,0,0,-None-\nEmma,Jane Austen,333,Murray,1815,Available,0,0,-None-"
	shellAccounts = "alice,pw,student,S1,0\nbob,pw,faculty,F1,0\ncarol,pw,librarian,L1,0\ndave,pw,student,S2,30"
)

// runShell feeds script to a shell over freshly seeded files and returns what
// it printed along with the accounts file path.
func runShell(t *testing.T, script string, opts ...library.Option) (string, string) {
	t.Helper()
	dir := t.TempDir()
	books := filepath.Join(dir, "BookData.csv")
	accounts := filepath.Join(dir, "AccountData.csv")
	if err := os.WriteFile(books, []byte(shellBooks), 0o644); err != nil {
		t.Fatalf("seed books: %v", err)
	}
	if err := os.WriteFile(accounts, []byte(shellAccounts), 0o644); err != nil {
		t.Fatalf("seed accounts: %v", err)
	}

	opts = append([]library.Option{library.WithClock(func() time.Time { return time.Unix(500*86400, 0) })}, opts...)
	mgr := library.NewLibraryManager(library.NewCSVStore(books, accounts, nil), opts...)
	if err := mgr.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	var out bytes.Buffer
	sh := NewShell(strings.NewReader(script), &out, mgr, nil)
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return out.String(), accounts
}

func expectOutput(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Fatalf("output missing %q:\n%s", w, out)
		}
	}
}

func TestShellInvalidLogin(t *testing.T) {
	out, _ := runShell(t, "1\nalice\nwrong\n0\n")
	expectOutput(t, out, "Invalid login.", "Exiting.")
}

func TestShellStudentBorrowAndReturn(t *testing.T) {
	out, accounts := runShell(t, "1\nalice\npw\n2\nDune\n2\nDune\n2\nMissing\n3\nDune\n3\nEmma\n5\n0\n0\n")
	expectOutput(t, out,
		"Hello alice [S1], role=student",
		"Successfully borrowed: Dune. Due in 15 days.",
		"Book is already borrowed.",
		"No book found.",
		"Returned on time.",
		"Book returned successfully.",
		"Book not borrowed.",
		"Returned Books:\n - Dune\n",
	)

	raw, err := os.ReadFile(accounts)
	if err != nil {
		t.Fatalf("read accounts: %v", err)
	}
	if !strings.HasPrefix(string(raw), "alice,pw,student,S1,0,Dune\n") {
		t.Fatalf("accounts file:\n%s", raw)
	}
}

func TestShellStudentWithFineCannotBorrow(t *testing.T) {
	out, accounts := runShell(t, "1\ndave\npw\n2\nDune\n4\nn\n4\ny\n2\nDune\n0\n0\n")
	expectOutput(t, out,
		"Your current fine: 30",
		"Cannot borrow. You have reached the borrowing limit or have unpaid fines.",
		"Your total fine is 30.",
		"Cancelled.",
		"Fines cleared.",
		"Successfully borrowed: Dune. Due in 15 days.",
	)

	raw, err := os.ReadFile(accounts)
	if err != nil {
		t.Fatalf("read accounts: %v", err)
	}
	if !strings.Contains(string(raw), "dave,pw,student,S2,0") {
		t.Fatalf("accounts file:\n%s", raw)
	}
}

func TestShellFacultyPayFines(t *testing.T) {
	out, _ := runShell(t, "1\nbob\npw\n4\n5\n0\n0\n")
	expectOutput(t, out, "Faculty accounts don't pay fines.", "No returned-book history.")
}

func TestShellLibrarian(t *testing.T) {
	script := strings.Join([]string{
		"1", "carol", "pw",
		"2", "Ulysses", "James Joyce", "555", "Shakespeare", "1922",
		"2", "Dune", "Someone", "1", "Pub", "2000",
		"2", "Bad", "A, B", "1", "Pub", "2000",
		"2", "Odd", "A", "1", "Pub", "soon",
		"3", "Emma",
		"3", "Emma",
		"1",
		"0", "0",
	}, "\n") + "\n"
	out, _ := runShell(t, script)
	expectOutput(t, out,
		"Hello Librarian carol [L1]",
		"Book added.",
		"A book with that title already exists.",
		"Commas are not allowed in book details.",
		"Invalid year: soon",
		"Removed.",
		"No book with that title.",
		"--- All Books ---",
		"Ulysses",
	)
	if strings.Contains(out, "Emma ") {
		t.Fatalf("Emma still listed:\n%s", out)
	}
}

func TestShellEndOfInput(t *testing.T) {
	out, _ := runShell(t, "1\nalice\npw\n2\n")
	expectOutput(t, out, "Enter book title to borrow: ")
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a much longer title", 10, "a much ..."},
		{"abcdef", 3, "abc"},
		{"Cien años de soledad", 10, "Cien añ..."},
		{"日本語の本", 4, "日..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestShellSessionReachesCirculationLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	runShell(t, "1\nalice\npw\n2\nDune\n3\nDune\n0\n1\nalice\npw\n2\nEmma\n0\n0\n",
		library.WithLogger(zap.New(core)))

	borrowed := logs.FilterMessage("borrowed").All()
	if len(borrowed) != 2 {
		t.Fatalf("want 2 borrowed entries, got %d", len(borrowed))
	}
	first, _ := borrowed[0].ContextMap()["session"].(string)
	second, _ := borrowed[1].ContextMap()["session"].(string)
	if len(first) != 26 || len(second) != 26 || first == second {
		t.Fatalf("session ids: %q %q", first, second)
	}
	returned := logs.FilterMessage("returned").All()
	if len(returned) != 1 || returned[0].ContextMap()["session"] != first {
		t.Fatalf("returned entry: %+v", returned)
	}
	if borrowed[0].ContextMap()["username"] != "alice" {
		t.Fatalf("username missing: %v", borrowed[0].ContextMap())
	}
}
