package safety_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"librarian/internal/config"
	"librarian/internal/profile"
	"librarian/internal/safety"
	"librarian/internal/services"
	"librarian/internal/testsupport"
)

type constantFingerprinter struct{}

func (constantFingerprinter) Fingerprint(context.Context, string) ([]byte, error) {
	return []byte{1, 2, 3, 4, 5, 6, 7, 8}, nil
}

func lockedProfile(author, title string) *profile.BookProfile {
	engine := profile.NewEngine(profile.DefaultConfig(), nil)
	return engine.Lock(nil, map[profile.Field]string{
		profile.FieldAuthor: author,
		profile.FieldTitle:  title,
	})
}

func TestIsDrasticAuthorChange(t *testing.T) {
	tests := []struct {
		old, new string
		want     bool
	}{
		{"Unknown", "Brandon Sanderson", false},
		{"", "Brandon Sanderson", false},
		{"JRR Tolkien", "J.R.R. Tolkien", false},
		{"Tolkien", "J.R.R. Tolkien", false},
		{"Ursula Le Guin", "Ursula K. Le Guin", false},
		{"Stephen King", "Jane Austen", true},
		{"Metro 2033", "Dmitry Glukhovsky", true},
		{"Sanderson", "Brandon Sanderson", false},
	}
	for _, tt := range tests {
		if got := safety.IsDrasticAuthorChange(tt.old, tt.new); got != tt.want {
			t.Errorf("IsDrasticAuthorChange(%q, %q) = %v, want %v", tt.old, tt.new, got, tt.want)
		}
	}
}

func TestClassifyUnknownToSanderson(t *testing.T) {
	for _, autoFix := range []bool{false, true} {
		cfg := testsupport.NewConfig(t, testsupport.WithAutoFix(autoFix))
		root := cfg.Paths.LibraryDir
		old := filepath.Join(root, "Unknown", "Mistborn")
		testsupport.WriteFile(t, filepath.Join(old, "01.mp3"), 128)

		gate := safety.NewGate(cfg, nil, nil)
		fix, err := gate.Classify(context.Background(), lockedProfile("Brandon Sanderson", "Mistborn"), old)
		if err != nil {
			t.Fatalf("classify: %v", err)
		}
		if fix.NewPath != filepath.Join(root, "Brandon Sanderson", "Mistborn") {
			t.Fatalf("new path = %q", fix.NewPath)
		}
		wantClass, wantReason := safety.PendingApproval, safety.ReasonApprovalRequired
		if autoFix {
			wantClass, wantReason = safety.AutoApply, safety.ReasonAutoFix
		}
		if fix.Classification != wantClass || fix.Reason != wantReason {
			t.Fatalf("auto_fix=%v: got %s/%s", autoFix, fix.Classification, fix.Reason)
		}
	}
}

func TestClassifyDrasticAuthorChangeNeedsApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoFix(true))
	old := filepath.Join(cfg.Paths.LibraryDir, "Stephen King", "Emma")
	testsupport.WriteFile(t, filepath.Join(old, "emma.m4b"), 64)

	fix, err := safety.NewGate(cfg, nil, nil).Classify(context.Background(), lockedProfile("Jane Austen", "Emma"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.Classification != safety.PendingApproval || fix.Reason != safety.ReasonAuthorChange {
		t.Fatalf("got %s/%s", fix.Classification, fix.Reason)
	}

	cfg.Safety.ProtectAuthorChanges = false
	fix, _ = safety.NewGate(cfg, nil, nil).Classify(context.Background(), lockedProfile("Jane Austen", "Emma"), old)
	if fix.Classification != safety.AutoApply {
		t.Fatalf("unprotected change should follow auto_fix, got %s/%s", fix.Classification, fix.Reason)
	}
}

func TestClassifyAlreadyCorrect(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoFix(true))
	old := filepath.Join(cfg.Paths.LibraryDir, "Robin Hobb", "Assassin's Apprentice")
	testsupport.WriteFile(t, filepath.Join(old, "book.m4b"), 32)

	fix, err := safety.NewGate(cfg, nil, nil).Classify(context.Background(), lockedProfile("Robin Hobb", "Assassin's Apprentice"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.Classification != safety.Verified || fix.Reason != safety.ReasonAlreadyCorrect || fix.Executable() {
		t.Fatalf("got %s/%s", fix.Classification, fix.Reason)
	}
}

func TestClassifyConflictDominatesAutoFix(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoFix(true))
	root := cfg.Paths.LibraryDir
	old := filepath.Join(root, "Frank Herbert", "Dune Unabridged")
	testsupport.WriteFile(t, filepath.Join(old, "01.mp3"), 10)
	occupied := filepath.Join(root, "Frank Herbert", "Dune")
	testsupport.WriteFile(t, filepath.Join(occupied, "01.mp3"), 20)

	gate := safety.NewGate(cfg, constantFingerprinter{}, nil)
	fix, err := gate.Classify(context.Background(), lockedProfile("Frank Herbert", "Dune"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.Classification != safety.Rejected || fix.Reason != safety.ReasonConflict {
		t.Fatalf("got %s/%s", fix.Classification, fix.Reason)
	}
	if !errors.Is(fix.Err, services.ErrConflict) || fix.Executable() {
		t.Fatalf("rejection should carry ErrConflict, got %v", fix.Err)
	}

	// without acoustic evidence the occupant is another recording
	fix, err = safety.NewGate(cfg, nil, nil).Classify(context.Background(), lockedProfile("Frank Herbert", "Dune"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.NewPath != occupied+" [Version B]" || fix.Classification != safety.AutoApply {
		t.Fatalf("got %q %s/%s", fix.NewPath, fix.Classification, fix.Reason)
	}
}

func TestClassifyPartialMoves(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Paths.LibraryDir
	old := filepath.Join(root, "Brandon Sanderson", "Final Empire")
	testsupport.WriteFile(t, filepath.Join(old, "01.mp3"), 10)
	testsupport.WriteFile(t, filepath.Join(old, "02.mp3"), 11)
	dest := filepath.Join(root, "Brandon Sanderson", "The Final Empire")
	testsupport.WriteFile(t, filepath.Join(dest, "01.mp3"), 10)

	gate := safety.NewGate(cfg, nil, nil)
	fix, err := gate.Classify(context.Background(), lockedProfile("Brandon Sanderson", "The Final Empire"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.NewPath != dest || fix.Classification != safety.AutoApply || fix.Reason != safety.ReasonCompletePartialMove {
		t.Fatalf("got %q %s/%s", fix.NewPath, fix.Classification, fix.Reason)
	}
	if len(fix.MissingFiles) != 1 || fix.MissingFiles[0] != "02.mp3" {
		t.Fatalf("missing = %v", fix.MissingFiles)
	}

	testsupport.WriteFile(t, filepath.Join(dest, "02.mp3"), 11)
	testsupport.WriteFile(t, filepath.Join(dest, "03.mp3"), 12)
	fix, err = gate.Classify(context.Background(), lockedProfile("Brandon Sanderson", "The Final Empire"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.Classification != safety.PendingApproval || fix.Reason != safety.ReasonPartialMoveSuperset {
		t.Fatalf("superset: got %s/%s", fix.Classification, fix.Reason)
	}
}

func TestClassifyRejectsShallowDestination(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoFix(true))
	cfg.Safety.MinDepth = 3
	old := filepath.Join(cfg.Paths.LibraryDir, "Robin Hobb", "Fools Errand")
	testsupport.WriteFile(t, filepath.Join(old, "a.mp3"), 8)

	fix, err := safety.NewGate(cfg, nil, nil).Classify(context.Background(), lockedProfile("Robin Hobb", "Fool's Errand"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.Classification != safety.Rejected || fix.Reason != safety.ReasonUnsafePath {
		t.Fatalf("got %s/%s", fix.Classification, fix.Reason)
	}
}

func TestClassifyPlaceholderAuthorNeedsApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoFix(true))
	cfg.Naming.Format = config.NamingAuthorTitle
	old := filepath.Join(cfg.Paths.LibraryDir, "Anthology", "Short Stories")
	testsupport.WriteFile(t, filepath.Join(old, "a.mp3"), 8)

	fix, err := safety.NewGate(cfg, nil, nil).Classify(context.Background(), lockedProfile("Various Authors", "Short Stories"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.Classification != safety.PendingApproval || fix.Reason != safety.ReasonUnidentified {
		t.Fatalf("got %s/%s", fix.Classification, fix.Reason)
	}
}

func TestClassifyMatchingManifestAtDestinationIsDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAutoFix(true))
	root := cfg.Paths.LibraryDir
	old := filepath.Join(root, "Unknown", "Mistborn")
	testsupport.WriteFile(t, filepath.Join(old, "01.mp3"), 128)
	dest := filepath.Join(root, "Brandon Sanderson", "Mistborn")
	testsupport.WriteFile(t, filepath.Join(dest, "01.mp3"), 128)

	fix, err := safety.NewGate(cfg, nil, nil).Classify(context.Background(), lockedProfile("Brandon Sanderson", "Mistborn"), old)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if fix.NewPath != dest || fix.Classification != safety.Rejected || fix.Reason != safety.ReasonDuplicate {
		t.Fatalf("got %q %s/%s", fix.NewPath, fix.Classification, fix.Reason)
	}
	if !errors.Is(fix.Err, services.ErrConflict) || fix.Executable() {
		t.Fatalf("duplicate should carry ErrConflict, got %v", fix.Err)
	}
}
