package runtime

import (
	"path/filepath"
	"testing"

	"github.com/pithecene-io/svgswap/journal"
	"github.com/pithecene-io/svgswap/rewrite"
	"github.com/pithecene-io/svgswap/types"
)

func TestResume_CompletesPendingEntries(t *testing.T) {
	root := t.TempDir()
	journalPath := filepath.Join(root, journal.DefaultFileName)

	// a: accepted only (rewrite pending). b: rewritten (delete pending).
	// c: completed. d: accepted but artifact gone.
	aSVG := writeFile(t, root, "a.svg", "<svg/>")
	aAVIF := writeFile(t, root, "a.avif", "avif")
	bSVG := writeFile(t, root, "b.svg", "<svg/>")
	bAVIF := writeFile(t, root, "b.avif", "avif")
	dSVG := writeFile(t, root, "d.svg", "<svg/>")
	page := writeFile(t, root, "index.html", `<img src="a.svg"><img src="b.avif"><img src="d.svg">`)

	j, err := journal.Open(journalPath, "run-001")
	if err != nil {
		t.Fatal(err)
	}
	pair := func(name string) types.RenamePair {
		return types.RenamePair{Original: name + ".svg", New: name + ".avif"}
	}
	records := []struct {
		phase journal.Phase
		name  string
	}{
		{journal.PhaseAccepted, "a"},
		{journal.PhaseAccepted, "b"},
		{journal.PhaseRewritten, "b"},
		{journal.PhaseAccepted, "c"},
		{journal.PhaseRewritten, "c"},
		{journal.PhaseCompleted, "c"},
		{journal.PhaseAccepted, "d"},
	}
	for _, r := range records {
		orig := filepath.Join(root, r.name+".svg")
		art := filepath.Join(root, r.name+".avif")
		if err := j.Record(r.phase, pair(r.name), orig, art); err != nil {
			t.Fatal(err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	result, err := Resume(t.Context(), &ResumeConfig{
		Meta:        &types.BatchMeta{RunID: "run-002", Root: root},
		JournalPath: journalPath,
		Rewriter:    rewrite.New(rewrite.Options{Root: root}),
	})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	got := map[string]ResumeStatus{}
	for _, e := range result.Entries {
		got[e.Pair.Original] = e.Status
	}
	want := map[string]ResumeStatus{
		"a.svg": ResumeCompleted,
		"b.svg": ResumeCompleted,
		"d.svg": ResumeSkipped,
	}
	if len(got) != len(want) {
		t.Fatalf("entries = %+v", result.Entries)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s status = %s, want %s", k, got[k], v)
		}
	}

	if exists(aSVG) || exists(bSVG) {
		t.Error("originals of resumed entries should be deleted")
	}
	if !exists(aAVIF) || !exists(bAVIF) {
		t.Error("artifacts should remain")
	}
	if !exists(dSVG) {
		t.Error("skipped entry's original must remain")
	}
	if got := readString(t, page); got != `<img src="a.avif"><img src="b.avif"><img src="d.svg">` {
		t.Errorf("page = %q", got)
	}

	// d is still pending, so the journal stays.
	if result.JournalRemoved {
		t.Error("journal should be kept while entries remain pending")
	}
	entries, err := journal.ReadAll(journalPath)
	if err != nil {
		t.Fatal(err)
	}
	pending := journal.Pending(entries)
	if len(pending) != 1 || pending[0].Pair.Original != "d.svg" {
		t.Errorf("pending = %+v", pending)
	}
	if last := entries[len(entries)-1]; last.RunID != "run-002" {
		t.Errorf("resume entries should carry the resuming run id, got %q", last.RunID)
	}
}

func TestResume_NoJournal(t *testing.T) {
	root := t.TempDir()
	result, err := Resume(t.Context(), &ResumeConfig{
		Meta:        &types.BatchMeta{RunID: "run-002", Root: root},
		JournalPath: filepath.Join(root, journal.DefaultFileName),
		Rewriter:    rewrite.New(rewrite.Options{Root: root}),
	})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(result.Entries) != 0 || !result.JournalRemoved {
		t.Errorf("result = %+v", result)
	}
}

func TestResume_RejectsDryRun(t *testing.T) {
	root := t.TempDir()
	_, err := Resume(t.Context(), &ResumeConfig{
		Meta:        &types.BatchMeta{RunID: "run-002", Root: root, DryRun: true},
		JournalPath: filepath.Join(root, journal.DefaultFileName),
		Rewriter:    rewrite.New(rewrite.Options{Root: root}),
	})
	if err == nil {
		t.Fatal("expected error for dry-run resume")
	}
}
