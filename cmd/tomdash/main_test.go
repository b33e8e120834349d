package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tomdash/internal/plots"
)

func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	dbPath = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--db", db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLIWorkflow(t *testing.T) {
	t.Setenv("TOMDASH_CONFIG", "")
	t.Setenv("TOMDASH_LOG_LEVEL", "error")
	dir := t.TempDir()
	db := filepath.Join(dir, "tom.db")

	csvPath := filepath.Join(dir, "targets.csv")
	body := "name,type,ra,dec\nT1,SIDEREAL,10,20\nT2,NON_SIDEREAL,,\nT3,SIDEREAL,30,40\n"
	if err := os.WriteFile(csvPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	steps := [][]string{
		{"user", "create", "--username", "alice", "--email", "alice@example.org", "--password", "password123"},
		{"user", "create", "--username", "bob", "--email", "bob@example.org", "--password", "password123"},
		{"target", "import", csvPath},
		{"grant", "--target", "1", "--user", "alice"},
		{"grant", "--target", "2", "--user", "alice"},
		{"group", "create", "observers"},
		{"group", "add-member", "observers", "bob"},
		{"grant", "--target", "3", "--group", "observers"},
	}
	for _, args := range steps {
		if out, err := run(t, db, args...); err != nil {
			t.Fatalf("%v: %v\n%s", args, err, out)
		}
	}

	out, err := run(t, db, "plot", "--user", "alice", "--targets", "1,2,3")
	if err != nil {
		t.Fatalf("plot: %v\n%s", err, out)
	}
	var fig plots.Figure
	if err := json.Unmarshal([]byte(out), &fig); err != nil {
		t.Fatalf("decode figure: %v\n%s", err, out)
	}
	if len(fig.Data) != 2 || len(fig.Data[0].Text) != 1 || fig.Data[0].Text[0] != "T1" {
		t.Fatalf("alice figure: %+v", fig.Data)
	}

	out, err = run(t, db, "plot", "--user", "bob")
	if err != nil {
		t.Fatalf("plot bob: %v\n%s", err, out)
	}
	var bobFig plots.Figure
	if err := json.Unmarshal([]byte(out), &bobFig); err != nil {
		t.Fatal(err)
	}
	if len(bobFig.Data[0].Text) != 1 || bobFig.Data[0].Text[0] != "T3" {
		t.Fatalf("bob figure: %+v", bobFig.Data[0])
	}

	if out, err := run(t, db, "user", "promote", "bob"); err != nil || !strings.Contains(out, "bob superuser=true") {
		t.Fatalf("promote: %v\n%s", err, out)
	}
	out, err = run(t, db, "plot", "--user", "bob")
	if err != nil {
		t.Fatalf("plot promoted bob: %v\n%s", err, out)
	}
	var promoted plots.Figure
	if err := json.Unmarshal([]byte(out), &promoted); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(promoted.Data[0].Text, ","); got != "T1,T3" {
		t.Fatalf("promoted bob sees %q", got)
	}

	if _, err := run(t, db, "plot", "--user", "mallory", "--targets", "1"); err == nil {
		t.Fatal("expected lookup failure for unknown user")
	}

	exportPath := filepath.Join(dir, "out.csv")
	if out, err := run(t, db, "target", "export", exportPath); err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	exported, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(exported), "\n"); got != 4 {
		t.Fatalf("export has %d lines:\n%s", got, exported)
	}
}

func TestGrantNeedsExactlyOneGrantee(t *testing.T) {
	t.Setenv("TOMDASH_CONFIG", "")
	db := filepath.Join(t.TempDir(), "tom.db")
	if _, err := run(t, db, "grant", "--target", "1"); err == nil {
		t.Fatal("expected error without --user or --group")
	}
	if _, err := run(t, db, "grant", "--target", "1", "--user", "a", "--group", "b"); err == nil {
		t.Fatal("expected error with both --user and --group")
	}
}
