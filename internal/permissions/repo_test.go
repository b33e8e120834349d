package permissions

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tomdash/internal/auth"
	"tomdash/pkg/database/databasetest"
)

type fixture struct {
	db    *sql.DB
	repo  *Repo
	users *auth.Repo
}

func newFixture(t *testing.T) fixture {
	db := databasetest.New(t)
	return fixture{db: db, repo: NewRepo(db), users: auth.NewRepo(db)}
}

func (f fixture) user(t *testing.T, name string, superuser bool) *auth.User {
	t.Helper()
	u, err := auth.NewUser(name, name+"@example.org", "password123", superuser)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.users.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return &u
}

func (f fixture) target(t *testing.T, name string) int64 {
	t.Helper()
	res, err := f.db.Exec(`INSERT INTO targets (name, type, ra, dec) VALUES (?, 'SIDEREAL', 1, 1)`, name)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	return id
}

func TestViewableTargets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	alice := f.user(t, "alice", false)
	bob := f.user(t, "bob", false)
	root := f.user(t, "root", true)

	t1, t2, t3 := f.target(t, "T1"), f.target(t, "T2"), f.target(t, "T3")

	if err := f.repo.GrantUser(ctx, t1, alice.ID); err != nil {
		t.Fatal(err)
	}
	// granting twice is harmless
	if err := f.repo.GrantUser(ctx, t1, alice.ID); err != nil {
		t.Fatal(err)
	}

	g, err := f.repo.CreateGroup(ctx, "observers")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.repo.AddMember(ctx, g.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.repo.GrantGroup(ctx, t2, g.ID); err != nil {
		t.Fatal(err)
	}

	got, err := f.repo.ViewableTargets(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(IDSet{t1: {}, t2: {}}, got); diff != "" {
		t.Fatalf("alice (-want +got):\n%s", diff)
	}

	got, err = f.repo.ViewableTargets(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("bob sees %v", got)
	}

	got, err = f.repo.ViewableTargets(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(IDSet{t1: {}, t2: {}, t3: {}}, got); diff != "" {
		t.Fatalf("root (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		u    *auth.User
		id   int64
		want bool
	}{
		{alice, t1, true},
		{alice, t2, true},
		{alice, t3, false},
		{bob, t1, false},
		{root, t3, true},
		{nil, t1, false},
	} {
		ok, err := f.repo.CanView(ctx, tc.u, tc.id)
		if err != nil {
			t.Fatal(err)
		}
		if ok != tc.want {
			t.Errorf("CanView(%v, %d) = %v, want %v", tc.u, tc.id, ok, tc.want)
		}
	}
}

func TestGroupByName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.repo.CreateGroup(ctx, " observers ")
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.repo.GroupByName(ctx, "observers")
	if err != nil {
		t.Fatal(err)
	}
	if got != created {
		t.Fatalf("got %+v, want %+v", got, created)
	}
	if _, err := f.repo.GroupByName(ctx, "missing"); err != ErrGroupNotFound {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.repo.CreateGroup(ctx, "  "); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestGrantsRejectUnknownGroupOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.user(t, "alice", false)
	id := f.target(t, "T1")

	// keep one connection busy so the pool hands out a fresh one
	held, err := f.db.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	if err := f.repo.GrantGroup(ctx, id, "no-such-group"); err == nil {
		t.Fatal("GrantGroup accepted an unknown group")
	}
	if err := f.repo.AddMember(ctx, "no-such-group", alice.ID); err == nil {
		t.Fatal("AddMember accepted an unknown group")
	}

	var orphans int
	if err := held.QueryRowContext(ctx, `SELECT COUNT(*) FROM target_group_perms`).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Fatalf("orphan grants = %d", orphans)
	}
}
