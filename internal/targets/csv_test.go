package targets

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"tomdash/pkg/database/databasetest"
)

func TestImportExportCSV(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(databasetest.New(t))

	in := "Name,Type,RA,Dec\n" +
		"M31,sidereal,10.6847,41.2687\n" +
		"Ceres,non_sidereal,,\n" +
		"\"Barnard's Star\",SIDEREAL,269.452,4.6933\n"
	ids, err := repo.ImportCSV(ctx, strings.NewReader(in))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("imported %d targets", len(ids))
	}

	var out bytes.Buffer
	n, err := repo.ExportCSV(ctx, &out)
	if err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if n != 3 {
		t.Fatalf("exported %d", n)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if lines[0] != "id,name,type,ra,dec,created_at" {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "1,M31,SIDEREAL,10.6847,41.2687,") {
		t.Fatalf("row 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2,Ceres,NON_SIDEREAL,,,") {
		t.Fatalf("row 2 = %q", lines[2])
	}
}

func TestImportCSVErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(databasetest.New(t))

	if _, err := repo.ImportCSV(ctx, strings.NewReader("name,ra\nx,1\n")); err == nil {
		t.Fatal("expected missing type column error")
	}

	ids, err := repo.ImportCSV(ctx, strings.NewReader("name,type,ra,dec\nok,SIDEREAL,1,2\nbad,SIDEREAL,abc,2\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err = %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("rows before the failure should be kept, got %v", ids)
	}
}
