package etl

import (
	"testing"
	"time"

	"accidentes-platform/internal/models"
)

func makeRecords(n int) []models.Accident {
	rows := make([]models.Accident, n)
	base := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = models.Accident{
			IDEntidad:   i,
			IDMunicipio: i % 50,
			Fecha:       base.Add(time.Duration(i) * time.Hour),
		}
	}
	return rows
}

func TestSample_Deterministic(t *testing.T) {
	rows := makeRecords(500)

	a := Sample(rows, 100, 42)
	b := Sample(rows, 100, 42)

	if len(a) != 100 {
		t.Fatalf("len = %d, want 100", len(a))
	}
	for i := range a {
		if a[i].IDEntidad != b[i].IDEntidad {
			t.Fatalf("runs diverge at %d: %d vs %d", i, a[i].IDEntidad, b[i].IDEntidad)
		}
	}
}

func TestSample_SeedChangesSelection(t *testing.T) {
	rows := makeRecords(500)

	a := Sample(rows, 100, 42)
	b := Sample(rows, 100, 43)

	same := true
	for i := range a {
		if a[i].IDEntidad != b[i].IDEntidad {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical samples")
	}
}

func TestSample_WithoutReplacement(t *testing.T) {
	rows := makeRecords(150)

	out := Sample(rows, 100, 42)

	seen := make(map[int]struct{}, len(out))
	for _, rec := range out {
		if _, dup := seen[rec.IDEntidad]; dup {
			t.Fatalf("record %d drawn twice", rec.IDEntidad)
		}
		seen[rec.IDEntidad] = struct{}{}
		if rec.IDEntidad < 0 || rec.IDEntidad >= 150 {
			t.Fatalf("record %d not from the input", rec.IDEntidad)
		}
	}
}

func TestSample_UnderFill(t *testing.T) {
	rows := makeRecords(5)

	out := Sample(rows, 100, 42)

	if len(out) != 5 {
		t.Fatalf("len = %d, want all 5 input rows", len(out))
	}
}

func TestSample_ReturnsCopy(t *testing.T) {
	rows := makeRecords(10)

	out := Sample(rows, 10, 42)
	out[0].IDEntidad = -1

	for _, rec := range rows {
		if rec.IDEntidad == -1 {
			t.Fatal("mutating the sample leaked into the input slice")
		}
	}
}
