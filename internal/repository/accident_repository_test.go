package repository

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestBuildSearchWhere(t *testing.T) {
	desde := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)
	hasta := time.Date(2022, time.December, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    SearchFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "empty filter",
			filter:    SearchFilter{},
			wantWhere: " WHERE 1=1",
			wantArgs:  []interface{}{},
		},
		{
			name:   "free text spans four columns with one arg",
			filter: SearchFilter{Q: strPtr("peaton")},
			wantWhere: " WHERE 1=1 AND (tipaccid ILIKE $1 OR causaacci ILIKE $1" +
				" OR urbana ILIKE $1 OR suburbana ILIKE $1)",
			wantArgs: []interface{}{"%peaton%"},
		},
		{
			name:      "classification matches exactly without wildcards",
			filter:    SearchFilter{ClasAcc: strPtr("Fatal")},
			wantWhere: " WHERE 1=1 AND clasacc ILIKE $1",
			wantArgs:  []interface{}{"Fatal"},
		},
		{
			name:      "numeric keys",
			filter:    SearchFilter{IDEntidad: intPtr(9), IDMunicipio: intPtr(4)},
			wantWhere: " WHERE 1=1 AND id_entidad = $1 AND id_municipio = $2",
			wantArgs:  []interface{}{9, 4},
		},
		{
			name:      "date range is inclusive on both ends",
			filter:    SearchFilter{Desde: &desde, Hasta: &hasta},
			wantWhere: " WHERE 1=1 AND fecha >= $1 AND fecha <= $2",
			wantArgs:  []interface{}{desde, hasta},
		},
		{
			name: "all filters combine with sequential placeholders",
			filter: SearchFilter{
				Q:         strPtr("colision"),
				IDEntidad: intPtr(9),
				ClasAcc:   strPtr("Solo daños"),
				Desde:     &desde,
			},
			wantWhere: " WHERE 1=1 AND (tipaccid ILIKE $1 OR causaacci ILIKE $1" +
				" OR urbana ILIKE $1 OR suburbana ILIKE $1)" +
				" AND id_entidad = $2 AND clasacc ILIKE $3 AND fecha >= $4",
			wantArgs: []interface{}{"%colision%", 9, "Solo daños", desde},
		},
		{
			name:      "empty strings are not filters",
			filter:    SearchFilter{Q: strPtr(""), ClasAcc: strPtr("")},
			wantWhere: " WHERE 1=1",
			wantArgs:  []interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildSearchWhere(tt.filter)

			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestOrderSQL(t *testing.T) {
	tests := []struct {
		order string
		want  string
	}{
		{OrderFechaAsc, "fecha ASC"},
		{OrderFechaDesc, "fecha DESC"},
		{"", "fecha DESC"},
		{"accidente_id; DROP TABLE accidentes_100", "fecha DESC"},
	}

	for _, tt := range tests {
		if got := orderSQL(tt.order); got != tt.want {
			t.Errorf("orderSQL(%q) = %q, want %q", tt.order, got, tt.want)
		}
	}
}
