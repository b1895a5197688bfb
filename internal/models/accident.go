package models

import (
	"strconv"
	"strings"
	"time"
)

// Accident represents one row of the accidentes_100 table.
// AccidenteID is assigned by PostgreSQL; it is zero for records that have not
// been persisted yet. The nine optional labels are pointers so that absent
// source values round-trip as SQL NULL / JSON null.
type Accident struct {
	AccidenteID int64     `json:"accidente_id" db:"accidente_id"`
	IDEntidad   int       `json:"id_entidad" db:"id_entidad"`
	IDMunicipio int       `json:"id_municipio" db:"id_municipio"`
	Fecha       time.Time `json:"fecha" db:"fecha"`
	DiaSemana   *string   `json:"diasemana" db:"diasemana"`
	Urbana      *string   `json:"urbana" db:"urbana"`
	Suburbana   *string   `json:"suburbana" db:"suburbana"`
	TipAccid    *string   `json:"tipaccid" db:"tipaccid"`
	CausaAcci   *string   `json:"causaacci" db:"causaacci"`
	Sexo        *string   `json:"sexo" db:"sexo"`
	Aliento     *string   `json:"aliento" db:"aliento"`
	Cinturon    *string   `json:"cinturon" db:"cinturon"`
	ClasAcc     *string   `json:"clasacc" db:"clasacc"`
	Estatus     *string   `json:"estatus" db:"estatus"`
}

// DedupeKey returns a string identifying the record across all projected
// fields. Two records with the same key are exact duplicates; the surrogate
// id is deliberately excluded.
func (a Accident) DedupeKey() string {
	fields := []string{
		strconv.Itoa(a.IDEntidad),
		strconv.Itoa(a.IDMunicipio),
		a.Fecha.UTC().Format(time.RFC3339),
		deref(a.DiaSemana),
		deref(a.Urbana),
		deref(a.Suburbana),
		deref(a.TipAccid),
		deref(a.CausaAcci),
		deref(a.Sexo),
		deref(a.Aliento),
		deref(a.Cinturon),
		deref(a.ClasAcc),
		deref(a.Estatus),
	}
	return strings.Join(fields, "\x1f")
}

func deref(s *string) string {
	if s == nil {
		// NULL and empty string must not collide
		return "\x00"
	}
	return *s
}
