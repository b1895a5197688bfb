package etl

import (
	"strconv"
	"time"

	"accidentes-platform/internal/models"
)

// requiredColumns are the source columns the transform stage reads, after
// header normalization. fecha is derived from the five date/time components
// and is not expected in the source.
var requiredColumns = []string{
	"id_entidad", "id_municipio",
	"anio", "mes", "id_dia", "id_hora", "id_minuto",
	"diasemana", "urbana", "suburbana",
	"tipaccid", "causaacci", "sexo",
	"aliento", "cinturon", "clasacc", "estatus",
}

// TransformStats reports what happened to the raw rows during cleaning.
type TransformStats struct {
	RowsIn       int
	InvalidFecha int
	InvalidKeys  int
	Duplicates   int
	RowsOut      int
}

// Transform projects raw rows onto the 13-field accident record, composing
// the unified fecha timestamp and dropping rows that cannot satisfy the
// cleaned-record invariants:
//
//   - rows whose anio/mes/id_dia/id_hora/id_minuto do not compose a valid
//     calendar moment are dropped, never defaulted
//   - rows whose id_entidad or id_municipio is not an integer are dropped
//     (they cannot be stored in the NOT NULL integer columns)
//   - exact duplicates across all projected fields are removed, first
//     occurrence wins
//
// Input order is otherwise preserved so the sample stage stays deterministic.
// A missing required column is a *SchemaError.
func Transform(frame *Frame) ([]models.Accident, *TransformStats, error) {
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := frame.Col(c); !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &SchemaError{Missing: missing}
	}

	stats := &TransformStats{RowsIn: len(frame.Rows)}
	seen := make(map[string]struct{}, len(frame.Rows))
	out := make([]models.Accident, 0, len(frame.Rows))

	for _, row := range frame.Rows {
		fecha, ok := composeFecha(
			frame.Value(row, "anio"),
			frame.Value(row, "mes"),
			frame.Value(row, "id_dia"),
			frame.Value(row, "id_hora"),
			frame.Value(row, "id_minuto"),
		)
		if !ok {
			stats.InvalidFecha++
			continue
		}

		idEntidad, err1 := strconv.Atoi(frame.Value(row, "id_entidad"))
		idMunicipio, err2 := strconv.Atoi(frame.Value(row, "id_municipio"))
		if err1 != nil || err2 != nil {
			stats.InvalidKeys++
			continue
		}

		rec := models.Accident{
			IDEntidad:   idEntidad,
			IDMunicipio: idMunicipio,
			Fecha:       fecha,
			DiaSemana:   optional(frame.Value(row, "diasemana")),
			Urbana:      optional(frame.Value(row, "urbana")),
			Suburbana:   optional(frame.Value(row, "suburbana")),
			TipAccid:    optional(frame.Value(row, "tipaccid")),
			CausaAcci:   optional(frame.Value(row, "causaacci")),
			Sexo:        optional(frame.Value(row, "sexo")),
			Aliento:     optional(frame.Value(row, "aliento")),
			Cinturon:    optional(frame.Value(row, "cinturon")),
			ClasAcc:     optional(frame.Value(row, "clasacc")),
			Estatus:     optional(frame.Value(row, "estatus")),
		}

		key := rec.DedupeKey()
		if _, dup := seen[key]; dup {
			stats.Duplicates++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}

	stats.RowsOut = len(out)
	return out, stats, nil
}

// composeFecha builds the unified timestamp from the five discrete source
// fields. It reports ok=false for anything that is not a real calendar
// moment: non-numeric components, month 13, February 31, hour 24, and so on.
func composeFecha(anio, mes, dia, hora, minuto string) (time.Time, bool) {
	year, err := strconv.Atoi(anio)
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(mes)
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dia)
	if err != nil {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(hora)
	if err != nil {
		return time.Time{}, false
	}
	minute, err := strconv.Atoi(minuto)
	if err != nil {
		return time.Time{}, false
	}

	if year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)

	// time.Date normalizes overflow (Feb 31 -> Mar 2); a composed value that
	// does not read back identically was not a valid date.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}

	return t, true
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
