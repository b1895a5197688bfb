package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"accidentes-platform/internal/etl"
	"accidentes-platform/internal/models"
	"accidentes-platform/pkg/database"
	"accidentes-platform/pkg/logging"
	"accidentes-platform/pkg/metrics"
)

// TableName is the destination table. It is a disposable snapshot: every
// pipeline run truncates and reloads it.
const TableName = "accidentes_100"

// The canonical schema. accidente_id is assigned by PostgreSQL only; column
// widths are advisory and sized for realistic label lengths.
const createTableSQL = `
	CREATE TABLE IF NOT EXISTS accidentes_100 (
		accidente_id SERIAL PRIMARY KEY,
		id_entidad   INT NOT NULL,
		id_municipio INT NOT NULL,
		fecha        TIMESTAMP NOT NULL,
		diasemana    VARCHAR(20),
		urbana       VARCHAR(60),
		suburbana    VARCHAR(60),
		tipaccid     VARCHAR(120),
		causaacci    VARCHAR(60),
		sexo         VARCHAR(20),
		aliento      VARCHAR(20),
		cinturon     VARCHAR(20),
		clasacc      VARCHAR(50),
		estatus      VARCHAR(30)
	)
`

// Order values accepted by the list/search endpoints.
const (
	OrderFechaAsc  = "fecha_asc"
	OrderFechaDesc = "fecha_desc"
)

// AccidentRepository provides data access for the accident snapshot table.
type AccidentRepository interface {
	// Load-side operations (the etl.Loader contract)
	EnsureSchema(ctx context.Context) error
	ReplaceAll(ctx context.Context, rows []models.Accident) error
	CountAll(ctx context.Context) (int, error)

	// Read-side operations
	List(ctx context.Context, page Page) ([]models.Accident, int, error)
	GetByID(ctx context.Context, id int64) (*models.Accident, error)
	Search(ctx context.Context, filter SearchFilter, page Page) ([]models.Accident, int, error)

	HealthCheck(ctx context.Context) error
}

// Page carries pagination and ordering for list/search queries.
type Page struct {
	Limit  int
	Offset int
	Order  string
}

// SearchFilter defines the optional filters of GET /search. Nil fields are
// not applied.
type SearchFilter struct {
	Q           *string
	IDEntidad   *int
	IDMunicipio *int
	ClasAcc     *string
	Desde       *time.Time
	Hasta       *time.Time
}

// accidentRepository implements AccidentRepository
type accidentRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAccidentRepository creates a new accident repository
func NewAccidentRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) AccidentRepository {
	return &accidentRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// EnsureSchema creates the destination table when absent.
func (r *accidentRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "ensure_schema", createTableSQL); err != nil {
		return &etl.LoadError{Op: "ensure schema", Err: err}
	}
	return nil
}

// ReplaceAll truncates the table, resets the identity sequence, and bulk
// inserts the given rows in one transaction. Identifiers are never supplied
// by the client; PostgreSQL assigns them.
func (r *accidentRepository) ReplaceAll(ctx context.Context, rows []models.Accident) error {
	timer := time.Now()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return &etl.LoadError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "TRUNCATE "+TableName+" RESTART IDENTITY"); err != nil {
		return &etl.LoadError{Op: "truncate", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO accidentes_100 (
			id_entidad, id_municipio, fecha,
			diasemana, urbana, suburbana, tipaccid, causaacci,
			sexo, aliento, cinturon, clasacc, estatus
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`)
	if err != nil {
		return &etl.LoadError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	for _, rec := range rows {
		_, err := stmt.ExecContext(ctx,
			rec.IDEntidad,
			rec.IDMunicipio,
			rec.Fecha,
			rec.DiaSemana,
			rec.Urbana,
			rec.Suburbana,
			rec.TipAccid,
			rec.CausaAcci,
			rec.Sexo,
			rec.Aliento,
			rec.Cinturon,
			rec.ClasAcc,
			rec.Estatus,
		)
		if err != nil {
			return &etl.LoadError{Op: "insert", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &etl.LoadError{Op: "commit", Err: err}
	}

	r.logger.Debug(ctx, "[REPO_RELOAD] Snapshot table reloaded", logging.Fields{
		"rows":        len(rows),
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return nil
}

// CountAll returns the authoritative row count straight from the store.
func (r *accidentRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, "count_all", &count, "SELECT COUNT(*) FROM "+TableName); err != nil {
		return 0, &etl.LoadError{Op: "count", Err: err}
	}
	return count, nil
}

// List retrieves a page of accidents ordered by fecha.
func (r *accidentRepository) List(ctx context.Context, page Page) ([]models.Accident, int, error) {
	total, err := r.CountAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count accidents: %w", err)
	}

	query := selectColumns + " FROM " + TableName +
		" ORDER BY " + orderSQL(page.Order) +
		" LIMIT $1 OFFSET $2"

	accidents := []models.Accident{}
	if err := r.db.SelectContext(ctx, "list_accidents", &accidents, query, page.Limit, page.Offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list accidents: %w", err)
	}

	return accidents, total, nil
}

// GetByID retrieves a single accident by surrogate id.
func (r *accidentRepository) GetByID(ctx context.Context, id int64) (*models.Accident, error) {
	query := selectColumns + " FROM " + TableName + " WHERE accidente_id = $1"

	var rec models.Accident
	err := r.db.GetContext(ctx, "get_accident", &rec, query, id)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "accident",
			ID:       fmt.Sprintf("%d", id),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get accident: %w", err)
	}

	return &rec, nil
}

// Search retrieves a filtered page of accidents plus the total match count.
func (r *accidentRepository) Search(ctx context.Context, filter SearchFilter, page Page) ([]models.Accident, int, error) {
	where, args := buildSearchWhere(filter)

	countQuery := "SELECT COUNT(*) FROM " + TableName + where
	var total int
	if err := r.db.GetContext(ctx, "count_search", &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	query := fmt.Sprintf("%s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		selectColumns, TableName, where, orderSQL(page.Order), len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset)

	accidents := []models.Accident{}
	if err := r.db.SelectContext(ctx, "search_accidents", &accidents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to search accidents: %w", err)
	}

	return accidents, total, nil
}

// HealthCheck performs a repository health check
func (r *accidentRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

const selectColumns = `SELECT accidente_id, id_entidad, id_municipio, fecha,
	diasemana, urbana, suburbana, tipaccid, causaacci,
	sexo, aliento, cinturon, clasacc, estatus`

// buildSearchWhere translates a SearchFilter into a WHERE clause with
// numbered placeholders. Kept free of the sqlx handle so it is testable on
// its own.
func buildSearchWhere(filter SearchFilter) (string, []interface{}) {
	where := " WHERE 1=1"
	args := []interface{}{}

	arg := func(v interface{}) int {
		args = append(args, v)
		return len(args)
	}

	if filter.Q != nil && *filter.Q != "" {
		n := arg("%" + *filter.Q + "%")
		where += fmt.Sprintf(
			" AND (tipaccid ILIKE $%d OR causaacci ILIKE $%d OR urbana ILIKE $%d OR suburbana ILIKE $%d)",
			n, n, n, n)
	}

	if filter.IDEntidad != nil {
		where += fmt.Sprintf(" AND id_entidad = $%d", arg(*filter.IDEntidad))
	}

	if filter.IDMunicipio != nil {
		where += fmt.Sprintf(" AND id_municipio = $%d", arg(*filter.IDMunicipio))
	}

	if filter.ClasAcc != nil && *filter.ClasAcc != "" {
		// exact match, case-insensitive: no wildcards added
		where += fmt.Sprintf(" AND clasacc ILIKE $%d", arg(*filter.ClasAcc))
	}

	if filter.Desde != nil {
		where += fmt.Sprintf(" AND fecha >= $%d", arg(*filter.Desde))
	}

	if filter.Hasta != nil {
		where += fmt.Sprintf(" AND fecha <= $%d", arg(*filter.Hasta))
	}

	return where, args
}

// orderSQL maps the wire-level order token onto the ORDER BY expression.
// Callers validate the token; anything unrecognized falls back to the
// default descending order.
func orderSQL(order string) string {
	if order == OrderFechaAsc {
		return "fecha ASC"
	}
	return "fecha DESC"
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}
