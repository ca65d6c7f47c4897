package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

// ErrNotFound is returned when the referenced todo does not exist.
var ErrNotFound = errors.New("todo not found")

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	msg := e.Op + ": " + e.Err.Error()
	var pqErr *pq.Error
	if errors.As(e.Err, &pqErr) && pqErr.Code != "" {
		msg += " (sqlstate " + string(pqErr.Code) + ")"
	}
	return msg
}

func (e *StorageError) Unwrap() error { return e.Err }

const todoColumns = `id, title, description, completed, completion_date`

// Store executes todo CRUD against the todos table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore returns a Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock replaces the clock used to stamp completion dates.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Ping checks that a connection can be leased and answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &StorageError{Op: "ping", Err: err}
	}
	return nil
}

// List returns all todos ordered by id.
func (s *Store) List(ctx context.Context) ([]models.Todo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+todoColumns+` FROM todos ORDER BY id`)
	if err != nil {
		logger.Error(ctx, "Repository List failed", "error", err)
		return nil, &StorageError{Op: "list todos", Err: err}
	}
	defer rows.Close()

	todos := make([]models.Todo, 0)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			logger.Error(ctx, "Repository scan todo failed", "error", err)
			return nil, &StorageError{Op: "scan todo", Err: err}
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list todos", Err: err}
	}
	return todos, nil
}

// Get returns the todo with the given id.
func (s *Store) Get(ctx context.Context, id int64) (models.Todo, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1`, id)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Todo{}, ErrNotFound
	}
	if err != nil {
		logger.Error(ctx, "Repository Get failed", "error", err, "id", id)
		return models.Todo{}, &StorageError{Op: "get todo", Err: err}
	}
	return t, nil
}

// Create inserts a new todo. New todos start incomplete with no completion date.
func (s *Store) Create(ctx context.Context, in models.NewTodo) (models.Todo, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO todos (title, description, completed, completion_date)
		 VALUES ($1, $2, FALSE, NULL)
		 RETURNING `+todoColumns,
		in.Title, in.Description)
	t, err := scanTodo(row)
	if err != nil {
		logger.Error(ctx, "Repository Create failed", "error", err)
		return models.Todo{}, &StorageError{Op: "create todo", Err: err}
	}
	return t, nil
}

// Update applies patch to the todo with the given id in a single statement
// and returns the stored result. An empty patch returns the todo unchanged.
func (s *Store) Update(ctx context.Context, id int64, patch models.TodoPatch) (models.Todo, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return models.Todo{}, err
	}

	set := Assignments(existing, patch, s.now())
	if len(set) == 0 {
		return existing, nil
	}

	query, args := set.updateStatement(id)
	t, err := scanTodo(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Todo{}, ErrNotFound
	}
	if err != nil {
		logger.Error(ctx, "Repository Update failed", "error", err, "id", id)
		return models.Todo{}, &StorageError{Op: "update todo", Err: err}
	}
	return t, nil
}

// Delete removes the todo with the given id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id)
	if err != nil {
		logger.Error(ctx, "Repository Delete failed", "error", err, "id", id)
		return &StorageError{Op: "delete todo", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "delete todo", Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (models.Todo, error) {
	var (
		t    models.Todo
		desc sql.NullString
		done pq.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &desc, &t.Completed, &done); err != nil {
		return models.Todo{}, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if done.Valid {
		at := done.Time.UTC()
		t.CompletionDate = &at
	}
	return t, nil
}

// Column is one of the patchable todo columns.
type Column string

const (
	ColumnTitle          Column = "title"
	ColumnDescription    Column = "description"
	ColumnCompleted      Column = "completed"
	ColumnCompletionDate Column = "completion_date"
)

// Assignment sets one column to a bound value.
type Assignment struct {
	Column Column
	Value  any
}

// AssignmentSet is the ordered list of columns an update writes.
type AssignmentSet []Assignment

// Assignments computes the columns to write when patch is applied to existing.
// Only present fields are included. Setting completed also sets completion_date,
// overriding any completion_date in the same patch: NULL when false, now when the
// todo becomes completed, and the stored date when it already was. Otherwise an
// explicit completion_date is written as given.
func Assignments(existing models.Todo, patch models.TodoPatch, now time.Time) AssignmentSet {
	var set AssignmentSet
	if patch.Title.Set {
		set = append(set, Assignment{Column: ColumnTitle, Value: patch.Title.Value})
	}
	if patch.Description.Set {
		set = append(set, Assignment{Column: ColumnDescription, Value: nullString(patch.Description.Value)})
	}

	switch {
	case patch.Completed.Set:
		set = append(set, Assignment{Column: ColumnCompleted, Value: patch.Completed.Value})
		date := pq.NullTime{}
		if patch.Completed.Value {
			date = pq.NullTime{Time: now.UTC(), Valid: true}
			if existing.Completed && existing.CompletionDate != nil {
				date = nullTime(existing.CompletionDate)
			}
		}
		set = append(set, Assignment{Column: ColumnCompletionDate, Value: date})
	case patch.CompletionDate.Set:
		set = append(set, Assignment{Column: ColumnCompletionDate, Value: nullTime(patch.CompletionDate.Value)})
	}
	return set
}

// Get returns the value assigned to c.
func (set AssignmentSet) Get(c Column) (any, bool) {
	for _, a := range set {
		if a.Column == c {
			return a.Value, true
		}
	}
	return nil, false
}

func (set AssignmentSet) updateStatement(id int64) (string, []any) {
	clauses := make([]string, len(set))
	args := make([]any, 0, len(set)+1)
	for i, a := range set {
		clauses[i] = string(a.Column) + " = $" + strconv.Itoa(i+1)
		args = append(args, a.Value)
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE todos SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(clauses, ", "), len(args), todoColumns)
	return query, args
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) pq.NullTime {
	if t == nil {
		return pq.NullTime{}
	}
	return pq.NullTime{Time: t.UTC(), Valid: true}
}
