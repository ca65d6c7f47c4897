package models

import "time"

// Todo represents a todo item.
type Todo struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description"`
	Completed      bool       `json:"completed"`
	CompletionDate *time.Time `json:"completion_date"`
}

// NewTodo is the validated input of a create.
type NewTodo struct {
	Title       string
	Description *string
}

// Field is a patch slot: Set reports whether the key was present in the input,
// independently of whether Value is the zero value or nil.
type Field[T any] struct {
	Value T
	Set   bool
}

// Some returns a present field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// TodoPatch is a partial update. Fields left unset are not touched.
type TodoPatch struct {
	Title          Field[string]
	Description    Field[*string]
	Completed      Field[bool]
	CompletionDate Field[*time.Time]
}

// Empty reports whether no field is present.
func (p TodoPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Completed.Set && !p.CompletionDate.Set
}

// Event actions published after a successful write.
const (
	ActionCreated = "todo.created"
	ActionUpdated = "todo.updated"
	ActionDeleted = "todo.deleted"
)

// TodoEvent is the message payload for Kafka.
type TodoEvent struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	TodoID     int64     `json:"todo_id"`
	Todo       *Todo     `json:"todo,omitempty"` // nil for deletes
	OccurredAt time.Time `json:"occurred_at"`
}
