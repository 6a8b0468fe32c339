package models

import "time"

// Task is a single tracked task. Insertion order in the tasks document is
// the display order.
type Task struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
