// Package clickup talks to the ClickUp task API. The reconciliation core
// consumes only the Repository interface; everything HTTP-shaped stays in
// here.
package clickup

import (
	"context"
	"errors"
	"time"

	"clickref/internal/anchor"
)

// ErrTaskNotFound is returned when the remote side has no task for the id.
// Callers can distinguish a deleted task from a transient failure with
// errors.Is.
var ErrTaskNotFound = errors.New("task not found")

// Repository is the capability the lifecycle coordinator needs from the
// task tracker: fetch details for one task id.
type Repository interface {
	GetTaskDetails(ctx context.Context, taskID string) (TaskRecord, error)
}

// NamedRef is an id/name pair for list and folder linkage.
type NamedRef struct {
	ID   string
	Name string
}

// TaskStatus is the remote status with its display color.
type TaskStatus struct {
	Status string
	Color  string
}

// TaskRecord is the slice of a remote task the metadata merge consumes.
type TaskRecord struct {
	ID          string
	Name        string
	Description string
	Status      TaskStatus
	Assignees   []string
	List        NamedRef
	Folder      NamedRef
	ParentID    string
	Updated     time.Time
}

// Metadata converts the record to the reference metadata shape. Only the
// first assignee is kept; the reference model tracks a single owner.
func (r TaskRecord) Metadata() anchor.Metadata {
	meta := anchor.Metadata{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status.Status,
		StatusColor: r.Status.Color,
		ParentID:    r.ParentID,
		ListID:      r.List.ID,
		ListName:    r.List.Name,
		FolderID:    r.Folder.ID,
		FolderName:  r.Folder.Name,
		LastUpdated: r.Updated,
	}

	if len(r.Assignees) > 0 {
		meta.Assignee = r.Assignees[0]
	}

	return meta
}
