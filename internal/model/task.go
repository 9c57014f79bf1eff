package model

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     string    `json:"due_date"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	Tags        []string  `json:"tags"`
	IsSynced    bool      `json:"is_synced"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ParsePriority нормализует сохраненное значение, все нераспознанное -> MEDIUM
func ParsePriority(s string) Priority {
	switch strings.ToUpper(s) {
	case "HIGH":
		return PriorityHigh
	case "LOW":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// ParseStatus нормализует сохраненное значение, все нераспознанное -> NOT_STARTED
func ParseStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "IN_PROGRESS":
		return StatusInProgress
	case "COMPLETED":
		return StatusCompleted
	default:
		return StatusNotStarted
	}
}

// PriorityFromWire разбирает формат API ("High", "Medium", "Low")
func PriorityFromWire(s string) Priority {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh
	case "low":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// StatusFromWire разбирает формат API ("Not Started", "In Progress", "Completed")
func StatusFromWire(s string) Status {
	switch strings.ToLower(s) {
	case "in progress":
		return StatusInProgress
	case "completed":
		return StatusCompleted
	default:
		return StatusNotStarted
	}
}

func (p Priority) Wire() string {
	switch p {
	case PriorityHigh:
		return "High"
	case PriorityLow:
		return "Low"
	default:
		return "Medium"
	}
}

func (s Status) Wire() string {
	switch s {
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Not Started"
	}
}

// Теги хранятся одной строкой через запятую
func JoinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func SplitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
