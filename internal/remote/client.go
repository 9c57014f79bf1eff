package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound - класс ошибок "сервер не знает такой записи". Сюда же
// попадает 500: сервер так отвечает на удаление id, который до него
// никогда не доходил.
var ErrNotFound = errors.New("remote: not found")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: status %d: %s", e.Code, e.Body)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Task - элемент списка удаленного API
type Task struct {
	ID          string   `json:"_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

// CreateRequest - create работает как upsert: известный id сервер заменяет
type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

type CreateResponse struct {
	Message string      `json:"message"`
	Data    CreatedTask `json:"data"`
}

// CreatedTask - в ответе create сервер отдает id без подчеркивания
type CreatedTask struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
}

// Client определяет интерфейс удаленного источника истины
type Client interface {
	List(ctx context.Context) ([]Task, error)
	Create(ctx context.Context, req CreateRequest) (CreatedTask, error)
	Delete(ctx context.Context, id string) error
}
