package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPClient_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/todos", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"_id":"srv-1","title":"One","description":"d","dueDate":"2026-01-01","priority":"High","status":"Not Started","tags":["a"]},
			{"_id":"srv-2","title":"Two","description":"d","dueDate":"","priority":"Low","status":"Completed","tags":[]}
		]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zap.NewNop())
	tasks, err := client.List(context.Background())

	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "srv-1", tasks[0].ID)
	assert.Equal(t, "High", tasks[0].Priority)
	assert.Equal(t, "srv-2", tasks[1].ID)
}

func TestHTTPClient_Create(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req CreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Buy milk", req.Title)
		assert.Equal(t, "High", req.Priority)
		assert.Equal(t, "Not Started", req.Status)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateResponse{
			Message: "Todo created successfully",
			Data: CreatedTask{
				ID:       "srv-789",
				Title:    req.Title,
				Priority: req.Priority,
				Status:   req.Status,
				Tags:     req.Tags,
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zap.NewNop())
	created, err := client.Create(context.Background(), CreateRequest{
		Title:    "Buy milk",
		Priority: "High",
		Status:   "Not Started",
		Tags:     []string{"shopping"},
	})

	require.NoError(t, err)
	assert.Equal(t, "srv-789", created.ID)
}

func TestHTTPClient_Delete(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantErr      bool
		wantNotFound bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "not found maps to ErrNotFound", status: http.StatusNotFound, wantErr: true, wantNotFound: true},
		{name: "server 500 maps to ErrNotFound", status: http.StatusInternalServerError, wantErr: true, wantNotFound: true},
		{name: "other errors stay opaque", status: http.StatusBadRequest, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/todos/task-1", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"x"}`))
			}))
			defer srv.Close()

			client := NewHTTPClient(srv.URL, zap.NewNop())
			err := client.Delete(context.Background(), "task-1")

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantNotFound, IsNotFound(err))
			} else {
				require.NoError(t, err)
			}

			// Ошибки протокола не ретраятся
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestHTTPClient_RetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			// Рвем соединение, не ответив
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("response writer is not hijackable")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Error(err)
				return
			}
			conn.Close()
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, zap.NewNop())
	tasks, err := client.List(context.Background())

	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, int32(3), calls.Load())
}
