package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/quiz-engine/internal/quiz"
)

func TestFetchTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tasks", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"_id":"a","type":"true-false-question","question":{"value":"Is water wet?"}},
			{"_id":"b","type":"n-from-four-question","question":{"value":"Pick","options":["w","x","y","z"]}}]`)
	}))
	defer srv.Close()

	tasks, err := NewClient(srv.URL).FetchTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, quiz.Task{ID: "a", Type: quiz.TypeTrueFalse, Question: quiz.Question{Value: "Is water wet?"}}, tasks[0])
	assert.Equal(t, []string{"w", "x", "y", "z"}, tasks[1].Question.Options)
}

func TestSubmitAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/submit", r.URL.Path)
		assert.Empty(t, r.Header.Get(AttemptHeader))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `[{"_id":"a","answer":{"value":true}},{"_id":"b","answer":{"value":5}}]`, string(body))

		io.WriteString(w, `[{"_id":"b","mark":0},{"_id":"a","mark":1}]`)
	}))
	defer srv.Close()

	results, err := NewClient(srv.URL).SubmitAnswers(context.Background(), []quiz.Answer{
		{ID: "a", Answer: quiz.Payload{Value: true}},
		{ID: "b", Answer: quiz.Payload{Value: 5.0}},
	})
	require.NoError(t, err)
	assert.Equal(t, []quiz.Result{{ID: "b", Mark: 0}, {ID: "a", Mark: 1}}, results)
}

func TestSubmitEmptyAnswersSendsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "[]", string(body))
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	results, err := NewClient(srv.URL).SubmitAnswers(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAttemptSendsStableID(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(AttemptHeader))
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	attempt := NewClient(srv.URL).Attempt()
	for i := 0; i < 2; i++ {
		_, err := attempt.SubmitAnswers(context.Background(), nil)
		require.NoError(t, err)
	}

	require.Len(t, seen, 2)
	assert.Equal(t, attempt.ID(), seen[0])
	assert.Equal(t, seen[0], seen[1])
	assert.NotEqual(t, attempt.ID(), NewClient(srv.URL).Attempt().ID())
}

func TestErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/submit":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"error":   map[string]string{"code": "unknown_task", "message": "no task zz"},
			})
		default:
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream down")
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	_, err := c.SubmitAnswers(context.Background(), []quiz.Answer{{ID: "zz"}})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "unknown_task", apiErr.Code)
	assert.Equal(t, "HTTP 400: unknown_task - no task zz", err.Error())

	_, err = c.FetchTasks(context.Background())
	assert.EqualError(t, err, "HTTP 502: upstream down")

	assert.Error(t, c.Health(context.Background()))
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL).FetchTasks(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", WithTimeout(5*time.Second), WithAPIKey("secret"))
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Equal(t, "secret", c.apiKey)

	assert.Equal(t, "http://example.com", NewClient("http://example.com/").baseURL)
}
