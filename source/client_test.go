package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancetinn/ldm-discord/model"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(model.Source{BaseURL: srv.URL + "/", Credential: "secret", Timeout: time.Second}, nil)
	require.NoError(t, err)
	return c
}

func TestList(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/form-data", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":"1","time":"2024-01-01 10:00:00","team_name":"Alpha","status":"pending"},
			{"id":"2","time":"2024-01-01 09:00:00","team_name":"Beta","status":"approved"}]`))
	}))

	subs, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "Alpha", subs[0].TeamName)
	assert.Equal(t, model.StatusApproved, subs[1].Status)
}

func TestList_SkipsUndecodableRecords(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"1","time":"2024-01-01 10:00:00","team_name":"Alpha","status":"pending"},
			{"id":"2","time":"2024-01-01 11:00:00","team_name":"Beta","status":"in_review"},
			{"id":"3","time":"yesterday","team_name":"Gamma","status":"pending"},
			{"id":"4","time":"2024-01-01 12:00:00","team_name":"Delta","status":"approved"}]`))
	}))

	subs, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "1", subs[0].ID)
	assert.Equal(t, "4", subs[1].ID)
}

func TestList_MalformedBodyIsFetchError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	}))

	_, err := c.List(context.Background())
	assert.ErrorIs(t, err, ErrFetch)
}

func TestList_NonSuccessIsFetchError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
	assert.Contains(t, err.Error(), "502")
}

func TestGet(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/form-data/1":
			w.Write([]byte(`{"id":"1","time":"2024-01-01 10:00:00","team_name":"Alpha","status":"rejected"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	sub, err := c.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, sub.Status)

	_, err = c.Get(context.Background(), "9")
	assert.True(t, errors.Is(err, ErrFetch))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateStatus_PostsDecision(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/update-form", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, c.UpdateStatus(context.Background(), "1", model.StatusApproved))
	assert.Equal(t, map[string]string{"submissionId": "1", "status": "approved"}, got)
}

func TestUpdateStatus_FailureIsUpdateError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := c.UpdateStatus(context.Background(), "1", model.StatusRejected)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpdate))
	assert.False(t, errors.Is(err, ErrFetch))
}

func TestUpdateStatus_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(model.Source{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	err = c.UpdateStatus(context.Background(), "1", model.StatusApproved)
	assert.True(t, errors.Is(err, ErrUpdate))
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(model.Source{}, nil)
	assert.Error(t, err)
}
