package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/library-reservations/internal/httpapi"
)

func TestSweepOverdue_SendsActorAndDecodesResult(t *testing.T) {
	// Arrange
	var gotActor, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = r.Header.Get(httpapi.ActorHeader)
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scanned":3,"updated":2,"failed":1,"reservationIds":["r-1","r-2"]}`))
	}))
	defer srv.Close()

	// Act
	result, err := sweepOverdue(context.Background(), resty.New().SetBaseURL(srv.URL), "admin-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "admin-1", gotActor)
	assert.Equal(t, "/api/reservations/sweep-overdue", gotPath)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, []string{"r-1", "r-2"}, result.ReservationIDs)
}

func TestSweepOverdue_SurfacesAPIError(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"kind":"forbidden","message":"missing capability admin"}}`))
	}))
	defer srv.Close()

	// Act
	_, err := sweepOverdue(context.Background(), resty.New().SetBaseURL(srv.URL), "librarian-1")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing capability admin")
}

func TestSweepCmd_RequiresActor(t *testing.T) {
	t.Setenv("LIBRARY_ACTOR_ID", "")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"sweep-overdue"})
	cmd.SetOut(&bytes.Buffer{})

	err := cmd.Execute()

	assert.ErrorContains(t, err, "actor id is required")
}
