package outbox

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaReturnsExistingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/subjects/emission_events-value/versions/latest", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": 12, "version": 3}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL+"/").EnsureSchema(t.Context(), "emission_events-value", emissionLoggedSchema)
	require.NoError(t, err)
	require.Equal(t, 12, id)
}

func TestEnsureSchemaRegistersMissingSubject(t *testing.T) {
	var registered map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPost:
			require.Equal(t, "application/vnd.schemaregistry.v1+json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
			_, _ = w.Write([]byte(`{"id": 31}`))
		}
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(t.Context(), "goal_events-value", goalStatusChangedSchema)
	require.NoError(t, err)
	require.Equal(t, 31, id)
	require.Equal(t, "JSON", registered["schemaType"])
	require.JSONEq(t, goalStatusChangedSchema, registered["schema"])
}

func TestEnsureSchemaSurfacesRegisterErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error_code":409}`))
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(t.Context(), "goal_events-value", goalStatusChangedSchema)
	require.ErrorContains(t, err, "status 409")
}

func TestEnsureSchemaDoesNotRegisterOnLookupFailure(t *testing.T) {
	posted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posted = true
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(t.Context(), "emission_events-value", emissionLoggedSchema)
	require.ErrorContains(t, err, "status 500")
	require.False(t, posted)
}

func TestEnsureSchemaSendsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "footprint" || pass != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id": 7}`))
	}))
	defer srv.Close()

	client := NewSchemaRegistryClient(srv.URL, WithRegistryCredentials("footprint", "s3cret"))
	id, err := client.EnsureSchema(t.Context(), "emission_events-value", emissionLoggedSchema)
	require.NoError(t, err)
	require.Equal(t, 7, id)
}
