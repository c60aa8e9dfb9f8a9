package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBackendClient(srv.Client(), srv.URL+"/api/", nil)
}

const enrollmentsPayload = `[
  {
    "id_Inscripcion": 7,
    "calificacion": "85.50",
    "carrera": {"id": 1, "nombre": "Software"},
    "nivel": {"id": 2, "numero_nivel": 3},
    "paralelo": {"aula": "B-201", "numero_paralelo": 2, "materia": {"nombre": "Cálculo", "nivel": {"nombre": "Tercer nivel"}}},
    "fecha_inscripcion": "2024-03-01"
  },
  {
    "id_Inscripcion": 8,
    "calificacion": null,
    "carrera": 4,
    "paralelo": {"aula": "", "numero_paralelo": "A", "materia": {"nombre": "Física", "nivel": {"nombre": "Primer nivel"}}}
  },
  {"id_Inscripcion": 9, "calificacion": 65},
  {"id_Inscripcion": 10, "calificacion": 120, "paralelo": {"aula": 305, "numero_paralelo": 1, "materia": {"nombre": "Química"}}},
  "garbage"
]`

func TestEnrollmentRepositoryListEnrollments(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mis-inscripciones/", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(enrollmentsPayload))
	})
	repo := NewEnrollmentRepository(backend, nil)

	list, err := repo.ListEnrollments(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, list, 4)

	first := list[0]
	assert.Equal(t, "7", first.ID)
	assert.Equal(t, "Cálculo", first.SubjectName)
	require.NotNil(t, first.Grade)
	assert.InDelta(t, 85.5, *first.Grade, 0.0001)
	assert.Equal(t, "B-201", first.Classroom)
	assert.Equal(t, "2", first.SectionNumber)
	assert.Equal(t, "Software", first.ProgramName)
	assert.Equal(t, "Nivel 3", first.LevelName)
	require.NotNil(t, first.EnrolledAt)

	second := list[1]
	assert.False(t, second.Graded())
	assert.Equal(t, "A", second.SectionNumber)
	assert.Empty(t, second.ProgramName)
	assert.Equal(t, "Primer nivel", second.LevelName)

	third := list[2]
	assert.Empty(t, third.SubjectName)
	require.NotNil(t, third.Grade)
	assert.Equal(t, 65.0, *third.Grade)

	fourth := list[3]
	assert.Equal(t, "Química", fourth.SubjectName)
	assert.Equal(t, "305", fourth.Classroom)
	assert.Equal(t, "1", fourth.SectionNumber)
	assert.False(t, fourth.Graded(), "grades outside 0-100 are treated as ungraded")
}

func TestEnrollmentRepositoryNon2xxIsEmpty(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"token expired"}`))
	})
	repo := NewEnrollmentRepository(backend, nil)

	list, err := repo.ListEnrollments(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEnrollmentRepositoryNonArrayIsEmpty(t *testing.T) {
	backend := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	})
	repo := NewEnrollmentRepository(backend, nil)

	list, err := repo.ListEnrollments(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEnrollmentRepositoryNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	repo := NewEnrollmentRepository(NewBackendClient(nil, url, nil), nil)
	_, err := repo.ListEnrollments(context.Background(), "tok")
	assert.Error(t, err)
}

func TestParseGrade(t *testing.T) {
	cases := map[string]*float64{
		`90`:      ptr(90),
		`"72.5"`:  ptr(72.5),
		`"7,5"`:   ptr(7.5),
		`null`:    nil,
		`"n/a"`:   nil,
		``:        nil,
		`true`:    nil,
		`0`:       ptr(0),
		`100`:     ptr(100),
		`"100.5"`: nil,
		`-3`:      nil,
		`850`:     nil,
	}
	for raw, want := range cases {
		got := parseGrade([]byte(raw))
		if want == nil {
			assert.Nil(t, got, raw)
			continue
		}
		require.NotNil(t, got, raw)
		assert.Equal(t, *want, *got, raw)
	}
}

func ptr(v float64) *float64 { return &v }
