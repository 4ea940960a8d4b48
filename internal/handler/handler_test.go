package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlekbai/query_compiler/internal/grammar"
	"github.com/atlekbai/query_compiler/internal/schema"
	"github.com/atlekbai/query_compiler/internal/store"
)

const (
	authorJoin     = ` JOIN "author" ON "author"."article_id" = "article"."id"`
	articleColumns = `"article"."id", "article"."title", "article"."stars"`
)

func newTestRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	article := schema.NewModel("", "article", "id",
		schema.Column{Name: "id", Type: schema.ColumnNumber},
		schema.Column{Name: "title", Type: schema.ColumnText},
		schema.Column{Name: "stars", Type: schema.ColumnNumber},
	)
	author := schema.NewModel("", "author", "id",
		schema.Column{Name: "id", Type: schema.ColumnNumber},
		schema.Column{Name: "name", Type: schema.ColumnText},
		schema.Column{Name: "article_id", Type: schema.ColumnNumber},
	)
	reg := schema.NewRegistry(article, author)
	from, _ := author.Column("article_id")
	to, _ := article.Column("id")
	reg.AddRelation(from, to)

	v, err := grammar.NewValidator()
	require.NoError(t, err)

	r := mux.NewRouter()
	New(reg, store.New(db, nil), v).Register(r)
	return r, mock
}

func get(r http.Handler, path string, params url.Values) *httptest.ResponseRecorder {
	target := path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListWithRange(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`SELECT count(DISTINCT "article"."id") FROM "article" WHERE "article"."stars" = $1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(5)))
	mock.ExpectQuery(`SELECT ` + articleColumns + ` FROM "article" WHERE "article"."stars" = $1 ORDER BY "article"."title" DESC LIMIT 2 OFFSET 0`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "stars"}).
			AddRow(int64(2), "Robot", int64(3)).
			AddRow(int64(1), "Drone", int64(3)))

	rec := get(r, "/api/article", url.Values{
		"filter": {`{"stars": 3}`},
		"sort":   {`["title", "DESC"]`},
		"range":  {`[0, 1]`},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "article 0-1/5", rec.Header().Get("Content-Range"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"total": 5, "skip": 0, "limit": 2,
		"data": [
			{"id": 2, "title": "Robot", "stars": 3},
			{"id": 1, "title": "Drone", "stars": 3}
		]
	}`, rec.Body.String())
}

func TestListWithJoin(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery(`SELECT count(DISTINCT "article"."id") FROM "article"` + authorJoin + ` WHERE "author"."name" = $1`).
		WithArgs("john").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT "article"."title" FROM "article" WHERE "article"."id" IN (SELECT "article"."id" FROM "article"` +
		authorJoin + ` WHERE "author"."name" = $1)`).
		WithArgs("john").
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("Drone"))

	rec := get(r, "/api/article", url.Values{
		"filter": {`{"$author": {"name": "john"}}`},
		"fields": {`["title"]`},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "article 0-1/1", rec.Header().Get("Content-Range"))
	assert.JSONEq(t, `{"total": 1, "skip": null, "limit": null, "data": [{"title": "Drone"}]}`, rec.Body.String())
}

func TestListEmptyResult(t *testing.T) {
	r, mock := newTestRouter(t)

	mock.ExpectQuery(`SELECT count(DISTINCT "article"."id") FROM "article"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`SELECT ` + articleColumns + ` FROM "article"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "stars"}))

	rec := get(r, "/api/article", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total": 0, "skip": null, "limit": null, "data": []}`, rec.Body.String())
}

func TestListBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
	}{
		{"schema violation", url.Values{"filter": {`{"name": {"$exists": 1}}`}}},
		{"invalid json", url.Values{"filter": {`{"title": `}}},
		{"unknown field", url.Values{"filter": {`{"nope": 1}`}}},
		{"unknown join key", url.Values{"filter": {`{"$editor": {"name": "x"}}`}}},
		{"unknown sort field", url.Values{"sort": {`["nope"]`}}},
		{"unknown projection", url.Values{"fields": {`["nope"]`}}},
		{"reversed range", url.Values{"range": {`[5, 1]`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newTestRouter(t)
			rec := get(r, "/api/article", tt.params)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"INVALID_PARAM"`)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListUnknownModel(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := get(r, "/api/nope", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"MODEL_NOT_FOUND"`)
}

func TestListDatabaseError(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ExpectQuery(`SELECT count(DISTINCT "article"."id") FROM "article"`).
		WillReturnError(errors.New("connection refused"))

	rec := get(r, "/api/article", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"INTERNAL_ERROR"`)
}

func TestCount(t *testing.T) {
	r, mock := newTestRouter(t)
	mock.ExpectQuery(`SELECT count(DISTINCT "article"."id") FROM "article" WHERE "article"."title" ILIKE $1`).
		WithArgs("%drone%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	rec := get(r, "/api/article/count", url.Values{
		"filter": {`{"title": {"$ilike": "drone"}}`},
		"range":  {`[0, 9]`},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
	assert.JSONEq(t, `{"count": 7}`, rec.Body.String())
}
