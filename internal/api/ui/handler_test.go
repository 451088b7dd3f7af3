package ui

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eduquery/eduquery/internal/api/middleware"
	"github.com/eduquery/eduquery/internal/backend"
	"github.com/eduquery/eduquery/internal/config"
	"github.com/eduquery/eduquery/internal/notify"
	"github.com/eduquery/eduquery/internal/render"
	"github.com/eduquery/eduquery/internal/service"
	"github.com/eduquery/eduquery/internal/workspace"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t       *testing.T
	engine  *gin.Engine
	store   *workspace.Store
	session string

	uploads atomic.Int32
	queries atomic.Int32
}

// newTestEnv wires a handler to a fake answering service driven by the given
// endpoint handlers.
func newTestEnv(t *testing.T, upload, query http.HandlerFunc) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload/", func(w http.ResponseWriter, r *http.Request) {
		env.uploads.Add(1)
		upload(w, r)
	})
	mux.HandleFunc("/api/query/", func(w http.ResponseWriter, r *http.Request) {
		env.queries.Add(1)
		query(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := backend.NewClient(config.BackendConfig{APIURL: srv.URL + "/api", Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)

	env.store = workspace.NewStore(client, workspace.Options{IdleTTL: time.Hour, DismissAfter: time.Hour}, nil)
	t.Cleanup(env.store.Close)

	h := NewHandler(render.NewRenderer(render.DefaultStyle), config.UploadConfig{
		MaxSize:      1 << 20,
		AllowedTypes: []string{"pdf"},
	}, []string{"*"}, nil)

	env.engine = gin.New()
	group := env.engine.Group("/api/ui")
	group.Use(middleware.Session(env.store, "eduquery_session", time.Hour))
	h.RegisterRoutes(group)

	return env
}

func (e *testEnv) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/ui"+path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if e.session != "" {
		req.Header.Set(middleware.SessionHeader, e.session)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	if e.session == "" {
		e.session = w.Header().Get(middleware.SessionHeader)
	}
	return w
}

func (e *testEnv) selectFile(name string, content []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(e.t, err)
	_, err = part.Write(content)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())
	return e.do(http.MethodPut, "/file", &buf, mw.FormDataContentType())
}

func (e *testEnv) ask(question string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"question": question})
	return e.do(http.MethodPost, "/query", bytes.NewReader(body), "application/json")
}

func (e *testEnv) state() StateView {
	w := e.do(http.MethodGet, "/state", nil, "")
	require.Equal(e.t, http.StatusOK, w.Code)
	var view StateView
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func (e *testEnv) messages() []string {
	var out []string
	for _, n := range e.state().Notifications {
		out = append(out, string(n.Kind)+":"+n.Message)
	}
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func okJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func failJSON(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func TestUploadSuccess(t *testing.T) {
	var received []byte
	var receivedName string
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err == nil {
			receivedName = header.Filename
			received, _ = io.ReadAll(file)
		}
		okJSON(`{"message":"stored"}`)(w, r)
	}, okJSON(`{"answer":"unused"}`))

	w := env.selectFile("notes.pdf", []byte("%PDF-1.4 lecture"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "notes.pdf", env.state().Upload.Pending.Name)

	w = env.do(http.MethodPost, "/upload", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["close_dialog"])
	assert.Equal(t, service.MsgUploadSuccess, resp["message"])

	assert.Equal(t, "notes.pdf", receivedName)
	assert.Equal(t, []byte("%PDF-1.4 lecture"), received)

	st := env.state()
	assert.Nil(t, st.Upload.Pending)
	assert.Equal(t, "idle", string(st.Upload.State))
	assert.Equal(t, []string{"success:" + service.MsgUploadSuccess}, env.messages())
}

func TestUploadWithoutFile(t *testing.T) {
	env := newTestEnv(t, okJSON(`{}`), okJSON(`{}`))

	w := env.do(http.MethodPost, "/upload", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgNoFileSelected, decodeError(t, w))
	assert.Zero(t, env.uploads.Load())
	assert.Equal(t, []string{"warning:" + service.MsgNoFileSelected}, env.messages())
}

func TestUploadFailureKeepsFile(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "server message",
			handler: failJSON(http.StatusBadRequest, `{"error":"File is not a PDF"}`),
			want:    "File is not a PDF",
		},
		{
			name:    "no message",
			handler: failJSON(http.StatusInternalServerError, `oops`),
			want:    service.MsgUploadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.handler, okJSON(`{}`))
			require.Equal(t, http.StatusOK, env.selectFile("notes.pdf", []byte("pdf")).Code)

			w := env.do(http.MethodPost, "/upload", nil, "")
			assert.Equal(t, http.StatusBadGateway, w.Code)
			assert.Equal(t, tt.want, decodeError(t, w))

			st := env.state()
			require.NotNil(t, st.Upload.Pending)
			assert.Equal(t, "notes.pdf", st.Upload.Pending.Name)
			assert.Equal(t, []string{"error:" + tt.want}, env.messages())
		})
	}
}

func TestSelectFileRejected(t *testing.T) {
	env := newTestEnv(t, okJSON(`{}`), okJSON(`{}`))

	w := env.selectFile("notes.txt", []byte("plain"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w), "Unsupported file type")

	w = env.selectFile("huge.pdf", bytes.Repeat([]byte("x"), 2<<20))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "The selected file is too large.", decodeError(t, w))

	w = env.do(http.MethodPut, "/file", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, service.MsgNoFileSelected, decodeError(t, w))

	assert.Nil(t, env.state().Upload.Pending)
	assert.Len(t, env.messages(), 3)
}

func TestClearFile(t *testing.T) {
	env := newTestEnv(t, okJSON(`{}`), okJSON(`{}`))
	require.Equal(t, http.StatusOK, env.selectFile("notes.pdf", []byte("pdf")).Code)

	w := env.do(http.MethodDelete, "/file", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, env.state().Upload.Pending)
}

func TestQueryRendersMarkdown(t *testing.T) {
	var question string
	env := newTestEnv(t, okJSON(`{}`), func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		question = req.Question
		okJSON(`{"answer":"Osmosis is **the movement** of solvent.","sources":["p3"]}`)(w, r)
	})

	w := env.ask("What is osmosis?")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "What is osmosis?", question)

	var view AnswerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Contains(t, view.HTML, "<strong>the movement</strong>")
	require.NotNil(t, view.Result)
	assert.Contains(t, view.Result.Fields, "sources")

	w = env.do(http.MethodGet, "/answer", nil, "")
	var again AnswerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, view.HTML, again.HTML)
	assert.Equal(t, []string{"success:" + service.MsgAnswerReady}, env.messages())
}

func TestQueryEmptyQuestion(t *testing.T) {
	env := newTestEnv(t, okJSON(`{}`), okJSON(`{"answer":"x"}`))

	for _, q := range []string{"", "   \t"} {
		w := env.ask(q)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, service.MsgEmptyQuestion, decodeError(t, w))
	}
	assert.Zero(t, env.queries.Load())
	assert.Empty(t, env.state().Answer.HTML)
}

func TestQueryFailureKeepsPreviousAnswer(t *testing.T) {
	var calls atomic.Int32
	env := newTestEnv(t, okJSON(`{}`), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			okJSON(`{"answer":"First answer"}`)(w, r)
			return
		}
		failJSON(http.StatusInternalServerError, `{"error":"index not ready"}`)(w, r)
	})

	require.Equal(t, http.StatusOK, env.ask("first").Code)

	w := env.ask("second")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "index not ready", decodeError(t, w))

	st := env.state()
	assert.Contains(t, st.Answer.HTML, "First answer")
	assert.Equal(t, "second", st.Query.Question)
	assert.Equal(t, []string{
		"success:" + service.MsgAnswerReady,
		"error:index not ready",
	}, env.messages())
}

func TestQueryWithoutAnswerRendersNothing(t *testing.T) {
	env := newTestEnv(t, okJSON(`{}`), okJSON(`{"sources":[]}`))

	w := env.ask("anything")
	require.Equal(t, http.StatusOK, w.Code)

	var view AnswerView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Empty(t, view.HTML)
}

func TestQuerySingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	env := newTestEnv(t, okJSON(`{}`), func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		okJSON(`{"answer":"done"}`)(w, r)
	})
	// Bind the session before running requests concurrently.
	env.state()

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- env.ask("slow question") }()
	<-started

	assert.Equal(t, "in-flight", string(env.state().Query.State))

	w := env.ask("impatient")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "slow question", env.state().Query.Question)

	close(release)
	assert.Equal(t, http.StatusOK, (<-first).Code)
	assert.Equal(t, int32(1), env.queries.Load())
	assert.Equal(t, "idle", string(env.state().Query.State))
}

func TestUploadAndQueryAreIndependent(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		okJSON(`{}`)(w, r)
	}, okJSON(`{"answer":"fast"}`))
	require.Equal(t, http.StatusOK, env.selectFile("notes.pdf", []byte("pdf")).Code)

	upload := make(chan *httptest.ResponseRecorder, 1)
	go func() { upload <- env.do(http.MethodPost, "/upload", nil, "") }()
	<-started

	assert.Equal(t, http.StatusOK, env.ask("while uploading").Code)

	close(release)
	assert.Equal(t, http.StatusOK, (<-upload).Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t, okJSON(`{}`), okJSON(`{"answer":"mine"}`))
	require.Equal(t, http.StatusOK, env.ask("q").Code)

	other := &testEnv{t: t, engine: env.engine, store: env.store}
	st := other.state()
	assert.NotEqual(t, env.session, st.SessionID)
	assert.Empty(t, st.Answer.HTML)
	assert.Empty(t, st.Notifications)
}

func TestDismissNotification(t *testing.T) {
	env := newTestEnv(t, okJSON(`{}`), okJSON(`{}`))
	env.ask("")

	notes := env.state().Notifications
	require.Len(t, notes, 1)
	assert.Equal(t, notify.KindWarning, notes[0].Kind)

	w := env.do(http.MethodDelete, "/notifications/"+notes[0].ID, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodDelete, "/notifications/"+notes[0].ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/notifications", nil, "")
	assert.JSONEq(t, `{"notifications":[]}`, w.Body.String())
}
