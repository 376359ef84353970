package testkit

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runner fires scenarios at Handler.
type Runner struct {
	Handler http.Handler
	Vars    map[string]string
}

// Run executes one scenario file as a subtest and returns the recorder.
func (r *Runner) Run(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)

	var rec *httptest.ResponseRecorder
	t.Run(s.Name, func(t *testing.T) { rec = r.run(t, s) })
	return rec
}

// RunDir executes every scenario in dir as a subtest, in file name order.
func (r *Runner) RunDir(t *testing.T, dir string) {
	t.Helper()
	scenarios, err := LoadDir(dir)
	require.NoError(t, err)
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) { r.run(t, s) })
	}
}

func (r *Runner) run(t *testing.T, s *Scenario) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if len(s.Body) > 0 {
		body = bytes.NewBufferString(expand(string(s.Body), r.Vars))
	}
	req := httptest.NewRequest(s.Method, expand(s.URL, r.Vars), body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range s.Headers {
		req.Header.Set(k, expand(v, r.Vars))
	}

	rec := httptest.NewRecorder()
	r.Handler.ServeHTTP(rec, req)

	assert.Equal(t, s.ExpectedCode, rec.Code, "[%s] status; body: %s", s.Name, rec.Body.String())
	if len(s.ExpectedBody) > 0 {
		AssertJSONSubset(t, []byte(expand(string(s.ExpectedBody), r.Vars)), rec.Body.Bytes())
	}
	return rec
}
