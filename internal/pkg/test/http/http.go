// Package testhttp provides a scriptable mock GraphQL service for client
// tests: callers declare what a request must look like and what the service
// returns.
package testhttp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/matryer/is"
)

type MockService struct {
	server       *httptest.Server
	requestCount int32
}

type option func(*mockConfig)

type mockConfig struct {
	expectations []Expectation
	responders   []Responder
}

// Expectation checks one aspect of an incoming request.
type Expectation func(is *is.I, r *http.Request, body []byte)

// Responder writes one aspect of the response.
type Responder func(w http.ResponseWriter)

// Expects declares the request checks the mock applies to every call.
func Expects(isT *is.I, expectations ...Expectation) option {
	return func(cfg *mockConfig) {
		cfg.expectations = append(cfg.expectations, func(_ *is.I, r *http.Request, body []byte) {
			for _, e := range expectations {
				e(isT, r, body)
			}
		})
	}
}

// Returns declares how the mock responds.
func Returns(responders ...Responder) option {
	return func(cfg *mockConfig) {
		cfg.responders = append(cfg.responders, responders...)
	}
}

// NewMockServiceThat starts a mock service configured with the given
// expectations and response.
func NewMockServiceThat(options ...option) *MockService {
	cfg := &mockConfig{}
	for _, o := range options {
		o(cfg)
	}

	s := &MockService{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.requestCount, 1)

		body, _ := io.ReadAll(r.Body)
		for _, e := range cfg.expectations {
			e(nil, r, body)
		}
		for _, respond := range cfg.responders {
			respond(w)
		}
	}))

	return s
}

func (s *MockService) URL() string {
	return s.server.URL
}

func (s *MockService) Close() {
	s.server.Close()
}

func (s *MockService) RequestCount() int {
	return int(atomic.LoadInt32(&s.requestCount))
}

// ─── Expectations ──────────────────────────────────────────────────────────

func AnyInput() Expectation {
	return func(*is.I, *http.Request, []byte) {}
}

func RequestMethod(method string) Expectation {
	return func(is *is.I, r *http.Request, _ []byte) {
		is.Equal(r.Method, method)
	}
}

func RequestPath(path string) Expectation {
	return func(is *is.I, r *http.Request, _ []byte) {
		is.Equal(r.URL.Path, path)
	}
}

func Header(name, value string) Expectation {
	return func(is *is.I, r *http.Request, _ []byte) {
		is.Equal(r.Header.Get(name), value)
	}
}

// Operation checks the operationName of the posted GraphQL request.
func Operation(name string) Expectation {
	return func(is *is.I, _ *http.Request, body []byte) {
		is.Equal(decodeRequest(is, body).OperationName, name)
	}
}

// Variable checks one variable of the posted GraphQL request.
func Variable(name string, value any) Expectation {
	return func(is *is.I, _ *http.Request, body []byte) {
		is.Equal(decodeRequest(is, body).Variables[name], value)
	}
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

func decodeRequest(is *is.I, body []byte) graphQLRequest {
	var req graphQLRequest
	err := json.Unmarshal(body, &req)
	is.NoErr(err)
	return req
}

// ─── Responders ────────────────────────────────────────────────────────────

func Code(code int) Responder {
	return func(w http.ResponseWriter) {
		w.WriteHeader(code)
	}
}

func ContentType(contentType string) Responder {
	return func(w http.ResponseWriter) {
		w.Header().Add("Content-Type", contentType)
	}
}

func Body(body []byte) Responder {
	return func(w http.ResponseWriter) {
		w.Write(body)
	}
}

// Data responds with a well-formed GraphQL data envelope.
func Data(data map[string]any) Responder {
	return func(w http.ResponseWriter) {
		w.Header().Add("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}
}

// Errors responds with a GraphQL errors envelope.
func Errors(messages ...string) Responder {
	return func(w http.ResponseWriter) {
		w.Header().Add("Content-Type", "application/json")
		errs := make([]map[string]any, 0, len(messages))
		for _, msg := range messages {
			errs = append(errs, map[string]any{"message": msg})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": nil, "errors": errs})
	}
}
