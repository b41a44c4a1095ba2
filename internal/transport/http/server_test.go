package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/battle"
	"exam-prep-service/internal/exam"
	"exam-prep-service/internal/generator"
	"exam-prep-service/internal/handoff"
	"exam-prep-service/internal/infra/memory"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	secret string
}

func newTestServer(t *testing.T, secret string) *testServer {
	t.Helper()
	bundle, err := memory.LoadBundle()
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	bank := memory.NewBankCache(memory.NewStaticBank(bundle.Questions), time.Minute)
	source := exam.NewSource(bank, generator.New(generator.NewMockClient(), 0), nil)
	results := memory.NewResultStore()
	bookmarks := memory.NewBookmarkStore()

	exams := app.NewExamService(app.Deps{
		Sessions:  memory.NewExamStore(),
		Source:    source,
		Bank:      bank,
		Results:   results,
		Bookmarks: bookmarks,
		History:   results,
		Library:   bookmarks,
		Papers:    memory.NewPaperStore(bundle.Papers),
		Catalog:   bundle.Catalog,
		Handoff:   handoff.NewMailboxes(memory.NewHandoffStore(), time.Minute),
	}, app.WithSessionOptions(exam.WithManualClock()))
	battles := battle.NewService(memory.NewRoomStore(), source)

	router := NewRouter(RouterConfig{JWTSecret: secret},
		NewExamHandler(exams), NewBattleHandler(battles), NewWSHandler(battles))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{Server: server, secret: secret}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// call sends body as JSON and decodes the response into out when out is non-nil.
func (s *testServer) call(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}
