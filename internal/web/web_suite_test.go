// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tokengate Contributors

package web_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tokengate/tokengate/internal/auth"
	"github.com/tokengate/tokengate/internal/auth/memstore"
	"github.com/tokengate/tokengate/internal/observability"
	"github.com/tokengate/tokengate/internal/web"
)

func TestWeb(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Web Suite")
}

const cookieName = "token"

// testEnv wires the real auth stack to an in-memory store.
type testEnv struct {
	now     time.Time
	store   *memstore.Store
	metrics *observability.Metrics
	handler http.Handler
}

func (e *testEnv) clock() time.Time { return e.now }

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

func newTestEnv() *testEnv {
	env := &testEnv{now: time.Now().UTC().Truncate(time.Second)}
	env.store = memstore.New(env.clock)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	codec := auth.NewSHA256TokenCodec()
	hasher := auth.NewArgon2idHasher(auth.Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1})
	opts := []auth.Option{auth.WithClock(env.clock), auth.WithLogger(logger)}

	svc, err := auth.NewAuthService(env.store, hasher, codec, opts...)
	Expect(err).NotTo(HaveOccurred())
	resolver, err := auth.NewResolver(env.store, codec, opts...)
	Expect(err).NotTo(HaveOccurred())

	env.metrics = observability.NewMetrics(prometheus.NewRegistry())
	h, err := web.NewHandler(web.Config{
		Auth:     svc,
		Resolver: resolver,
		Cookie:   web.CookieConfig{Name: cookieName, Secure: true},
		Logger:   logger,
		Metrics:  env.metrics,
	})
	Expect(err).NotTo(HaveOccurred())
	env.handler = h.Routes()
	return env
}

func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func credentials(email, password string) string {
	b, _ := json.Marshal(map[string]string{"email": email, "password": password})
	return string(b)
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func errorCode(rec *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	return body.Code
}

func (e *testEnv) signupAndLogin(email, password string) string {
	Expect(e.do(http.MethodPost, "/auth/username/signup", credentials(email, password), "").Code).
		To(Equal(http.StatusNoContent))
	rec := e.do(http.MethodPost, "/auth/username/login", credentials(email, password), "")
	Expect(rec.Code).To(Equal(http.StatusOK))
	c := sessionCookie(rec)
	Expect(c).NotTo(BeNil())
	return c.Value
}

var _ = Describe("Auth HTTP API", func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv()
	})

	Describe("signup", func() {
		It("creates an account without logging in", func() {
			rec := env.do(http.MethodPost, "/auth/username/signup", credentials("new@example.com", "pw"), "")

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(sessionCookie(rec)).To(BeNil())
			Expect(env.store.SessionCount()).To(BeZero())
		})

		It("answers a duplicate email with NOT_FOUND", func() {
			env.do(http.MethodPost, "/auth/username/signup", credentials("dup@example.com", "one"), "")
			rec := env.do(http.MethodPost, "/auth/username/signup", credentials("DUP@example.com", "two"), "")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(web.CodeNotFound))
		})

		It("rejects a malformed body", func() {
			rec := env.do(http.MethodPost, "/auth/username/signup", "{not json", "")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(errorCode(rec)).To(Equal(web.CodeBadRequest))
		})

		It("rejects a missing password", func() {
			rec := env.do(http.MethodPost, "/auth/username/signup", `{"email":"a@b.c"}`, "")

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("login", func() {
		BeforeEach(func() {
			env.do(http.MethodPost, "/auth/username/signup", credentials("user@example.com", "correct"), "")
		})

		It("sets the session cookie and returns the expiry", func() {
			rec := env.do(http.MethodPost, "/auth/username/login", credentials("user@example.com", "correct"), "")

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body struct {
				ExpiresAt time.Time `json:"expiresAt"`
			}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body.ExpiresAt).To(BeTemporally("==", env.now.Add(auth.DefaultSessionTTL)))

			c := sessionCookie(rec)
			Expect(c).NotTo(BeNil())
			Expect(c.Value).NotTo(BeEmpty())
			Expect(c.HttpOnly).To(BeTrue())
			Expect(c.Secure).To(BeTrue())
			Expect(c.SameSite).To(Equal(http.SameSiteLaxMode))
			Expect(c.Path).To(Equal("/"))
			Expect(c.Expires).To(BeTemporally("==", body.ExpiresAt))
		})

		It("answers a wrong password with NOT_FOUND and no session", func() {
			rec := env.do(http.MethodPost, "/auth/username/login", credentials("user@example.com", "wrong"), "")

			Expect(rec.Code).To(Equal(http.StatusNotFound))
			Expect(errorCode(rec)).To(Equal(web.CodeNotFound))
			Expect(sessionCookie(rec)).To(BeNil())
			Expect(env.store.SessionCount()).To(BeZero())
		})

		It("answers an unknown email exactly like a wrong password", func() {
			unknown := env.do(http.MethodPost, "/auth/username/login", credentials("ghost@example.com", "correct"), "")
			wrong := env.do(http.MethodPost, "/auth/username/login", credentials("user@example.com", "wrong"), "")

			Expect(unknown.Code).To(Equal(wrong.Code))
			Expect(unknown.Body.String()).To(Equal(wrong.Body.String()))
		})
	})

	Describe("me", func() {
		It("returns the logged in user", func() {
			token := env.signupAndLogin("Me@Example.com", "pw")

			rec := env.do(http.MethodGet, "/auth/me", "", token)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body map[string]any
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("email", "Me@Example.com"))
			Expect(body).To(HaveKey("id"))
			Expect(body).To(HaveKey("createdAt"))
			Expect(body).To(HaveKey("updatedAt"))
			Expect(body).NotTo(HaveKey("passwordHash"))
		})

		It("rejects a request without credentials", func() {
			rec := env.do(http.MethodGet, "/auth/me", "", "")

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(rec)).To(Equal(web.CodeUnauthorized))
		})

		It("rejects an unknown token", func() {
			Expect(env.do(http.MethodGet, "/auth/me", "", "not-a-real-token").Code).To(Equal(http.StatusUnauthorized))
		})

		It("rejects a valid token presented as a bearer header", func() {
			token := env.signupAndLogin("bearer@example.com", "pw")
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			env.handler.ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("session lifetime", func() {
		var token string

		BeforeEach(func() {
			token = env.signupAndLogin("life@example.com", "pw")
		})

		It("does not touch the cookie outside the renewal window", func() {
			env.advance(5 * 24 * time.Hour)

			rec := env.do(http.MethodGet, "/auth/me", "", token)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(sessionCookie(rec)).To(BeNil())
		})

		It("re-issues the cookie with a fresh expiry inside the renewal window", func() {
			env.advance(16 * 24 * time.Hour)

			rec := env.do(http.MethodGet, "/auth/me", "", token)

			Expect(rec.Code).To(Equal(http.StatusOK))
			c := sessionCookie(rec)
			Expect(c).NotTo(BeNil())
			Expect(c.Value).To(Equal(token))
			Expect(c.Expires).To(BeTemporally("==", env.now.Add(auth.DefaultSessionTTL)))
		})

		It("rejects and removes an expired session", func() {
			env.advance(auth.DefaultSessionTTL)

			Expect(env.do(http.MethodGet, "/auth/me", "", token).Code).To(Equal(http.StatusUnauthorized))
			Expect(env.store.SessionCount()).To(BeZero())
		})
	})

	Describe("logout", func() {
		It("ends every session of the user and clears the cookie", func() {
			first := env.signupAndLogin("multi@example.com", "pw")
			rec := env.do(http.MethodPost, "/auth/username/login", credentials("multi@example.com", "pw"), "")
			second := sessionCookie(rec).Value
			Expect(env.store.SessionCount()).To(Equal(2))

			out := env.do(http.MethodPost, "/auth/logout", "", first)

			Expect(out.Code).To(Equal(http.StatusNoContent))
			cleared := sessionCookie(out)
			Expect(cleared).NotTo(BeNil())
			Expect(cleared.Value).To(BeEmpty())
			Expect(cleared.MaxAge).To(BeNumerically("<", 0))

			Expect(env.do(http.MethodGet, "/auth/me", "", first).Code).To(Equal(http.StatusUnauthorized))
			Expect(env.do(http.MethodGet, "/auth/me", "", second).Code).To(Equal(http.StatusUnauthorized))
			Expect(env.store.SessionCount()).To(BeZero())
		})

		It("requires a valid session", func() {
			Expect(env.do(http.MethodPost, "/auth/logout", "", "").Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("instrumentation", func() {
		It("assigns a request id", func() {
			rec := env.do(http.MethodGet, "/auth/me", "", "")

			Expect(rec.Header().Get(web.RequestIDHeader)).To(HaveLen(26))
		})

		It("echoes a caller supplied request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req.Header.Set(web.RequestIDHeader, "req-123")
			rec := httptest.NewRecorder()

			env.handler.ServeHTTP(rec, req)

			Expect(rec.Header().Get(web.RequestIDHeader)).To(Equal("req-123"))
		})

		It("counts requests by route pattern and status", func() {
			env.do(http.MethodGet, "/auth/me", "", "")
			env.do(http.MethodGet, "/nowhere", "", "")

			Expect(testutil.ToFloat64(env.metrics.RequestsTotal.WithLabelValues("GET /auth/me", "401"))).To(Equal(1.0))
			Expect(testutil.ToFloat64(env.metrics.RequestsTotal.WithLabelValues("unmatched", "404"))).To(Equal(1.0))
		})

		It("answers a wrong method with 405", func() {
			Expect(env.do(http.MethodGet, "/auth/username/login", "", "").Code).To(Equal(http.StatusMethodNotAllowed))
		})
	})
})
