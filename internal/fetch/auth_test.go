package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paperboydev/paperboy/internal/edition"
)

const loginPage = `<html><body>
<form action="/session" method="post">
  <input type="hidden" name="csrf" value="tok-123">
  <input type="text" name="user" placeholder="Username">
  <input type="password" name="pass">
  <button type="submit">Sign in</button>
</form>
</body></html>`

// newLoginServer serves a login form at /login and validates the submission
// at /session, including the hidden CSRF token.
func newLoginServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, loginPage)
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostFormValue("csrf") != "tok-123" {
			http.Error(w, "missing token", http.StatusForbidden)
			return
		}
		if r.PostFormValue("user") != "reader" || r.PostFormValue("pass") != "hunter2" {
			// Sites commonly re-render the form with a 200.
			fmt.Fprint(w, loginPage)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
		fmt.Fprint(w, `<html><body><a href="/logout" class="account">My account</a></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{UserAgent: "paperboy-test"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestLoginCarriesHiddenFieldsAndSucceeds(t *testing.T) {
	t.Parallel()

	server := newLoginServer(t)
	client := newTestClient(t)

	auth := NewAuthenticator(server.URL+"/login",
		edition.Credentials{Identity: "reader", Secret: "hunter2"},
		edition.SelectorSet{}, nil)

	if err := auth.Login(context.Background(), client); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestLoginRejectedIsClassified(t *testing.T) {
	t.Parallel()

	server := newLoginServer(t)
	client := newTestClient(t)

	auth := NewAuthenticator(server.URL+"/login",
		edition.Credentials{Identity: "reader", Secret: "wrong"},
		edition.SelectorSet{}, nil)

	err := auth.Login(context.Background(), client)
	if err == nil {
		t.Fatal("Login() expected error for bad credentials")
	}
	if !edition.IsKind(err, edition.KindAuthenticationFailed) {
		t.Fatalf("expected KindAuthenticationFailed, got %v (kind %q)", err, edition.KindOf(err))
	}
}

func TestLoginUsesExplicitSuccessLocator(t *testing.T) {
	t.Parallel()

	server := newLoginServer(t)
	client := newTestClient(t)

	set, err := edition.NewSelectorSet(nil, nil, nil, []string{"css:a.account"}, nil)
	if err != nil {
		t.Fatalf("NewSelectorSet() error = %v", err)
	}
	auth := NewAuthenticator(server.URL+"/login",
		edition.Credentials{Identity: "reader", Secret: "hunter2"}, set, nil)

	if err := auth.Login(context.Background(), client); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestLoginSkippedWithoutConfiguration(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)

	// No login URL configured: must not touch the network.
	auth := NewAuthenticator("", edition.Credentials{}, edition.SelectorSet{}, nil)
	if err := auth.Login(context.Background(), client); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}
