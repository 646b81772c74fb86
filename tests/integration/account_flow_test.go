package integration

import (
	"context"
	"net/http"
	"testing"
)

func TestAccountSettingsFlow(t *testing.T) {
	ts := newServer(t)
	name, username, email, password := TestUser("acct")
	if _, err := testDB.SeedUser(context.Background(), name, username, email, password); err != nil {
		t.Fatal(err)
	}

	login := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": password})
	requireStatus(t, login, http.StatusOK)
	access := login.AccessToken(t)

	// Rename the account and change the handle
	updated := ts.Do(t, http.MethodPatch, "/users/me", map[string]string{
		"name": "Renamed Reader", "username": username + "2",
	}, WithBearer(access))
	requireStatus(t, updated, http.StatusOK)
	if updated.Body["name"] != "Renamed Reader" {
		t.Errorf("expected updated name, got %v", updated.Body["name"])
	}

	// The cached profile behind the guard follows the change
	me := ts.Do(t, http.MethodGet, "/users/me", nil, WithBearer(access))
	requireStatus(t, me, http.StatusOK)
	if me.Body["username"] != username+"2" {
		t.Errorf("profile mirror not refreshed: %v", me.Body["username"])
	}

	// Taking someone else's handle is a conflict
	otherName, otherUsername, otherEmail, otherPassword := TestUser("acctb")
	if _, err := testDB.SeedUser(context.Background(), otherName, otherUsername, otherEmail, otherPassword); err != nil {
		t.Fatal(err)
	}
	conflict := ts.Do(t, http.MethodPatch, "/users/me", map[string]string{"username": otherUsername}, WithBearer(access))
	requireStatus(t, conflict, http.StatusConflict)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	ts := newServer(t)
	name, username, email, password := TestUser("chpw")
	if _, err := testDB.SeedUser(context.Background(), name, username, email, password); err != nil {
		t.Fatal(err)
	}

	first := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": password})
	second := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": password})
	requireStatus(t, first, http.StatusOK)
	requireStatus(t, second, http.StatusOK)

	newPassword := "FreshPassword789!"
	change := ts.Do(t, http.MethodPost, "/users/me/password", map[string]string{
		"currentPass": password, "pass": newPassword,
	}, WithBearer(first.AccessToken(t)))
	requireStatus(t, change, http.StatusNoContent)

	// every session is revoked, the other device must log in again
	me := ts.Do(t, http.MethodGet, "/users/me", nil, WithBearer(second.AccessToken(t)))
	requireStatus(t, me, http.StatusUnauthorized)

	relogin := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": newPassword})
	requireStatus(t, relogin, http.StatusOK)
}

func TestAPIKeyLifecycle(t *testing.T) {
	ts := newServer(t)
	name, username, email, password := TestUser("key")
	if _, err := testDB.SeedUser(context.Background(), name, username, email, password); err != nil {
		t.Fatal(err)
	}

	login := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": password})
	requireStatus(t, login, http.StatusOK)
	access := login.AccessToken(t)

	issued := ts.Do(t, http.MethodPost, "/users/api-key", nil, WithBearer(access))
	requireStatus(t, issued, http.StatusCreated)
	key, _ := issued.Body["api_key"].(string)
	if len(key) != 68 {
		t.Fatalf("expected 68-char api key, got %d (%q)", len(key), key)
	}

	// The key grants programmatic access without a session
	me := ts.Do(t, http.MethodGet, "/users/me", nil, WithAPIKey(key))
	requireStatus(t, me, http.StatusOK)

	// Rotation invalidates the old key
	rotated := ts.Do(t, http.MethodPost, "/users/api-key", nil, WithBearer(access))
	requireStatus(t, rotated, http.StatusCreated)

	stale := ts.Do(t, http.MethodGet, "/users/me", nil, WithAPIKey(key))
	requireStatus(t, stale, http.StatusUnauthorized)

	fresh, _ := rotated.Body["api_key"].(string)
	live := ts.Do(t, http.MethodGet, "/users/me", nil, WithAPIKey(fresh))
	requireStatus(t, live, http.StatusOK)

	// Revocation kills the key outright
	revoked := ts.Do(t, http.MethodDelete, "/users/api-key", nil, WithBearer(access))
	requireStatus(t, revoked, http.StatusNoContent)

	dead := ts.Do(t, http.MethodGet, "/users/me", nil, WithAPIKey(fresh))
	requireStatus(t, dead, http.StatusUnauthorized)
}

func TestPhotoServedWithSniffedType(t *testing.T) {
	ts := newServer(t)
	name, username, email, password := TestUser("photo")
	if _, err := testDB.SeedUser(context.Background(), name, username, email, password); err != nil {
		t.Fatal(err)
	}

	login := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": password})
	requireStatus(t, login, http.StatusOK)
	access := login.AccessToken(t)

	// Seeded accounts carry no photo until one is generated
	missing := ts.Do(t, http.MethodGet, "/users/me/photo", nil, WithBearer(access))
	requireStatus(t, missing, http.StatusNotFound)

	// An empty photo field regenerates the identicon
	regen := ts.Do(t, http.MethodPatch, "/users/me", map[string]string{"photo": ""}, WithBearer(access))
	requireStatus(t, regen, http.StatusOK)

	photo := ts.Do(t, http.MethodGet, "/users/me/photo", nil, WithBearer(access))
	requireStatus(t, photo, http.StatusOK)
	if len(photo.Raw) == 0 {
		t.Fatal("expected photo bytes")
	}
}

func TestTerminateAccount(t *testing.T) {
	ts := newServer(t)
	name, username, email, password := TestUser("term")
	if _, err := testDB.SeedUser(context.Background(), name, username, email, password); err != nil {
		t.Fatal(err)
	}

	login := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": password})
	requireStatus(t, login, http.StatusOK)
	access := login.AccessToken(t)

	// a wrong password blocks deletion
	blocked := ts.Do(t, http.MethodDelete, "/users/me", map[string]string{"pass": "WrongPass000!"}, WithBearer(access))
	requireStatus(t, blocked, http.StatusUnauthorized)

	gone := ts.Do(t, http.MethodDelete, "/users/me", map[string]string{"pass": password}, WithBearer(access))
	requireStatus(t, gone, http.StatusNoContent)

	// the account and its sessions are gone
	me := ts.Do(t, http.MethodGet, "/users/me", nil, WithBearer(access))
	requireStatus(t, me, http.StatusUnauthorized)

	relogin := ts.Do(t, http.MethodPost, "/auth/login", map[string]string{"user": email, "pass": password})
	requireStatus(t, relogin, http.StatusUnauthorized)
}
