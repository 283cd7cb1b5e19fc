package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func captureServer(t *testing.T, status int) (*httptest.Server, *PushRequest) {
	t.Helper()
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestNewClient_EmptyURL(t *testing.T) {
	if _, err := NewClient("  ", nil); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestPushEventJSON_Labels(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, err := NewClient(srv.URL+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	raw := []byte(`{"id":"e1","kind":"challenge_failed","merchantId":"shop 1","occurredAt":"2026-01-02T03:04:05Z"}`)
	if err := c.PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	s := got.Streams[0]
	if s.Stream["job"] != Job || s.Stream["kind"] != "challenge_failed" || s.Stream["merchant_id"] != "shop_1" {
		t.Errorf("labels = %v", s.Stream)
	}
	want := strconv.FormatInt(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixNano(), 10)
	if s.Values[0][0] != want || s.Values[0][1] != string(raw) {
		t.Errorf("values = %v", s.Values)
	}
}

func TestPushEventJSON_Unparseable(t *testing.T) {
	srv, got := captureServer(t, http.StatusNoContent)
	c, _ := NewClient(srv.URL, nil)
	if err := c.PushEventJSON(context.Background(), []byte("not json")); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	if len(got.Streams[0].Stream) != 1 || got.Streams[0].Values[0][1] != "not json" {
		t.Errorf("stream = %+v", got.Streams[0])
	}
}

func TestPush_Non2xx(t *testing.T) {
	srv, _ := captureServer(t, http.StatusBadRequest)
	c, _ := NewClient(srv.URL, nil)
	if err := c.Push(context.Background(), time.Now(), "line", nil); err == nil {
		t.Fatal("expected error on 400")
	}
}
