package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"activity-tracker/internal/logging"
	"activity-tracker/internal/store"
)

type failingCloser struct{}

func (failingCloser) Close() error { return errors.New("connection reset") }

func TestAppCloseLogsErrors(t *testing.T) {
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var buf bytes.Buffer
	a := &app{logger: logging.New("info", &buf), db: db, redis: failingCloser{}}
	a.Close()

	out := buf.String()
	if !strings.Contains(out, "closing redis failed") || !strings.Contains(out, "connection reset") {
		t.Errorf("redis close error not logged:\n%s", out)
	}
	if strings.Contains(out, "closing database failed") {
		t.Errorf("database close logged an error:\n%s", out)
	}
}
