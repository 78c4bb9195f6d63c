package alog

import "testing"

func TestNewDebugReturnsNonNil(t *testing.T) {
	l, err := New(true, false)
	if err != nil {
		t.Fatalf("New(debug): %v", err)
	}
	if l == nil {
		t.Fatal("New(debug) returned nil logger")
	}
}

func TestNewQuietReturnsNonNil(t *testing.T) {
	l, err := New(false, true)
	if err != nil {
		t.Fatalf("New(quiet): %v", err)
	}
	if l == nil {
		t.Fatal("New(quiet) returned nil logger")
	}
}

func TestNewDefaultReturnsNonNil(t *testing.T) {
	l, err := New(false, false)
	if err != nil {
		t.Fatalf("New(default): %v", err)
	}
	if l == nil {
		t.Fatal("New(default) returned nil logger")
	}
}

func TestNewDebugWinsOverQuiet(t *testing.T) {
	l, err := New(true, true)
	if err != nil {
		t.Fatalf("New(debug, quiet): %v", err)
	}
	if l == nil {
		t.Fatal("New(debug, quiet) returned nil logger")
	}
}

func TestNoopDoesNotPanic(t *testing.T) {
	l := Noop()
	if l == nil {
		t.Fatal("Noop() returned nil logger")
	}
	l.Infof("this should be discarded silently")
}
