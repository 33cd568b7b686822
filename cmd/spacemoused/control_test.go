package main

import (
	"io"
	"net"
	"path/filepath"
	"testing"
)

func twoProfileStore(t *testing.T) *ProfileStore {
	t.Helper()
	return buildStore(mustDoc(t, `
profiles:
  default: {}
  blender: {}
`), testLogger())
}

// TestControlReply_ProfileSwitch tests PROFILE with a case-insensitive name
func TestControlReply_ProfileSwitch(t *testing.T) {
	store := twoProfileStore(t)

	reply, changed := controlReply("PROFILE BLENDER", store, nil)
	if reply != "OK blender\n" {
		t.Errorf("expected 'OK blender', got %q", reply)
	}
	if !changed {
		t.Error("expected profileChanged=true")
	}
	if got := store.Active().Name; got != "blender" {
		t.Errorf("expected active 'blender', got %q", got)
	}
}

// TestControlReply_UnknownProfile tests the error reply and that the active
// profile stays put
func TestControlReply_UnknownProfile(t *testing.T) {
	store := twoProfileStore(t)

	reply, changed := controlReply("PROFILE gimp", store, nil)
	if reply != "ERR unknown profile 'gimp'\n" {
		t.Errorf("unexpected reply %q", reply)
	}
	if changed {
		t.Error("expected profileChanged=false")
	}
	if got := store.Active().Name; got != "default" {
		t.Errorf("expected active profile unchanged, got %q", got)
	}
}

// TestControlReply_Reload tests that RELOAD defers via the callback instead
// of reloading inline
func TestControlReply_Reload(t *testing.T) {
	store := twoProfileStore(t)

	requested := false
	reply, changed := controlReply("RELOAD", store, func() { requested = true })
	if reply != "OK reloading\n" {
		t.Errorf("unexpected reply %q", reply)
	}
	if changed {
		t.Error("expected profileChanged=false")
	}
	if !requested {
		t.Error("expected reload callback invoked")
	}
}

// TestControlReply_Status tests the two-line status reply
func TestControlReply_Status(t *testing.T) {
	store := twoProfileStore(t)

	reply, _ := controlReply("STATUS", store, nil)
	if reply != "ACTIVE default\nPROFILES default blender\n" {
		t.Errorf("unexpected reply %q", reply)
	}
}

// TestControlReply_UnknownCommand tests the catch-all, including keyword
// case sensitivity
func TestControlReply_UnknownCommand(t *testing.T) {
	store := twoProfileStore(t)

	for _, line := range []string{"FOO", "", "profile blender", "PROFILE", "reload"} {
		reply, changed := controlReply(line, store, func() { t.Errorf("reload invoked for %q", line) })
		if reply != "ERR unknown command\n" {
			t.Errorf("line %q: expected unknown-command reply, got %q", line, reply)
		}
		if changed {
			t.Errorf("line %q: expected profileChanged=false", line)
		}
	}
}

// TestControlServer_Transaction tests a full socket round trip through
// HandleOne
func TestControlServer_Transaction(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := NewControlServer(sockPath, testLogger())
	if err != nil {
		t.Fatalf("start control server: %v", err)
	}
	defer srv.Close()

	store := twoProfileStore(t)

	type result struct {
		reply string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := net.Dial("unix", sockPath)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer conn.Close()
		if _, err := conn.Write([]byte("PROFILE blender\n")); err != nil {
			done <- result{err: err}
			return
		}
		b, err := io.ReadAll(conn)
		done <- result{reply: string(b), err: err}
	}()

	changed := srv.HandleOne(store, nil)
	if !changed {
		t.Error("expected profile change reported")
	}

	res := <-done
	if res.err != nil {
		t.Fatalf("client transaction failed: %v", res.err)
	}
	if res.reply != "OK blender\n" {
		t.Errorf("expected 'OK blender', got %q", res.reply)
	}
	if got := store.Active().Name; got != "blender" {
		t.Errorf("expected active 'blender', got %q", got)
	}
}
