package pidfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func fakeAlive(t *testing.T, alive map[int]bool) {
	t.Helper()
	orig := Alive
	Alive = func(pid int) bool { return alive[pid] }
	t.Cleanup(func() { Alive = orig })
}

func TestNewWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "voicecap.pid")

	pf, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pf.Remove()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if pid, _ := strconv.Atoi(strings.TrimSpace(string(data))); pid != os.Getpid() {
		t.Errorf("pid = %s, want %d", data, os.Getpid())
	}
}

func TestNewRejectsLiveInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicecap.pid")
	other := os.Getpid() + 1000
	if err := os.WriteFile(path, []byte(strconv.Itoa(other)), 0644); err != nil {
		t.Fatal(err)
	}
	fakeAlive(t, map[int]bool{other: true})

	if _, err := New(path); !errors.Is(err, ErrRunning) {
		t.Fatalf("New() error = %v, want ErrRunning", err)
	}
	if pid, ok := Running(path); !ok || pid != other {
		t.Errorf("Running() = %d, %v", pid, ok)
	}
}

func TestNewReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicecap.pid")
	for _, content := range []string{"999999", "not-a-pid"} {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		fakeAlive(t, map[int]bool{})

		pf, err := New(path)
		if err != nil {
			t.Fatalf("New() with %q: %v", content, err)
		}
		if pid, _ := Read(path); pid != os.Getpid() {
			t.Errorf("pid = %d after replacing %q", pid, content)
		}
		_ = pf.Remove()
	}
}

func TestRemoveOnlyOwnFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicecap.pid")
	pf, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := pf.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("Remove deleted a file owned by another PID")
	}

	var nilPF *PIDFile
	if err := nilPF.Remove(); err != nil {
		t.Errorf("nil Remove() = %v", err)
	}
}

func TestAliveCurrentProcess(t *testing.T) {
	if !Alive(os.Getpid()) {
		t.Error("Alive(self) = false")
	}
}

func TestPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	if got := Path("daemon"); got != "/home/tester/.cache/voicecap/daemon.pid" {
		t.Errorf("Path() = %s", got)
	}
}
