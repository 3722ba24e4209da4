package storagenode

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/roma2023/FileStack/internal/fspath"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := NewNode(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return n
}

func TestCreateAndSize(t *testing.T) {
	n := newTestNode(t)
	p := fspath.Parse("/hello.txt")

	ok, err := n.Create(p)
	if err != nil || !ok {
		t.Fatalf("Create: ok=%v err=%v", ok, err)
	}
	size, err := n.Size(p)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Errorf("got size %d, want 0", size)
	}
}

func TestCreateRejectsRootAndDuplicates(t *testing.T) {
	n := newTestNode(t)
	if ok, err := n.Create(fspath.Root); err != nil || ok {
		t.Fatalf("Create(root): ok=%v err=%v, want false, nil", ok, err)
	}
	p := fspath.Parse("/a.txt")
	if ok, err := n.Create(p); err != nil || !ok {
		t.Fatalf("first Create: ok=%v err=%v", ok, err)
	}
	if ok, err := n.Create(p); err != nil || ok {
		t.Fatalf("duplicate Create: ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestCreateMakesParentDirectories(t *testing.T) {
	n := newTestNode(t)
	p := fspath.Parse("/a/b/c.txt")
	ok, err := n.Create(p)
	if err != nil || !ok {
		t.Fatalf("Create: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(n.Root(), "a", "b", "c.txt")); err != nil {
		t.Errorf("expected file on disk: %v", err)
	}
}

func TestCreateDeletesBlockingFile(t *testing.T) {
	n := newTestNode(t)
	blocker := fspath.Parse("/a")
	if ok, err := n.Create(blocker); err != nil || !ok {
		t.Fatalf("Create(blocker): ok=%v err=%v", ok, err)
	}
	target := fspath.Parse("/a/b.txt")
	ok, err := n.Create(target)
	if err != nil || !ok {
		t.Fatalf("Create(target): ok=%v err=%v", ok, err)
	}
	fi, err := os.Stat(filepath.Join(n.Root(), "a"))
	if err != nil || !fi.IsDir() {
		t.Fatalf("expected /a to become a directory, got %v, err=%v", fi, err)
	}
}

func TestWriteAndRead(t *testing.T) {
	n := newTestNode(t)
	p := fspath.Parse("/f.txt")
	if ok, err := n.Create(p); err != nil || !ok {
		t.Fatalf("Create: ok=%v err=%v", ok, err)
	}
	if err := n.Write(p, 0, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := n.Write(p, 5, []byte(" world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := n.Read(p, 0, 11)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff("hello world", string(got)); diff != "" {
		t.Errorf("Read mismatch (-want +got):\n%s", diff)
	}
}

func TestReadAtEndOfFileReturnsEmpty(t *testing.T) {
	n := newTestNode(t)
	p := fspath.Parse("/f.txt")
	n.Create(p)
	n.Write(p, 0, []byte("abc"))
	got, err := n.Read(p, 3, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestReadBeyondEndOfFileIsBounds(t *testing.T) {
	n := newTestNode(t)
	p := fspath.Parse("/f.txt")
	n.Create(p)
	n.Write(p, 0, []byte("abc"))
	_, err := n.Read(p, 2, 5)
	if !errors.Is(err, ErrBounds) {
		t.Errorf("got %v, want ErrBounds", err)
	}
}

func TestWriteEmptyDataIsNoOp(t *testing.T) {
	n := newTestNode(t)
	p := fspath.Parse("/f.txt")
	n.Create(p)
	n.Write(p, 0, []byte("abc"))
	if err := n.Write(p, 0, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	size, _ := n.Size(p)
	if size != 3 {
		t.Errorf("got size %d, want 3", size)
	}
}

func TestOperationsOnMissingPathAreNotFound(t *testing.T) {
	n := newTestNode(t)
	p := fspath.Parse("/missing.txt")
	if _, err := n.Size(p); !errors.Is(err, ErrNotFound) {
		t.Errorf("Size: got %v, want ErrNotFound", err)
	}
	if _, err := n.Read(p, 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read: got %v, want ErrNotFound", err)
	}
	if err := n.Write(p, 0, []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Write: got %v, want ErrNotFound", err)
	}
}

func TestDeleteFileAndDirectory(t *testing.T) {
	n := newTestNode(t)
	n.Create(fspath.Parse("/dir/a.txt"))
	n.Create(fspath.Parse("/dir/b.txt"))

	ok, err := n.Delete(fspath.Parse("/dir/a.txt"))
	if err != nil || !ok {
		t.Fatalf("Delete file: ok=%v err=%v", ok, err)
	}
	ok, err = n.Delete(fspath.Parse("/dir"))
	if err != nil || !ok {
		t.Fatalf("Delete directory: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(n.Root(), "dir")); !os.IsNotExist(err) {
		t.Errorf("expected /dir to be gone, stat err=%v", err)
	}
}

func TestDeleteRootReturnsFalse(t *testing.T) {
	n := newTestNode(t)
	ok, err := n.Delete(fspath.Root)
	if err != nil || ok {
		t.Fatalf("Delete(root): ok=%v err=%v, want false, nil", ok, err)
	}
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	n := newTestNode(t)
	ok, err := n.Delete(fspath.Parse("/missing"))
	if err != nil || ok {
		t.Fatalf("Delete(missing): ok=%v err=%v, want false, nil", ok, err)
	}
}
