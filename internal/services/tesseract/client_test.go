package tesseract

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"mangarecap/internal/services"
)

type stubExecutor struct {
	out   string
	err   error
	args  [][]string
	stdin [][]byte
}

func (s *stubExecutor) Run(_ context.Context, _ string, args []string, stdin []byte) ([]byte, error) {
	s.args = append(s.args, append([]string(nil), args...))
	s.stdin = append(s.stdin, stdin)
	return []byte(s.out), s.err
}

func TestRecognizePipesImage(t *testing.T) {
	exec := &stubExecutor{out: "  NÃO!\n\n"}
	client, err := New("tesseract", "eng+por", WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := client.Recognize(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if text != "NÃO!" {
		t.Fatalf("text = %q", text)
	}
	want := []string{"stdin", "stdout", "--psm", "6", "-l", "eng+por"}
	if !reflect.DeepEqual(exec.args[0], want) {
		t.Fatalf("args = %v, want %v", exec.args[0], want)
	}
	if string(exec.stdin[0]) != "png-bytes" {
		t.Fatal("image not piped on stdin")
	}
}

func TestRecognizeWrapsFailure(t *testing.T) {
	client, _ := New("tesseract", "eng", WithExecutor(&stubExecutor{err: errors.New("exit 1")}))
	_, err := client.Recognize(context.Background(), []byte("x"))
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := client.Recognize(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestMissingLanguages(t *testing.T) {
	exec := &stubExecutor{out: "List of available languages in \"/usr/share/tessdata/\" (2):\neng\nosd\n"}
	client, _ := New("tesseract", "eng+por", WithExecutor(exec))
	missing, err := client.MissingLanguages(context.Background())
	if err != nil {
		t.Fatalf("MissingLanguages: %v", err)
	}
	if !reflect.DeepEqual(missing, []string{"por"}) {
		t.Fatalf("missing = %v", missing)
	}
}

func TestAvailable(t *testing.T) {
	client, _ := New("tesseract", "eng")
	client.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	if err := client.Available(); !errors.Is(err, services.ErrProviderUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	client.lookPath = func(string) (string, error) { return "/usr/bin/tesseract", nil }
	if err := client.Available(); err != nil {
		t.Fatalf("Available: %v", err)
	}
	if _, err := New(" ", "eng"); err == nil {
		t.Fatal("expected error for blank binary")
	}
}
