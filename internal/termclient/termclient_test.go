package termclient

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yuiseki/acomm/internal/broker"
)

// testBridge starts a real broker on a temp unix socket, mirroring
// internal/broker's own test helper so termclient is exercised against
// actual wire behavior rather than a stub.
func testBridge(t *testing.T) (socketPath string, cancel context.CancelFunc) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "acomm.sock")
	b := broker.New(broker.Config{SocketPath: sockPath, MaxBacklog: 100})

	ctx, cancelFn := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sockPath); err == nil {
			conn.Close()
			return sockPath, cancelFn
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("bridge socket never became available")
	return "", cancelFn
}

func TestPublish_SendsPromptOnChannel(t *testing.T) {
	sockPath, cancel := testBridge(t)
	defer cancel()

	// A listener connection so we can observe the published Prompt.
	sub, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sub.Close()

	if err := Publish(sockPath, "test_channel", "hello mock", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	sub.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	var all []byte
	for !bytes.Contains(all, []byte("hello mock")) {
		n, err := sub.Read(buf)
		if err != nil {
			t.Fatalf("read: %v (so far: %s)", err, all)
		}
		all = append(all, buf[:n]...)
	}
}

func TestPublish_ReadsStdinForDash(t *testing.T) {
	sockPath, cancel := testBridge(t)
	defer cancel()

	sub, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sub.Close()

	stdin := strings.NewReader("piped text")
	if err := Publish(sockPath, "", "-", stdin); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	sub.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	var all []byte
	for !bytes.Contains(all, []byte("piped text")) {
		n, err := sub.Read(buf)
		if err != nil {
			t.Fatalf("read: %v (so far: %s)", err, all)
		}
		all = append(all, buf[:n]...)
	}
}

func TestDump_DrainsBacklogAndReturns(t *testing.T) {
	sockPath, cancel := testBridge(t)
	defer cancel()

	if err := Publish(sockPath, "bridge", "/model foo", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let the broker apply and retain it

	var out bytes.Buffer
	ctx, cancelDump := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelDump()
	if err := Dump(ctx, sockPath, &out); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !strings.Contains(out.String(), "model: foo") {
		t.Errorf("expected dumped output to mention the model switch, got %q", out.String())
	}
}

func TestSubscribe_RendersProcessingStatus(t *testing.T) {
	sockPath, cancel := testBridge(t)
	defer cancel()

	var out bytes.Buffer
	ctx, cancelSub := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelSub()

	done := make(chan struct{})
	go func() {
		_ = Subscribe(ctx, sockPath, &out)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond) // let Subscribe's handshake read settle

	if err := Publish(sockPath, "test_channel", "hello mock", nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), "thinking") {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancelSub()
	<-done

	if !strings.Contains(out.String(), "thinking") {
		t.Errorf("expected rendered output to include a thinking indicator, got %q", out.String())
	}
}
