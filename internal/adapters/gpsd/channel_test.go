package gpsd

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
)

const (
	versionLine = `{"class":"VERSION","release":"3.25","rev":"3.25","proto_major":3,"proto_minor":15}`
	devicesLine = `{"class":"DEVICES","devices":[{"class":"DEVICE","path":"/dev/ttyACM0","driver":"u-blox"}]}`
	watchLine   = `{"class":"WATCH","enable":true,"json":true}`
	tpvLine     = `{"class":"TPV","device":"/dev/ttyACM0","mode":3,"lat":60.1699,"lon":24.9384}`
	skyLine     = `{"class":"SKY","device":"/dev/ttyACM0","nSat":12,"uSat":9}`
)

// fakeDaemon plays the server side of the protocol on a net.Pipe.
type fakeDaemon struct {
	conn     net.Conn
	commands chan string
}

func newPipeChannel(t *testing.T) (*Channel, *fakeDaemon) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return NewChannel(client, time.Second), &fakeDaemon{conn: server, commands: make(chan string, 1)}
}

// serve writes the banner, captures the watch command, then writes lines.
func (d *fakeDaemon) serve(lines ...string) {
	go func() {
		if _, err := d.conn.Write([]byte(versionLine + "\n")); err != nil {
			return
		}
		cmd, err := bufio.NewReader(d.conn).ReadString('\n')
		if err != nil {
			return
		}
		d.commands <- cmd
		for _, l := range lines {
			if _, err := d.conn.Write([]byte(l + "\n")); err != nil {
				return
			}
		}
	}()
}

func TestHandshakeEnablesWatch(t *testing.T) {
	ch, daemon := newPipeChannel(t)
	daemon.serve(devicesLine, watchLine)

	if err := ch.Handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if got := <-daemon.commands; got != watchCommand {
		t.Fatalf("expected watch command %q, got %q", watchCommand, got)
	}
	if ch.DaemonRelease() != "3.25" {
		t.Fatalf("expected release 3.25, got %q", ch.DaemonRelease())
	}
	if err := ch.Handshake(context.Background()); !errors.Is(err, ErrHandshakeDone) {
		t.Fatalf("expected ErrHandshakeDone on second handshake, got %v", err)
	}
}

func TestHandshakeRejectsDaemonError(t *testing.T) {
	ch, daemon := newPipeChannel(t)
	daemon.serve(`{"class":"ERROR","message":"unrecognized request"}`)

	err := ch.Handshake(context.Background())
	if !errors.Is(err, ErrDaemon) {
		t.Fatalf("expected ErrDaemon, got %v", err)
	}
}

func TestHandshakeRequiresVersionBanner(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go func() { _, _ = server.Write([]byte(tpvLine + "\n")) }()

	err := NewChannel(client, time.Second).Handshake(context.Background())
	if err == nil || !strings.Contains(err.Error(), "expected VERSION") {
		t.Fatalf("expected banner error, got %v", err)
	}
}

func TestHandshakeTimesOut(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ch := NewChannel(client, 20*time.Millisecond)
	err := ch.Handshake(context.Background())
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestReceiveBeforeHandshake(t *testing.T) {
	ch, _ := newPipeChannel(t)
	if _, err := ch.Receive(context.Background()); !errors.Is(err, ErrNoHandshake) {
		t.Fatalf("expected ErrNoHandshake, got %v", err)
	}
}

func TestReceiveClassifiesAndSkipsControlMessages(t *testing.T) {
	ch, daemon := newPipeChannel(t)
	daemon.serve(
		devicesLine,
		watchLine,
		`{"class":"TOFF","device":"/dev/ttyACM0"}`,
		tpvLine,
		"",
		skyLine,
	)
	ctx := context.Background()
	if err := ch.Handshake(ctx); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	first, err := ch.Receive(ctx)
	if err != nil {
		t.Fatalf("receive tpv: %v", err)
	}
	if first.Kind != domain.KindTPV || string(first.Body) != tpvLine {
		t.Fatalf("unexpected first report %s %s", first.Kind, first.Body)
	}
	if lat := first.Field("lat").Float(); lat != 60.1699 {
		t.Fatalf("expected lat 60.1699, got %f", lat)
	}

	second, err := ch.Receive(ctx)
	if err != nil {
		t.Fatalf("receive sky: %v", err)
	}
	if second.Kind != domain.KindSKY {
		t.Fatalf("expected SKY, got %s", second.Kind)
	}
}

func TestReceiveRecoverableErrors(t *testing.T) {
	ch, daemon := newPipeChannel(t)
	daemon.serve(
		watchLine,
		`{"class":"TPV","lat":`,
		`{"class":"ERROR","message":"device gone"}`,
		tpvLine,
	)
	ctx := context.Background()
	if err := ch.Handshake(ctx); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	if _, err := ch.Receive(ctx); !errors.Is(err, ErrMalformedReport) {
		t.Fatalf("expected ErrMalformedReport, got %v", err)
	}
	if _, err := ch.Receive(ctx); !errors.Is(err, ErrDaemon) {
		t.Fatalf("expected ErrDaemon, got %v", err)
	}
	r, err := ch.Receive(ctx)
	if err != nil || r.Kind != domain.KindTPV {
		t.Fatalf("expected channel to keep working after recoverable errors, got %v %v", r.Kind, err)
	}
}

func TestReceiveReportsClosedConnection(t *testing.T) {
	ch, daemon := newPipeChannel(t)
	daemon.serve(watchLine)
	ctx := context.Background()
	if err := ch.Handshake(ctx); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	daemon.conn.Close()

	if _, err := ch.Receive(ctx); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
}

func TestReceiveUnblocksOnCancel(t *testing.T) {
	ch, daemon := newPipeChannel(t)
	daemon.serve(watchLine)
	if err := ch.Handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	if _, err := ch.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	_, err = Dial(context.Background(), Config{Host: "127.0.0.1", Port: addr.Port, DialTimeout: time.Second})
	if err == nil {
		t.Fatalf("expected dial to fail against a closed port")
	}
}

func TestDialAndHandshakeOverTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte(versionLine + "\n"))
		if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
			return
		}
		_, _ = conn.Write([]byte(devicesLine + "\n" + watchLine + "\n" + tpvLine + "\n"))
		time.Sleep(100 * time.Millisecond)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ch, err := Dial(context.Background(), Config{Host: "127.0.0.1", Port: addr.Port})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ch.Close()

	if err := ch.Handshake(context.Background()); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	r, err := ch.Receive(context.Background())
	if err != nil || r.Kind != domain.KindTPV {
		t.Fatalf("expected TPV over tcp, got %v %v", r.Kind, err)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Address() != "localhost:2947" {
		t.Fatalf("expected default address localhost:2947, got %s", cfg.Address())
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected out of range port to fail validation")
	}
}
