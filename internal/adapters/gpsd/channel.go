package gpsd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nordic-dev-net/hydrophonitor-gps/internal/domain"
	"github.com/nordic-dev-net/hydrophonitor-gps/internal/ports"
)

// DefaultPort is the port gpsd listens on.
const DefaultPort = 2947

const (
	watchCommand = `?WATCH={"enable":true,"json":true};` + "\n"
	// gpsd caps its lines well below this; anything longer is garbage.
	maxLineBytes = 64 << 10
	// the daemon answers ?WATCH with DEVICES and WATCH; allow some slack
	// for DEVICE notifications arriving in between.
	maxHandshakeLines = 16
)

var (
	ErrChannelClosed   = ports.ErrChannelClosed
	ErrHandshakeDone   = errors.New("gpsd: handshake already performed")
	ErrNoHandshake     = errors.New("gpsd: receive before handshake")
	ErrMalformedReport = errors.New("gpsd: malformed report")
	ErrDaemon          = errors.New("gpsd: daemon error")
)

// Config captures where the daemon lives and how long session setup may take.
type Config struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Channel speaks the gpsd JSON protocol over a single stream connection.
// It is not safe for concurrent Receive calls.
type Channel struct {
	conn             net.Conn
	reader           *bufio.Reader
	handshakeTimeout time.Duration

	mu            sync.Mutex
	handshaken    bool
	closed        bool
	daemonRelease string
}

// Dial connects to the daemon described by cfg.
func Dial(ctx context.Context, cfg Config) (*Channel, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", cfg.Address())
	if err != nil {
		return nil, fmt.Errorf("gpsd dial %s: %w", cfg.Address(), err)
	}
	return NewChannel(conn, cfg.HandshakeTimeout), nil
}

// NewChannel wraps an established connection. A non-positive
// handshakeTimeout leaves the handshake unbounded.
func NewChannel(conn net.Conn, handshakeTimeout time.Duration) *Channel {
	return &Channel{
		conn:             conn,
		reader:           bufio.NewReaderSize(conn, maxLineBytes),
		handshakeTimeout: handshakeTimeout,
	}
}

// Handshake reads the VERSION banner, enables JSON watch mode and waits for
// the daemon to acknowledge it. It may run once per channel.
func (c *Channel) Handshake(ctx context.Context) error {
	c.mu.Lock()
	if c.handshaken {
		c.mu.Unlock()
		return ErrHandshakeDone
	}
	c.handshaken = true
	c.mu.Unlock()

	stop := c.closeOnDone(ctx)
	defer stop()

	if c.handshakeTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.handshakeTimeout)); err != nil {
			return fmt.Errorf("gpsd handshake deadline: %w", err)
		}
		defer c.conn.SetDeadline(time.Time{})
	}

	banner, err := c.readLine(ctx)
	if err != nil {
		return fmt.Errorf("gpsd read banner: %w", err)
	}
	if class := gjson.GetBytes(banner, "class").String(); class != "VERSION" {
		return fmt.Errorf("gpsd banner: expected VERSION, got %q", class)
	}
	c.mu.Lock()
	c.daemonRelease = gjson.GetBytes(banner, "release").String()
	c.mu.Unlock()

	if _, err := io.WriteString(c.conn, watchCommand); err != nil {
		return fmt.Errorf("gpsd send watch: %w", c.translate(ctx, err))
	}

	for i := 0; i < maxHandshakeLines; i++ {
		line, err := c.readLine(ctx)
		if err != nil {
			return fmt.Errorf("gpsd await watch: %w", err)
		}
		switch class := gjson.GetBytes(line, "class").String(); class {
		case "WATCH":
			return nil
		case "ERROR":
			return fmt.Errorf("%w: %s", ErrDaemon, gjson.GetBytes(line, "message").String())
		}
	}
	return fmt.Errorf("gpsd: no WATCH acknowledgement within %d lines", maxHandshakeLines)
}

// Receive blocks until the next DEVICE, TPV, SKY, PPS or GST report arrives.
// Other classes are skipped. Malformed lines and daemon ERROR messages are
// returned as recoverable errors; ErrChannelClosed means the session is over.
func (c *Channel) Receive(ctx context.Context) (domain.Report, error) {
	c.mu.Lock()
	ready := c.handshaken
	c.mu.Unlock()
	if !ready {
		return domain.Report{}, ErrNoHandshake
	}

	stop := c.closeOnDone(ctx)
	defer stop()

	for {
		line, err := c.readLine(ctx)
		if err != nil {
			return domain.Report{}, err
		}
		if !gjson.ValidBytes(line) {
			return domain.Report{}, fmt.Errorf("%w: %.80q", ErrMalformedReport, line)
		}
		class := gjson.GetBytes(line, "class").String()
		if class == "ERROR" {
			return domain.Report{}, fmt.Errorf("%w: %s", ErrDaemon, gjson.GetBytes(line, "message").String())
		}
		if _, ok := domain.ParseKind(class); !ok {
			continue
		}
		report, err := domain.NewReport(line)
		if err != nil {
			return domain.Report{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}
		return report, nil
	}
}

// DaemonRelease is the gpsd release announced in the VERSION banner.
func (c *Channel) DaemonRelease() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.daemonRelease
}

func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// readLine returns the next non-empty line without its terminator.
func (c *Channel) readLine(ctx context.Context) ([]byte, error) {
	for {
		line, err := c.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if derr := c.discardLine(); derr != nil {
				return nil, c.translate(ctx, derr)
			}
			return nil, fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedReport, c.reader.Size())
		}
		if err != nil {
			return nil, c.translate(ctx, err)
		}
		line = trimEOL(line)
		if len(line) == 0 {
			continue
		}
		return append([]byte(nil), line...), nil
	}
}

func (c *Channel) discardLine() error {
	for {
		_, err := c.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}

// translate maps transport failures onto the package's error vocabulary.
func (c *Channel) translate(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return err
}

// closeOnDone tears the connection down when ctx ends so a blocked read
// returns. The returned func detaches the hook.
func (c *Channel) closeOnDone(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	return func() { stop() }
}

func trimEOL(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

var _ ports.ReportChannel = (*Channel)(nil)
