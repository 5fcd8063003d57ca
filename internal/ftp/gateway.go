// Package ftp wraps the remote file server session behind the narrow
// gateway the pipeline needs: connect, list, retrieve, disconnect.
//
// Data connections use passive mode (the client default), which keeps
// transfers working behind client-side NAT and firewalls.
package ftp

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	ftplib "github.com/jlaffaye/ftp"

	"github.com/helixsoft/clindata/internal/config"
	"github.com/helixsoft/clindata/internal/core"
)

// DisconnectStatus classifies the outcome of a disconnect attempt.
type DisconnectStatus int

const (
	// DisconnectedClean means the session closed with a proper QUIT.
	DisconnectedClean DisconnectStatus = iota

	// NotConnected means there was no live session to close.
	NotConnected

	// DisconnectFailed means the QUIT attempt itself errored.
	DisconnectFailed
)

func (s DisconnectStatus) String() string {
	switch s {
	case DisconnectedClean:
		return "disconnected"
	case NotConnected:
		return "not connected"
	case DisconnectFailed:
		return "disconnect failed"
	default:
		return "unknown"
	}
}

// DisconnectResult reports how a disconnect attempt ended. Callers that
// only need best-effort cleanup can log it and move on; the distinction
// between "nothing to close" and "close failed" is preserved rather than
// swallowed.
type DisconnectResult struct {
	Status DisconnectStatus
	Err    error
}

// Gateway is a live remote session. It extends the pipeline's FileSource
// with explicit disconnection.
type Gateway interface {
	core.FileSource
	Disconnect() DisconnectResult
}

// Client is a Gateway over a single FTP control connection. It is not
// safe for concurrent use; each worker run dials its own client.
type Client struct {
	conn    *ftplib.ServerConn
	dir     string
	warning string
}

// Connect dials and authenticates a session using cfg. The connect and
// read operations are bounded by cfg.Timeout. A failure changing into the
// optional remote directory is recorded as a warning on the client, not
// treated as a connection failure.
func Connect(cfg config.FTPConfig) (*Client, error) {
	conn, err := ftplib.Dial(cfg.Addr(), ftplib.DialWithTimeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), err)
	}

	if err := conn.Login(cfg.User, cfg.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("login as %s: %w", cfg.User, err)
	}

	c := &Client{conn: conn}

	if cfg.RemoteDir != "" {
		if err := conn.ChangeDir(cfg.RemoteDir); err != nil {
			c.warning = fmt.Sprintf("Could not change to remote directory %s: %v", cfg.RemoteDir, err)
		}
	}

	if dir, err := conn.CurrentDir(); err == nil {
		c.dir = dir
	}

	return c, nil
}

// CurrentDir returns the remote working directory observed after login,
// or "" if it could not be determined.
func (c *Client) CurrentDir() string {
	return c.dir
}

// Warning returns the non-fatal warning recorded during Connect, if any.
func (c *Client) Warning() string {
	return c.warning
}

// List returns the CSV filenames in the remote working directory, sorted
// lexically. Non-CSV entries are filtered out case-insensitively.
func (c *Client) List() ([]string, error) {
	names, err := c.conn.NameList("")
	if err != nil {
		return nil, fmt.Errorf("list remote directory: %w", err)
	}
	return FilterCSVNames(names), nil
}

// Retrieve streams the named remote file's bytes into sink.
func (c *Client) Retrieve(name string, sink io.Writer) error {
	resp, err := c.conn.Retr(name)
	if err != nil {
		return fmt.Errorf("retrieve %s: %w", name, err)
	}
	defer resp.Close()

	if _, err := io.Copy(sink, resp); err != nil {
		return fmt.Errorf("stream %s: %w", name, err)
	}
	return nil
}

// Disconnect closes the session with a best-effort QUIT and reports how
// that went. It never panics and is safe to call on an already closed
// client.
func (c *Client) Disconnect() DisconnectResult {
	if c.conn == nil {
		return DisconnectResult{Status: NotConnected}
	}

	err := c.conn.Quit()
	c.conn = nil
	if err != nil {
		return DisconnectResult{Status: DisconnectFailed, Err: err}
	}
	return DisconnectResult{Status: DisconnectedClean}
}

// FilterCSVNames returns the names ending in .csv (any case), sorted
// lexically.
func FilterCSVNames(names []string) []string {
	var out []string
	for _, name := range names {
		if strings.HasSuffix(strings.ToLower(name), ".csv") {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// NewDialer returns a session factory for the service: each call dials a
// fresh authenticated session, emits connection progress events, and
// hands back a cleanup function that disconnects best-effort, logging the
// outcome.
func NewDialer(cfg config.FTPConfig) core.SessionFunc {
	return func(emit core.EmitFunc) (core.FileSource, func(), error) {
		emit(fmt.Sprintf("Connecting to %s...", cfg.Addr()), core.SeverityInfo)

		client, err := Connect(cfg)
		if err != nil {
			return nil, nil, err
		}

		emit(fmt.Sprintf("Connected to %s", cfg.Addr()), core.SeveritySuccess)
		if w := client.Warning(); w != "" {
			emit(w, core.SeverityWarning)
		}
		if dir := client.CurrentDir(); dir != "" {
			emit(fmt.Sprintf("Remote directory: %s", dir), core.SeverityInfo)
		}

		cleanup := func() {
			res := client.Disconnect()
			switch res.Status {
			case DisconnectFailed:
				slog.Warn("ftp disconnect failed", "host", cfg.Addr(), "error", res.Err)
			default:
				slog.Debug("ftp session closed", "host", cfg.Addr(), "status", res.Status.String())
			}
		}
		return client, cleanup, nil
	}
}
