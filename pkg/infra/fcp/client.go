package fcp

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// PutOptions control how inserts are queued on the node.
type PutOptions struct {
	// Priority is the node PriorityClass, 0 highest through 6 lowest.
	Priority int
	// Persistence keeps queued inserts across node restarts when set to
	// "reboot" or "forever".
	Persistence string
	// GlobalQueue places inserts on the node's global queue so they stay
	// visible in the node UI.
	GlobalQueue bool
}

// DefaultPutOptions match long-running artifact inserts: high priority,
// queue survives node restarts.
func DefaultPutOptions() PutOptions {
	return PutOptions{Priority: 1, Persistence: "forever", GlobalQueue: true}
}

// Client talks FCP 2.0 to one node over a single TCP connection. It is
// strictly sequential: one request is in flight at a time, which matches
// the pipeline's execution model.
type Client struct {
	host string
	port int
	puts PutOptions

	conn net.Conn
	r    *bufio.Reader
}

// Option configures a Client.
type Option func(*Client)

// WithPutOptions overrides the insert queue options.
func WithPutOptions(puts PutOptions) Option {
	return func(c *Client) { c.puts = puts }
}

// New creates a disconnected client; Connect must be called before use.
func New(host string, port int, opts ...Option) *Client {
	c := &Client{host: host, port: port, puts: DefaultPutOptions()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the node and performs the ClientHello handshake.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to FCP node",
			goerr.T(types.TagCollaborator), goerr.V("addr", addr))
	}
	c.conn = conn
	c.r = bufio.NewReader(conn)

	hello := newMessage("ClientHello").
		set("Name", "update-releaser-"+uuid.NewString()).
		set("ExpectedVersion", "2.0")
	if err := hello.writeTo(c.conn); err != nil {
		c.Close()
		return err
	}
	reply, err := readMessage(c.r)
	if err != nil {
		c.Close()
		return err
	}
	if reply.Name != "NodeHello" {
		c.Close()
		return goerr.New("unexpected FCP handshake reply",
			goerr.T(types.TagCollaborator), goerr.V("message", reply.Name))
	}

	ctxlog.From(ctx).Debug("Connected to FCP node",
		"addr", addr, "node_version", reply.field("Version"))
	return nil
}

// Close shuts the connection down. Safe to call twice.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.r = nil
	return err
}

// PutBytes inserts raw bytes at uri and returns the resulting URI.
func (c *Client) PutBytes(ctx context.Context, uri string, data []byte) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	identifier := newRequestIdentifier()
	put := c.newClientPut(uri, identifier)
	put.Data = data

	logger := ctxlog.From(ctx)
	logger.Info("FCP put start", "id", identifier, "mode", "direct", "uri", uri, "size", len(data))
	startedAt := time.Now()
	if err := put.writeTo(c.conn); err != nil {
		return "", err
	}
	resultURI, err := c.waitPutResult(identifier)
	if err != nil {
		logger.Error("FCP put failed", "id", identifier, "mode", "direct",
			"uri", uri, "elapsed", time.Since(startedAt))
		return "", err
	}
	logger.Info("FCP put complete", "id", identifier, "mode", "direct",
		"uri", uri, "result_uri", resultURI, "elapsed", time.Since(startedAt))
	return resultURI, nil
}

// PutFile inserts a local file at uri. When the node grants direct disk
// access for the file's directory the payload stays on disk; otherwise
// the file is read into memory and uploaded directly.
func (c *Client) PutFile(ctx context.Context, uri string, path string) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to resolve file path", goerr.V("path", path))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", goerr.Wrap(err, "file does not exist for insert",
			goerr.T(types.TagConfig), goerr.V("path", absPath))
	}

	logger := ctxlog.From(ctx)
	identifier := newRequestIdentifier()
	put := c.newClientPut(uri, identifier)

	mode := "disk"
	if c.testDDA(ctx, filepath.Dir(absPath)) {
		put.set("UploadFrom", "disk")
		put.set("Filename", absPath)
	} else {
		mode = "direct_fallback"
		logger.Warn("FCP direct disk access check failed; falling back to in-memory upload",
			"path", absPath)
		data, err := os.ReadFile(absPath)
		if err != nil {
			return "", goerr.Wrap(err, "failed to read file for insert", goerr.V("path", absPath))
		}
		put.Data = data
	}

	logger.Info("FCP put start", "id", identifier, "mode", mode,
		"uri", uri, "path", absPath, "size", info.Size())
	startedAt := time.Now()
	if err := put.writeTo(c.conn); err != nil {
		return "", err
	}
	resultURI, err := c.waitPutResult(identifier)
	if err != nil {
		logger.Error("FCP put failed", "id", identifier, "mode", mode,
			"uri", uri, "elapsed", time.Since(startedAt))
		return "", err
	}
	logger.Info("FCP put complete", "id", identifier, "mode", mode,
		"uri", uri, "result_uri", resultURI, "elapsed", time.Since(startedAt))
	return resultURI, nil
}

// GetBytes fetches the full payload behind uri. Missing or unreachable
// content is an error.
func (c *Client) GetBytes(ctx context.Context, uri string, timeout time.Duration) ([]byte, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	identifier := newRequestIdentifier()
	get := newMessage("ClientGet").
		set("URI", uri).
		set("Identifier", identifier).
		set("ReturnType", "direct").
		set("Persistence", "connection").
		setBool("Global", false).
		setInt("Verbosity", 0)
	if err := get.writeTo(c.conn); err != nil {
		return nil, err
	}

	reply, err := c.waitFor(identifier, timeout, "AllData", "GetFailed")
	if err != nil {
		return nil, err
	}
	if reply.Name == "GetFailed" {
		return nil, errorFromFailure(reply, "failed to retrieve URI "+uri)
	}
	return reply.Data, nil
}

// CheckRetrievable probes uri without transferring the payload. Absence
// and transport trouble both report false; probing never raises.
func (c *Client) CheckRetrievable(ctx context.Context, uri string, timeout time.Duration) bool {
	if err := c.Connect(ctx); err != nil {
		return false
	}

	identifier := newRequestIdentifier()
	get := newMessage("ClientGet").
		set("URI", uri).
		set("Identifier", identifier).
		set("ReturnType", "none").
		set("Persistence", "connection").
		setBool("Global", false).
		setInt("Verbosity", 0)
	if err := get.writeTo(c.conn); err != nil {
		return false
	}

	reply, err := c.waitFor(identifier, timeout, "DataFound", "GetFailed")
	if err != nil {
		return false
	}
	return reply.Name == "DataFound"
}

// GenerateKeypair asks the node for a fresh SSK pair and returns the
// private and public pointer bases ending in the /info/ segment.
func (c *Client) GenerateKeypair(ctx context.Context) (string, string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", "", err
	}

	identifier := newRequestIdentifier()
	gen := newMessage("GenerateSSK").set("Identifier", identifier)
	if err := gen.writeTo(c.conn); err != nil {
		return "", "", err
	}
	reply, err := c.waitFor(identifier, 0, "SSKKeypair")
	if err != nil {
		return "", "", err
	}

	privateRoot, err := toUSKRoot(reply.field("InsertURI"))
	if err != nil {
		return "", "", err
	}
	publicRoot, err := toUSKRoot(reply.field("RequestURI"))
	if err != nil {
		return "", "", err
	}
	return toInfoBase(privateRoot), toInfoBase(publicRoot), nil
}

// DerivePublicBase converts a private pointer base into its public form
// by inserting a probe block under the private key: the node reports the
// public request URI for the insert, which carries the inverted key.
func (c *Client) DerivePublicBase(ctx context.Context, privateBase string) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}

	privateRoot, err := toUSKRoot(strings.TrimSuffix(strings.TrimSpace(privateBase), "info/"))
	if err != nil {
		return "", err
	}
	probeURI := strings.TrimSuffix(privateRoot, "/") + "/pubkey-probe/0"

	identifier := newRequestIdentifier()
	put := newMessage("ClientPut").
		set("URI", probeURI).
		set("Identifier", identifier).
		set("Persistence", "connection").
		setBool("Global", false).
		setInt("PriorityClass", int64(c.puts.Priority)).
		setInt("Verbosity", 0).
		set("UploadFrom", "direct")
	put.Data = []byte("pubkey probe")
	if err := put.writeTo(c.conn); err != nil {
		return "", err
	}

	resultURI, err := c.waitPutResult(identifier)
	if err != nil {
		return "", goerr.Wrap(err, "failed to derive public key base from private staging key",
			goerr.T(types.TagCollaborator))
	}
	publicRoot, err := toUSKRoot(strings.TrimSuffix(resultURI, "/pubkey-probe/0"))
	if err != nil {
		return "", err
	}
	return toInfoBase(publicRoot), nil
}

func (c *Client) newClientPut(uri, identifier string) *message {
	return newMessage("ClientPut").
		set("URI", uri).
		set("Identifier", identifier).
		set("Persistence", c.puts.Persistence).
		setBool("Global", c.puts.GlobalQueue).
		setInt("PriorityClass", int64(c.puts.Priority)).
		setInt("Verbosity", 0).
		setBool("GetCHKOnly", false).
		set("UploadFrom", "direct")
}

func (c *Client) waitPutResult(identifier string) (string, error) {
	reply, err := c.waitFor(identifier, 0, "PutSuccessful", "PutFailed")
	if err != nil {
		return "", err
	}
	if reply.Name == "PutFailed" {
		return "", errorFromFailure(reply, "FCP insert failed")
	}
	uri := reply.field("URI")
	if uri == "" {
		return "", goerr.New("FCP put reply carries no URI",
			goerr.T(types.TagCollaborator), goerr.V("message", reply.Name))
	}
	return uri, nil
}

// waitFor reads messages until one of the terminal names arrives for the
// given identifier. Progress and queue bookkeeping messages are skipped.
// A zero timeout waits indefinitely (inserts have no built-in timeout).
func (c *Client) waitFor(identifier string, timeout time.Duration, terminals ...string) (*message, error) {
	conn := c.conn
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, goerr.Wrap(err, "failed to set FCP read deadline",
				goerr.T(types.TagCollaborator))
		}
		defer conn.SetReadDeadline(time.Time{})
	}

	for {
		m, err := readMessage(c.r)
		if err != nil {
			// A broken connection poisons all in-flight bookkeeping.
			c.Close()
			return nil, err
		}
		if m.Name == "ProtocolError" {
			return nil, errorFromFailure(m, "FCP protocol error")
		}
		if m.identifier() != identifier && m.identifier() != "" {
			continue
		}
		for _, terminal := range terminals {
			if m.Name == terminal {
				return m, nil
			}
		}
	}
}

// testDDA negotiates read access to dir so the node can ingest files
// straight from disk. Any failure simply disables disk uploads.
func (c *Client) testDDA(ctx context.Context, dir string) bool {
	request := newMessage("TestDDARequest").
		set("Directory", dir).
		setBool("WantReadDirectory", true).
		setBool("WantWriteDirectory", false)
	if err := request.writeTo(c.conn); err != nil {
		return false
	}

	reply, err := c.waitDDAMessage("TestDDAReply")
	if err != nil {
		return false
	}
	readFilename := reply.field("ReadFilename")
	content, err := os.ReadFile(readFilename)
	if err != nil {
		ctxlog.From(ctx).Debug("Could not read DDA challenge file", "path", readFilename)
		return false
	}

	response := newMessage("TestDDAResponse").
		set("Directory", dir).
		set("ReadContent", string(content))
	if err := response.writeTo(c.conn); err != nil {
		return false
	}

	complete, err := c.waitDDAMessage("TestDDAComplete")
	if err != nil {
		return false
	}
	return complete.field("ReadDirectoryAllowed") == "true"
}

// waitDDAMessage reads until the named TestDDA message arrives. The DDA
// exchange carries no Identifier, so matching is by name alone.
func (c *Client) waitDDAMessage(name string) (*message, error) {
	conn := c.conn
	if err := conn.SetReadDeadline(time.Now().Add(30 * time.Second)); err != nil {
		return nil, err
	}
	defer conn.SetReadDeadline(time.Time{})

	for {
		m, err := readMessage(c.r)
		if err != nil {
			c.Close()
			return nil, err
		}
		if m.Name == name {
			return m, nil
		}
		if m.Name == "ProtocolError" {
			return nil, errorFromFailure(m, "FCP protocol error during DDA negotiation")
		}
	}
}

func newRequestIdentifier() string {
	return "update-releaser-" + uuid.NewString()
}

// toUSKRoot normalizes a node-returned key to its USK root form.
func toUSKRoot(uri string) (string, error) {
	normalized := strings.TrimSpace(uri)
	if normalized == "" {
		return "", goerr.New("empty key returned by FCP node", goerr.T(types.TagCollaborator))
	}
	if strings.HasPrefix(normalized, "USK@") {
		return normalized, nil
	}
	if strings.HasPrefix(normalized, "SSK@") {
		return "USK@" + strings.TrimPrefix(normalized, "SSK@"), nil
	}
	return "", goerr.New("unsupported key format returned by FCP node",
		goerr.T(types.TagCollaborator), goerr.V("uri", normalized))
}

// toInfoBase appends the fixed /info/ suffix segment to a USK root.
func toInfoBase(uskRoot string) string {
	normalized := strings.TrimSpace(uskRoot)
	if strings.HasSuffix(normalized, "/info/") {
		return normalized
	}
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}
	return normalized + "info/"
}
