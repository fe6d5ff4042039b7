// Package fcp implements the client side of the FCP 2.0 node protocol:
// line-oriented messages over TCP, used here for content inserts, fetches,
// retrievability probes, and signing-key generation.
package fcp

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/cryptad/update-releaser/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// message is one FCP protocol message: a name line, Field=Value lines,
// and either an EndMessage terminator or a Data terminator followed by
// exactly DataLength payload bytes.
type message struct {
	Name   string
	Fields map[string]string
	Data   []byte
}

func newMessage(name string) *message {
	return &message{Name: name, Fields: map[string]string{}}
}

func (m *message) set(key, value string) *message {
	m.Fields[key] = value
	return m
}

func (m *message) setBool(key string, value bool) *message {
	return m.set(key, strconv.FormatBool(value))
}

func (m *message) setInt(key string, value int64) *message {
	return m.set(key, strconv.FormatInt(value, 10))
}

func (m *message) field(key string) string {
	return m.Fields[key]
}

func (m *message) identifier() string {
	return m.Fields["Identifier"]
}

// writeTo serializes the message. Fields are written in sorted order; the
// node does not care, but deterministic output keeps the codec testable.
func (m *message) writeTo(w io.Writer) error {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('\n')

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m.Fields[k])
		b.WriteByte('\n')
	}

	if m.Data != nil {
		b.WriteString("DataLength=")
		b.WriteString(strconv.Itoa(len(m.Data)))
		b.WriteString("\nData\n")
	} else {
		b.WriteString("EndMessage\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return goerr.Wrap(err, "failed to write FCP message",
			goerr.T(types.TagCollaborator), goerr.V("message", m.Name))
	}
	if m.Data != nil {
		if _, err := w.Write(m.Data); err != nil {
			return goerr.Wrap(err, "failed to write FCP message payload",
				goerr.T(types.TagCollaborator), goerr.V("message", m.Name))
		}
	}
	return nil
}

// readMessage parses the next message from the node.
func readMessage(r *bufio.Reader) (*message, error) {
	name, err := readLine(r)
	if err != nil {
		return nil, err
	}
	for name == "" {
		if name, err = readLine(r); err != nil {
			return nil, err
		}
	}

	m := newMessage(name)
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		switch line {
		case "EndMessage":
			return m, nil
		case "Data":
			return m, m.readPayload(r)
		case "":
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, goerr.New("malformed FCP message field",
				goerr.T(types.TagCollaborator), goerr.V("message", name), goerr.V("line", line))
		}
		m.Fields[key] = value
	}
}

func (m *message) readPayload(r *bufio.Reader) error {
	rawLength := m.field("DataLength")
	length, err := strconv.ParseInt(rawLength, 10, 64)
	if err != nil || length < 0 {
		return goerr.New("FCP message carries data without a valid DataLength",
			goerr.T(types.TagCollaborator), goerr.V("message", m.Name),
			goerr.V("data_length", rawLength))
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return goerr.Wrap(err, "failed to read FCP message payload",
			goerr.T(types.TagCollaborator), goerr.V("message", m.Name))
	}
	m.Data = payload
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", goerr.Wrap(err, "failed to read from FCP connection",
			goerr.T(types.TagCollaborator))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// errorFromFailure converts a node failure message into an error.
func errorFromFailure(m *message, context string) error {
	desc := m.field("CodeDescription")
	if desc == "" {
		desc = m.field("ShortCodeDescription")
	}
	return goerr.New(fmt.Sprintf("%s: %s", context, desc),
		goerr.T(types.TagCollaborator),
		goerr.V("fcp_message", m.Name),
		goerr.V("code", m.field("Code")),
		goerr.V("extra", m.field("ExtraDescription")))
}
