package fcp

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestMessageWriteTo_EndMessage(t *testing.T) {
	m := newMessage("ClientHello").
		set("Name", "tester").
		set("ExpectedVersion", "2.0")

	var buf bytes.Buffer
	gt.NoError(t, m.writeTo(&buf))

	wire := buf.String()
	gt.Value(t, wire).Equal("ClientHello\nExpectedVersion=2.0\nName=tester\nEndMessage\n")
}

func TestMessageWriteTo_DataFraming(t *testing.T) {
	m := newMessage("ClientPut").set("URI", "CHK@")
	m.Data = []byte("payload bytes")

	var buf bytes.Buffer
	gt.NoError(t, m.writeTo(&buf))

	wire := buf.String()
	gt.String(t, wire).Contains("DataLength=13\nData\n")
	gt.Value(t, strings.HasSuffix(wire, "Data\npayload bytes")).Equal(true)
}

func TestReadMessage_RoundTrip(t *testing.T) {
	original := newMessage("PutSuccessful").
		set("Identifier", "id-1").
		set("URI", "CHK@abc")

	var buf bytes.Buffer
	gt.NoError(t, original.writeTo(&buf))

	decoded, err := readMessage(bufio.NewReader(&buf))
	gt.NoError(t, err)
	gt.Value(t, decoded.Name).Equal("PutSuccessful")
	gt.Value(t, decoded.field("URI")).Equal("CHK@abc")
	gt.Value(t, decoded.identifier()).Equal("id-1")
	gt.Value(t, decoded.Data).Nil()
}

func TestReadMessage_PayloadRoundTrip(t *testing.T) {
	original := newMessage("AllData").set("Identifier", "id-2")
	original.Data = []byte{0x00, 0x01, 0xFF, 'a'}

	var buf bytes.Buffer
	gt.NoError(t, original.writeTo(&buf))

	decoded, err := readMessage(bufio.NewReader(&buf))
	gt.NoError(t, err)
	gt.Value(t, decoded.Name).Equal("AllData")
	gt.Value(t, decoded.field("DataLength")).Equal("4")
	gt.Value(t, bytes.Equal(decoded.Data, original.Data)).Equal(true)
}

func TestReadMessage_ValueWithEquals(t *testing.T) {
	raw := "NodeHello\nVersion=Fred,0.7,1.0,1497\nTesting=a=b=c\nEndMessage\n"
	decoded, err := readMessage(bufio.NewReader(strings.NewReader(raw)))
	gt.NoError(t, err)
	gt.Value(t, decoded.field("Testing")).Equal("a=b=c")
}

func TestReadMessage_MalformedField(t *testing.T) {
	raw := "NodeHello\nnot a field line\nEndMessage\n"
	_, err := readMessage(bufio.NewReader(strings.NewReader(raw)))
	gt.Error(t, err)
}

func TestReadMessage_MissingDataLength(t *testing.T) {
	raw := "AllData\nIdentifier=id\nData\n"
	_, err := readMessage(bufio.NewReader(strings.NewReader(raw)))
	gt.Error(t, err)
}

func TestErrorFromFailure(t *testing.T) {
	failure := newMessage("PutFailed")
	failure.set("Code", "9")
	failure.set("CodeDescription", "Collision with existing data")

	err := errorFromFailure(failure, "FCP insert failed")
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("Collision with existing data")
}
