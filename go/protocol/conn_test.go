/*
Copyright 2024 The Vexel Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package protocol

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexeldb/vexel-go/go/codecs"
	"github.com/vexeldb/vexel-go/go/log"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// fakeTransport replays a script of server responses. Each AwaitMoreData
// call pops one step; a step sees everything the client has sent so far,
// so responses can depend on client messages (the SCRAM exchange needs
// that).
type fakeTransport struct {
	t       *testing.T
	sent    [][]byte
	script  []func(ft *fakeTransport) []byte
	sendErr error
	aborted bool
}

func (ft *fakeTransport) Send(_ context.Context, data []byte) error {
	if ft.sendErr != nil {
		return ft.sendErr
	}
	ft.sent = append(ft.sent, append([]byte(nil), data...))
	return nil
}

func (ft *fakeTransport) AwaitMoreData(_ context.Context) ([]byte, error) {
	if len(ft.script) == 0 {
		return nil, errors.New("unexpected read: script exhausted")
	}
	step := ft.script[0]
	ft.script = ft.script[1:]
	return step(ft), nil
}

func (ft *fakeTransport) Abort() {
	ft.aborted = true
}

// respond wraps a static response burst as a script step.
func respond(msgs ...[]byte) func(*fakeTransport) []byte {
	return func(*fakeTransport) []byte { return concat(msgs...) }
}

func concat(msgs ...[]byte) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m...)
	}
	return out
}

// sentTags flattens everything the client sent into a tag sequence.
func sentTags(t *testing.T, ft *fakeTransport) []wire.MessageType {
	t.Helper()
	var tags []wire.MessageType
	var b wire.ReadBuffer
	for _, chunk := range ft.sent {
		b.Feed(chunk)
	}
	for {
		ok, err := b.TakeMessage()
		require.NoError(t, err)
		if !ok {
			return tags
		}
		tags = append(tags, b.MessageType())
		b.DiscardMessage()
	}
}

// server message builders

func msg(t wire.MessageType, body func(w *wire.WriteBuffer)) []byte {
	w := wire.NewWriteBuffer()
	w.BeginMessage(t)
	if body != nil {
		body(w)
	}
	w.EndMessage()
	return w.Unwrap()
}

func msgAuthOK() []byte {
	return msg(wire.MsgAuthentication, func(w *wire.WriteBuffer) {
		w.WriteUint32(wire.AuthStatusOK)
	})
}

func msgAuthSASL(methods ...string) []byte {
	return msg(wire.MsgAuthentication, func(w *wire.WriteBuffer) {
		w.WriteUint32(wire.AuthStatusSASL)
		w.WriteUint32(uint32(len(methods)))
		for _, m := range methods {
			w.WriteString(m)
		}
	})
}

func msgSASLData(status uint32, data []byte) []byte {
	return msg(wire.MsgAuthentication, func(w *wire.WriteBuffer) {
		w.WriteUint32(status)
		w.WriteLenBytes(data)
	})
}

func msgServerHandshake(major, minor uint16) []byte {
	return msg(wire.MsgServerHandshake, func(w *wire.WriteBuffer) {
		w.WriteUint16(major)
		w.WriteUint16(minor)
		w.WriteUint16(0)
	})
}

func msgServerKeyData() []byte {
	return msg(wire.MsgServerKeyData, func(w *wire.WriteBuffer) {
		w.WriteRaw(make([]byte, 32))
	})
}

func msgParameterStatus(name string, value []byte) []byte {
	return msg(wire.MsgParameterStatus, func(w *wire.WriteBuffer) {
		w.WriteString(name)
		w.WriteLenBytes(value)
	})
}

func msgReady(tx wire.TransactionState) []byte {
	return msg(wire.MsgReadyForCommand, func(w *wire.WriteBuffer) {
		w.WriteUint16(0)
		w.WriteUint8(uint8(tx))
	})
}

func msgCommandDataDescription(card wire.Cardinality, inID uuid.UUID, inDesc []byte, outID uuid.UUID, outDesc []byte) []byte {
	return msg(wire.MsgCommandDataDescription, func(w *wire.WriteBuffer) {
		w.WriteUint16(0)
		w.WriteUint64(uint64(wire.CapabilityModifications))
		w.WriteUint8(uint8(card))
		w.WriteUUID(inID)
		w.WriteLenBytes(inDesc)
		w.WriteUUID(outID)
		w.WriteLenBytes(outDesc)
	})
}

func msgData(rows ...[]byte) []byte {
	return msg(wire.MsgData, func(w *wire.WriteBuffer) {
		w.WriteUint16(uint16(len(rows)))
		for _, row := range rows {
			w.WriteLenBytes(row)
		}
	})
}

func msgCommandComplete(status string) []byte {
	return msg(wire.MsgCommandComplete, func(w *wire.WriteBuffer) {
		w.WriteUint16(0)
		w.WriteUint64(uint64(wire.CapabilityModifications))
		w.WriteString(status)
		w.WriteUUID(uuid.Nil)
		w.WriteLenBytes(nil)
	})
}

func msgErrorResponse(code vexelerrors.Code, text string) []byte {
	return msg(wire.MsgErrorResponse, func(w *wire.WriteBuffer) {
		w.WriteUint8(uint8(vexelerrors.SeverityError))
		w.WriteUint32(uint32(code))
		w.WriteString(text)
		w.WriteUint16(0)
	})
}

// int64Desc is a one-node descriptor block for the int64 base scalar.
func int64Desc() []byte {
	w := wire.NewWriteBuffer()
	w.WriteUint8(2).WriteUUID(codecs.IDInt64)
	return w.Unwrap()
}

func strDesc() []byte {
	w := wire.NewWriteBuffer()
	w.WriteUint8(2).WriteUUID(codecs.IDString)
	return w.Unwrap()
}

func int64Row(v int64) []byte {
	w := wire.NewWriteBuffer()
	w.WriteInt64(v)
	return w.Unwrap()
}

// newTestConn builds an engine over a scripted transport.
func newTestConn(t *testing.T, script ...func(*fakeTransport) []byte) (*Conn, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{t: t, script: script}
	conn := NewConn(ft, ConnectParams{
		User:     "tester",
		Password: "sekret",
		Database: "main",
	}, nil, nil)
	return conn, ft
}

// connectedConn runs a plain connect before handing the conn over.
func connectedConn(t *testing.T, script ...func(*fakeTransport) []byte) (*Conn, *fakeTransport) {
	t.Helper()
	full := append([]func(*fakeTransport) []byte{
		respond(msgAuthOK(), msgServerKeyData(), msgReady(wire.TxStateNotInTransaction)),
	}, script...)
	conn, ft := newTestConn(t, full...)
	require.NoError(t, conn.Connect(context.Background()))
	return conn, ft
}

func TestConnect(t *testing.T) {
	conn, ft := newTestConn(t,
		respond(
			msgAuthOK(),
			msgServerKeyData(),
			msgParameterStatus("suggested_pool_concurrency", []byte("10")),
			msgReady(wire.TxStateNotInTransaction),
		),
	)
	require.NoError(t, conn.Connect(context.Background()))

	assert.Equal(t, wire.TxStateNotInTransaction, conn.TransactionState())
	assert.Equal(t, []byte("10"), conn.ServerSetting("suggested_pool_concurrency"))
	assert.Equal(t, wire.ProtocolVersion{Major: 1, Minor: 0}, conn.ProtocolVersion())
	assert.False(t, ft.aborted)

	tags := sentTags(t, ft)
	require.Len(t, tags, 1)
	assert.Equal(t, wire.MsgClientHandshake, tags[0])
}

func TestConnectVersionDowngrade(t *testing.T) {
	var logged bytes.Buffer
	restore := log.SetLogger(slog.New(slog.NewJSONHandler(&logged, nil)))
	defer restore()

	conn, _ := newTestConn(t,
		respond(
			msgServerHandshake(0, 13),
			msgAuthOK(),
			msgReady(wire.TxStateNotInTransaction),
		),
	)
	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, wire.ProtocolVersion{Major: 0, Minor: 13}, conn.ProtocolVersion())

	// The downgrade is reported through the structured logger.
	assert.Contains(t, logged.String(), "downgrading protocol version")
	assert.Contains(t, logged.String(), `"offered":"0.13"`)
}

func TestConnectVersionTooOld(t *testing.T) {
	conn, ft := newTestConn(t,
		respond(msgServerHandshake(0, 9)),
	)
	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeUnsupportedProtocolVersion, vexelerrors.CodeOf(err))
	assert.True(t, ft.aborted)
}

func TestConnectionLostMidMessage(t *testing.T) {
	conn, ft := newTestConn(t,
		func(*fakeTransport) []byte { return msgAuthOK()[:3] },
	)
	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeClientConnectionClosed, vexelerrors.CodeOf(err))
	assert.Contains(t, err.Error(), "3 bytes of partial message buffered")
	assert.True(t, ft.aborted)
}

func TestConnectServerError(t *testing.T) {
	conn, ft := newTestConn(t,
		respond(msgErrorResponse(vexelerrors.CodeAuthentication, "no such user")),
	)
	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeAuthentication, vexelerrors.CodeOf(err))
	assert.True(t, ft.aborted)
}

func TestUnsupportedSASLMechanism(t *testing.T) {
	conn, ft := newTestConn(t,
		respond(msgAuthSASL("PLAIN", "SCRAM-SHA-1")),
	)
	err := conn.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeAuthentication, vexelerrors.CodeOf(err))

	// The failure happens before any authentication payload leaves the
	// client: only the handshake was ever sent.
	tags := sentTags(t, ft)
	require.Len(t, tags, 1)
	assert.Equal(t, wire.MsgClientHandshake, tags[0])
}
