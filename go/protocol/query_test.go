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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexeldb/vexel-go/go/codecs"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

func countTags(tags []wire.MessageType, want wire.MessageType) int {
	n := 0
	for _, tag := range tags {
		if tag == want {
			n++
		}
	}
	return n
}

func int64Description() []byte {
	return msgCommandDataDescription(
		wire.CardinalityMany, codecs.NullID, nil, codecs.IDInt64, int64Desc())
}

func TestExecuteCachesPreparedStatement(t *testing.T) {
	ctx := context.Background()
	conn, ft := connectedConn(t,
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			msgData(int64Row(1), int64Row(2)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
		respond(
			msgData(int64Row(3)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
	)

	result, err := conn.Execute(ctx, "select Numbers", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT", result.Status)
	assert.Equal(t, wire.CapabilityModifications, result.Capabilities)
	assert.Equal(t, []any{int64(1), int64(2)}, result.Rows.Values())

	// The second run of the same statement reuses the cached codecs:
	// no parse round trip this time.
	result, err = conn.Execute(ctx, "select Numbers", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, result.Rows.Values())

	tags := sentTags(t, ft)
	assert.Equal(t, 1, countTags(tags, wire.MsgParse))
	assert.Equal(t, 2, countTags(tags, wire.MsgExecute))
}

func TestExecuteRecoversFromStaleCodecs(t *testing.T) {
	ctx := context.Background()
	conn, ft := connectedConn(t,
		// First statement: prepared and executed as int64.
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			msgData(int64Row(1)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
		// Schema changed server-side: the optimistic execute comes back
		// with a fresh description instead of rows.
		respond(
			msgCommandDataDescription(
				wire.CardinalityMany, codecs.NullID, nil, codecs.IDString, strDesc()),
			msgReady(wire.TxStateNotInTransaction),
		),
		// The transparent retry with rebuilt codecs succeeds.
		respond(
			msgData([]byte("hello")),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
		// And the corrected entry is what later runs use.
		respond(
			msgData([]byte("again")),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
	)

	result, err := conn.Execute(ctx, "select Val", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, result.Rows.Values())

	result, err = conn.Execute(ctx, "select Val", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{"hello"}, result.Rows.Values())

	result, err = conn.Execute(ctx, "select Val", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{"again"}, result.Rows.Values())

	tags := sentTags(t, ft)
	assert.Equal(t, 1, countTags(tags, wire.MsgParse))
	// Three calls plus one transparent retry.
	assert.Equal(t, 4, countTags(tags, wire.MsgExecute))
}

func TestExecuteErrorHeldUntilSyncBoundary(t *testing.T) {
	ctx := context.Background()
	conn, _ := connectedConn(t,
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			msgErrorResponse(vexelerrors.CodeDivisionByZero, "division by zero"),
			msgReady(wire.TxStateNotInTransaction),
		),
		respond(msgCommandComplete("UPDATE"), msgReady(wire.TxStateNotInTransaction)),
	)

	_, err := conn.Execute(ctx, "select 1 // 0", nil, QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeDivisionByZero, vexelerrors.CodeOf(err))

	// The stream was drained to its boundary: the session stays usable.
	status, err := conn.ExecuteScript(ctx, "update Log set { seen := true }")
	require.NoError(t, err)
	assert.Equal(t, "UPDATE", status)
}

func TestPrepareErrorDrainsToBoundary(t *testing.T) {
	ctx := context.Background()
	conn, _ := connectedConn(t,
		respond(
			msgErrorResponse(vexelerrors.CodeEdgeQLSyntax, "unexpected token"),
			msgParameterStatus("warning_count", []byte("1")),
			msgReady(wire.TxStateNotInTransaction),
		),
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			msgData(int64Row(9)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
	)

	// The parse fails, but the trailing messages up to the ready marker
	// are still absorbed.
	_, err := conn.Execute(ctx, "selec Numbers", nil, QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeEdgeQLSyntax, vexelerrors.CodeOf(err))
	assert.Equal(t, []byte("1"), conn.ServerSetting("warning_count"))

	result, err := conn.Execute(ctx, "select Numbers", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(9)}, result.Rows.Values())
}

func TestExecuteDecodeFailureStillReachesBoundary(t *testing.T) {
	ctx := context.Background()
	conn, _ := connectedConn(t,
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			// Four bytes where the int64 decoder needs eight. The rows
			// after the bad one are skipped, not decoded.
			msgData([]byte{0, 0, 0, 1}, int64Row(2)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
		respond(
			msgData(int64Row(5)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
	)

	_, err := conn.Execute(ctx, "select Numbers", nil, QueryOptions{})
	require.Error(t, err)

	result, err := conn.Execute(ctx, "select Numbers", nil, QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(5)}, result.Rows.Values())
}

func TestExecuteExpectOneRejectsMultiCardinality(t *testing.T) {
	conn, ft := connectedConn(t,
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
	)

	_, err := conn.Execute(context.Background(), "select Numbers", nil,
		QueryOptions{ExpectOne: true})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeInterface, vexelerrors.CodeOf(err))

	// The cardinality contract fails before anything is executed.
	tags := sentTags(t, ft)
	assert.Equal(t, 1, countTags(tags, wire.MsgParse))
	assert.Equal(t, 0, countTags(tags, wire.MsgExecute))
}

func TestExecuteOptionsKeyTheCache(t *testing.T) {
	ctx := context.Background()
	conn, ft := connectedConn(t,
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			msgData(int64Row(1)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
		// Same text, different implicit limit: a separate prepared
		// statement.
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			msgData(int64Row(1)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
	)

	_, err := conn.Execute(ctx, "select Numbers", nil, QueryOptions{})
	require.NoError(t, err)
	_, err = conn.Execute(ctx, "select Numbers", nil, QueryOptions{ImplicitLimit: 100})
	require.NoError(t, err)

	tags := sentTags(t, ft)
	assert.Equal(t, 2, countTags(tags, wire.MsgParse))
}

func TestExecuteScript(t *testing.T) {
	conn, ft := connectedConn(t,
		respond(msgCommandComplete("CREATE"), msgReady(wire.TxStateNotInTransaction)),
	)

	status, err := conn.ExecuteScript(context.Background(),
		"create type Widget; create type Gadget;")
	require.NoError(t, err)
	assert.Equal(t, "CREATE", status)

	// The script message carries its own boundary: no sync follows it.
	tags := sentTags(t, ft)
	assert.Equal(t, wire.MsgExecuteScript, tags[len(tags)-1])
}

func TestExecuteScriptServerError(t *testing.T) {
	conn, _ := connectedConn(t,
		respond(
			msgErrorResponse(vexelerrors.CodeEdgeQLSyntax, "unexpected token"),
			msgReady(wire.TxStateNotInTransaction),
		),
		respond(msgCommandComplete("SELECT"), msgReady(wire.TxStateNotInTransaction)),
	)

	_, err := conn.ExecuteScript(context.Background(), "selec 1")
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeEdgeQLSyntax, vexelerrors.CodeOf(err))

	_, err = conn.ExecuteScript(context.Background(), "select 1")
	require.NoError(t, err)
}

func TestExecuteRejectedWhileNotIdle(t *testing.T) {
	conn, _ := newTestConn(t)
	_, err := conn.Execute(context.Background(), "select 1", nil, QueryOptions{})
	require.Error(t, err)
	assert.Equal(t, vexelerrors.CodeClientConnectionClosed, vexelerrors.CodeOf(err))
}

func TestSessionStateFollowsCommandComplete(t *testing.T) {
	ctx := context.Background()
	stateID := codecs.IDInt64 // any non-null id will do
	stateComplete := msg(wire.MsgCommandComplete, func(w *wire.WriteBuffer) {
		w.WriteUint16(0)
		w.WriteUint64(0)
		w.WriteString("CONFIGURE")
		w.WriteUUID(stateID)
		w.WriteLenBytes([]byte{1, 2, 3})
	})
	conn, ft := connectedConn(t,
		respond(stateComplete, msgReady(wire.TxStateNotInTransaction)),
		respond(int64Description(), msgReady(wire.TxStateNotInTransaction)),
		respond(
			msgData(int64Row(1)),
			msgCommandComplete("SELECT"),
			msgReady(wire.TxStateNotInTransaction),
		),
	)

	_, err := conn.ExecuteScript(ctx, "configure session set x := 1")
	require.NoError(t, err)

	// Later requests carry the updated state descriptor.
	_, err = conn.Execute(ctx, "select Numbers", nil, QueryOptions{})
	require.NoError(t, err)

	var parseMsg []byte
	for _, chunk := range ft.sent {
		if wire.MessageType(chunk[0]) == wire.MsgParse {
			parseMsg = chunk
		}
	}
	require.NotNil(t, parseMsg)
	r := wire.NewReader(parseMsg[5:])
	_, _ = r.ReadUint16() // annotations
	_, _ = r.ReadUint64() // capabilities
	_, _ = r.ReadUint64() // compilation flags
	_, _ = r.ReadUint64() // implicit limit
	_, _ = r.ReadUint8()  // output format
	_, _ = r.ReadUint8()  // expected cardinality
	_, err = r.ReadString()
	require.NoError(t, err)
	gotID, err := r.ReadUUID()
	require.NoError(t, err)
	gotData, err := r.ReadLenBytes()
	require.NoError(t, err)
	assert.Equal(t, stateID, gotID)
	assert.Equal(t, []byte{1, 2, 3}, gotData)
}
