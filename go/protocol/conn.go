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

// Package protocol implements the client side of the binary wire
// protocol: handshake and version negotiation, SCRAM authentication,
// statement preparation, optimistic execution with automatic
// re-describe recovery, script execution, and dump/restore framing.
//
// The engine is strictly single-flight: one request/response cycle at a
// time, with a single blocking suspension point between writing a
// request and reading its response. Concurrency and cancellation live
// behind the Transport.
package protocol

import (
	"context"

	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/cache"
	"github.com/vexeldb/vexel-go/go/codecs"
	"github.com/vexeldb/vexel-go/go/log"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// Protocol revisions this engine speaks. Servers offering anything below
// minProtocolVersion are rejected during the handshake.
var (
	protocolVersion    = wire.ProtocolVersion{Major: 1, Minor: 0}
	minProtocolVersion = wire.ProtocolVersion{Major: 0, Minor: 13}
)

// connState tracks where the engine is in its lifecycle.
type connState int

const (
	stateDisconnected connState = iota
	stateHandshaking
	stateAuthenticating
	stateIdle
	statePreparing
	stateExecuting
	stateDumping
	stateRestoring
	stateTerminated
	stateAborted
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateHandshaking:
		return "handshaking"
	case stateAuthenticating:
		return "authenticating"
	case stateIdle:
		return "idle"
	case statePreparing:
		return "preparing"
	case stateExecuting:
		return "executing"
	case stateDumping:
		return "dumping"
	case stateRestoring:
		return "restoring"
	case stateTerminated:
		return "terminated"
	case stateAborted:
		return "aborted"
	}
	return "unknown"
}

// ConnectParams identifies the user and database for one connection.
// Transport establishment (sockets, TLS, credential discovery) is the
// caller's concern.
type ConnectParams struct {
	User     string
	Password string
	Database string

	// ServerSettings are extra parameters sent verbatim during the
	// handshake.
	ServerSettings map[string]string
}

// Conn is the protocol engine for one logical connection.
type Conn struct {
	params    ConnectParams
	transport Transport

	rbuf wire.ReadBuffer
	wbuf *wire.WriteBuffer

	registry   *codecs.Registry
	queryCache *cache.QueryCache

	state          connState
	version        wire.ProtocolVersion
	txState        wire.TransactionState
	secretKey      []byte
	serverSettings map[string][]byte

	// Session state sent with every parse/execute. stateTypeID is the
	// zero uuid until the server announces a state descriptor.
	stateTypeID uuid.UUID
	stateData   []byte

	// pendingErr collects mid-stream failures so the response stream can
	// be drained to its sync point before the error surfaces.
	pendingErr error
}

// NewConn builds an engine over the given transport. The registry and
// query cache are owned by the caller so they can be shared by a pool
// wrapper; pass nil for connection-private ones.
func NewConn(transport Transport, params ConnectParams, registry *codecs.Registry, queryCache *cache.QueryCache) *Conn {
	if registry == nil {
		registry = codecs.NewRegistry()
	}
	if queryCache == nil {
		queryCache = cache.NewQueryCache(0)
	}
	return &Conn{
		params:         params,
		transport:      transport,
		wbuf:           wire.NewWriteBuffer(),
		registry:       registry,
		queryCache:     queryCache,
		state:          stateDisconnected,
		version:        protocolVersion,
		txState:        wire.TxStateNotInTransaction,
		serverSettings: make(map[string][]byte),
	}
}

// ProtocolVersion returns the negotiated protocol revision.
func (c *Conn) ProtocolVersion() wire.ProtocolVersion {
	return c.version
}

// TransactionState returns the transaction status from the last ready
// marker. The engine only records it; short-circuiting statements inside
// a failed transaction is the caller's call.
func (c *Conn) TransactionState() wire.TransactionState {
	return c.txState
}

// ServerSetting returns the last value the server reported for a
// parameter, or nil.
func (c *Conn) ServerSetting(name string) []byte {
	return c.serverSettings[name]
}

// SetState installs the session state blob sent with every statement.
// The id must be known to the shared internal registry, which is
// populated from the server's state descriptor announcements.
func (c *Conn) SetState(id uuid.UUID, data []byte) {
	c.stateTypeID = id
	c.stateData = data
}

// Connect drives the handshake and authentication exchange until the
// server signals it is ready for commands.
func (c *Conn) Connect(ctx context.Context) error {
	if c.state != stateDisconnected {
		return vexelerrors.New(vexelerrors.CodeInternalClient,
			"connect called in state %v", c.state)
	}
	c.state = stateHandshaking

	c.wbuf.BeginMessage(wire.MsgClientHandshake).
		WriteUint16(protocolVersion.Major).
		WriteUint16(protocolVersion.Minor)
	params := map[string]string{
		"user":     c.params.User,
		"database": c.params.Database,
	}
	for k, v := range c.params.ServerSettings {
		params[k] = v
	}
	c.wbuf.WriteUint16(uint16(len(params)))
	for k, v := range params {
		c.wbuf.WriteString(k).WriteString(v)
	}
	c.wbuf.WriteUint16(0) // no extensions
	c.wbuf.EndMessage()
	if err := c.flushWrites(ctx); err != nil {
		return err
	}

	for {
		if err := c.nextMessage(ctx); err != nil {
			return err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgServerHandshake:
			if err := c.handleServerHandshake(); err != nil {
				return c.abortWith(err)
			}
		case wire.MsgAuthentication:
			c.state = stateAuthenticating
			if err := c.handleAuthentication(ctx); err != nil {
				return c.abortWith(err)
			}
		case wire.MsgReadyForCommand:
			if err := c.handleReadyForCommand(); err != nil {
				return c.abortWith(err)
			}
			c.state = stateIdle
			return nil
		case wire.MsgErrorResponse:
			srvErr, err := c.decodeErrorResponse()
			if err != nil {
				return c.abortWith(err)
			}
			return c.abortWith(srvErr)
		default:
			if err := c.handleHousekeeping(); err != nil {
				return c.abortWith(err)
			}
		}
	}
}

// handleServerHandshake processes a version-negotiation reply: the
// server could not accept the proposed revision and offers its own.
func (c *Conn) handleServerHandshake() error {
	major, err := c.rbuf.ReadUint16()
	if err != nil {
		return err
	}
	minor, err := c.rbuf.ReadUint16()
	if err != nil {
		return err
	}
	offered := wire.ProtocolVersion{Major: major, Minor: minor}

	nExt, err := c.rbuf.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(nExt); i++ {
		if _, err := c.rbuf.ReadString(); err != nil {
			return err
		}
		if err := c.skipAnnotations(); err != nil {
			return err
		}
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return err
	}

	if offered.Before(minProtocolVersion) || protocolVersion.Before(offered) {
		return vexelerrors.New(vexelerrors.CodeUnsupportedProtocolVersion,
			"server offered unsupported protocol version %v (supported: %v through %v)",
			offered, minProtocolVersion, protocolVersion)
	}
	if offered != c.version {
		log.InfoS("downgrading protocol version", "offered", offered.String(), "proposed", c.version.String())
	}
	c.version = offered
	return nil
}

// handleReadyForCommand records the transaction status from the ready
// marker that ends every exchange.
func (c *Conn) handleReadyForCommand() error {
	if err := c.skipAnnotations(); err != nil {
		return err
	}
	tx, err := c.rbuf.ReadUint8()
	if err != nil {
		return err
	}
	c.txState = wire.TransactionState(tx)
	return c.rbuf.FinishMessage()
}

// handleHousekeeping consumes the message types the server may send at
// any point: parameter status, key data, state descriptors, and log
// messages. Unexpected tags are fatal.
func (c *Conn) handleHousekeeping() error {
	switch c.rbuf.MessageType() {
	case wire.MsgParameterStatus:
		name, err := c.rbuf.ReadString()
		if err != nil {
			return err
		}
		value, err := c.rbuf.ReadLenBytes()
		if err != nil {
			return err
		}
		c.serverSettings[name] = value
		return c.rbuf.FinishMessage()

	case wire.MsgServerKeyData:
		key, err := c.rbuf.ReadBytes(32)
		if err != nil {
			return err
		}
		c.secretKey = append([]byte(nil), key...)
		return c.rbuf.FinishMessage()

	case wire.MsgStateDataDescription:
		return c.handleStateDescription()

	case wire.MsgLogMessage:
		return c.handleLogMessage()
	}

	c.rbuf.DiscardMessage()
	return vexelerrors.New(vexelerrors.CodeBinaryProtocol,
		"unexpected message %v in state %v", c.rbuf.MessageType(), c.state)
}

// handleStateDescription builds the session-state codec into the shared
// internal registry.
func (c *Conn) handleStateDescription() error {
	id, err := c.rbuf.ReadUUID()
	if err != nil {
		return err
	}
	desc, err := c.rbuf.ReadLenBytes()
	if err != nil {
		return err
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return err
	}
	reg := codecs.InternalRegistry()
	if !reg.HasCodec(id) {
		if _, err := reg.BuildCodec(desc, c.version); err != nil {
			return err
		}
	}
	return nil
}

// handleLogMessage forwards a server log notice to the log package.
func (c *Conn) handleLogMessage() error {
	sev, err := c.rbuf.ReadUint8()
	if err != nil {
		return err
	}
	code, err := c.rbuf.ReadUint32()
	if err != nil {
		return err
	}
	text, err := c.rbuf.ReadString()
	if err != nil {
		return err
	}
	if err := c.skipAnnotations(); err != nil {
		return err
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return err
	}
	// Notice severities: 20 debug, 40 info, 60 notice, 80 warning.
	switch {
	case sev >= 80:
		log.Warningf("server: %s (%s)", text, vexelerrors.Code(code).Name())
	case sev >= 40:
		log.Infof("server: %s", text)
	default:
		if log.V(1) {
			log.Infof("server: %s", text)
		}
	}
	return nil
}

// decodeErrorResponse turns an error-response payload into a typed
// server error. A non-nil second return means the payload itself was
// malformed, which is fatal.
func (c *Conn) decodeErrorResponse() (*vexelerrors.Error, error) {
	sev, err := c.rbuf.ReadUint8()
	if err != nil {
		return nil, err
	}
	code, err := c.rbuf.ReadUint32()
	if err != nil {
		return nil, err
	}
	msg, err := c.rbuf.ReadString()
	if err != nil {
		return nil, err
	}
	nAttrs, err := c.rbuf.ReadUint16()
	if err != nil {
		return nil, err
	}
	attrs := make(map[uint16][]byte, nAttrs)
	for i := 0; i < int(nAttrs); i++ {
		key, err := c.rbuf.ReadUint16()
		if err != nil {
			return nil, err
		}
		val, err := c.rbuf.ReadLenBytes()
		if err != nil {
			return nil, err
		}
		attrs[key] = val
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return nil, err
	}

	e := vexelerrors.New(vexelerrors.RemapLegacyCode(vexelerrors.Code(code)), "%s", msg)
	e.Severity = vexelerrors.Severity(sev)
	e.Attributes = attrs
	return e, nil
}

// skipAnnotations consumes a name/value annotation block without
// interpreting it.
func (c *Conn) skipAnnotations() error {
	n, err := c.rbuf.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(n); i++ {
		if _, err := c.rbuf.ReadString(); err != nil {
			return err
		}
		if _, err := c.rbuf.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

// nextMessage blocks until a complete message is framed. This is the
// engine's only suspension point.
func (c *Conn) nextMessage(ctx context.Context) error {
	for {
		ok, err := c.rbuf.TakeMessage()
		if err != nil {
			return c.abortWith(err)
		}
		if ok {
			return nil
		}
		data, err := c.transport.AwaitMoreData(ctx)
		if err != nil {
			return c.abortWith(vexelerrors.Wrap(vexelerrors.CodeClientConnectionClosed,
				err, "connection lost while awaiting data (%d bytes of partial message buffered)",
				c.rbuf.Buffered()))
		}
		c.rbuf.Feed(data)
	}
}

// flushWrites sends everything accumulated in the write buffer.
func (c *Conn) flushWrites(ctx context.Context) error {
	data := c.wbuf.Unwrap()
	c.wbuf.Reset()
	if len(data) == 0 {
		return nil
	}
	if err := c.transport.Send(ctx, data); err != nil {
		return c.abortWith(vexelerrors.Wrap(vexelerrors.CodeClientConnectionClosed,
			err, "connection lost while sending"))
	}
	return nil
}

// writeSync appends a sync marker, the boundary every request cycle ends
// with.
func (c *Conn) writeSync() {
	c.wbuf.BeginMessage(wire.MsgSync).EndMessage()
}

// collectErr records the first statement-scoped error of the current
// exchange; draining continues so the stream stays framed.
func (c *Conn) collectErr(err error) {
	if c.pendingErr == nil {
		c.pendingErr = err
	}
}

// takePendingErr returns and clears the collected error.
func (c *Conn) takePendingErr() error {
	err := c.pendingErr
	c.pendingErr = nil
	return err
}

// drainUntilReady consumes messages up to the ready marker, discarding
// payloads and collecting any error response. Used once a statement has
// failed mid-stream: the sync boundary must still be reached.
func (c *Conn) drainUntilReady(ctx context.Context) error {
	for {
		if err := c.nextMessage(ctx); err != nil {
			return err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgReadyForCommand:
			if err := c.handleReadyForCommand(); err != nil {
				return c.abortWith(err)
			}
			c.state = stateIdle
			return nil
		case wire.MsgErrorResponse:
			srvErr, err := c.decodeErrorResponse()
			if err != nil {
				return c.abortWith(err)
			}
			c.collectErr(srvErr)
		case wire.MsgParameterStatus, wire.MsgServerKeyData,
			wire.MsgStateDataDescription, wire.MsgLogMessage:
			if err := c.handleHousekeeping(); err != nil {
				return c.abortWith(err)
			}
		default:
			c.rbuf.DiscardMessage()
		}
	}
}

// Terminate sends the best-effort goodbye and closes the transport.
// Failure to deliver it is not an error.
func (c *Conn) Terminate(ctx context.Context) {
	if c.state == stateTerminated || c.state == stateAborted {
		return
	}
	c.wbuf.Reset()
	c.wbuf.BeginMessage(wire.MsgTerminate).EndMessage()
	data := c.wbuf.Unwrap()
	c.wbuf.Reset()
	if err := c.transport.Send(ctx, data); err != nil {
		log.Infof("terminate not delivered: %v", err)
	}
	c.transport.Abort()
	c.state = stateTerminated
}

// Abort forcibly tears the connection down. Any in-flight wait fails
// with a disconnection error; the connection cannot be reused.
func (c *Conn) Abort() {
	c.transport.Abort()
	c.state = stateAborted
}

// abortWith moves the engine to the absorbing aborted state and returns
// the cause.
func (c *Conn) abortWith(err error) error {
	if c.state != stateAborted && c.state != stateTerminated {
		c.transport.Abort()
		c.state = stateAborted
	}
	return err
}
