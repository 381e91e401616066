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

	"github.com/vexeldb/vexel-go/go/log"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// handleAuthentication processes the authentication request that is the
// current message. Either the server accepts the connection outright or
// it starts a SASL exchange. Any failure here is fatal; the engine never
// retries credentials.
func (c *Conn) handleAuthentication(ctx context.Context) error {
	status, err := c.rbuf.ReadUint32()
	if err != nil {
		return err
	}
	switch status {
	case wire.AuthStatusOK:
		return c.rbuf.FinishMessage()

	case wire.AuthStatusSASL:
		nMethods, err := c.rbuf.ReadUint32()
		if err != nil {
			return err
		}
		methods := make([]string, 0, nMethods)
		for i := 0; i < int(nMethods); i++ {
			m, err := c.rbuf.ReadString()
			if err != nil {
				return err
			}
			methods = append(methods, m)
		}
		if err := c.rbuf.FinishMessage(); err != nil {
			return err
		}
		supported := false
		for _, m := range methods {
			if m == saslMechanism {
				supported = true
				break
			}
		}
		// Nothing has been sent yet; an unsupported mechanism list fails
		// right here.
		if !supported {
			return authError("no supported SASL mechanism; server offers %v", methods)
		}
		log.Infof("authenticating with %s", saslMechanism)
		return c.authenticateSASL(ctx)

	default:
		c.rbuf.DiscardMessage()
		return vexelerrors.New(vexelerrors.CodeBinaryProtocol,
			"unexpected authentication status 0x%x", status)
	}
}

// authenticateSASL runs the SCRAM challenge/response exchange.
func (c *Conn) authenticateSASL(ctx context.Context) error {
	scram, err := newScramClient(c.params.User, c.params.Password)
	if err != nil {
		return err
	}

	c.wbuf.BeginMessage(wire.MsgAuthSASLInitial).
		WriteString(saslMechanism).
		WriteLenBytes(scram.ClientFirst()).
		EndMessage()
	if err := c.flushWrites(ctx); err != nil {
		return err
	}

	serverFirst, err := c.awaitSASLData(ctx, wire.AuthStatusSASLContinue)
	if err != nil {
		return err
	}
	final, err := scram.ClientFinal(serverFirst)
	if err != nil {
		return err
	}

	c.wbuf.BeginMessage(wire.MsgAuthSASLResponse).
		WriteLenBytes(final).
		EndMessage()
	if err := c.flushWrites(ctx); err != nil {
		return err
	}

	serverFinal, err := c.awaitSASLData(ctx, wire.AuthStatusSASLFinal)
	if err != nil {
		return err
	}
	if err := scram.VerifyServerFinal(serverFinal); err != nil {
		return err
	}

	// The exchange ends with an explicit OK.
	status, err := c.awaitAuthStatus(ctx)
	if err != nil {
		return err
	}
	if status != wire.AuthStatusOK {
		c.rbuf.DiscardMessage()
		return authError("expected authentication OK, got status 0x%x", status)
	}
	return c.rbuf.FinishMessage()
}

// awaitSASLData waits for the next authentication message, checks its
// status, and returns its SASL payload.
func (c *Conn) awaitSASLData(ctx context.Context, want uint32) ([]byte, error) {
	status, err := c.awaitAuthStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status != want {
		c.rbuf.DiscardMessage()
		return nil, authError("expected SASL status 0x%x, got 0x%x", want, status)
	}
	data, err := c.rbuf.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return nil, err
	}
	return data, nil
}

// awaitAuthStatus blocks until the next authentication message and reads
// its status word. Housekeeping messages are absorbed; an error response
// during authentication is fatal.
func (c *Conn) awaitAuthStatus(ctx context.Context) (uint32, error) {
	for {
		if err := c.nextMessage(ctx); err != nil {
			return 0, err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgAuthentication:
			return c.rbuf.ReadUint32()
		case wire.MsgErrorResponse:
			srvErr, err := c.decodeErrorResponse()
			if err != nil {
				return 0, err
			}
			return 0, srvErr
		default:
			if err := c.handleHousekeeping(); err != nil {
				return 0, err
			}
		}
	}
}
