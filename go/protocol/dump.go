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

	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// DumpSink receives the database dump stream. Block payloads are opaque
// to this layer; the sink owns persistence and ordering.
type DumpSink interface {
	WriteHeader(data []byte) error
	WriteBlock(data []byte) error
}

// RestoreSource supplies the blocks of a previously taken dump.
// NextBlock returns nil data once the stream is exhausted.
type RestoreSource interface {
	NextBlock() ([]byte, error)
}

// Dump streams the database contents into sink: one header, then zero
// or more blocks, then the completion marker.
func (c *Conn) Dump(ctx context.Context, sink DumpSink) error {
	if err := c.requireIdle("dump"); err != nil {
		return err
	}
	c.state = stateDumping

	c.wbuf.BeginMessage(wire.MsgDump).
		WriteUint16(0). // no annotations
		EndMessage()
	c.writeSync()
	if err := c.flushWrites(ctx); err != nil {
		return err
	}

	sawHeader := false
	for {
		if err := c.nextMessage(ctx); err != nil {
			return err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgDumpHeader:
			data := c.rbuf.Rest()
			if err := c.rbuf.FinishMessage(); err != nil {
				return c.abortWith(err)
			}
			sawHeader = true
			if err := sink.WriteHeader(data); err != nil {
				c.collectErr(vexelerrors.Wrap(vexelerrors.CodeInterface,
					err, "dump sink rejected header"))
				if err := c.drainUntilReady(ctx); err != nil {
					return err
				}
				return c.takePendingErr()
			}

		case wire.MsgDumpBlock:
			data := c.rbuf.Rest()
			if err := c.rbuf.FinishMessage(); err != nil {
				return c.abortWith(err)
			}
			if !sawHeader {
				return c.abortWith(vexelerrors.New(vexelerrors.CodeBinaryProtocol,
					"dump block before dump header"))
			}
			if err := sink.WriteBlock(data); err != nil {
				c.collectErr(vexelerrors.Wrap(vexelerrors.CodeInterface,
					err, "dump sink rejected block"))
				if err := c.drainUntilReady(ctx); err != nil {
					return err
				}
				return c.takePendingErr()
			}

		case wire.MsgCommandComplete:
			if err := c.handleCommandComplete(&Result{}); err != nil {
				return c.abortWith(err)
			}

		case wire.MsgErrorResponse:
			srvErr, err := c.decodeErrorResponse()
			if err != nil {
				return c.abortWith(err)
			}
			c.collectErr(srvErr)
			if err := c.drainUntilReady(ctx); err != nil {
				return err
			}
			return c.takePendingErr()

		case wire.MsgReadyForCommand:
			if err := c.handleReadyForCommand(); err != nil {
				return c.abortWith(err)
			}
			c.state = stateIdle
			return c.takePendingErr()

		default:
			if err := c.handleHousekeeping(); err != nil {
				return c.abortWith(err)
			}
		}
	}
}

// Restore replays a dump: the header goes with the restore request, then
// blocks are shuttled from source until it is exhausted, then the end
// marker. Unlike other operations, restore has no sync boundary; the
// server answers the end marker with a completion or an error, and a
// mid-stream failure leaves the session unusable.
func (c *Conn) Restore(ctx context.Context, header []byte, source RestoreSource) error {
	if err := c.requireIdle("restore"); err != nil {
		return err
	}
	c.state = stateRestoring

	c.wbuf.BeginMessage(wire.MsgRestore).
		WriteUint16(0). // no annotations
		WriteUint16(1). // jobs
		WriteRaw(header).
		EndMessage()
	if err := c.flushWrites(ctx); err != nil {
		return err
	}

	if err := c.awaitRestoreReady(ctx); err != nil {
		return err
	}

	for {
		block, err := source.NextBlock()
		if err != nil {
			return c.abortWith(vexelerrors.Wrap(vexelerrors.CodeInterface,
				err, "restore source failed"))
		}
		if block == nil {
			break
		}
		c.wbuf.BeginMessage(wire.MsgRestoreBlock).
			WriteRaw(block).
			EndMessage()
		if err := c.flushWrites(ctx); err != nil {
			return err
		}
	}

	c.wbuf.BeginMessage(wire.MsgRestoreEOF).EndMessage()
	if err := c.flushWrites(ctx); err != nil {
		return err
	}

	for {
		if err := c.nextMessage(ctx); err != nil {
			return err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgCommandComplete:
			if err := c.handleCommandComplete(&Result{}); err != nil {
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

// awaitRestoreReady waits for the server to accept the restore header.
func (c *Conn) awaitRestoreReady(ctx context.Context) error {
	for {
		if err := c.nextMessage(ctx); err != nil {
			return err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgRestoreReady:
			if err := c.skipAnnotations(); err != nil {
				return c.abortWith(err)
			}
			if _, err := c.rbuf.ReadUint16(); err != nil { // jobs
				return c.abortWith(err)
			}
			if err := c.rbuf.FinishMessage(); err != nil {
				return c.abortWith(err)
			}
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
