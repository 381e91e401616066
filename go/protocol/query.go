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

	"github.com/google/uuid"

	"github.com/vexeldb/vexel-go/go/cache"
	"github.com/vexeldb/vexel-go/go/codecs"
	"github.com/vexeldb/vexel-go/go/log"
	"github.com/vexeldb/vexel-go/go/types"
	"github.com/vexeldb/vexel-go/go/vexelerrors"
	"github.com/vexeldb/vexel-go/go/wire"
)

// describeAspectDataDescription selects the command data description
// aspect in a describe request.
const describeAspectDataDescription = 0x54

// maxExecuteAttempts bounds the stale-codec recovery loop. One mismatch
// is expected after a schema change; a second one with freshly built
// codecs means the server is misbehaving.
const maxExecuteAttempts = 3

// QueryOptions carries the per-statement execution options that, with
// the query text, form the cache identity of a statement.
type QueryOptions struct {
	OutputFormat    wire.OutputFormat
	ExpectOne       bool
	ImplicitLimit   uint64
	InlineTypenames bool
	InlineTypeids   bool

	// AllowedCapabilities restricts what the statement may do; zero
	// means unrestricted.
	AllowedCapabilities wire.Capability
}

func (o QueryOptions) cacheKey(query string) cache.QueryKey {
	return cache.QueryKey{
		Query:           query,
		OutputFormat:    o.outputFormat(),
		ImplicitLimit:   o.ImplicitLimit,
		InlineTypenames: o.InlineTypenames,
		InlineTypeids:   o.InlineTypeids,
		ExpectOne:       o.ExpectOne,
	}
}

func (o QueryOptions) outputFormat() wire.OutputFormat {
	if o.OutputFormat == 0 {
		return wire.OutputFormatBinary
	}
	return o.OutputFormat
}

func (o QueryOptions) capabilities() wire.Capability {
	if o.AllowedCapabilities == 0 {
		return wire.CapabilityAll
	}
	return o.AllowedCapabilities
}

func (o QueryOptions) expectedCardinality() wire.Cardinality {
	if o.ExpectOne {
		return wire.CardinalityAtMostOne
	}
	return wire.CardinalityMany
}

func (o QueryOptions) compilationFlags() wire.CompilationFlag {
	var flags wire.CompilationFlag
	if o.InlineTypenames {
		flags |= wire.CompilationInjectOutputTypeNames
	}
	if o.InlineTypeids {
		flags |= wire.CompilationInjectOutputTypeIDs
	}
	return flags
}

// Result is the outcome of one executed statement.
type Result struct {
	Rows         *types.Set
	Status       string
	Capabilities wire.Capability
}

// commandDescription is the parsed body of a command data description
// message.
type commandDescription struct {
	capabilities wire.Capability
	cardinality  wire.Cardinality
	inID, outID  uuid.UUID
	inDesc       []byte
	outDesc      []byte
}

// Execute runs one statement. On a query cache hit it goes straight to
// an optimistic execute with the cached codecs; a miss costs a prepare
// round trip first. Either way a stale cached codec is recovered
// transparently: the server answers with a fresh description, the cache
// is corrected, and the statement is re-issued.
func (c *Conn) Execute(ctx context.Context, query string, args any, opts QueryOptions) (*Result, error) {
	if err := c.requireIdle("execute"); err != nil {
		return nil, err
	}

	key := opts.cacheKey(query)
	entry, cached := c.queryCache.Get(key)
	if !cached {
		var err error
		entry, err = c.prepare(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		if err := c.checkCardinality(entry, opts); err != nil {
			return nil, err
		}
		c.queryCache.Set(key, entry)
	}

	for attempt := 1; ; attempt++ {
		result, redescribe, err := c.executeOnce(ctx, query, args, opts, entry)
		if err != nil {
			return nil, err
		}
		if redescribe == nil {
			return result, nil
		}
		if attempt >= maxExecuteAttempts {
			return nil, vexelerrors.New(vexelerrors.CodeBinaryProtocol,
				"server kept rejecting freshly described codecs after %d attempts", attempt)
		}
		log.InfoS("cached statement codecs are stale, re-describing", "attempt", attempt)
		entry, err = c.entryFromDescription(*redescribe)
		if err != nil {
			return nil, err
		}
		if err := c.checkCardinality(entry, opts); err != nil {
			return nil, err
		}
		c.queryCache.Set(key, entry)
	}
}

// prepare sends a parse request and builds the statement's codecs from
// the returned description, issuing a follow-up describe when the
// server omitted descriptors for ids the registry does not know.
func (c *Conn) prepare(ctx context.Context, query string, opts QueryOptions) (cache.QueryEntry, error) {
	c.state = statePreparing

	c.wbuf.BeginMessage(wire.MsgParse).
		WriteUint16(0). // no annotations
		WriteUint64(uint64(opts.capabilities())).
		WriteUint64(uint64(opts.compilationFlags())).
		WriteUint64(opts.ImplicitLimit).
		WriteUint8(uint8(opts.outputFormat())).
		WriteUint8(uint8(opts.expectedCardinality())).
		WriteString(query).
		WriteUUID(c.stateTypeID).
		WriteLenBytes(c.stateData).
		EndMessage()
	c.writeSync()
	if err := c.flushWrites(ctx); err != nil {
		return cache.QueryEntry{}, err
	}

	desc, err := c.awaitDescription(ctx)
	if err != nil {
		return cache.QueryEntry{}, err
	}

	if c.needsDescribe(*desc) {
		desc, err = c.describe(ctx)
		if err != nil {
			return cache.QueryEntry{}, err
		}
	}
	return c.entryFromDescription(*desc)
}

// describe asks for the full data description of the last parsed
// statement.
func (c *Conn) describe(ctx context.Context) (*commandDescription, error) {
	c.wbuf.BeginMessage(wire.MsgDescribeStatement).
		WriteUint16(0). // no annotations
		WriteUint8(describeAspectDataDescription).
		WriteLenBytes(nil). // unnamed statement
		EndMessage()
	c.writeSync()
	if err := c.flushWrites(ctx); err != nil {
		return nil, err
	}
	return c.awaitDescription(ctx)
}

// awaitDescription drains one exchange expecting a command data
// description before the ready marker.
func (c *Conn) awaitDescription(ctx context.Context) (*commandDescription, error) {
	var desc *commandDescription
	for {
		if err := c.nextMessage(ctx); err != nil {
			return nil, err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgCommandDataDescription:
			d, err := c.parseCommandDataDescription()
			if err != nil {
				return nil, c.abortWith(err)
			}
			desc = d
		case wire.MsgErrorResponse:
			srvErr, err := c.decodeErrorResponse()
			if err != nil {
				return nil, c.abortWith(err)
			}
			c.collectErr(srvErr)
			if err := c.drainUntilReady(ctx); err != nil {
				return nil, err
			}
			return nil, c.takePendingErr()
		case wire.MsgReadyForCommand:
			if err := c.handleReadyForCommand(); err != nil {
				return nil, c.abortWith(err)
			}
			c.state = stateIdle
			if desc == nil {
				return nil, c.abortWith(vexelerrors.New(vexelerrors.CodeBinaryProtocol,
					"server sent no command data description"))
			}
			return desc, nil
		default:
			if err := c.handleHousekeeping(); err != nil {
				return nil, c.abortWith(err)
			}
		}
	}
}

func (c *Conn) parseCommandDataDescription() (*commandDescription, error) {
	if err := c.skipAnnotations(); err != nil {
		return nil, err
	}
	capabilities, err := c.rbuf.ReadUint64()
	if err != nil {
		return nil, err
	}
	card, err := c.rbuf.ReadUint8()
	if err != nil {
		return nil, err
	}
	inID, err := c.rbuf.ReadUUID()
	if err != nil {
		return nil, err
	}
	inDesc, err := c.rbuf.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	outID, err := c.rbuf.ReadUUID()
	if err != nil {
		return nil, err
	}
	outDesc, err := c.rbuf.ReadLenBytes()
	if err != nil {
		return nil, err
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return nil, err
	}
	return &commandDescription{
		capabilities: wire.Capability(capabilities),
		cardinality:  wire.Cardinality(card),
		inID:         inID,
		outID:        outID,
		inDesc:       inDesc,
		outDesc:      outDesc,
	}, nil
}

// needsDescribe reports whether the description references type ids the
// registry cannot resolve and carries no descriptors to build them from.
func (c *Conn) needsDescribe(d commandDescription) bool {
	if !c.registry.HasCodec(d.inID) && len(d.inDesc) == 0 {
		return true
	}
	if !c.registry.HasCodec(d.outID) && len(d.outDesc) == 0 {
		return true
	}
	return false
}

// entryFromDescription resolves or builds both codecs and packages them
// as a cache entry.
func (c *Conn) entryFromDescription(d commandDescription) (cache.QueryEntry, error) {
	in, err := c.resolveCodec(d.inID, d.inDesc)
	if err != nil {
		return cache.QueryEntry{}, err
	}
	out, err := c.resolveCodec(d.outID, d.outDesc)
	if err != nil {
		return cache.QueryEntry{}, err
	}
	return cache.QueryEntry{
		Cardinality:  d.cardinality,
		In:           in,
		Out:          out,
		Capabilities: d.capabilities,
	}, nil
}

func (c *Conn) resolveCodec(id uuid.UUID, desc []byte) (codecs.Codec, error) {
	if c.registry.HasCodec(id) {
		return c.registry.GetCodec(id)
	}
	if len(desc) == 0 {
		return nil, vexelerrors.New(vexelerrors.CodeTypeSpecNotFound,
			"no descriptor available for type id %v", id)
	}
	return c.registry.BuildCodec(desc, c.version)
}

// checkCardinality enforces the caller's singleton expectation against
// the server's declared cardinality before anything is executed.
func (c *Conn) checkCardinality(entry cache.QueryEntry, opts QueryOptions) error {
	if !opts.ExpectOne {
		return nil
	}
	if entry.NoResult() {
		return vexelerrors.New(vexelerrors.CodeInterface,
			"statement does not return data, but one row was expected")
	}
	if entry.Cardinality.IsMulti() {
		return vexelerrors.New(vexelerrors.CodeInterface,
			"statement may return more than one row, but at most one was expected")
	}
	return nil
}

// executeOnce performs one execute round trip. A non-nil description in
// the return means the server rejected the supplied codec ids and the
// caller must rebuild and retry.
func (c *Conn) executeOnce(ctx context.Context, query string, args any, opts QueryOptions, entry cache.QueryEntry) (*Result, *commandDescription, error) {
	// Arguments are encoded up front so a bad argument costs no round
	// trip and leaves nothing half-written.
	argBuf := wire.NewWriteBuffer()
	if err := entry.In.Encode(argBuf, args); err != nil {
		return nil, nil, err
	}

	c.state = stateExecuting
	c.wbuf.BeginMessage(wire.MsgExecute).
		WriteUint16(0). // no annotations
		WriteUint64(uint64(opts.capabilities())).
		WriteUint64(uint64(opts.compilationFlags())).
		WriteUint64(opts.ImplicitLimit).
		WriteUint8(uint8(opts.outputFormat())).
		WriteUint8(uint8(opts.expectedCardinality())).
		WriteString(query).
		WriteUUID(c.stateTypeID).
		WriteLenBytes(c.stateData).
		WriteUUID(entry.In.ID()).
		WriteUUID(entry.Out.ID()).
		WriteRaw(argBuf.Unwrap()).
		EndMessage()
	c.writeSync()
	if err := c.flushWrites(ctx); err != nil {
		return nil, nil, err
	}

	result := &Result{Rows: types.NewSet(nil)}
	var redescribe *commandDescription
	for {
		if err := c.nextMessage(ctx); err != nil {
			return nil, nil, err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgData:
			if err := c.decodeDataMessage(entry.Out, result.Rows); err != nil {
				return nil, nil, err
			}

		case wire.MsgCommandDataDescription:
			d, err := c.parseCommandDataDescription()
			if err != nil {
				return nil, nil, c.abortWith(err)
			}
			redescribe = d

		case wire.MsgCommandComplete:
			if err := c.handleCommandComplete(result); err != nil {
				return nil, nil, c.abortWith(err)
			}

		case wire.MsgErrorResponse:
			srvErr, err := c.decodeErrorResponse()
			if err != nil {
				return nil, nil, c.abortWith(err)
			}
			c.collectErr(srvErr)

		case wire.MsgReadyForCommand:
			if err := c.handleReadyForCommand(); err != nil {
				return nil, nil, c.abortWith(err)
			}
			c.state = stateIdle
			if err := c.takePendingErr(); err != nil {
				return nil, nil, err
			}
			return result, redescribe, nil

		default:
			if err := c.handleHousekeeping(); err != nil {
				return nil, nil, c.abortWith(err)
			}
		}
	}
}

// decodeDataMessage decodes the rows of one data message. A decode
// failure is collected, not raised: remaining messages must still be
// consumed so the stream reaches its sync point correctly framed.
func (c *Conn) decodeDataMessage(out codecs.Codec, rows *types.Set) error {
	n, err := c.rbuf.ReadUint16()
	if err != nil {
		return c.abortWith(err)
	}
	for i := 0; i < int(n); i++ {
		data, err := c.rbuf.ReadLenBytes()
		if err != nil {
			return c.abortWith(err)
		}
		if c.pendingErr != nil {
			continue
		}
		row, err := codecs.DecodeExact(out, data)
		if err != nil {
			c.collectErr(err)
			continue
		}
		rows.Append(row)
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return c.abortWith(err)
	}
	return nil
}

// handleCommandComplete records the completion status and any updated
// session state the server attached to it.
func (c *Conn) handleCommandComplete(result *Result) error {
	if err := c.skipAnnotations(); err != nil {
		return err
	}
	capabilities, err := c.rbuf.ReadUint64()
	if err != nil {
		return err
	}
	status, err := c.rbuf.ReadString()
	if err != nil {
		return err
	}
	stateID, err := c.rbuf.ReadUUID()
	if err != nil {
		return err
	}
	stateData, err := c.rbuf.ReadLenBytes()
	if err != nil {
		return err
	}
	if err := c.rbuf.FinishMessage(); err != nil {
		return err
	}
	result.Status = status
	result.Capabilities = wire.Capability(capabilities)
	if stateID != codecs.NullID {
		c.stateTypeID = stateID
		c.stateData = stateData
	}
	return nil
}

// ExecuteScript runs a statement batch with no parameters and no result
// rows, returning the completion status.
func (c *Conn) ExecuteScript(ctx context.Context, script string) (string, error) {
	if err := c.requireIdle("execute script"); err != nil {
		return "", err
	}
	c.state = stateExecuting

	c.wbuf.BeginMessage(wire.MsgExecuteScript).
		WriteUint16(0). // no annotations
		WriteString(script).
		EndMessage()
	if err := c.flushWrites(ctx); err != nil {
		return "", err
	}

	var status string
	for {
		if err := c.nextMessage(ctx); err != nil {
			return "", err
		}
		switch c.rbuf.MessageType() {
		case wire.MsgCommandComplete:
			result := &Result{}
			if err := c.handleCommandComplete(result); err != nil {
				return "", c.abortWith(err)
			}
			status = result.Status

		case wire.MsgErrorResponse:
			srvErr, err := c.decodeErrorResponse()
			if err != nil {
				return "", c.abortWith(err)
			}
			c.collectErr(srvErr)

		case wire.MsgReadyForCommand:
			if err := c.handleReadyForCommand(); err != nil {
				return "", c.abortWith(err)
			}
			c.state = stateIdle
			if err := c.takePendingErr(); err != nil {
				return "", err
			}
			return status, nil

		default:
			if err := c.handleHousekeeping(); err != nil {
				return "", c.abortWith(err)
			}
		}
	}
}

// requireIdle rejects a request when another one is in flight or the
// connection is gone.
func (c *Conn) requireIdle(op string) error {
	switch c.state {
	case stateIdle:
		return nil
	case stateAborted, stateTerminated, stateDisconnected:
		return vexelerrors.New(vexelerrors.CodeClientConnectionClosed,
			"cannot %s: connection is %v", op, c.state)
	default:
		return vexelerrors.New(vexelerrors.CodeInternalClient,
			"cannot %s: a request is already in flight (%v)", op, c.state)
	}
}
