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

package wire

import "fmt"

// MessageType is the one-byte tag that opens every protocol message.
type MessageType byte

// Client to server message tags.
const (
	MsgClientHandshake   MessageType = 0x56 // 'V'
	MsgAuthSASLInitial   MessageType = 0x70 // 'p'
	MsgAuthSASLResponse  MessageType = 0x72 // 'r'
	MsgParse             MessageType = 0x50 // 'P'
	MsgExecute           MessageType = 0x4f // 'O'
	MsgExecuteScript     MessageType = 0x51 // 'Q'
	MsgDescribeStatement MessageType = 0x44 // 'D', shares the tag of MsgData
	MsgSync              MessageType = 0x53 // 'S', shares the tag of MsgParameterStatus
	MsgFlush             MessageType = 0x48 // 'H'
	MsgTerminate         MessageType = 0x58 // 'X'
	MsgDump              MessageType = 0x3e // '>'
	MsgRestore           MessageType = 0x3c // '<'
	MsgRestoreBlock      MessageType = 0x3d // '=', shares the tag of MsgDumpBlock
	MsgRestoreEOF        MessageType = 0x2e // '.'
)

// Server to client message tags.
const (
	MsgServerHandshake        MessageType = 0x76 // 'v'
	MsgAuthentication         MessageType = 0x52 // 'R'
	MsgServerKeyData          MessageType = 0x4b // 'K'
	MsgParameterStatus        MessageType = 0x53 // 'S'
	MsgReadyForCommand        MessageType = 0x5a // 'Z'
	MsgCommandDataDescription MessageType = 0x54 // 'T'
	MsgStateDataDescription   MessageType = 0x73 // 's'
	MsgData                   MessageType = 0x44 // 'D'
	MsgCommandComplete        MessageType = 0x43 // 'C'
	MsgErrorResponse          MessageType = 0x45 // 'E'
	MsgLogMessage             MessageType = 0x4c // 'L'
	MsgDumpHeader             MessageType = 0x40 // '@'
	MsgDumpBlock              MessageType = 0x3d // '='
	MsgRestoreReady           MessageType = 0x2b // '+'
)

func (t MessageType) String() string {
	if t >= 0x21 && t <= 0x7e {
		return string(rune(t))
	}
	return fmt.Sprintf("0x%02x", byte(t))
}

// Authentication message statuses.
const (
	AuthStatusOK           uint32 = 0x0
	AuthStatusSASL         uint32 = 0xA
	AuthStatusSASLContinue uint32 = 0xB
	AuthStatusSASLFinal    uint32 = 0xC
)

// TransactionState is the server's transaction status byte carried by
// ReadyForCommand.
type TransactionState byte

const (
	TxStateNotInTransaction    TransactionState = 0x49 // 'I'
	TxStateInTransaction       TransactionState = 0x54 // 'T'
	TxStateInFailedTransaction TransactionState = 0x45 // 'E'
)

// Cardinality is the declared result multiplicity of a statement.
type Cardinality byte

const (
	// CardinalityNoResult marks statements that produce no data at all,
	// for example configuration commands or multi-statement scripts.
	CardinalityNoResult   Cardinality = 0x6e
	CardinalityAtMostOne  Cardinality = 0x6f
	CardinalityOne        Cardinality = 0x41
	CardinalityMany       Cardinality = 0x6d
	CardinalityAtLeastOne Cardinality = 0x4d
)

// IsSingle reports whether the statement returns at most one element.
func (c Cardinality) IsSingle() bool {
	return c == CardinalityAtMostOne || c == CardinalityOne
}

// IsMulti reports whether the statement may return more than one element.
func (c Cardinality) IsMulti() bool {
	return c == CardinalityMany || c == CardinalityAtLeastOne
}

// OutputFormat selects the encoding of result data.
type OutputFormat byte

const (
	OutputFormatBinary       OutputFormat = 0x62 // 'b'
	OutputFormatJSON         OutputFormat = 0x6a // 'j'
	OutputFormatJSONElements OutputFormat = 0x4a // 'J'
	OutputFormatNone         OutputFormat = 0x6e // 'n'
)

// Capability is the 64-bit bitmask restricting which operation classes an
// execute may perform. It is sent as an execution option and echoed back
// by CommandComplete.
type Capability uint64

const (
	CapabilityModifications    Capability = 1 << 0
	CapabilitySessionConfig    Capability = 1 << 1
	CapabilityTransaction      Capability = 1 << 2
	CapabilityDDL              Capability = 1 << 3
	CapabilityPersistentConfig Capability = 1 << 4

	CapabilityAll Capability = 0xFFFF_FFFF_FFFF_FFFF

	// CapabilityExecute is the default restriction for single statements:
	// everything except explicit transaction control and session config.
	CapabilityExecute Capability = CapabilityAll &^ CapabilityTransaction &^ CapabilitySessionConfig

	// CapabilityLegacyExecute matches the restriction pre-1.0 servers
	// applied to script execution.
	CapabilityLegacyExecute Capability = CapabilityAll &^ CapabilityTransaction
)

// ProtocolVersion is the negotiated (major, minor) protocol revision.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Before reports whether v precedes other.
func (v ProtocolVersion) Before(other ProtocolVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

// CompilationFlag adjusts server-side query compilation.
type CompilationFlag uint64

const (
	CompilationInjectOutputTypeIDs   CompilationFlag = 1 << 0
	CompilationInjectOutputTypeNames CompilationFlag = 1 << 1
	CompilationInjectOutputObjectIDs CompilationFlag = 1 << 2
)
