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

package vexelerrors

// Code is a 32-bit hierarchical error code. The high bytes select the
// category: a code whose low bytes are zero names a whole class of errors,
// and a concrete code belongs to every class obtained by zeroing its
// suffix bytes. CodeInvalidSyntax (0x04_01_00_00) therefore matches
// CodeEdgeQLSyntax (0x04_01_01_00) and so on.
type Code uint32

// Server-assigned error codes.
const (
	CodeInternalServerError Code = 0x01_00_00_00

	CodeUnsupportedFeature Code = 0x02_00_00_00

	CodeProtocol                    Code = 0x03_00_00_00
	CodeBinaryProtocol              Code = 0x03_01_00_00
	CodeUnsupportedProtocolVersion  Code = 0x03_01_00_01
	CodeTypeSpecNotFound            Code = 0x03_01_00_02
	CodeUnexpectedMessage           Code = 0x03_01_00_03
	CodeInputData                   Code = 0x03_02_00_00
	CodeParameterTypeMismatch       Code = 0x03_02_01_00
	CodeResultCardinalityMismatch   Code = 0x03_03_00_00
	CodeCapability                  Code = 0x03_04_00_00
	CodeUnsupportedCapability       Code = 0x03_04_01_00
	CodeDisabledCapability          Code = 0x03_04_02_00

	CodeQuery                      Code = 0x04_00_00_00
	CodeInvalidSyntax              Code = 0x04_01_00_00
	CodeEdgeQLSyntax               Code = 0x04_01_01_00
	CodeSchemaSyntax               Code = 0x04_01_02_00
	CodeGraphQLSyntax              Code = 0x04_01_03_00
	CodeInvalidType                Code = 0x04_02_00_00
	CodeInvalidTarget              Code = 0x04_02_01_00
	CodeInvalidLinkTarget          Code = 0x04_02_01_01
	CodeInvalidPropertyTarget      Code = 0x04_02_01_02
	CodeInvalidReference           Code = 0x04_03_00_00
	CodeUnknownModule              Code = 0x04_03_00_01
	CodeUnknownLink                Code = 0x04_03_00_02
	CodeUnknownProperty            Code = 0x04_03_00_03
	CodeUnknownUser                Code = 0x04_03_00_04
	CodeUnknownDatabase            Code = 0x04_03_00_05
	CodeUnknownParameter           Code = 0x04_03_00_06
	CodeSchema                     Code = 0x04_04_00_00
	CodeSchemaDefinition           Code = 0x04_05_00_00
	CodeInvalidDefinition          Code = 0x04_05_01_00
	CodeInvalidModuleDefinition    Code = 0x04_05_01_01
	CodeInvalidLinkDefinition      Code = 0x04_05_01_02
	CodeInvalidPropertyDefinition  Code = 0x04_05_01_03
	CodeInvalidUserDefinition      Code = 0x04_05_01_04
	CodeInvalidDatabaseDefinition  Code = 0x04_05_01_05
	CodeInvalidOperatorDefinition  Code = 0x04_05_01_06
	CodeInvalidAliasDefinition     Code = 0x04_05_01_07
	CodeInvalidFunctionDefinition  Code = 0x04_05_01_08
	CodeInvalidConstraintDef       Code = 0x04_05_01_09
	CodeInvalidCastDefinition      Code = 0x04_05_01_0A
	CodeDuplicateDefinition        Code = 0x04_05_02_00
	CodeDuplicateModuleDefinition  Code = 0x04_05_02_01
	CodeDuplicateLinkDefinition    Code = 0x04_05_02_02
	CodeDuplicatePropertyDef       Code = 0x04_05_02_03
	CodeDuplicateUserDefinition    Code = 0x04_05_02_04
	CodeDuplicateDatabaseDef       Code = 0x04_05_02_05
	CodeDuplicateOperatorDef       Code = 0x04_05_02_06
	CodeDuplicateViewDefinition    Code = 0x04_05_02_07
	CodeDuplicateFunctionDef       Code = 0x04_05_02_08
	CodeDuplicateConstraintDef     Code = 0x04_05_02_09
	CodeDuplicateCastDefinition    Code = 0x04_05_02_0A
	CodeSessionTimeout             Code = 0x04_06_00_00
	CodeIdleSessionTimeout         Code = 0x04_06_01_00
	CodeQueryTimeout               Code = 0x04_06_02_00
	CodeTransactionTimeout         Code = 0x04_06_0A_00
	CodeIdleTransactionTimeout     Code = 0x04_06_0A_01

	CodeExecution                Code = 0x05_00_00_00
	CodeInvalidValue             Code = 0x05_01_00_00
	CodeDivisionByZero           Code = 0x05_01_00_01
	CodeNumericOutOfRange        Code = 0x05_01_00_02
	CodeAccessPolicy             Code = 0x05_01_00_03
	CodeIntegrity                Code = 0x05_02_00_00
	CodeConstraintViolation      Code = 0x05_02_00_01
	CodeCardinalityViolation     Code = 0x05_02_00_02
	CodeMissingRequired          Code = 0x05_02_00_03
	CodeTransaction              Code = 0x05_03_00_00
	CodeTransactionConflict      Code = 0x05_03_01_00
	CodeTransactionSerialization Code = 0x05_03_01_01
	CodeTransactionDeadlock      Code = 0x05_03_01_02

	CodeConfiguration Code = 0x06_00_00_00

	CodeAccess         Code = 0x07_00_00_00
	CodeAuthentication Code = 0x07_01_00_00

	CodeAvailability       Code = 0x08_00_00_00
	CodeBackendUnavailable Code = 0x08_00_00_01

	CodeBackend                   Code = 0x09_00_00_00
	CodeUnsupportedBackendFeature Code = 0x09_00_01_00

	CodeLogMessage     Code = 0xF0_00_00_00
	CodeWarningMessage Code = 0xF0_01_00_00
)

// Client-assigned error codes. These are never sent by a server; the
// engine uses them for failures it detects on its own side.
const (
	CodeClient                            Code = 0xFF_00_00_00
	CodeClientConnection                  Code = 0xFF_01_00_00
	CodeClientConnectionFailed            Code = 0xFF_01_01_00
	CodeClientConnectionFailedTemporarily Code = 0xFF_01_01_01
	CodeClientConnectionTimeout           Code = 0xFF_01_02_00
	CodeClientConnectionClosed            Code = 0xFF_01_03_00
	CodeInterface                         Code = 0xFF_02_00_00
	CodeQueryArgument                     Code = 0xFF_02_01_00
	CodeMissingArgument                   Code = 0xFF_02_01_01
	CodeUnknownArgument                   Code = 0xFF_02_01_02
	CodeInvalidArgument                   Code = 0xFF_02_01_03
	CodeNoData                            Code = 0xFF_03_00_00
	CodeInternalClient                    Code = 0xFF_04_00_00
)

// legacyCodes remaps error codes issued by servers predating the current
// code layout. Applied once, when an error response is decoded.
var legacyCodes = map[Code]Code{
	0x05_03_00_01: CodeTransactionSerialization,
	0x05_03_00_02: CodeTransactionDeadlock,
}

// RemapLegacyCode translates an old-server error code to its current
// equivalent. Codes with no legacy mapping pass through unchanged.
func RemapLegacyCode(c Code) Code {
	if mapped, ok := legacyCodes[c]; ok {
		return mapped
	}
	return c
}

// Matches reports whether c belongs to the class named by category.
// A category code has one or more trailing zero bytes; c matches when
// all its non-zero-prefixed bytes agree.
func (c Code) Matches(category Code) bool {
	if c == category {
		return true
	}
	for _, mask := range [...]Code{0xFF_FF_FF_00, 0xFF_FF_00_00, 0xFF_00_00_00} {
		if category&^mask != 0 {
			continue
		}
		if c&mask == category {
			return true
		}
	}
	return false
}

var codeNames = map[Code]string{
	CodeInternalServerError:               "InternalServerError",
	CodeUnsupportedFeature:                "UnsupportedFeatureError",
	CodeProtocol:                          "ProtocolError",
	CodeBinaryProtocol:                    "BinaryProtocolError",
	CodeUnsupportedProtocolVersion:        "UnsupportedProtocolVersionError",
	CodeTypeSpecNotFound:                  "TypeSpecNotFoundError",
	CodeUnexpectedMessage:                 "UnexpectedMessageError",
	CodeInputData:                         "InputDataError",
	CodeParameterTypeMismatch:             "ParameterTypeMismatchError",
	CodeResultCardinalityMismatch:         "ResultCardinalityMismatchError",
	CodeCapability:                        "CapabilityError",
	CodeUnsupportedCapability:             "UnsupportedCapabilityError",
	CodeDisabledCapability:                "DisabledCapabilityError",
	CodeQuery:                             "QueryError",
	CodeInvalidSyntax:                     "InvalidSyntaxError",
	CodeEdgeQLSyntax:                      "EdgeQLSyntaxError",
	CodeSchemaSyntax:                      "SchemaSyntaxError",
	CodeGraphQLSyntax:                     "GraphQLSyntaxError",
	CodeInvalidType:                       "InvalidTypeError",
	CodeInvalidTarget:                     "InvalidTargetError",
	CodeInvalidLinkTarget:                 "InvalidLinkTargetError",
	CodeInvalidPropertyTarget:             "InvalidPropertyTargetError",
	CodeInvalidReference:                  "InvalidReferenceError",
	CodeUnknownModule:                     "UnknownModuleError",
	CodeUnknownLink:                       "UnknownLinkError",
	CodeUnknownProperty:                   "UnknownPropertyError",
	CodeUnknownUser:                       "UnknownUserError",
	CodeUnknownDatabase:                   "UnknownDatabaseError",
	CodeUnknownParameter:                  "UnknownParameterError",
	CodeSchema:                            "SchemaError",
	CodeSchemaDefinition:                  "SchemaDefinitionError",
	CodeInvalidDefinition:                 "InvalidDefinitionError",
	CodeInvalidModuleDefinition:           "InvalidModuleDefinitionError",
	CodeInvalidLinkDefinition:             "InvalidLinkDefinitionError",
	CodeInvalidPropertyDefinition:         "InvalidPropertyDefinitionError",
	CodeInvalidUserDefinition:             "InvalidUserDefinitionError",
	CodeInvalidDatabaseDefinition:         "InvalidDatabaseDefinitionError",
	CodeInvalidOperatorDefinition:         "InvalidOperatorDefinitionError",
	CodeInvalidAliasDefinition:            "InvalidAliasDefinitionError",
	CodeInvalidFunctionDefinition:         "InvalidFunctionDefinitionError",
	CodeInvalidConstraintDef:              "InvalidConstraintDefinitionError",
	CodeInvalidCastDefinition:             "InvalidCastDefinitionError",
	CodeDuplicateDefinition:               "DuplicateDefinitionError",
	CodeDuplicateModuleDefinition:         "DuplicateModuleDefinitionError",
	CodeDuplicateLinkDefinition:           "DuplicateLinkDefinitionError",
	CodeDuplicatePropertyDef:              "DuplicatePropertyDefinitionError",
	CodeDuplicateUserDefinition:           "DuplicateUserDefinitionError",
	CodeDuplicateDatabaseDef:              "DuplicateDatabaseDefinitionError",
	CodeDuplicateOperatorDef:              "DuplicateOperatorDefinitionError",
	CodeDuplicateViewDefinition:           "DuplicateViewDefinitionError",
	CodeDuplicateFunctionDef:              "DuplicateFunctionDefinitionError",
	CodeDuplicateConstraintDef:            "DuplicateConstraintDefinitionError",
	CodeDuplicateCastDefinition:           "DuplicateCastDefinitionError",
	CodeSessionTimeout:                    "SessionTimeoutError",
	CodeIdleSessionTimeout:                "IdleSessionTimeoutError",
	CodeQueryTimeout:                      "QueryTimeoutError",
	CodeTransactionTimeout:                "TransactionTimeoutError",
	CodeIdleTransactionTimeout:            "IdleTransactionTimeoutError",
	CodeExecution:                         "ExecutionError",
	CodeInvalidValue:                      "InvalidValueError",
	CodeDivisionByZero:                    "DivisionByZeroError",
	CodeNumericOutOfRange:                 "NumericOutOfRangeError",
	CodeAccessPolicy:                      "AccessPolicyError",
	CodeIntegrity:                         "IntegrityError",
	CodeConstraintViolation:               "ConstraintViolationError",
	CodeCardinalityViolation:              "CardinalityViolationError",
	CodeMissingRequired:                   "MissingRequiredError",
	CodeTransaction:                       "TransactionError",
	CodeTransactionConflict:               "TransactionConflictError",
	CodeTransactionSerialization:          "TransactionSerializationError",
	CodeTransactionDeadlock:               "TransactionDeadlockError",
	CodeConfiguration:                     "ConfigurationError",
	CodeAccess:                            "AccessError",
	CodeAuthentication:                    "AuthenticationError",
	CodeAvailability:                      "AvailabilityError",
	CodeBackendUnavailable:                "BackendUnavailableError",
	CodeBackend:                           "BackendError",
	CodeUnsupportedBackendFeature:         "UnsupportedBackendFeatureError",
	CodeLogMessage:                        "LogMessage",
	CodeWarningMessage:                    "WarningMessage",
	CodeClient:                            "ClientError",
	CodeClientConnection:                  "ClientConnectionError",
	CodeClientConnectionFailed:            "ClientConnectionFailedError",
	CodeClientConnectionFailedTemporarily: "ClientConnectionFailedTemporarilyError",
	CodeClientConnectionTimeout:           "ClientConnectionTimeoutError",
	CodeClientConnectionClosed:            "ClientConnectionClosedError",
	CodeInterface:                         "InterfaceError",
	CodeQueryArgument:                     "QueryArgumentError",
	CodeMissingArgument:                   "MissingArgumentError",
	CodeUnknownArgument:                   "UnknownArgumentError",
	CodeInvalidArgument:                   "InvalidArgumentError",
	CodeNoData:                            "NoDataError",
	CodeInternalClient:                    "InternalClientError",
}

// Name returns the symbolic name of a code. Unknown codes fall back to the
// name of the nearest containing category.
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	for _, mask := range [...]Code{0xFF_FF_FF_00, 0xFF_FF_00_00, 0xFF_00_00_00} {
		if name, ok := codeNames[c&mask]; ok {
			return name
		}
	}
	return "Error"
}

// retryTags lists the codes whose class is marked retryable; reconnectTags
// additionally require a fresh connection.
var (
	retryCodes = [...]Code{
		CodeTransactionConflict,
		CodeBackendUnavailable,
		CodeClientConnectionFailedTemporarily,
		CodeClientConnectionTimeout,
		CodeClientConnectionClosed,
	}
	reconnectCodes = [...]Code{
		CodeClientConnectionFailedTemporarily,
		CodeClientConnectionTimeout,
		CodeClientConnectionClosed,
	}
)

// ShouldRetry reports whether the operation that produced this code may be
// retried by a higher-level wrapper.
func (c Code) ShouldRetry() bool {
	for _, class := range retryCodes {
		if c.Matches(class) {
			return true
		}
	}
	return false
}

// ShouldReconnect reports whether the connection that produced this code
// must be re-established before retrying.
func (c Code) ShouldReconnect() bool {
	for _, class := range reconnectCodes {
		if c.Matches(class) {
			return true
		}
	}
	return false
}
