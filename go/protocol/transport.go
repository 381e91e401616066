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

import "context"

// Transport is the byte-stream collaborator the engine drives. Socket
// establishment, TLS, and any internal concurrency live behind it. The
// engine's contract is minimal: Send delivers a fully framed request,
// AwaitMoreData blocks until at least one more byte arrives, and Abort
// tears the stream down, failing any in-flight AwaitMoreData.
type Transport interface {
	// Send writes data to the server. It may buffer; the engine never
	// relies on partial delivery ordering within one call.
	Send(ctx context.Context, data []byte) error

	// AwaitMoreData blocks until more bytes are available and returns
	// them. It returns an error if the stream is closed or aborted.
	AwaitMoreData(ctx context.Context) ([]byte, error)

	// Abort forcibly closes the stream. Safe to call more than once.
	Abort()
}
