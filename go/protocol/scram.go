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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/vexeldb/vexel-go/go/vexelerrors"
)

// saslMechanism is the only authentication mechanism this client speaks.
const saslMechanism = "SCRAM-SHA-256"

const (
	scramNonceLen = 18
	scramKeyLen   = sha256.Size
)

// gs2Header says no channel binding; "biws" is its base64 form echoed in
// the final message.
const (
	gs2Header         = "n,,"
	channelBindingB64 = "biws"
)

func authError(format string, args ...any) *vexelerrors.Error {
	return vexelerrors.New(vexelerrors.CodeAuthentication, format, args...)
}

// scramClient holds the rolling state of one SCRAM-SHA-256 exchange.
type scramClient struct {
	user     string
	password string

	clientNonce string
	clientFirst string // bare form, no gs2 header

	serverSignature []byte
}

func newScramClient(user, password string) (*scramClient, error) {
	raw := make([]byte, scramNonceLen)
	if _, err := rand.Read(raw); err != nil {
		return nil, authError("nonce generation failed: %v", err)
	}
	c := &scramClient{
		user:        user,
		password:    password,
		clientNonce: base64.StdEncoding.EncodeToString(raw),
	}
	c.clientFirst = "n=" + escapeSASLName(c.user) + ",r=" + c.clientNonce
	return c, nil
}

// ClientFirst returns the initial SASL payload.
func (c *scramClient) ClientFirst() []byte {
	return []byte(gs2Header + c.clientFirst)
}

// ClientFinal consumes the server-first challenge and produces the final
// proof-bearing payload.
func (c *scramClient) ClientFinal(serverFirst []byte) ([]byte, error) {
	attrs, err := parseSCRAMAttrs(string(serverFirst))
	if err != nil {
		return nil, err
	}
	serverNonce := attrs["r"]
	if !strings.HasPrefix(serverNonce, c.clientNonce) || serverNonce == c.clientNonce {
		return nil, authError("server nonce does not extend client nonce")
	}
	salt, err := base64.StdEncoding.DecodeString(attrs["s"])
	if err != nil {
		return nil, authError("malformed salt in server challenge: %v", err)
	}
	iterations, err := strconv.Atoi(attrs["i"])
	if err != nil || iterations < 1 {
		return nil, authError("malformed iteration count in server challenge")
	}

	saltedPassword := pbkdf2.Key([]byte(c.password), salt, iterations, scramKeyLen, sha256.New)
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))

	withoutProof := "c=" + channelBindingB64 + ",r=" + serverNonce
	authMessage := c.clientFirst + "," + string(serverFirst) + "," + withoutProof

	clientSignature := hmacSHA256(storedKey[:], []byte(authMessage))
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ clientSignature[i]
	}
	c.serverSignature = hmacSHA256(serverKey, []byte(authMessage))

	final := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)
	return []byte(final), nil
}

// VerifyServerFinal checks the server's signature over the shared auth
// message. A mismatch means the server does not know the password.
func (c *scramClient) VerifyServerFinal(serverFinal []byte) error {
	attrs, err := parseSCRAMAttrs(string(serverFinal))
	if err != nil {
		return err
	}
	if e := attrs["e"]; e != "" {
		return authError("authentication failed: %s", e)
	}
	sig, err := base64.StdEncoding.DecodeString(attrs["v"])
	if err != nil {
		return authError("malformed server signature: %v", err)
	}
	if subtle.ConstantTimeCompare(sig, c.serverSignature) != 1 {
		return authError("server signature mismatch")
	}
	return nil
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// parseSCRAMAttrs splits "k1=v1,k2=v2" into a map. Values may contain
// '=' (base64), so only the first '=' per attribute splits.
func parseSCRAMAttrs(msg string) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, part := range strings.Split(msg, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok || len(k) != 1 {
			return nil, authError("malformed SCRAM attribute %q", part)
		}
		attrs[k] = v
	}
	return attrs, nil
}

// escapeSASLName applies the =2C / =3D escaping the SASL username field
// requires.
func escapeSASLName(name string) string {
	name = strings.ReplaceAll(name, "=", "=3D")
	return strings.ReplaceAll(name, ",", "=2C")
}
