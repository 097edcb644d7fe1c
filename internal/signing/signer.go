// Package signing implements the signed-upload negotiation: computing the
// short-lived upload signature on the backend and fetching it from the client
// side. A signature authorizes exactly one direct client-to-storage upload;
// the backend marks each issued signature consumed so it can never be
// replayed across attempts.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SignParams computes the upload signature over the provided parameters and
// timestamp. Parameters are serialized in sorted key order as
// key=value&key=value with the timestamp appended, then signed with
// HMAC-SHA256 and hex encoded. Empty values are omitted so client and server
// agree on the canonical form regardless of which optional fields are set.
func SignParams(secret string, params map[string]string, timestamp int64) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if strings.TrimSpace(value) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var builder strings.Builder
	for _, key := range keys {
		if builder.Len() > 0 {
			builder.WriteByte('&')
		}
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(params[key])
	}
	if builder.Len() > 0 {
		builder.WriteByte('&')
	}
	fmt.Fprintf(&builder, "timestamp=%d", timestamp)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(builder.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyParams reports whether the provided signature matches the canonical
// signature for the parameters and timestamp. Comparison is constant time.
func VerifyParams(secret string, params map[string]string, timestamp int64, signature string) bool {
	expected := SignParams(secret, params, timestamp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
