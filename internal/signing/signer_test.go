package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSignParamsCanonicalForm(t *testing.T) {
	signature := SignParams("secret", map[string]string{
		"folder": "clips",
		"b":      "two",
		"a":      "one",
	}, 1700000000)

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("a=one&b=two&folder=clips&timestamp=1700000000"))
	expected := hex.EncodeToString(mac.Sum(nil))

	if signature != expected {
		t.Fatalf("signature mismatch:\n got %s\nwant %s", signature, expected)
	}
}

func TestSignParamsOmitsEmptyValues(t *testing.T) {
	withEmpty := SignParams("secret", map[string]string{"folder": ""}, 42)
	without := SignParams("secret", nil, 42)
	if withEmpty != without {
		t.Fatalf("empty values must not contribute to the canonical form")
	}
}

func TestVerifyParams(t *testing.T) {
	params := map[string]string{"folder": "clips"}
	signature := SignParams("secret", params, 99)

	if !VerifyParams("secret", params, 99, signature) {
		t.Fatalf("expected signature to verify")
	}
	if VerifyParams("other-secret", params, 99, signature) {
		t.Fatalf("expected verification to fail with the wrong secret")
	}
	if VerifyParams("secret", params, 100, signature) {
		t.Fatalf("expected verification to fail with a different timestamp")
	}
}
