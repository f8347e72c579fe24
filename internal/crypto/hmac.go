package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Partner header names sent with every backend call when partner
// credentials are configured.
const (
	HeaderPartnerKey       = "X-Liqguard-Key"
	HeaderPartnerTimestamp = "X-Liqguard-Timestamp"
	HeaderPartnerSignature = "X-Liqguard-Signature"
)

// PartnerAuth signs backend requests with a shared secret.
type PartnerAuth struct {
	Key    string
	Secret string
}

// Headers returns the partner headers for a request at the current time.
func (p *PartnerAuth) Headers(method, path, body string) map[string]string {
	return p.HeadersAt(method, path, body, time.Now().Unix())
}

// HeadersAt is Headers with a caller-supplied Unix timestamp. The signature
// is base64(HMAC-SHA256(secret, timestamp+method+path+body)).
func (p *PartnerAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	mac := hmac.New(sha256.New, []byte(p.Secret))
	mac.Write([]byte(ts + method + path + body))
	return map[string]string{
		HeaderPartnerKey:       p.Key,
		HeaderPartnerTimestamp: ts,
		HeaderPartnerSignature: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}
}

// String returns a redacted representation suitable for logging.
func (p *PartnerAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("PartnerAuth{key=%s, secret=%s}", redact(p.Key), redact(p.Secret))
}
