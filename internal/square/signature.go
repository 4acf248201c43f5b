package square

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

const SignatureHeader = "X-Square-Hmacsha256-Signature"

// Signature is base64(HMAC-SHA256(key, notificationURL + body)).
func Signature(key, notificationURL string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func VerifySignature(key, notificationURL string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	expected := Signature(key, notificationURL, body)
	return hmac.Equal([]byte(expected), []byte(header))
}
