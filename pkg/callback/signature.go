package callback

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Signature headers set on signed requests.
const (
	HeaderSignature = "X-Callback-Signature"
	HeaderTimestamp = "X-Callback-Timestamp"
	HeaderID        = "X-Callback-ID"
)

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<payload>".
func Sign(secret string, timestamp int64, payload []byte) (string, error) {
	if secret == "" {
		return "", ErrInvalidSecret
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte{'.'})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify checks the signature headers of a received callback. Timestamps
// older than maxAge, or more than a minute in the future, are rejected;
// a zero maxAge disables the age check.
func Verify(secret string, header http.Header, payload []byte, maxAge time.Duration) error {
	sig := header.Get(HeaderSignature)
	if sig == "" {
		return fmt.Errorf("%w: missing %s", ErrBadSignature, HeaderSignature)
	}
	ts, err := strconv.ParseInt(header.Get(HeaderTimestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid %s", ErrBadSignature, HeaderTimestamp)
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > maxAge {
			return fmt.Errorf("%w: timestamp too old: %v", ErrBadSignature, age.Round(time.Second))
		}
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp is in the future", ErrBadSignature)
		}
	}

	want, err := Sign(secret, ts, payload)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrBadSignature)
	}
	return nil
}
