package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature format: "t=<unix>,v1=<hex hmac>", where the HMAC-SHA256 input is
// "<unix>.<payload>". Timestamp binding prevents replay of captured
// deliveries; the scheme matches what the major payment providers ship.

// Sign computes the signature header value for a payload at the given time.
// Exposed for the test harness and for the generic provider's own tooling.
func Sign(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

// Verify checks a signature header against the payload. maxAge bounds how old
// a delivery may be; zero disables the age check. Comparison is constant-time.
func Verify(secret string, payload []byte, header string, maxAge time.Duration) error {
	if secret == "" {
		return fmt.Errorf("%w: secret is required", ErrInvalidConfiguration)
	}

	ts, sig, err := parseHeader(header)
	if err != nil {
		return err
	}

	if maxAge > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > maxAge {
			return fmt.Errorf("%w: delivery is %s old", ErrSignatureInvalid, age.Truncate(time.Second))
		}
		// Tolerate modest clock skew but reject far-future timestamps.
		if age < -time.Minute {
			return fmt.Errorf("%w: timestamp is in the future", ErrSignatureInvalid)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("%w: signature mismatch", ErrSignatureInvalid)
	}
	return nil
}

func parseHeader(header string) (ts int64, sig string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
			}
		case "v1":
			sig = value
		}
	}
	if ts == 0 || sig == "" {
		return 0, "", fmt.Errorf("%w: missing signature components", ErrSignatureInvalid)
	}
	return ts, sig, nil
}
