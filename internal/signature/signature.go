// Package signature implements the HMAC scheme shared by inbound provider
// callbacks and outbound sink deliveries: the header "t=<unix>,v1=<hex>" where
// v1 is HMAC-SHA256(secret, "<unix>.<body>").
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const Header = "X-Payhook-Signature"

var (
	ErrMissing   = errors.New("missing signature header")
	ErrMalformed = errors.New("malformed signature header")
	ErrMismatch  = errors.New("signature mismatch")
	ErrExpired   = errors.New("signature timestamp outside tolerance")
)

func Sign(secret []byte, at time.Time, payload []byte) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, digest(secret, ts, payload))
}

// Verify checks header against payload. The timestamp must be within tolerance
// of now in either direction; comparison of the digest is constant time.
func Verify(secret []byte, header string, payload []byte, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrMissing
	}

	ts, got, err := parse(header)
	if err != nil {
		return err
	}

	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return ErrExpired
	}

	want := digest(secret, ts, payload)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrMismatch
	}
	return nil
}

func parse(header string) (int64, string, error) {
	var ts int64
	var v1 string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return 0, "", ErrMalformed
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", ErrMalformed
			}
			ts = parsed
		case "v1":
			v1 = value
		}
	}

	if ts == 0 || v1 == "" {
		return 0, "", ErrMalformed
	}
	return ts, v1, nil
}

func digest(secret []byte, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
