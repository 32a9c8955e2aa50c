package user

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	tokenSalt = []byte("innotech.core.user.token_gen")

	// errors
	errInvalidToken = errors.New("el enlace no es válido")
	errTokenExpired = errors.New("el enlace ha expirado")
)

// EncodeUID base64 encodes the ID of usr for password reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(usr.ID)))
}

func decodeUID(uid string) (int, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(idBytes))
}

// resetTokens makes and checks password reset tokens. A token is bound to the password hash
// and the last login of the user: it stops working once either changes.
type resetTokens struct {
	secret  string
	timeout time.Duration
}

func (rt resetTokens) make(usr User) string {
	return rt.makeWithTimestamp(usr, numDaysSince2001(NowFunc()))
}

func (rt resetTokens) verify(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(parts[0])
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that the token has not been tampered with
	if subtle.ConstantTimeCompare([]byte(rt.makeWithTimestamp(usr, ts)), []byte(token)) == 0 {
		return errInvalidToken
	}

	if numDaysSince2001(NowFunc())-ts > int(rt.timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func (rt resetTokens) makeWithTimestamp(usr User, ts int) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, rt.sign(hashValue(usr, ts)))
}

func (rt resetTokens) sign(val []byte) string {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), rt.secret...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val) // never fails
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func hashValue(usr User, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(strconv.Itoa(usr.ID))
	val.Write(usr.PasswordHash)
	if usr.LastLogin.Valid {
		val.WriteString(usr.LastLogin.Time.UTC().Format(time.RFC3339Nano))
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
