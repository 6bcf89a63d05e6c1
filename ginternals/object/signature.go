package object

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-vcs/gitcore/internal/readutil"
	"golang.org/x/xerrors"
)

// ErrSignatureInvalid is an error thrown when the signature of a
// commit or tag couldn't be parsed
var ErrSignatureInvalid = errors.New("signature is invalid")

// Signature represents the author/committer and time of a commit
type Signature struct {
	Time  time.Time
	Name  string
	Email string
}

// NewSignature generates a signature at the current date and time
func NewSignature(name, email string) Signature {
	return Signature{
		Name:  name,
		Email: email,
		Time:  time.Now(),
	}
}

// String returns a stringified version of the Signature:
// User Name <user.email@domain.tld> timestamp timezone
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.Time.Unix(), s.Time.Format("-0700"))
}

// IsZero returns whether the signature has the zero value
func (s Signature) IsZero() bool {
	return s.Time.IsZero() && s.Name == "" && s.Email == ""
}

// NewSignatureFromBytes returns a signature from an array of bytes
//
// A signature has the following format:
// User Name <user.email@domain.tld> timestamp timezone
// Ex:
// John Doe <john@domain.tld> 1566115917 -0700
func NewSignatureFromBytes(b []byte) (Signature, error) {
	sig := Signature{}

	// First we get the name, which ends right before the "<"
	data := readutil.ReadTo(b, '<')
	if len(data) == 0 {
		return sig, xerrors.Errorf("couldn't retrieve the name: %w", ErrSignatureInvalid)
	}
	sig.Name = strings.TrimSpace(string(data))
	offset := len(data) + 1 // +1 to skip the "<"
	if offset >= len(b) {
		return sig, xerrors.Errorf("signature stopped after the name: %w", ErrSignatureInvalid)
	}

	// Now we get the email, which is between "<" and ">"
	data = readutil.ReadTo(b[offset:], '>')
	if len(data) == 0 {
		return sig, xerrors.Errorf("couldn't retrieve the email: %w", ErrSignatureInvalid)
	}
	sig.Email = string(data)
	offset += len(data) + 2 // +2 to skip the "> "
	if offset >= len(b) {
		return sig, xerrors.Errorf("signature stopped after the email: %w", ErrSignatureInvalid)
	}

	// Next is the timestamp and the timezone
	timestamp := readutil.ReadTo(b[offset:], ' ')
	if len(timestamp) == 0 {
		return sig, xerrors.Errorf("couldn't retrieve the timestamp: %w", ErrSignatureInvalid)
	}
	offset += len(timestamp) + 1 // +1 to skip the " "
	if offset >= len(b) {
		return sig, xerrors.Errorf("signature stopped after the timestamp: %w", ErrSignatureInvalid)
	}

	t, err := strconv.ParseInt(string(timestamp), 10, 64)
	if err != nil {
		return sig, xerrors.Errorf("invalid timestamp %s: %w", timestamp, ErrSignatureInvalid)
	}
	sig.Time = time.Unix(t, 0)

	// To get and set the timezone we can just parse the time with an
	// empty date and copy it over to the signature
	timezone := b[offset:]
	tz, err := time.Parse("-0700", string(timezone))
	if err != nil {
		return sig, xerrors.Errorf("invalid timezone format %s: %w", timezone, ErrSignatureInvalid)
	}
	sig.Time = sig.Time.In(tz.Location())
	return sig, nil
}
