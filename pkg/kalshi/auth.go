package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/youmark/pkcs8"
)

// Header names attached to every authenticated request.
const (
	HeaderAccessKey = "KALSHI-ACCESS-KEY"
	HeaderSignature = "KALSHI-ACCESS-SIGNATURE"
	HeaderTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

var errPassphraseRequired = errors.New("key is encrypted and no passphrase source was provided")

// Signer produces authentication headers for a single request.
type Signer interface {
	Sign(method, path string) (AuthHeaders, error)
}

// AuthHeaders is the signed material for one request. It must not be reused
// across retries: a fresh value is produced for every dispatch.
type AuthHeaders struct {
	Method          string
	Path            string
	TimestampMillis int64
	Timestamp       string
	Signature       string
	AccessKey       string
}

// Apply sets the three authentication headers on h.
func (a AuthHeaders) Apply(h interface{ Set(key, value string) }) {
	h.Set(HeaderAccessKey, a.AccessKey)
	h.Set(HeaderSignature, a.Signature)
	h.Set(HeaderTimestamp, a.Timestamp)
}

// PassphraseFunc supplies the passphrase for an encrypted private key. It is
// only consulted when the key cannot be parsed unencrypted.
type PassphraseFunc func() ([]byte, error)

// StaticPassphrase returns a PassphraseFunc that always yields passphrase.
func StaticPassphrase(passphrase string) PassphraseFunc {
	return func() ([]byte, error) {
		return []byte(passphrase), nil
	}
}

// Credential pairs an RSA private key with the public access-key id. It is
// immutable once constructed and safe for concurrent use.
type Credential struct {
	key       crypto.Signer
	accessKey string
	clock     func() time.Time
	random    io.Reader
}

// CredentialOption customises a Credential.
type CredentialOption func(*Credential)

// WithCredentialClock overrides the timestamp source (primarily for testing).
func WithCredentialClock(clock func() time.Time) CredentialOption {
	return func(c *Credential) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRandom overrides the entropy source used for PSS salts.
func WithRandom(r io.Reader) CredentialOption {
	return func(c *Credential) {
		if r != nil {
			c.random = r
		}
	}
}

// NewCredential wraps an already parsed private key.
func NewCredential(key crypto.Signer, accessKey string, opts ...CredentialOption) (*Credential, error) {
	if key == nil {
		return nil, &KeyLoadError{Err: errors.New("private key is nil")}
	}
	accessKey = strings.TrimSpace(accessKey)
	if accessKey == "" {
		return nil, errors.New("kalshi: access key is required")
	}
	c := &Credential{
		key:       key,
		accessKey: accessKey,
		clock:     time.Now,
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LoadCredential reads a PEM private key from keyFile.
func LoadCredential(keyFile, accessKey string, passphrase PassphraseFunc, opts ...CredentialOption) (*Credential, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, &KeyLoadError{Path: keyFile, Err: err}
	}
	key, err := parsePrivateKey(data, passphrase)
	if err != nil {
		return nil, &KeyLoadError{Path: keyFile, Err: err}
	}
	return NewCredential(key, accessKey, opts...)
}

// ParseCredential decodes PEM key material held in memory.
func ParseCredential(pemBytes []byte, accessKey string, passphrase PassphraseFunc, opts ...CredentialOption) (*Credential, error) {
	key, err := parsePrivateKey(pemBytes, passphrase)
	if err != nil {
		return nil, &KeyLoadError{Err: err}
	}
	return NewCredential(key, accessKey, opts...)
}

// AccessKey returns the public access-key id.
func (c *Credential) AccessKey() string {
	if c == nil {
		return ""
	}
	return c.accessKey
}

// String redacts everything but a short access-key prefix.
func (c *Credential) String() string {
	if c == nil {
		return "kalshi.Credential(<nil>)"
	}
	return fmt.Sprintf("kalshi.Credential(access_key=%s)", maskAccessKey(c.accessKey))
}

// GoString keeps %#v from dumping key material.
func (c *Credential) GoString() string { return c.String() }

// Sign signs method and path with the current wall-clock time.
func (c *Credential) Sign(method, path string) (AuthHeaders, error) {
	if c == nil {
		return AuthHeaders{}, &SigningError{Err: errors.New("credential not initialised")}
	}
	return c.SignAt(c.clock(), method, path)
}

// SignAt signs method and path using ts as the request timestamp.
func (c *Credential) SignAt(ts time.Time, method, path string) (AuthHeaders, error) {
	if c == nil || c.key == nil {
		return AuthHeaders{}, &SigningError{Err: errors.New("credential not initialised")}
	}
	rsaKey, ok := c.key.(*rsa.PrivateKey)
	if !ok {
		return AuthHeaders{}, &SigningError{Err: fmt.Errorf("unsupported key type %T, RSA required", c.key)}
	}

	millis := ts.UnixMilli()
	timestamp := strconv.FormatInt(millis, 10)
	digest := sha256.Sum256([]byte(SigningInput(timestamp, method, path)))

	sig, err := rsa.SignPSS(c.random, rsaKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return AuthHeaders{}, &SigningError{Err: err}
	}
	return AuthHeaders{
		Method:          method,
		Path:            path,
		TimestampMillis: millis,
		Timestamp:       timestamp,
		Signature:       base64.StdEncoding.EncodeToString(sig),
		AccessKey:       c.accessKey,
	}, nil
}

// Public returns the public half of the key.
func (c *Credential) Public() crypto.PublicKey {
	if c == nil || c.key == nil {
		return nil
	}
	return c.key.Public()
}

// SigningInput is the exact message that gets signed: timestamp, method and
// path concatenated with no separators. path excludes the query string.
func SigningInput(timestamp, method, path string) string {
	return timestamp + method + path
}

// VerifySignature checks a base64 signature produced by Sign against pub.
func VerifySignature(pub *rsa.PublicKey, timestamp, method, path, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("kalshi: decode signature: %w", err)
	}
	digest := sha256.Sum256([]byte(SigningInput(timestamp, method, path)))
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
}

func parsePrivateKey(data []byte, passphrase PassphraseFunc) (crypto.Signer, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	key, plainErr := parseUnencrypted(block)
	if plainErr == nil {
		return key, nil
	}
	if passphrase == nil {
		if isEncryptedBlock(block) {
			return nil, errPassphraseRequired
		}
		return nil, plainErr
	}

	pass, err := passphrase()
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	key, err = parseEncrypted(block, pass)
	if err != nil {
		return nil, fmt.Errorf("unencrypted parse failed (%v); encrypted parse failed: %w", plainErr, err)
	}
	return key, nil
}

func parseUnencrypted(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return asSigner(key)
	case "RSA PRIVATE KEY":
		//nolint:staticcheck // legacy PEM encryption is still produced by openssl rsa -des3
		if x509.IsEncryptedPEMBlock(block) {
			return nil, errors.New("rsa private key is encrypted")
		}
		return parsePKCS1(block.Bytes)
	case "ENCRYPTED PRIVATE KEY":
		return nil, errors.New("pkcs8 private key is encrypted")
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}

func parseEncrypted(block *pem.Block, pass []byte) (crypto.Signer, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		//nolint:staticcheck // see parseUnencrypted
		der, err := x509.DecryptPEMBlock(block, pass)
		if err != nil {
			return nil, err
		}
		return parsePKCS1(der)
	default:
		key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, pass)
		if err != nil {
			return nil, err
		}
		return asSigner(key)
	}
}

func isEncryptedBlock(block *pem.Block) bool {
	if block.Type == "ENCRYPTED PRIVATE KEY" {
		return true
	}
	//nolint:staticcheck // see parseUnencrypted
	return x509.IsEncryptedPEMBlock(block)
}

func parsePKCS1(der []byte) (crypto.Signer, error) {
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func asSigner(key any) (crypto.Signer, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	return signer, nil
}

func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
