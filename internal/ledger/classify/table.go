// Package classify maps account codes to semantic buckets using an externally
// maintained classification table.
package classify

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/microfin/internal/ledger"
)

// Bucket names a semantic account group.
type Bucket string

const (
	BucketPrincipal   Bucket = "principal"
	BucketInterest    Bucket = "interest"
	BucketCGT         Bucket = "cgt"
	BucketUnityFund   Bucket = "unityFund"
	BucketWelfareFund Bucket = "welfareFund"
	BucketDamayanFund Bucket = "damayanFund"
	BucketBank        Bucket = "bank"
	// BucketMisc is implicit: it holds every code absent from the table.
	BucketMisc Bucket = "misc"
)

var (
	// ErrInvalidTable indicates a table that failed validation.
	ErrInvalidTable = errors.New("classify: invalid classification table")
	// ErrMiscDeclared indicates a table listing codes under the implicit bucket.
	ErrMiscDeclared = errors.New("classify: misc bucket is implicit and cannot list codes")
)

// Table is the caller supplied configuration for one report type.
type Table struct {
	Version  string                         `yaml:"version" validate:"required"`
	Buckets  map[Bucket][]string            `yaml:"buckets" validate:"required,min=1,dive,keys,required,endkeys,min=1,dive,required"`
	Polarity map[ledger.TransactionKind]int `yaml:"polarity" validate:"dive,keys,required,endkeys,oneof=-1 1"`
}

var validate = validator.New()

// Validate checks structural rules not expressible as tags.
func (t Table) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	if codes, ok := t.Buckets[BucketMisc]; ok && len(codes) > 0 {
		return ErrMiscDeclared
	}
	for bucket, codes := range t.Buckets {
		seen := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			code = strings.TrimSpace(code)
			if _, dup := seen[code]; dup {
				return fmt.Errorf("%w: code %s listed twice in %s", ErrInvalidTable, code, bucket)
			}
			seen[code] = struct{}{}
		}
	}
	return nil
}

// Fingerprint digests the canonical form of the table so cached results can
// be keyed per table revision.
func (t Table) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	_, _ = io.WriteString(h, t.Version)
	buckets := make([]string, 0, len(t.Buckets))
	for b := range t.Buckets {
		buckets = append(buckets, string(b))
	}
	sort.Strings(buckets)
	for _, b := range buckets {
		codes := append([]string(nil), t.Buckets[Bucket(b)]...)
		sort.Strings(codes)
		_, _ = io.WriteString(h, "\x00"+b+"="+strings.Join(codes, ","))
	}
	kinds := make([]string, 0, len(t.Polarity))
	for k := range t.Polarity {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		_, _ = fmt.Fprintf(h, "\x00%s:%d", k, t.Polarity[ledger.TransactionKind(k)])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ParseTable decodes and validates a YAML table.
func ParseTable(r io.Reader) (Table, error) {
	var t Table
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Table{}, fmt.Errorf("classify: decode table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// LoadTable reads a YAML table from disk.
func LoadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("classify: open table: %w", err)
	}
	defer f.Close()
	return ParseTable(f)
}
