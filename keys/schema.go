package keys

import (
	"encoding/json"

	"github.com/go-errors/errors"
)

var (
	// ErrDuplicateAttribute is returned when a schema declares the same attribute name twice.
	ErrDuplicateAttribute = errors.New("duplicate attribute name in schema")
	// ErrUnknownAttribute is returned when looking up an attribute name a schema does not declare.
	ErrUnknownAttribute = errors.New("attribute not present in schema")
)

// MasterSecretIndex is the base index reserved for the holder's master secret.
// Declared attributes occupy the indices after it.
const MasterSecretIndex = 0

// CredentialSchema is an ordered list of attribute names. The order determines
// which base R_i of the public key signs which attribute: the master secret is
// always signed against index 0, the i-th declared attribute against index i+1.
type CredentialSchema struct {
	names []string
	index map[string]int
}

// NewCredentialSchema builds a schema from the given attribute names,
// rejecting duplicates.
func NewCredentialSchema(names ...string) (*CredentialSchema, error) {
	s := &CredentialSchema{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(s.names, names)
	for i, name := range names {
		if _, ok := s.index[name]; ok {
			return nil, errors.WrapPrefix(ErrDuplicateAttribute, name, 0)
		}
		s.index[name] = i + 1
	}
	return s, nil
}

// Names returns the declared attribute names, in signing order.
func (s *CredentialSchema) Names() []string {
	return s.names
}

// Index returns the base index signing the named attribute.
func (s *CredentialSchema) Index(name string) (int, error) {
	i, ok := s.index[name]
	if !ok {
		return 0, errors.WrapPrefix(ErrUnknownAttribute, name, 0)
	}
	return i, nil
}

// NumBases returns the number of bases a public key needs for this schema,
// including the master secret base.
func (s *CredentialSchema) NumBases() int {
	return len(s.names) + 1
}

func (s *CredentialSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.names)
}

func (s *CredentialSchema) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	parsed, err := NewCredentialSchema(names...)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
