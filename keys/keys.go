// Copyright 2016 Maarten Everts. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keys implements the credential definition builder: issuer key
// material for a given credential schema, the system parameters, and the proof
// that a public key was correctly formed.
package keys

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/bwesterb/go-exptable"
	"github.com/go-errors/errors"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/safeprime"
	"github.com/credentials/anoncreds/signed"
)

type (
	// PublicKey represents an issuer's public key for a credential schema.
	// All big integers (de)serialize as decimal strings.
	PublicKey struct {
		Counter    uint     `json:"counter"`
		ExpiryDate int64    `json:"expiryDate"`
		N          *big.Int `json:"n"` // Modulus n
		Z          *big.Int `json:"z"` // Generator Z
		S          *big.Int `json:"s"` // Generator S
		G          *big.Int `json:"g,omitempty"` // Generator G for revocation
		H          *big.Int `json:"h,omitempty"` // Generator H for revocation
		R          Bases    `json:"r"`

		Schema         *CredentialSchema    `json:"attributes"`
		CorrectnessPrf *KeyCorrectnessProof `json:"keyCorrectnessProof,omitempty"`
		ECDSAString    string               `json:"ecdsa,omitempty"`

		ECDSA  *ecdsa.PublicKey  `json:"-"`
		Params *SystemParameters `json:"-"`
		Issuer string            `json:"-"`

		sTable exptable.Table
	}

	// PrivateKey represents an issuer's private key.
	PrivateKey struct {
		Counter     uint     `json:"counter"`
		ExpiryDate  int64    `json:"expiryDate"`
		P           *big.Int `json:"p"`
		Q           *big.Int `json:"q"`
		PPrime      *big.Int `json:"pPrime"`
		QPrime      *big.Int `json:"qPrime"`
		ECDSAString string   `json:"ecdsa,omitempty"`

		N     *big.Int          `json:"-"`
		ECDSA *ecdsa.PrivateKey `json:"-"`
		Order *big.Int          `json:"-"`
	}

	Bases []*big.Int
)

// sTableWindow is the window size of the precomputed fixed-base table for S.
const sTableWindow = 7

// NewPrivateKey creates a new issuer private key using the provided parameters.
func NewPrivateKey(p, q *big.Int, ecdsa string, counter uint, expiryDate time.Time) (*PrivateKey, error) {
	sk := PrivateKey{
		P:           p,
		Q:           q,
		N:           new(big.Int).Mul(p, q),
		PPrime:      new(big.Int).Rsh(p, 1),
		QPrime:      new(big.Int).Rsh(q, 1),
		Counter:     counter,
		ExpiryDate:  expiryDate.Unix(),
		ECDSAString: ecdsa,
	}

	sk.Order = new(big.Int).Mul(sk.PPrime, sk.QPrime)
	if err := sk.parseRevocationKey(); err != nil {
		return nil, err
	}

	return &sk, nil
}

// NewPrivateKeyFromBytes creates a new issuer private key from its JSON
// encoding. Unless demo is set, the key data is sanity checked first.
func NewPrivateKeyFromBytes(bts []byte, demo bool) (*PrivateKey, error) {
	privk := &PrivateKey{}
	if err := json.Unmarshal(bts, privk); err != nil {
		return nil, err
	}

	if !demo {
		if err := privk.Validate(); err != nil {
			return nil, err
		}
	}

	privk.N = new(big.Int).Mul(privk.P, privk.Q)
	privk.Order = new(big.Int).Mul(privk.PPrime, privk.QPrime)
	if err := privk.parseRevocationKey(); err != nil {
		return nil, err
	}

	return privk, nil
}

// NewPrivateKeyFromFile creates a new issuer private key from a JSON file.
func NewPrivateKeyFromFile(filename string, demo bool) (*PrivateKey, error) {
	bts, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewPrivateKeyFromBytes(bts, demo)
}

func (privk *PrivateKey) Validate() error {
	if new(big.Int).Rsh(new(big.Int).Sub(privk.P, big.NewInt(1)), 1).Cmp(privk.PPrime) != 0 {
		return errors.New("Incompatible values for P and P'")
	}
	if new(big.Int).Rsh(new(big.Int).Sub(privk.Q, big.NewInt(1)), 1).Cmp(privk.QPrime) != 0 {
		return errors.New("Incompatible values for Q and Q'")
	}
	if !safeprime.ProbablySafePrime(privk.P, big.DefaultPrimalityRounds) {
		return errors.New("P is not a safe prime")
	}
	if !safeprime.ProbablySafePrime(privk.Q, big.DefaultPrimalityRounds) {
		return errors.New("Q is not a safe prime")
	}
	return nil
}

// WriteTo writes the JSON-serialized private key to the given writer.
func (privk *PrivateKey) WriteTo(writer io.Writer) (int64, error) {
	b, err := json.MarshalIndent(privk, "", "   ")
	if err != nil {
		return 0, err
	}
	n, err := writer.Write(b)
	return int64(n), err
}

// WriteToFile writes the private key to a JSON file. If any existing file with
// the same filename should be overwritten, set forceOverwrite to true.
func (privk *PrivateKey) WriteToFile(filename string, forceOverwrite bool) (int64, error) {
	var f *os.File
	var err error
	if forceOverwrite {
		f, err = os.Create(filename)
	} else {
		// This should return an error if the file already exists
		f, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	}
	if err != nil {
		return 0, err
	}
	defer common.Close(f)

	return privk.WriteTo(f)
}

func (privk *PrivateKey) parseRevocationKey() error {
	if privk.ECDSA != nil || !privk.RevocationSupported() {
		return nil
	}
	bts, err := base64.StdEncoding.DecodeString(privk.ECDSAString)
	if err != nil {
		return err
	}
	key, err := signed.UnmarshalPrivateKey(bts)
	if err != nil {
		return err
	}
	privk.ECDSA = key
	return nil
}

func (privk *PrivateKey) RevocationSupported() bool {
	return len(privk.ECDSAString) > 0
}

// GenerateRevocationKeypair equips the keypair with revocation capability: an
// ECDSA keypair signing accumulator updates, and the accumulator bases G and H.
func GenerateRevocationKeypair(privk *PrivateKey, pubk *PublicKey) error {
	if pubk.RevocationSupported() || privk.RevocationSupported() {
		return errors.New("revocation parameters already present")
	}

	key, err := signed.GenerateKey()
	if err != nil {
		return err
	}
	dsabts, err := signed.MarshalPrivateKey(key)
	if err != nil {
		return err
	}
	pubdsabts, err := signed.MarshalPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}

	privk.ECDSAString = base64.StdEncoding.EncodeToString(dsabts)
	privk.ECDSA = key
	pubk.ECDSAString = base64.StdEncoding.EncodeToString(pubdsabts)
	pubk.ECDSA = &key.PublicKey
	pubk.G = common.RandomQR(pubk.N)
	pubk.H = common.RandomQR(pubk.N)

	return nil
}

// NewPublicKey creates and returns a new public key based on the provided parameters.
func NewPublicKey(N, Z, S, G, H *big.Int, R []*big.Int, schema *CredentialSchema, ecdsa string, counter uint, expiryDate time.Time) (*PublicKey, error) {
	pk := &PublicKey{
		Counter:     counter,
		ExpiryDate:  expiryDate.Unix(),
		N:           N,
		Z:           Z,
		S:           S,
		R:           R,
		G:           G,
		H:           H,
		Schema:      schema,
		Params:      DefaultSystemParameters[N.BitLen()],
		ECDSAString: ecdsa,
	}

	if err := pk.parseRevocationKey(); err != nil {
		return nil, err
	}
	pk.computeSTable()
	return pk, nil
}

// NewPublicKeyFromBytes creates a new issuer public key from its JSON encoding.
func NewPublicKeyFromBytes(bts []byte) (*PublicKey, error) {
	pubk := &PublicKey{}
	if err := json.Unmarshal(bts, pubk); err != nil {
		return nil, err
	}
	keylength := pubk.N.BitLen()
	sysparam, ok := DefaultSystemParameters[keylength]
	if !ok {
		return nil, errors.Errorf("Unknown keylength %d", keylength)
	}
	pubk.Params = sysparam
	if err := pubk.parseRevocationKey(); err != nil {
		return nil, err
	}
	pubk.computeSTable()
	return pubk, nil
}

// NewPublicKeyFromFile creates a new issuer public key from a JSON file.
func NewPublicKeyFromFile(filename string) (*PublicKey, error) {
	bts, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewPublicKeyFromBytes(bts)
}

func (pubk *PublicKey) parseRevocationKey() error {
	if pubk.ECDSA != nil || !pubk.RevocationSupported() {
		return nil
	}
	bts, err := base64.StdEncoding.DecodeString(pubk.ECDSAString)
	if err != nil {
		return err
	}
	dsakey, err := signed.UnmarshalPublicKey(bts)
	if err != nil {
		return err
	}
	pubk.ECDSA = dsakey
	return nil
}

func (pubk *PublicKey) RevocationSupported() bool {
	return pubk.G != nil && pubk.H != nil && len(pubk.ECDSAString) > 0
}

// computeSTable precomputes the fixed-base exponentiation table for S, which
// speeds up the many S^x computations during key and proof generation.
func (pubk *PublicKey) computeSTable() {
	pubk.sTable.Compute(pubk.S.Go(), pubk.N.Go(), sTableWindow)
}

// WriteTo writes the JSON-serialized public key to the given writer.
func (pubk *PublicKey) WriteTo(writer io.Writer) (int64, error) {
	b, err := json.MarshalIndent(pubk, "", "   ")
	if err != nil {
		return 0, err
	}
	n, err := writer.Write(b)
	return int64(n), err
}

// WriteToFile writes the public key to a JSON file. If any existing file with
// the same filename should be overwritten, set forceOverwrite to true.
func (pubk *PublicKey) WriteToFile(filename string, forceOverwrite bool) (int64, error) {
	var f *os.File
	var err error
	if forceOverwrite {
		f, err = os.Create(filename)
	} else {
		// This should return an error if the file already exists
		f, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	}
	if err != nil {
		return 0, err
	}
	defer common.Close(f)

	return pubk.WriteTo(f)
}

// findMatch returns the first element of safeprimes that makes a suitable pair with p:
// p*q has the required bit length and p != q mod 8.
func findMatch(safeprimes []*big.Int, param *SystemParameters, p *big.Int,
	n, pMod8, qMod8 *big.Int, // temp vars allocated by caller
) *big.Int {
	for _, q := range safeprimes {
		if uint(n.Mul(p, q).BitLen()) == param.Ln && pMod8.Mod(p, big.NewInt(8)).Cmp(qMod8.Mod(q, big.NewInt(8))) != 0 {
			return q
		}
	}
	return nil
}

func generateSafePrimePair(param *SystemParameters) (*big.Int, *big.Int, error) {
	primeSize := param.Ln / 2

	// Declare and allocate all vars outside the loop and outside the helper function above
	stop := make(chan struct{})
	safeprimes := make([]*big.Int, 0, 10) // store all generated safe primes until we find a suitable pair
	pPrime, pPrimeMod8, pMod8, qMod8, n := new(big.Int), new(big.Int), new(big.Int), new(big.Int), new(big.Int)
	var p, q *big.Int
	var err error

	// Start generating safe primes
	ints, errs := safeprime.GenerateConcurrent(int(primeSize), stop)

	// Receive safe prime results in a loop, until we have a suitable pair of safe primes.
loop: // we need this label to continue the for loop from within the select below
	for {
		select { // wait for and then handle an incoming bigint or error, whichever comes first

		case p = <-ints:
			pPrimeMod8.Mod(pPrime.Rsh(p, 1), big.NewInt(8))
			// p is our candidate safe prime, set p' = (p-1)/2. Check that p' mod 8 != 1
			if pPrimeMod8.Cmp(big.NewInt(1)) == 0 {
				continue loop
			}
			// If we have earlier found other candidates, see if any pair of them fits all requirements
			if q = findMatch(safeprimes, param, p, n, pMod8, qMod8); len(safeprimes) == 0 || q == nil {
				safeprimes = append(safeprimes, p) // include p as it might match with future safe primes
				continue loop
			}
			close(stop) // We have enough, stop safeprime.GenerateConcurrent()
			return p, q, nil

		case err = <-errs:
			close(stop) // Something went wrong during safe prime generation, abort
			return nil, nil, err

		}
	}
}

// GenerateKeyPair generates a private/public keypair for an issuer, with one
// signing base per schema attribute plus one for the master secret. The public
// key carries a proof of its own correct formation. If supportRevocation is
// set, the keypair additionally gets revocation capability.
func GenerateKeyPair(param *SystemParameters, schema *CredentialSchema, supportRevocation bool, counter uint, expiryDate time.Time) (*PrivateKey, *PublicKey, error) {
	p, q, err := generateSafePrimePair(param)
	if err != nil {
		return nil, nil, err
	}

	priv := &PrivateKey{
		P:          p,
		Q:          q,
		N:          new(big.Int).Mul(p, q),
		PPrime:     new(big.Int).Rsh(p, 1),
		QPrime:     new(big.Int).Rsh(q, 1),
		Counter:    counter,
		ExpiryDate: expiryDate.Unix(),
	}
	priv.Order = new(big.Int).Mul(priv.PPrime, priv.QPrime)

	pubk := &PublicKey{
		Params: param, Schema: schema, Counter: counter, ExpiryDate: expiryDate.Unix(),
	}
	pubk.N = priv.N

	// Find an acceptable value for S: pick a random l_n value and check
	// whether it is a quadratic residue modulo n
	var s *big.Int
	for {
		s, err = common.RandomBigInt(param.Ln)
		if err != nil {
			return nil, nil, err
		}
		// check if S \elem Z_n
		if s.Cmp(pubk.N) > 0 {
			continue
		}
		if common.LegendreSymbol(s, priv.P) == 1 && common.LegendreSymbol(s, priv.Q) == 1 {
			break
		}
	}

	pubk.S = s
	pubk.computeSTable()

	// Derive Z and the R_i from S through the fixed-base table, keeping the
	// exponents around for the key correctness proof below.
	numBases := schema.NumBases()
	exps := make([]*big.Int, numBases+1)
	primeSize := param.Ln / 2
	for i := range exps {
		var x *big.Int
		for {
			x, err = common.RandomBigInt(primeSize)
			if err != nil {
				return nil, nil, err
			}
			if x.Cmp(big.NewInt(2)) > 0 && x.Cmp(pubk.N) < 0 {
				break
			}
		}
		exps[i] = x
	}

	pubk.Z = new(big.Int)
	pubk.sTable.Exp(pubk.Z.Go(), exps[0].Go())
	pubk.R = make([]*big.Int, numBases)
	for i := 0; i < numBases; i++ {
		pubk.R[i] = new(big.Int)
		pubk.sTable.Exp(pubk.R[i].Go(), exps[i+1].Go())
	}

	pubk.CorrectnessPrf, err = proveKeyCorrectness(priv, pubk, exps[0], exps[1:])
	if err != nil {
		return nil, nil, err
	}

	if supportRevocation {
		if err = GenerateRevocationKeypair(priv, pubk); err != nil {
			return nil, nil, err
		}
	}

	return priv, pubk, nil
}

// Modulus returns the modulus n of the public key.
func (pubk *PublicKey) Modulus() *big.Int {
	return pubk.N
}

// Base returns the named base of the public key, or nil if it has no such base.
func (pubk *PublicKey) Base(name string) *big.Int {
	switch {
	case name == "Z":
		return pubk.Z
	case name == "S":
		return pubk.S
	case name == "G":
		return pubk.G
	case name == "H":
		return pubk.H
	case name[0] == 'R':
		i, err := strconv.Atoi(name[1:])
		if err != nil || i < 0 || i >= len(pubk.R) {
			return nil
		}
		return pubk.R[i]
	default:
		return nil
	}
}

// Exp sets ret to base^exp mod n for the named base, going through the
// precomputed table for S where it applies.
func (pubk *PublicKey) Exp(ret *big.Int, name string, exp, n *big.Int) bool {
	if name == "S" && exp.Sign() >= 0 && exp.BitLen() <= pubk.N.BitLen() && n.Cmp(pubk.N) == 0 {
		pubk.sTable.Exp(ret.Go(), exp.Go())
		return true
	}
	base := pubk.Base(name)
	if base == nil {
		return false
	}
	ret.Exp(base, exp, n)
	return true
}

func (pubk *PublicKey) Names() []string {
	names := []string{"Z", "S"}
	if pubk.G != nil && pubk.H != nil {
		names = append(names, "G", "H")
	}
	for i := range pubk.R {
		names = append(names, fmt.Sprintf("R%d", i))
	}
	return names
}
