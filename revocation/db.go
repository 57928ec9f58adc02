package revocation

import (
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/timshannon/bolthold"
	bolt "go.etcd.io/bbolt"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/signed"
)

type (
	// Keystore provides support for revocation public key rollover.
	Keystore interface {
		// PublicKey either returns the specified, non-nil public key or an error
		PublicKey(counter uint) (*PublicKey, error)
	}

	// DB is a bolthold database storing the revocation state of a particular
	// accumulator: its update Record instances, its tails entries, and
	// IssuanceRecord instances if used by an issuer. Mutating methods take a write
	// lock so a single DB may be shared between an issuance and multiple
	// verification handlers.
	DB struct {
		Current  Accumulator
		bolt     *bolthold.Store
		keystore Keystore
		mu       sync.RWMutex
	}

	// IssuanceRecord contains information generated during issuance, needed for
	// later revocation.
	IssuanceRecord struct {
		Key             string
		CredentialIndex uint64 // index into the tails table
		Attr            *big.Int
		Issued          int64
		ValidUntil      int64
		RevokedAt       int64 // 0 if not currently revoked
	}

	currentRecord struct {
		Index uint64
	}

	tailsEntry struct {
		E *big.Int
	}

	tailsMeta struct {
		Capacity uint64
		Next     uint64 // next free credential index
	}
)

const (
	boltCurrentIndexKey = "currentIndex"
	boltTailsMetaKey    = "tailsMeta"
)

func LoadDB(path string, keystore Keystore) (*DB, error) {
	b, err := bolthold.Open(path, 0600, &bolthold.Options{Options: &bolt.Options{Timeout: 1 * time.Second}})
	if err != nil {
		return nil, err
	}
	return &DB{
		bolt:     b,
		keystore: keystore,
	}, nil
}

// EnableRevocation initializes the database with a fresh accumulator and an empty
// tails table of the given capacity.
func (rdb *DB) EnableRevocation(sk *PrivateKey, capacity uint64) error {
	rdb.mu.Lock()
	defer rdb.mu.Unlock()

	msg, _, err := NewAccumulator(sk)
	if err != nil {
		return err
	}
	if err = rdb.addSigned(msg, sk.Counter); err != nil {
		return err
	}
	return rdb.bolt.Upsert(boltTailsMetaKey, &tailsMeta{Capacity: capacity})
}

// IssueWitness assigns the next free credential index, accumulates a fresh witness
// factor into the accumulator, stores the signed update record and an issuance
// record under the given key, and returns the nonrevocation witness for the new
// credential. Returns ErrIndexExhausted when the tails table is full.
func (rdb *DB) IssueWitness(sk *PrivateKey, key string, validUntil int64) (*Witness, error) {
	rdb.mu.Lock()
	defer rdb.mu.Unlock()

	var w *Witness
	err := rdb.bolt.Bolt().Update(func(tx *bolt.Tx) error {
		var meta tailsMeta
		if err := rdb.bolt.TxGet(tx, boltTailsMetaKey, &meta); err != nil {
			return err
		}
		if meta.Next >= meta.Capacity {
			return ErrIndexExhausted
		}

		e, err := randomWitnessFactor()
		if err != nil {
			return err
		}
		if err = rdb.bolt.TxInsert(tx, meta.Next, &tailsEntry{E: e}); err != nil {
			return err
		}
		credIndex := meta.Next
		meta.Next++
		if err = rdb.bolt.TxUpdate(tx, boltTailsMetaKey, &meta); err != nil {
			return err
		}

		newAcc := rdb.Current.Add(sk, e)
		update := AccumulatorUpdate{
			Accumulator: *newAcc,
			StartIndex:  newAcc.Index,
			Events:      []Event{{Index: newAcc.Index, E: e, Removed: false}},
			Time:        time.Now().UnixNano(),
		}
		updateMsg, err := signed.MarshalSign(sk.ECDSA, &update)
		if err != nil {
			return err
		}
		record, err := rdb.add(update, updateMsg, sk.Counter, tx)
		if err != nil {
			return err
		}

		if err = rdb.bolt.TxInsert(tx, []byte(key), &IssuanceRecord{
			Key:             key,
			CredentialIndex: credIndex,
			Attr:            e,
			Issued:          time.Now().UnixNano(),
			ValidUntil:      validUntil,
		}); err != nil {
			return err
		}

		if w, err = newWitness(sk, newAcc, e); err != nil {
			return err
		}
		w.Record = record
		logf("issued witness for credential index %d, accumulator now at %d", credIndex, newAcc.Index)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Revoke revokes the credential specified by key if found within the current
// database, by updating its revocation time to now, removing its witness factor
// from the current accumulator, and updating the revocation database on disk.
func (rdb *DB) Revoke(sk *PrivateKey, key string) error {
	rdb.mu.Lock()
	defer rdb.mu.Unlock()

	return rdb.bolt.Bolt().Update(func(tx *bolt.Tx) error {
		var err error
		cr := IssuanceRecord{}
		if err = rdb.bolt.TxGet(tx, []byte(key), &cr); err != nil {
			return err
		}
		cr.RevokedAt = time.Now().UnixNano()
		if err = rdb.bolt.TxUpdate(tx, []byte(key), &cr); err != nil {
			return err
		}
		return rdb.revokeAttr(sk, cr.Attr, tx)
	})
}

// RevocationRecords returns all records that a client requires to update its
// revocation state if it is currently at the specified index, that is, all records
// whose end index is greater than or equal to the specified index.
func (rdb *DB) RevocationRecords(index int) ([]Record, error) {
	rdb.mu.RLock()
	defer rdb.mu.RUnlock()

	var records []Record
	if err := rdb.bolt.Find(&records, bolthold.Where(bolthold.Key).Ge(uint64(index))); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("not found")
	}
	return records, nil
}

func (rdb *DB) LatestRecords(count int) ([]Record, error) {
	rdb.mu.RLock()
	c := int(rdb.Current.Index) - count + 1
	rdb.mu.RUnlock()
	if c < 0 {
		c = 0
	}
	return rdb.RevocationRecords(c)
}

func (rdb *DB) KeyExists(key string) (bool, error) {
	_, err := rdb.IssuanceRecord(key)
	switch err {
	case nil:
		return true, nil
	case bolthold.ErrNotFound:
		return false, nil
	default:
		return false, err
	}
}

func (rdb *DB) IssuanceRecord(key string) (*IssuanceRecord, error) {
	rdb.mu.RLock()
	defer rdb.mu.RUnlock()

	r := &IssuanceRecord{}
	if err := rdb.bolt.Get([]byte(key), r); err != nil {
		return nil, err
	}
	return r, nil
}

// TailsEntry returns the witness factor of the given credential index without
// loading the rest of the table.
func (rdb *DB) TailsEntry(index uint64) (*big.Int, error) {
	rdb.mu.RLock()
	defer rdb.mu.RUnlock()

	var entry tailsEntry
	if err := rdb.bolt.Get(index, &entry); err != nil {
		return nil, err
	}
	return entry.E, nil
}

// Tails returns the full tails table.
func (rdb *DB) Tails() (*TailsTable, error) {
	rdb.mu.RLock()
	defer rdb.mu.RUnlock()

	var meta tailsMeta
	if err := rdb.bolt.Get(boltTailsMetaKey, &meta); err != nil {
		return nil, err
	}
	table := NewTailsTable(meta.Capacity)
	for i := uint64(0); i < meta.Next; i++ {
		var entry tailsEntry
		if err := rdb.bolt.Get(i, &entry); err != nil {
			return nil, err
		}
		table.Entries = append(table.Entries, entry.E)
	}
	return table, nil
}

// Add verifies the signature on the given accumulator update message against the
// key indicated by counter, and stores it.
func (rdb *DB) Add(updateMsg signed.Message, counter uint) error {
	rdb.mu.Lock()
	defer rdb.mu.Unlock()
	return rdb.addSigned(updateMsg, counter)
}

func (rdb *DB) addSigned(updateMsg signed.Message, counter uint) error {
	var update AccumulatorUpdate

	pk, err := rdb.keystore.PublicKey(counter)
	if err != nil {
		return err
	}

	if err = signed.UnmarshalVerify(pk.ECDSA, updateMsg, &update); err != nil {
		return err
	}

	return rdb.bolt.Bolt().Update(func(tx *bolt.Tx) error {
		_, err := rdb.add(update, updateMsg, counter, tx)
		return err
	})
}

func (rdb *DB) add(update AccumulatorUpdate, updateMsg signed.Message, pkCounter uint, tx *bolt.Tx) (*Record, error) {
	record := &Record{
		StartIndex:     update.StartIndex,
		EndIndex:       update.Accumulator.Index,
		PublicKeyIndex: pkCounter,
		Message:        updateMsg,
	}
	if err := rdb.bolt.TxInsert(tx, update.Accumulator.Index, record); err != nil {
		return nil, err
	}
	if err := rdb.bolt.TxUpsert(tx, boltCurrentIndexKey, &currentRecord{update.Accumulator.Index}); err != nil {
		return nil, err
	}

	rdb.Current = update.Accumulator
	return record, nil
}

func (rdb *DB) Enabled() bool {
	rdb.mu.RLock()
	defer rdb.mu.RUnlock()

	var currentIndex currentRecord
	err := rdb.bolt.Get(boltCurrentIndexKey, &currentIndex)
	return err == nil
}

func (rdb *DB) LoadCurrent() error {
	rdb.mu.Lock()
	defer rdb.mu.Unlock()

	var currentIndex currentRecord
	if err := rdb.bolt.Get(boltCurrentIndexKey, &currentIndex); err == bolthold.ErrNotFound {
		return errors.New("revocation database not initialized")
	} else if err != nil {
		return err
	}

	var record Record
	if err := rdb.bolt.Get(currentIndex.Index, &record); err != nil {
		return err
	}
	pk, err := rdb.keystore.PublicKey(record.PublicKeyIndex)
	if err != nil {
		return err
	}
	var u AccumulatorUpdate
	if err = signed.UnmarshalVerify(pk.ECDSA, record.Message, &u); err != nil {
		return err
	}
	rdb.Current = u.Accumulator
	return nil
}

func (rdb *DB) revokeAttr(sk *PrivateKey, e *big.Int, tx *bolt.Tx) error {
	// don't update rdb.Current until after all possible errors are handled
	newAcc, err := rdb.Current.Remove(sk, e)
	if err != nil {
		return err
	}
	update := AccumulatorUpdate{
		Accumulator: *newAcc,
		StartIndex:  newAcc.Index,
		Events:      []Event{{Index: newAcc.Index, E: e, Removed: true}},
		Time:        time.Now().UnixNano(),
	}
	updateMsg, err := signed.MarshalSign(sk.ECDSA, &update)
	if err != nil {
		return err
	}
	if _, err = rdb.add(update, updateMsg, sk.Counter, tx); err != nil {
		return err
	}
	logf("revoked witness factor, accumulator now at %d", newAcc.Index)
	return nil
}

func (rdb *DB) Close() error {
	if rdb.bolt != nil {
		return rdb.bolt.Close()
	}
	return nil
}

// UnmarshalVerifyKeystore resolves the record's public key from the keystore and
// verifies and returns the contained update.
func (r *Record) UnmarshalVerifyKeystore(keystore Keystore) (*AccumulatorUpdate, error) {
	pk, err := keystore.PublicKey(r.PublicKeyIndex)
	if err != nil {
		return nil, err
	}
	return r.UnmarshalVerify(pk)
}
