package revocation

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
	"github.com/credentials/anoncreds/signed"
)

func init() {
	Logger = logrus.StandardLogger()
	Logger.SetLevel(logrus.FatalLevel)
}

func s2big(s string) (r *big.Int) {
	r, _ = new(big.Int).SetString(s, 10)
	return
}

var (
	testP = s2big("10436034022637868273483137633548989700482895839559909621411910579140541345632481969613724849214412062500244238926015929148144084368427474551770487566048119")
	testQ = s2big("9204968012315139729618449685392284928468933831570080795536662422367142181432679739143882888540883909887054345986640656981843559062844656131133512640733759")
	testN = s2big("96063359353814070257464989369098573470645843347358957127875426328487326540633303185702306359400766259130239226832166456957259123554826741975265634464478609571816663003684533868318795865194004795637221226902067194633407757767792795252414073029114153019362701793292862118990912516058858923030408920700061749321")
)

func testKeys(t *testing.T) (*PrivateKey, *PublicKey) {
	eckey, err := signed.GenerateKey()
	require.NoError(t, err)

	grp := NewQrGroup(testN, common.RandomQR(testN), common.RandomQR(testN))
	sk := &PrivateKey{
		Counter: 0,
		ECDSA:   eckey,
		P:       new(big.Int).Rsh(testP, 1),
		Q:       new(big.Int).Rsh(testQ, 1),
		N:       testN,
	}
	pk := &PublicKey{
		Counter: 0,
		ECDSA:   &eckey.PublicKey,
		Group:   &grp,
	}
	return sk, pk
}

type testKeystore struct {
	pk *PublicKey
}

func (ks testKeystore) PublicKey(counter uint) (*PublicKey, error) {
	return ks.pk, nil
}

func signUpdate(t *testing.T, sk *PrivateKey, update *AccumulatorUpdate) signed.Message {
	msg, err := signed.MarshalSign(sk.ECDSA, update)
	require.NoError(t, err)
	return msg
}

func TestAccumulator(t *testing.T) {
	sk, pk := testKeys(t)

	msg, acc, err := NewAccumulator(sk)
	require.NoError(t, err)
	require.Equal(t, uint64(0), acc.Index)

	var update AccumulatorUpdate
	require.NoError(t, signed.UnmarshalVerify(pk.ECDSA, msg, &update))
	require.Zero(t, update.Accumulator.Nu.Cmp(acc.Nu))

	witness, err := RandomWitness(sk, acc)
	require.NoError(t, err)
	require.True(t, verify(witness.U, witness.E, acc, pk.Group))
	require.NoError(t, witness.UpToDate(acc))

	// adding and then removing a factor leaves the accumulator value unchanged
	e, err := randomWitnessFactor()
	require.NoError(t, err)
	acc1 := acc.Add(sk, e)
	require.Equal(t, uint64(1), acc1.Index)
	require.NotZero(t, acc1.Nu.Cmp(acc.Nu))

	acc2, err := acc1.Remove(sk, e)
	require.NoError(t, err)
	require.Equal(t, uint64(2), acc2.Index)
	require.Zero(t, acc2.Nu.Cmp(acc.Nu))

	require.ErrorIs(t, witness.UpToDate(acc1), ErrStaleWitness)
}

func TestWitnessUpdate(t *testing.T) {
	sk, pk := testKeys(t)

	_, acc, err := NewAccumulator(sk)
	require.NoError(t, err)
	witness, err := RandomWitness(sk, acc)
	require.NoError(t, err)

	// another credential is issued
	e, err := randomWitnessFactor()
	require.NoError(t, err)
	acc1 := acc.Add(sk, e)
	msg := signUpdate(t, sk, &AccumulatorUpdate{
		Accumulator: *acc1,
		StartIndex:  1,
		Events:      []Event{{Index: 1, E: e, Removed: false}},
	})
	require.NoError(t, witness.Update(pk, msg))
	require.True(t, verify(witness.U, witness.E, acc1, pk.Group))
	require.NoError(t, witness.UpToDate(acc1))

	// and revoked again
	acc2, err := acc1.Remove(sk, e)
	require.NoError(t, err)
	msg = signUpdate(t, sk, &AccumulatorUpdate{
		Accumulator: *acc2,
		StartIndex:  2,
		Events:      []Event{{Index: 2, E: e, Removed: true}},
	})
	require.NoError(t, witness.Update(pk, msg))
	require.True(t, verify(witness.U, witness.E, acc2, pk.Group))

	// applying the same update again is a no-op
	u := new(big.Int).Set(witness.U)
	require.NoError(t, witness.Update(pk, msg))
	require.Zero(t, witness.U.Cmp(u))

	// revoking the witness's own factor makes the update fail
	acc3, err := acc2.Remove(sk, witness.E)
	require.NoError(t, err)
	msg = signUpdate(t, sk, &AccumulatorUpdate{
		Accumulator: *acc3,
		StartIndex:  3,
		Events:      []Event{{Index: 3, E: witness.E, Removed: true}},
	})
	require.ErrorIs(t, witness.Update(pk, msg), ErrRevoked)
	require.Equal(t, uint64(2), witness.Index)
}

func TestProof(t *testing.T) {
	sk, pk := testKeys(t)

	_, acc, err := NewAccumulator(sk)
	require.NoError(t, err)
	witness, err := RandomWitness(sk, acc)
	require.NoError(t, err)

	list, commit, err := NewProofCommit(pk.Group, witness, nil)
	require.NoError(t, err)

	challenge := common.HashCommit(list, false)
	proof := commit.BuildProof(challenge)
	require.Equal(t, acc.Index, proof.Index)

	contributions := proof.ChallengeContributions(pk.Group)
	require.True(t, proof.VerifyWithChallenge(common.HashCommit(contributions, false)))

	// two proofs of the same witness have different commitments
	list2, _, err := NewProofCommit(pk.Group, witness, nil)
	require.NoError(t, err)
	assert.NotZero(t, list[0].Cmp(list2[0]))
	assert.NotZero(t, list[1].Cmp(list2[1]))

	// tampering with a response invalidates the proof
	proof.Results["alpha"] = new(big.Int).Add(proof.Results["alpha"], big.NewInt(1))
	contributions = proof.ChallengeContributions(pk.Group)
	require.False(t, proof.VerifyWithChallenge(common.HashCommit(contributions, false)))
}

func TestProofStructure(t *testing.T) {
	sk, pk := testKeys(t)

	_, acc, err := NewAccumulator(sk)
	require.NoError(t, err)
	witness, err := RandomWitness(sk, acc)
	require.NoError(t, err)

	list, commit, err := NewProofCommit(pk.Group, witness, nil)
	require.NoError(t, err)
	prf := commit.BuildProof(common.HashCommit(list, false))

	require.True(t, proofstructure.verifyProofStructure((*proof)(prf)))

	cr := prf.Cr
	prf.Cr = nil
	require.False(t, proofstructure.verifyProofStructure((*proof)(prf)))
	prf.Cr = cr

	delta := prf.Results["delta"]
	delete(prf.Results, "delta")
	require.False(t, proofstructure.verifyProofStructure((*proof)(prf)))
	prf.Results["delta"] = delta

	// a witness that does not satisfy the accumulator relation is rejected
	witness.U = new(big.Int).Add(witness.U, big.NewInt(1))
	_, _, err = NewProofCommit(pk.Group, witness, nil)
	require.Error(t, err)
}

func TestDB(t *testing.T) {
	sk, pk := testKeys(t)
	path := filepath.Join(t.TempDir(), "revocation.db")

	db, err := LoadDB(path, testKeystore{pk})
	require.NoError(t, err)

	require.False(t, db.Enabled())
	require.NoError(t, db.EnableRevocation(sk, 3))
	require.True(t, db.Enabled())

	w1, err := db.IssueWitness(sk, "alice", 0)
	require.NoError(t, err)
	require.NoError(t, w1.Verify(pk))
	w2, err := db.IssueWitness(sk, "bob", 0)
	require.NoError(t, err)
	_, err = db.IssueWitness(sk, "carol", 0)
	require.NoError(t, err)

	// capacity is 3, so a fourth issuance fails
	_, err = db.IssueWitness(sk, "dave", 0)
	require.ErrorIs(t, err, ErrIndexExhausted)

	exists, err := db.KeyExists("bob")
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = db.KeyExists("dave")
	require.NoError(t, err)
	require.False(t, exists)

	// w1 lags behind the accumulator and must update before proving
	require.ErrorIs(t, w1.UpToDate(&db.Current), ErrStaleWitness)
	records, err := db.RevocationRecords(int(w1.Index) + 1)
	require.NoError(t, err)
	for i := range records {
		require.NoError(t, w1.Update(pk, records[i].Message))
	}
	require.NoError(t, w1.UpToDate(&db.Current))
	require.True(t, verify(w1.U, w1.E, &db.Current, pk.Group))

	// revoke bob
	require.NoError(t, db.Revoke(sk, "bob"))
	ir, err := db.IssuanceRecord("bob")
	require.NoError(t, err)
	require.NotZero(t, ir.RevokedAt)

	// w1 can still be refreshed, w2 cannot
	require.ErrorIs(t, w1.UpToDate(&db.Current), ErrStaleWitness)
	records, err = db.RevocationRecords(int(w1.Index) + 1)
	require.NoError(t, err)
	for i := range records {
		require.NoError(t, w1.Update(pk, records[i].Message))
	}
	require.True(t, verify(w1.U, w1.E, &db.Current, pk.Group))

	records, err = db.RevocationRecords(int(w2.Index) + 1)
	require.NoError(t, err)
	err = nil
	for i := range records {
		if err = w2.Update(pk, records[i].Message); err != nil {
			break
		}
	}
	require.ErrorIs(t, err, ErrRevoked)

	// the tails entry of a revoked index can no longer produce a valid witness
	e, err := db.TailsEntry(ir.CredentialIndex)
	require.NoError(t, err)
	require.Zero(t, e.Cmp(w2.E))
	require.False(t, verify(w2.U, w2.E, &db.Current, pk.Group))

	// the current accumulator is recomputable from the genesis value, the tails
	// table and the set of revoked indices
	genesisRecords, err := db.RevocationRecords(0)
	require.NoError(t, err)
	genesis, err := genesisRecords[0].UnmarshalVerifyKeystore(testKeystore{pk})
	require.NoError(t, err)
	require.Equal(t, uint64(0), genesis.Accumulator.Index)

	tails, err := db.Tails()
	require.NoError(t, err)
	recomputed := tails.Accumulate(genesis.Accumulator.Nu, map[uint64]struct{}{ir.CredentialIndex: {}}, pk.Group.N)
	require.Zero(t, recomputed.Cmp(db.Current.Nu))

	fingerprint, err := tails.Fingerprint()
	require.NoError(t, err)
	require.NotEmpty(t, fingerprint)

	// state survives reopening
	index := db.Current.Index
	require.NoError(t, db.Close())
	db, err = LoadDB(path, testKeystore{pk})
	require.NoError(t, err)
	require.NoError(t, db.LoadCurrent())
	require.Equal(t, index, db.Current.Index)
	require.NoError(t, db.Close())
}

func TestTailsTable(t *testing.T) {
	table := NewTailsTable(2)

	fp0, err := table.Fingerprint()
	require.NoError(t, err)

	i, e, err := table.Add()
	require.NoError(t, err)
	require.Equal(t, uint64(0), i)
	require.True(t, e.ProbablyPrime(big.DefaultPrimalityRounds))

	i, _, err = table.Add()
	require.NoError(t, err)
	require.Equal(t, uint64(1), i)

	_, _, err = table.Add()
	require.ErrorIs(t, err, ErrIndexExhausted)

	entry, err := table.Entry(0)
	require.NoError(t, err)
	require.Zero(t, entry.Cmp(e))
	_, err = table.Entry(2)
	require.Error(t, err)

	fp1, err := table.Fingerprint()
	require.NoError(t, err)
	require.NotEqual(t, fp0, fp1)
}

func TestRecordValidation(t *testing.T) {
	sk, pk := testKeys(t)

	_, acc, err := NewAccumulator(sk)
	require.NoError(t, err)
	e, err := randomWitnessFactor()
	require.NoError(t, err)
	acc1 := acc.Add(sk, e)
	msg := signUpdate(t, sk, &AccumulatorUpdate{
		Accumulator: *acc1,
		StartIndex:  1,
		Events:      []Event{{Index: 1, E: e, Removed: false}},
	})

	record := &Record{StartIndex: 1, EndIndex: 1, PublicKeyIndex: 0, Message: msg}
	update, err := record.UnmarshalVerify(pk)
	require.NoError(t, err)
	require.Equal(t, uint64(1), update.Accumulator.Index)

	record.StartIndex = 0
	_, err = record.UnmarshalVerify(pk)
	require.Error(t, err)
	record.StartIndex = 1

	record.EndIndex = 2
	_, err = record.UnmarshalVerify(pk)
	require.Error(t, err)
	record.EndIndex = 1

	// a modified message no longer verifies against the issuer key
	tampered := make(signed.Message, len(msg))
	copy(tampered, msg)
	tampered[len(tampered)-1] ^= 0x01
	record.Message = tampered
	_, err = record.UnmarshalVerify(pk)
	require.Error(t, err)
}
