package keys

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credentials/anoncreds/big"
	"github.com/credentials/anoncreds/internal/common"
)

func s2big(s string) (r *big.Int) {
	r, _ = new(big.Int).SetString(s, 10)
	return
}

var (
	testP = s2big("10436034022637868273483137633548989700482895839559909621411910579140541345632481969613724849214412062500244238926015929148144084368427474551770487566048119")
	testQ = s2big("9204968012315139729618449685392284928468933831570080795536662422367142181432679739143882888540883909887054345986640656981843559062844656131133512640733759")
	testN = s2big("96063359353814070257464989369098573470645843347358957127875426328487326540633303185702306359400766259130239226832166456957259123554826741975265634464478609571816663003684533868318795865194004795637221226902067194633407757767792795252414073029114153019362701793292862118990912516058858923030408920700061749321")
	testS = s2big("68460510129747727135744503403370273952956360997532594630007762045745171031173231339034881007977792852962667675924510408558639859602742661846943843432940752427075903037429735029814040501385798095836297700111333573975220392538916785564158079116348699773855815825029476864341585033111676283214405517983188761136")
	testZ = s2big("44579327840225837958738167571392618381868336415293109834301264408385784355849790902532728798897199236650711385876328647206143271336410651651791998475869027595051047904885044274040212624547595999947339956165755500019260290516022753290814461070607850420459840370288988976468437318992206695361417725670417150636")

	rValues = []string{"75350858539899247205099195870657569095662997908054835686827949842616918065279527697469302927032348256512990413925385972530386004430200361722733856287145745926519366823425418198189091190950415327471076288381822950611094023093577973125683837586451857056904547886289627214081538422503416179373023552964235386251",
		"16493273636283143082718769278943934592373185321248797185217530224336539646051357956879850630049668377952487166494198481474513387080523771033539152347804895674103957881435528189990601782516572803731501616717599698546778915053348741763191226960285553875185038507959763576845070849066881303186850782357485430766",
		"13291821743359694134120958420057403279203178581231329375341327975072292378295782785938004910295078955941500173834360776477803543971319031484244018438746973179992753654070994560440903251579649890648424366061116003693414594252721504213975050604848134539324290387019471337306533127861703270017452296444985692840",
		"86332479314886130384736453625287798589955409703988059270766965934046079318379171635950761546707334446554224830120982622431968575935564538920183267389540869023066259053290969633312602549379541830869908306681500988364676409365226731817777230916908909465129739617379202974851959354453994729819170838277127986187",
		"68324072803453545276056785581824677993048307928855083683600441649711633245772441948750253858697288489650767258385115035336890900077233825843691912005645623751469455288422721175655533702255940160761555155932357171848703103682096382578327888079229101354304202688749783292577993444026613580092677609916964914513",
		"65082646756773276491139955747051924146096222587013375084161255582716233287172212541454173762000144048198663356249316446342046266181487801411025319914616581971563024493732489885161913779988624732795125008562587549337253757085766106881836850538709151996387829026336509064994632876911986826959512297657067426387"}
)

func testBases() Bases {
	R := make(Bases, len(rValues))
	for i, rv := range rValues {
		R[i] = s2big(rv)
	}
	return R
}

func testSchema(t *testing.T) *CredentialSchema {
	// one base is reserved for the master secret
	schema, err := NewCredentialSchema("firstname", "lastname", "birthdate", "city", "over18")
	require.NoError(t, err)
	require.Equal(t, len(rValues), schema.NumBases())
	return schema
}

func testKeyPair(t *testing.T) (*PrivateKey, *PublicKey) {
	expiry := time.Now().AddDate(1, 0, 0)
	sk, err := NewPrivateKey(testP, testQ, "", 0, expiry)
	require.NoError(t, err)
	pk, err := NewPublicKey(testN, testZ, testS, nil, nil, testBases(), testSchema(t), "", 0, expiry)
	require.NoError(t, err)
	return sk, pk
}

func TestPrivateKeyValidation(t *testing.T) {
	sk, _ := testKeyPair(t)
	require.NoError(t, sk.Validate())
	require.Zero(t, sk.N.Cmp(testN))

	var buf bytes.Buffer
	_, err := sk.WriteTo(&buf)
	require.NoError(t, err)
	parsed, err := NewPrivateKeyFromBytes(buf.Bytes(), false)
	require.NoError(t, err)
	require.Zero(t, parsed.Order.Cmp(sk.Order))

	tampered := *sk
	tampered.PPrime = new(big.Int).Add(sk.PPrime, big.NewInt(1))
	require.Error(t, tampered.Validate())

	tampered = *sk
	tampered.P = new(big.Int).Add(sk.P, big.NewInt(2))
	require.Error(t, tampered.Validate())
}

func TestSchema(t *testing.T) {
	_, err := NewCredentialSchema("name", "age", "name")
	require.ErrorIs(t, err, ErrDuplicateAttribute)

	schema, err := NewCredentialSchema("name", "age")
	require.NoError(t, err)
	require.Equal(t, []string{"name", "age"}, schema.Names())
	require.Equal(t, 3, schema.NumBases())

	i, err := schema.Index("name")
	require.NoError(t, err)
	require.Equal(t, 1, i)
	i, err = schema.Index("age")
	require.NoError(t, err)
	require.Equal(t, 2, i)
	_, err = schema.Index("city")
	require.ErrorIs(t, err, ErrUnknownAttribute)

	bts, err := json.Marshal(schema)
	require.NoError(t, err)
	require.JSONEq(t, `["name","age"]`, string(bts))
	var parsed CredentialSchema
	require.NoError(t, json.Unmarshal(bts, &parsed))
	require.Equal(t, schema.Names(), parsed.Names())
}

func TestPublicKeyJSON(t *testing.T) {
	_, pk := testKeyPair(t)

	var buf bytes.Buffer
	_, err := pk.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := NewPublicKeyFromBytes(buf.Bytes())
	require.NoError(t, err)
	require.Zero(t, parsed.N.Cmp(pk.N))
	require.Zero(t, parsed.Z.Cmp(pk.Z))
	require.Zero(t, parsed.S.Cmp(pk.S))
	require.Len(t, parsed.R, len(pk.R))
	for i := range pk.R {
		require.Zero(t, parsed.R[i].Cmp(pk.R[i]))
	}
	require.Equal(t, pk.Schema.Names(), parsed.Schema.Names())
	require.Equal(t, DefaultSystemParameters[1024], parsed.Params)
}

func TestPublicKeyBases(t *testing.T) {
	_, pk := testKeyPair(t)

	require.Zero(t, pk.Base("Z").Cmp(pk.Z))
	require.Zero(t, pk.Base("S").Cmp(pk.S))
	require.Zero(t, pk.Base("R0").Cmp(pk.R[0]))
	require.Zero(t, pk.Base("R5").Cmp(pk.R[5]))
	require.Nil(t, pk.Base("R6"))
	require.Nil(t, pk.Base("G"))
	require.Nil(t, pk.Base("X"))

	names := pk.Names()
	assert.Contains(t, names, "Z")
	assert.Contains(t, names, "R5")
	assert.NotContains(t, names, "G")

	// the fixed-base table must agree with plain exponentiation
	exp := common.FastRandomBigInt(pk.N)
	viaTable, plain := new(big.Int), new(big.Int)
	require.True(t, pk.Exp(viaTable, "S", exp, pk.N))
	plain.Exp(pk.S, exp, pk.N)
	require.Zero(t, viaTable.Cmp(plain))

	require.True(t, pk.Exp(viaTable, "R2", exp, pk.N))
	plain.Exp(pk.R[2], exp, pk.N)
	require.Zero(t, viaTable.Cmp(plain))

	require.False(t, pk.Exp(viaTable, "X", exp, pk.N))
}

func TestKeyCorrectnessProof(t *testing.T) {
	sk, pk := testKeyPair(t)

	// rebuild the bases from known discrete logs so a proof can be made
	xz := common.FastRandomBigInt(sk.Order)
	xr := make([]*big.Int, len(pk.R))
	pk.Z = new(big.Int).Exp(pk.S, xz, pk.N)
	for i := range xr {
		xr[i] = common.FastRandomBigInt(sk.Order)
		pk.R[i] = new(big.Int).Exp(pk.S, xr[i], pk.N)
	}

	var err error
	pk.CorrectnessPrf, err = proveKeyCorrectness(sk, pk, xz, xr)
	require.NoError(t, err)
	require.NoError(t, pk.VerifyKeyCorrectness())

	// a proof survives a JSON roundtrip of the key
	var buf bytes.Buffer
	_, err = pk.WriteTo(&buf)
	require.NoError(t, err)
	parsed, err := NewPublicKeyFromBytes(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, parsed.VerifyKeyCorrectness())

	// tampering with a base invalidates it
	r0 := pk.R[0]
	pk.R[0] = new(big.Int).Exp(pk.S, common.FastRandomBigInt(sk.Order), pk.N)
	require.Error(t, pk.VerifyKeyCorrectness())
	pk.R[0] = r0

	prf := pk.CorrectnessPrf
	pk.CorrectnessPrf = &KeyCorrectnessProof{C: prf.C, ZResp: prf.ZResp, RResp: prf.RResp[1:]}
	require.Error(t, pk.VerifyKeyCorrectness())
	pk.CorrectnessPrf = nil
	require.Error(t, pk.VerifyKeyCorrectness())
}

func TestGenerateRevocationKeypair(t *testing.T) {
	sk, pk := testKeyPair(t)
	require.False(t, sk.RevocationSupported())
	require.False(t, pk.RevocationSupported())

	require.NoError(t, GenerateRevocationKeypair(sk, pk))
	require.True(t, sk.RevocationSupported())
	require.True(t, pk.RevocationSupported())
	require.NotNil(t, sk.ECDSA)
	require.NotNil(t, pk.ECDSA)
	require.NotNil(t, pk.G)
	require.NotNil(t, pk.H)

	require.Error(t, GenerateRevocationKeypair(sk, pk))

	// the ECDSA key survives a JSON roundtrip
	var buf bytes.Buffer
	_, err := pk.WriteTo(&buf)
	require.NoError(t, err)
	parsed, err := NewPublicKeyFromBytes(buf.Bytes())
	require.NoError(t, err)
	require.True(t, parsed.RevocationSupported())
	require.NotNil(t, parsed.ECDSA)
}

func TestWriteToFile(t *testing.T) {
	sk, pk := testKeyPair(t)
	dir := t.TempDir()

	skFile := filepath.Join(dir, "sk.json")
	_, err := sk.WriteToFile(skFile, false)
	require.NoError(t, err)
	_, err = sk.WriteToFile(skFile, false)
	require.Error(t, err)
	_, err = sk.WriteToFile(skFile, true)
	require.NoError(t, err)

	parsed, err := NewPrivateKeyFromFile(skFile, true)
	require.NoError(t, err)
	require.Zero(t, parsed.P.Cmp(sk.P))

	pkFile := filepath.Join(dir, "pk.json")
	_, err = pk.WriteToFile(pkFile, false)
	require.NoError(t, err)
	parsedPk, err := NewPublicKeyFromFile(pkFile)
	require.NoError(t, err)
	require.Zero(t, parsedPk.N.Cmp(pk.N))
}

func TestDerivedParameters(t *testing.T) {
	require.Equal(t, []int{1024, 2048, 4096}, DefaultKeyLengths)

	params := DefaultSystemParameters[1024]
	require.Equal(t, uint(1024+2*80+256+256+4), params.Lv)
	require.Equal(t, uint(80+256+256+5), params.Le)
	require.Equal(t, uint(1024+80), params.LvPrime)
	require.Equal(t, 128, ParamSize(1024))
}
