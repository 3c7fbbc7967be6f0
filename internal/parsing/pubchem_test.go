package parsing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hanishchow/Biocore-agent/config"
)

const ibuprofenProperties = `{
  "PropertyTable": {
    "Properties": [
      {
        "CID": 3672,
        "MolecularFormula": "C13H18O2",
        "MolecularWeight": "206.28",
        "ExactMass": "206.130679813",
        "CanonicalSMILES": "CC(C)CC1=CC=C(C=C1)C(C)C(=O)O",
        "InChI": "InChI=1S/C13H18O2/c1-9(2)8-11-4-6-12(7-5-11)10(3)13(14)15/h4-7,9-10H,8H2,1-3H3,(H,14,15)",
        "InChIKey": "HEFNNWSXXWATRW-UHFFFAOYSA-N",
        "IUPACName": "2-[4-(2-methylpropyl)phenyl]propanoic acid",
        "XLogP": 3.5,
        "TPSA": 37.3,
        "Complexity": 203,
        "Charge": 0,
        "HBondDonorCount": 1,
        "HBondAcceptorCount": 2,
        "RotatableBondCount": 4,
        "HeavyAtomCount": 15
      }
    ]
  }
}`

func newPubChemTestClient(t *testing.T, handler http.HandlerFunc) (*PubChemClient, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewPubChemClient(config.LookupConfig{BaseURL: ts.URL, Timeout: 2 * time.Second}, zap.NewNop()), ts
}

func TestFetchCompoundByName(t *testing.T) {
	var gotPath string
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, ibuprofenProperties)
	})

	res := c.FetchCompound(context.Background(), CompoundQuery{Name: "ibuprofen"})

	require.True(t, res.OK(), res.Failure())
	assert.Equal(t, "/compound/name/ibuprofen/property/"+pubChemProperties+"/JSON", gotPath)

	rec := res.Record()
	require.NotNil(t, rec.CID)
	assert.Equal(t, int64(3672), *rec.CID)
	assert.Equal(t, "C13H18O2", rec.MolecularFormula)
	assert.Equal(t, `"206.28"`, string(*rec.MolecularWeight))
	assert.Equal(t, "CC(C)CC1=CC=C(C=C1)C(C)C(=O)O", rec.CanonicalSMILES)
	assert.Equal(t, "HEFNNWSXXWATRW-UHFFFAOYSA-N", rec.InChIKey)
	assert.Equal(t, 3.5, *rec.XLogP3)
	assert.Equal(t, 37.3, *rec.TPSA)
	assert.Equal(t, 1, *rec.HBDonors)
	assert.Equal(t, 2, *rec.HBAcceptors)
	assert.Equal(t, 4, *rec.RotatableBonds)
	assert.Equal(t, 15, *rec.HeavyAtoms)
	assert.Equal(t, 0, *rec.Charge)
	assert.Equal(t, 203.0, *rec.Complexity)
}

func TestFetchCompoundMassesKeepPubChemTokens(t *testing.T) {
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"PropertyTable":{"Properties":[{"CID":3672,"MolecularWeight":"206.280","ExactMass":"206.130679813"}]}}`)
	})

	res := c.FetchCompound(context.Background(), CompoundQuery{Name: "ibuprofen"})
	require.True(t, res.OK(), res.Failure())

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"molecular_weight":"206.280"`)
	assert.Contains(t, string(b), `"exact_mass":"206.130679813"`)
}

func TestFetchCompoundNameIsPathEscaped(t *testing.T) {
	var gotPath string
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		fmt.Fprint(w, ibuprofenProperties)
	})

	c.FetchCompound(context.Background(), CompoundQuery{Name: "acetylsalicylic acid"})

	assert.True(t, strings.HasPrefix(gotPath, "/compound/name/acetylsalicylic%20acid/property/"), gotPath)
}

func TestFetchCompoundCIDTakesPrecedence(t *testing.T) {
	var gotPath string
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, ibuprofenProperties)
	})

	res := c.FetchCompound(context.Background(), CompoundQuery{Name: "aspirin", CID: 3672})

	require.True(t, res.OK())
	assert.True(t, strings.HasPrefix(gotPath, "/compound/cid/3672/property/"), gotPath)
}

func TestFetchCompoundMissingFieldsAreNotAvailable(t *testing.T) {
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"PropertyTable":{"Properties":[{"CID":2244}]}}`)
	})

	res := c.FetchCompound(context.Background(), CompoundQuery{CID: 2244})

	require.True(t, res.OK())
	rec := res.Record()
	assert.Equal(t, NotAvailable, rec.IUPACName)
	assert.Equal(t, NotAvailable, rec.MolecularFormula)
	assert.Equal(t, NotAvailable, rec.CanonicalSMILES)
	assert.Equal(t, NotAvailable, rec.InChI)
	assert.Equal(t, NotAvailable, rec.InChIKey)
	assert.Nil(t, rec.MolecularWeight)
	assert.Nil(t, rec.XLogP3)
	assert.Nil(t, rec.Charge)

	// absent numbers stay explicit nulls on the wire
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"xlogp3":null`)
	assert.Contains(t, string(b), `"molecular_weight":null`)
}

func TestFetchCompoundFallsBackToConnectivitySMILES(t *testing.T) {
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"PropertyTable":{"Properties":[{"CID":3672,"ConnectivitySMILES":"CC(C)CC1=CC=C(C=C1)C(C)C(=O)O"}]}}`)
	})

	res := c.FetchCompound(context.Background(), CompoundQuery{CID: 3672})

	require.True(t, res.OK())
	assert.Equal(t, "CC(C)CC1=CC=C(C=C1)C(C)C(=O)O", res.Record().CanonicalSMILES)
}

func TestFetchCompoundNoResults(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"empty properties", http.StatusOK, `{"PropertyTable":{"Properties":[]}}`},
		{"fault document", http.StatusNotFound, `{"Fault":{"Code":"PUGREST.NotFound","Message":"No CID found"}}`},
		{"no property table", http.StatusOK, `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			res := c.FetchCompound(context.Background(), CompoundQuery{Name: "unobtainium"})

			assert.False(t, res.OK())
			assert.Nil(t, res.Record())
			assert.Equal(t, "PubChem returned no results for: unobtainium", res.Failure())

			b, err := json.Marshal(res)
			require.NoError(t, err)
			assert.JSONEq(t, `{"_error":"PubChem returned no results for: unobtainium"}`, string(b))
		})
	}
}

func TestFetchCompoundNonJSONBody(t *testing.T) {
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "<html>Service Unavailable</html>")
	})

	res := c.FetchCompound(context.Background(), CompoundQuery{CID: 3672})

	assert.False(t, res.OK())
	assert.True(t, strings.HasPrefix(res.Failure(), "PubChem fetch failed: "), res.Failure())
}

func TestFetchCompoundTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, ibuprofenProperties)
	}))
	defer ts.Close()
	c := NewPubChemClient(config.LookupConfig{BaseURL: ts.URL, Timeout: 50 * time.Millisecond}, zap.NewNop())

	res := c.FetchCompound(context.Background(), CompoundQuery{Name: "ibuprofen"})

	assert.False(t, res.OK())
	assert.Contains(t, res.Failure(), "PubChem fetch failed")
}

func TestFetchCompoundConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	baseURL := ts.URL
	ts.Close()
	c := NewPubChemClient(config.LookupConfig{BaseURL: baseURL, Timeout: time.Second}, zap.NewNop())

	res := c.FetchCompound(context.Background(), CompoundQuery{Name: "ibuprofen"})

	assert.False(t, res.OK())
	assert.Contains(t, res.Failure(), "PubChem fetch failed")
}

func TestFetchCompoundSingleRequest(t *testing.T) {
	var calls int32
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "oops")
	})

	c.FetchCompound(context.Background(), CompoundQuery{Name: "ibuprofen"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchCompoundNoResultsNamesTheCallersTerm(t *testing.T) {
	c, _ := newPubChemTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"Fault":{"Code":"PUGREST.NotFound","Message":"No CID found"}}`)
	})

	res := c.FetchCompound(context.Background(), CompoundQuery{Name: "aspirin", CID: 99999999})
	assert.Equal(t, "PubChem returned no results for: aspirin", res.Failure())

	res = c.FetchCompound(context.Background(), CompoundQuery{CID: 99999999})
	assert.Equal(t, "PubChem returned no results for: 99999999", res.Failure())
}
