package template

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTemplate(domain, name string) *Template {
	return &Template{
		Domain:  domain,
		Name:    name,
		Version: "1.0.0",
		Selectors: map[string]string{
			"balance": "#account-balance",
		},
		Extractors: map[string]string{
			"balance_greater_than": "number:#account-balance",
		},
		Validation: Validation{
			URLPattern:        `^https://` + domain + `/account`,
			AuthorizedDomains: []string{domain, "api." + domain},
		},
		Circuit: CircuitSpec{
			DataType:      "numeric",
			ClaimKind:     "comparison",
			MaxDataLength: 32,
		},
		ValidFrom:  time.Now().Add(-time.Hour),
		ValidUntil: time.Now().Add(24 * time.Hour),
	}
}

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := ConnectToStore(filepath.Join(t.TempDir(), "templates.db"))
	require.NoError(t, err)
	return store
}

func TestStoreSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	tmpl := testTemplate("bank.example.com", "account-balance")
	require.NoError(t, store.Save(tmpl))

	got, err := store.Get("bank.example.com", "account-balance")
	require.NoError(t, err)
	assert.Equal(t, tmpl.Domain, got.Domain)
	assert.Equal(t, tmpl.Name, got.Name)
	assert.Equal(t, tmpl.Extractors, got.Extractors)
	assert.Equal(t, tmpl.Validation.AuthorizedDomains, got.Validation.AuthorizedDomains)
	assert.NotZero(t, got.ID)
}

func TestStoreSaveUpserts(t *testing.T) {
	store := openTestStore(t)
	tmpl := testTemplate("bank.example.com", "account-balance")
	require.NoError(t, store.Save(tmpl))

	tmpl.Version = "1.1.0"
	tmpl.Selectors["balance"] = "#balance-v2"
	require.NoError(t, store.Save(tmpl))

	got, err := store.Get("bank.example.com", "account-balance")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.Version)
	assert.Equal(t, "#balance-v2", got.Selectors["balance"])

	all, err := store.ListByDomain("bank.example.com")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get("nowhere.example.com", "nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListByDomain(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save(testTemplate("bank.example.com", "balance")))
	require.NoError(t, store.Save(testTemplate("bank.example.com", "currency")))
	require.NoError(t, store.Save(testTemplate("social.example.com", "followers")))

	bank, err := store.ListByDomain("bank.example.com")
	require.NoError(t, err)
	assert.Len(t, bank, 2)

	social, err := store.ListByDomain("social.example.com")
	require.NoError(t, err)
	assert.Len(t, social, 1)

	none, err := store.ListByDomain("nowhere.example.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save(testTemplate("bank.example.com", "balance")))
	require.NoError(t, store.Delete("bank.example.com", "balance"))

	_, err := store.Get("bank.example.com", "balance")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Delete("bank.example.com", "balance"), ErrNotFound)
}

func TestStoreRejectsInvalidTemplate(t *testing.T) {
	store := openTestStore(t)
	bad := testTemplate("bank.example.com", "balance")
	bad.Extractors = nil
	assert.Error(t, store.Save(bad))
}

func TestTemplateValidate(t *testing.T) {
	tmpl := testTemplate("bank.example.com", "balance")
	require.NoError(t, tmpl.Validate())

	noDomain := *tmpl
	noDomain.Domain = ""
	assert.Error(t, noDomain.Validate())

	inverted := *tmpl
	inverted.ValidFrom = time.Now()
	inverted.ValidUntil = time.Now().Add(-time.Hour)
	assert.Error(t, inverted.Validate())
}

func TestTemplateMatchesURL(t *testing.T) {
	tmpl := testTemplate("bank.example.com", "balance")
	assert.True(t, tmpl.MatchesURL("https://bank.example.com/account/overview"))
	assert.False(t, tmpl.MatchesURL("https://evil.example.com/account"))

	tmpl.Validation.URLPattern = ""
	assert.True(t, tmpl.MatchesURL("https://bank.example.com/anything"))
}

func TestTemplateDomainsDefault(t *testing.T) {
	tmpl := testTemplate("bank.example.com", "balance")
	assert.Equal(t, []string{"bank.example.com", "api.bank.example.com"}, tmpl.Domains())

	tmpl.Validation.AuthorizedDomains = nil
	assert.Equal(t, []string{"bank.example.com"}, tmpl.Domains())
}
