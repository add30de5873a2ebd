package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
)

func TestSelectAddressPriority(t *testing.T) {
	addresses := []Address{
		{Scope: ScopePhone, TypeUUID: "A", Value: "111"},
		{Scope: ScopePhone, TypeUUID: "B", Value: "222"},
		{Scope: ScopeEmail, TypeUUID: "C", Value: "x@example.org"},
	}

	assert.Equal(t, "222", selectAddress(addresses, ScopePhone, []string{"B", "A"}))
	assert.Equal(t, "111", selectAddress(addresses, ScopePhone, []string{"A", "B"}))
	assert.Equal(t, "111", selectAddress(addresses, ScopePhone, nil))
	assert.Equal(t, "", selectAddress(addresses, ScopePhone, []string{"Z"}))
	assert.Equal(t, "x@example.org", selectAddress(addresses, ScopeEmail, nil))
}

func TestSelectAddressSkipsEmptyAndMatchesUserKey(t *testing.T) {
	addresses := []Address{
		{Scope: ScopePhone, TypeUUID: "B", Value: "  "},
		{Scope: ScopePhone, TypeUUID: "A", TypeUserKey: "PhoneUnit", Value: "333"},
	}
	assert.Equal(t, "333", selectAddress(addresses, ScopePhone, []string{"B", "PhoneUnit"}))
}

func TestPartitionKLE(t *testing.T) {
	kles := []KLE{
		{NumberUUID: "k2", Aspects: []string{AspectExecuting}},
		{NumberUUID: "k1", Aspects: []string{AspectExecuting, AspectResponsible}},
		{NumberUUID: "k3", Aspects: []string{"Indsigt"}},
		{NumberUUID: "k1", Aspects: []string{AspectExecuting}},
	}

	tasks, contact := partitionKLE(kles, true)
	assert.Equal(t, []string{"k1", "k2"}, tasks)
	assert.Equal(t, []string{"k1"}, contact)

	tasks, contact = partitionKLE(kles, false)
	assert.Equal(t, []string{"k1", "k2"}, tasks)
	assert.Empty(t, contact)
}

func TestRemapIdentity(t *testing.T) {
	const src = "9a1b2c3d-0000-4000-8000-000000000001"
	const ad = "9a1b2c3d-0000-4000-8000-0000000000ad"
	const fk = "9a1b2c3d-0000-4000-8000-00000000000f"

	accounts := []ITAccount{
		{System: "Active Directory", UserKey: ad},
		{System: "FK-ORG UUID", UserKey: fk},
	}

	id, err := remapIdentity(payload.KindUser, src, accounts, []string{"FK-ORG UUID", "Active Directory"})
	require.NoError(t, err)
	assert.Equal(t, fk, id)

	id, err = remapIdentity(payload.KindUser, src, accounts, []string{"Active Directory"})
	require.NoError(t, err)
	assert.Equal(t, ad, id)

	id, err = remapIdentity(payload.KindUser, src, accounts, nil)
	require.NoError(t, err)
	assert.Equal(t, src, id)

	_, err = remapIdentity(payload.KindUser, src, []ITAccount{{System: "X", UserKey: "bob"}}, []string{"X"})
	assert.True(t, errors.IsValidationError(err))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "Pædagog", truncateRunes("Pædagogmedhjælper", 7))
	assert.Equal(t, "Lærer", truncateRunes("Lærer", 64))
	assert.Equal(t, "Lærer", truncateRunes("Lærer", 0))
}
