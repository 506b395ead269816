package dimension

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/costwise/internal/dimension/domain"
	"github.com/smallbiznis/costwise/internal/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func awsRow(account, service, region string) map[string]string {
	return map[string]string{
		mapping.FieldProvider:         "aws",
		mapping.FieldBillingAccountID: account,
		mapping.FieldServiceName:      service,
		mapping.FieldRegionID:         region,
	}
}

func TestCollectorDeduplicates(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 50; i++ {
		c.Collect(awsRow("111122223333", "AmazonEC2", "us-east-1"))
	}

	keys := c.KeySets()

	assert.Len(t, keys.CloudAccounts, 1)
	assert.Len(t, keys.Services, 1)
	assert.Len(t, keys.Regions, 1)
	assert.Empty(t, keys.Skus)
}

func TestCollectorFirstSeenWinsForAttributes(t *testing.T) {
	c := NewCollector()
	first := awsRow("111122223333", "AmazonEC2", "us-east-1")
	first[mapping.FieldBillingAccountName] = "prod payer"
	second := awsRow("111122223333", "AmazonEC2", "us-east-1")
	second[mapping.FieldBillingAccountName] = "renamed payer"

	c.Collect(first)
	c.Collect(second)

	keys := c.KeySets()
	require.Len(t, keys.CloudAccounts, 1)
	assert.Equal(t, "prod payer", keys.CloudAccounts[0].DisplayName)
}

func TestCollectorSkipsRowsWithoutProvider(t *testing.T) {
	c := NewCollector()
	c.Collect(map[string]string{
		mapping.FieldBillingAccountID: "111122223333",
		mapping.FieldServiceName:      "AmazonEC2",
	})

	keys := c.KeySets()

	assert.Empty(t, keys.CloudAccounts)
	assert.Empty(t, keys.Services)
}

func TestCollectorSameKeyDifferentProviderIsDistinct(t *testing.T) {
	c := NewCollector()
	c.Collect(map[string]string{
		mapping.FieldProvider: "aws",
		mapping.FieldRegionID: "westeurope",
	})
	c.Collect(map[string]string{
		mapping.FieldProvider: "azure",
		mapping.FieldRegionID: "westeurope",
	})

	assert.Len(t, c.KeySets().Regions, 2)
}

func TestResolverReturnsSameIDForRepeatedRows(t *testing.T) {
	gen, err := snowflake.NewNode(1)
	require.NoError(t, err)

	c := NewCollector()
	rows := make([]map[string]string, 10)
	for i := range rows {
		rows[i] = awsRow("111122223333", "AmazonEC2", "us-east-1")
		c.Collect(rows[i])
	}

	existing := emptyIDMaps()
	missing := MissingRows(c.KeySets(), existing, gen, time.Now())
	ids := MergeIDs(existing, missing)
	resolver := NewResolver(ids)

	first := resolver.Resolve(rows[0])
	require.NotNil(t, first.CloudAccountID)
	require.NotNil(t, first.ServiceID)
	require.NotNil(t, first.RegionID)

	for _, row := range rows[1:] {
		refs := resolver.Resolve(row)
		assert.Equal(t, *first.CloudAccountID, *refs.CloudAccountID)
		assert.Equal(t, *first.ServiceID, *refs.ServiceID)
		assert.Equal(t, *first.RegionID, *refs.RegionID)
	}
}

func TestResolverMissResolvesToNil(t *testing.T) {
	resolver := NewResolver(emptyIDMaps())

	refs := resolver.Resolve(awsRow("999988887777", "AmazonS3", "eu-west-1"))

	assert.Nil(t, refs.CloudAccountID)
	assert.Nil(t, refs.ServiceID)
	assert.Nil(t, refs.RegionID)
}

func TestMissingRowsSkipsPreloaded(t *testing.T) {
	gen, err := snowflake.NewNode(1)
	require.NoError(t, err)

	c := NewCollector()
	c.Collect(awsRow("111122223333", "AmazonEC2", "us-east-1"))

	existing := emptyIDMaps()
	persisted := gen.Generate()
	existing.CloudAccounts["aws|111122223333"] = persisted

	missing := MissingRows(c.KeySets(), existing, gen, time.Now())

	assert.Empty(t, missing.CloudAccounts)
	assert.Len(t, missing.Services, 1)
	assert.Len(t, missing.Regions, 1)

	// The persisted id survives the merge.
	merged := MergeIDs(existing, missing)
	assert.Equal(t, persisted, merged.CloudAccounts["aws|111122223333"])
}

func emptyIDMaps() domain.IDMaps {
	return domain.IDMaps{
		CloudAccounts:       map[string]snowflake.ID{},
		Services:            map[string]snowflake.ID{},
		Regions:             map[string]snowflake.ID{},
		Skus:                map[string]snowflake.ID{},
		Resources:           map[string]snowflake.ID{},
		SubAccounts:         map[string]snowflake.ID{},
		CommitmentDiscounts: map[string]snowflake.ID{},
	}
}
