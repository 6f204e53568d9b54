package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/ir"
	"github.com/roach88/healthstore/internal/medical"
)

// medicalGrants lets both writers write and the reader read vaccines.
func medicalGrants() identity.Oracle {
	return identity.NewStaticOracle(map[string]identity.Grant{
		appA:   {Write: true},
		appB:   {Write: true},
		reader: {ReadTypes: []string{medical.Vaccines.String()}},
	})
}

func immunization(id string) string {
	return fmt.Sprintf(`{"resourceType":"Immunization","id":%q,"status":"completed"}`, id)
}

func condition(id string) string {
	return fmt.Sprintf(`{"resourceType":"Condition","id":%q}`, id)
}

func mustDataSource(t *testing.T, s *Store, caller identity.Caller, name string) DataSource {
	t.Helper()
	ds, err := s.CreateDataSource(context.Background(), caller, CreateDataSourceRequest{
		DisplayName: name,
		BaseURI:     "https://fhir.example.com/" + name,
		FHIRVersion: "4.0.1",
	})
	require.NoError(t, err)
	return ds
}

func mustUpsertResources(t *testing.T, s *Store, caller identity.Caller, ds uuid.UUID, payloads ...string) []Resource {
	t.Helper()
	reqs := make([]UpsertResourceRequest, len(payloads))
	for i, p := range payloads {
		reqs[i] = UpsertResourceRequest{DataSourceID: ds, Payload: p}
	}
	out, err := s.UpsertResources(context.Background(), caller, reqs)
	require.NoError(t, err)
	return out
}

func resourceIDs(rs []Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ResourceID
	}
	return out
}

func TestCreateDataSource(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithOracle(medicalGrants()))

	ds := mustDataSource(t, s, callerA, "clinic")
	assert.NotEqual(t, uuid.Nil, ds.ID)
	assert.Equal(t, appA, ds.PackageName)
	assert.Equal(t, t0, ds.LastModifiedTime)

	got, err := s.GetDataSources(ctx, callerA, nil)
	require.NoError(t, err)
	assert.Equal(t, []DataSource{ds}, got)

	_, err = s.CreateDataSource(ctx, callerA, CreateDataSourceRequest{DisplayName: "clinic", BaseURI: "https://other"})
	assert.True(t, errs.IsConflict(err), "duplicate display name: got %v", err)

	other := mustDataSource(t, s, callerB, "clinic")
	assert.NotEqual(t, ds.ID, other.ID, "display names are unique per app only")

	_, err = s.CreateDataSource(ctx, callerA, CreateDataSourceRequest{DisplayName: "x"})
	assert.True(t, errs.IsValidation(err), "missing base uri: got %v", err)
	_, err = s.CreateDataSource(ctx, callerReader, CreateDataSourceRequest{DisplayName: "x", BaseURI: "y"})
	assert.True(t, errs.IsPermission(err), "got %v", err)
}

func TestCreateDataSource_Limit(t *testing.T) {
	limits := DefaultLimits
	limits.MaxDataSourcesPerApp = 2
	s := createTestStore(t, WithOracle(medicalGrants()), WithLimits(limits))

	mustDataSource(t, s, callerA, "one")
	mustDataSource(t, s, callerA, "two")
	_, err := s.CreateDataSource(context.Background(), callerA, CreateDataSourceRequest{DisplayName: "three", BaseURI: "https://x"})
	assert.True(t, errs.IsValidation(err), "got %v", err)

	mustDataSource(t, s, callerB, "three")
}

func TestUpsertResources_IDIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithOracle(medicalGrants()))
	ds := mustDataSource(t, s, callerA, "clinic")

	first := mustUpsertResources(t, s, callerA, ds.ID, immunization("imm-1"))
	require.Len(t, first, 1)
	assert.Equal(t, ir.ResourceUUID("imm-1", "Immunization", ds.ID), first[0].ID)
	assert.Equal(t, medical.Vaccines, first[0].Classification)
	assert.Equal(t, "4.0.1", first[0].FHIRVersion, "version inherited from the data source")

	updated := `{"resourceType":"Immunization","id":"imm-1","status":"entered-in-error"}`
	second := mustUpsertResources(t, s, callerA, ds.ID, updated)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 1, countRows(t, s, resTable))
	assert.Equal(t, 1, countRows(t, s, idxTable), "index rows are replaced, not appended")

	got, err := s.ReadResourcesByIDs(ctx, callerA, []uuid.UUID{first[0].ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, updated, got[0].Payload)
	assert.Equal(t, ds.ID, got[0].DataSourceID)
}

func TestUpsertResources_Rejects(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithOracle(medicalGrants()))
	ds := mustDataSource(t, s, callerA, "clinic")

	tests := []struct {
		name   string
		caller identity.Caller
		req    UpsertResourceRequest
		check  func(error) bool
	}{
		{"other app's data source", callerB, UpsertResourceRequest{DataSourceID: ds.ID, Payload: immunization("i")}, errs.IsNotFound},
		{"unknown data source", callerA, UpsertResourceRequest{DataSourceID: uuid.New(), Payload: immunization("i")}, errs.IsNotFound},
		{"version mismatch", callerA, UpsertResourceRequest{DataSourceID: ds.ID, FHIRVersion: "4.3.0", Payload: immunization("i")}, errs.IsValidation},
		{"unsupported resource", callerA, UpsertResourceRequest{DataSourceID: ds.ID, Payload: `{"resourceType":"Claim","id":"c"}`}, errs.IsValidation},
		{"reader cannot write", callerReader, UpsertResourceRequest{DataSourceID: ds.ID, Payload: immunization("i")}, errs.IsPermission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpsertResources(ctx, tt.caller, []UpsertResourceRequest{tt.req})
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
	assert.Equal(t, 0, countRows(t, s, resTable))
}

func TestMedicalVisibility(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithOracle(medicalGrants()))
	dsA := mustDataSource(t, s, callerA, "a")
	dsB := mustDataSource(t, s, callerB, "b")
	mustUpsertResources(t, s, callerA, dsA.ID, immunization("a-imm"), condition("a-cond"))
	mustUpsertResources(t, s, callerB, dsB.ID, condition("b-cond"))

	vaccines := ReadResourcesRequest{Classification: medical.Vaccines}
	conditions := ReadResourcesRequest{Classification: medical.Conditions}

	page, err := s.ReadResources(ctx, callerA, conditions)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-cond"}, resourceIDs(page.Resources), "writers see their own resources")

	page, err = s.ReadResources(ctx, callerReader, vaccines)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-imm"}, resourceIDs(page.Resources))

	page, err = s.ReadResources(ctx, callerReader, conditions)
	require.NoError(t, err)
	assert.Empty(t, page.Resources, "reader has no conditions grant")

	sources, err := s.GetDataSources(ctx, callerReader, nil)
	require.NoError(t, err)
	require.Len(t, sources, 1, "only data sources holding granted resources are visible")
	assert.Equal(t, dsA.ID, sources[0].ID)

	sources, err = s.GetDataSources(ctx, callerB, nil)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, dsB.ID, sources[0].ID)

	logs, err := s.AccessLogs(ctx, 0)
	require.NoError(t, err)
	var readerLogs []AccessLog
	for _, l := range logs {
		if l.PackageName == reader {
			readerLogs = append(readerLogs, l)
		}
	}
	require.Len(t, readerLogs, 2, "a read with no granted classification sees nothing and logs nothing")
	assert.Equal(t, []string{"VACCINES"}, readerLogs[0].MedicalResourceTypes)
	assert.True(t, readerLogs[1].MedicalDataSourceAccessed)
}

func TestReadResources_Pagination(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithOracle(medicalGrants()))
	ds1 := mustDataSource(t, s, callerA, "one")
	ds2 := mustDataSource(t, s, callerA, "two")
	mustUpsertResources(t, s, callerA, ds1.ID, immunization("1"), immunization("2"), condition("c"))
	mustUpsertResources(t, s, callerA, ds2.ID, immunization("3"))

	req := ReadResourcesRequest{Classification: medical.Vaccines, PageSize: 2}
	page, err := s.ReadResources(ctx, callerA, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, resourceIDs(page.Resources))
	require.NotEmpty(t, page.NextPageToken)

	req.PageToken = page.NextPageToken
	page, err = s.ReadResources(ctx, callerA, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, resourceIDs(page.Resources))
	assert.Empty(t, page.NextPageToken)

	page, err = s.ReadResources(ctx, callerA, ReadResourcesRequest{Classification: medical.Vaccines, DataSourceIDs: []uuid.UUID{ds2.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, resourceIDs(page.Resources))

	_, err = s.ReadResources(ctx, callerA, ReadResourcesRequest{Classification: medical.Vaccines, PageToken: timeToken{Timestamp: 1, Ascending: true}.encode()})
	assert.True(t, errs.IsValidation(err), "record token on a resource listing: got %v", err)
	_, err = s.ReadResources(ctx, callerA, ReadResourcesRequest{Classification: medical.Unknown})
	assert.True(t, errs.IsValidation(err), "got %v", err)
}

func TestDeleteResources(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithOracle(medicalGrants()))
	dsA := mustDataSource(t, s, callerA, "a")
	dsB := mustDataSource(t, s, callerB, "b")
	a := mustUpsertResources(t, s, callerA, dsA.ID, immunization("1"), condition("2"))
	b := mustUpsertResources(t, s, callerB, dsB.ID, immunization("1"))

	err := s.DeleteResources(ctx, callerA, []uuid.UUID{a[0].ID, b[0].ID})
	assert.Equal(t, "not owned by caller", notFoundReason(t, err))
	assert.Equal(t, 3, countRows(t, s, resTable))

	require.NoError(t, s.DeleteResources(ctx, callerA, []uuid.UUID{a[0].ID}))
	assert.Equal(t, 2, countRows(t, s, resTable))
	assert.Equal(t, 2, countRows(t, s, idxTable))

	logs, err := s.AccessLogs(ctx, 0)
	require.NoError(t, err)
	last := logs[len(logs)-1]
	assert.Equal(t, OperationDelete, last.Operation)
	assert.Equal(t, []string{"VACCINES"}, last.MedicalResourceTypes)
}

func TestDeleteDataSource_Cascades(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, WithOracle(medicalGrants()))
	dsA := mustDataSource(t, s, callerA, "a")
	mustUpsertResources(t, s, callerA, dsA.ID, immunization("1"), condition("2"))

	err := s.DeleteDataSource(ctx, callerB, dsA.ID)
	assert.Equal(t, "not owned by caller", notFoundReason(t, err))

	require.NoError(t, s.DeleteDataSource(ctx, callerA, dsA.ID))
	assert.Equal(t, 0, countRows(t, s, dsTable))
	assert.Equal(t, 0, countRows(t, s, resTable))
	assert.Equal(t, 0, countRows(t, s, idxTable))

	err = s.DeleteDataSource(ctx, callerA, dsA.ID)
	assert.Equal(t, "does not exist", notFoundReason(t, err))
}
