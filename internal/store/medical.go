package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/healthstore/internal/errs"
	"github.com/roach88/healthstore/internal/identity"
	"github.com/roach88/healthstore/internal/ir"
	"github.com/roach88/healthstore/internal/medical"
	"github.com/roach88/healthstore/internal/migrate"
	"github.com/roach88/healthstore/internal/queryir"
	"github.com/roach88/healthstore/internal/record"
	"github.com/roach88/healthstore/internal/schema"
)

// DataSource is an app-scoped container of medical resources.
type DataSource struct {
	ID               uuid.UUID `json:"id" yaml:"id"`
	PackageName      string    `json:"package_name" yaml:"package_name"`
	DisplayName      string    `json:"display_name" yaml:"display_name"`
	BaseURI          string    `json:"base_uri" yaml:"base_uri"`
	FHIRVersion      string    `json:"fhir_version,omitempty" yaml:"fhir_version,omitempty"`
	LastModifiedTime int64     `json:"last_modified_time" yaml:"last_modified_time"`
}

// CreateDataSourceRequest describes a new data source.
type CreateDataSourceRequest struct {
	DisplayName string `json:"display_name" yaml:"display_name"`
	BaseURI     string `json:"base_uri" yaml:"base_uri"`
	FHIRVersion string `json:"fhir_version" yaml:"fhir_version"`
}

// Resource is a stored FHIR resource.
type Resource struct {
	ID               uuid.UUID              `json:"id"`
	DataSourceID     uuid.UUID              `json:"data_source_id"`
	Type             string                 `json:"resource_type"`
	ResourceID       string                 `json:"resource_id"`
	Classification   medical.Classification `json:"-"`
	Payload          string                 `json:"payload"`
	FHIRVersion      string                 `json:"fhir_version"`
	LastModifiedTime int64                  `json:"last_modified_time"`
}

// UpsertResourceRequest writes one FHIR JSON payload into a data source.
// An empty FHIRVersion inherits the data source's version.
type UpsertResourceRequest struct {
	DataSourceID uuid.UUID `json:"data_source_id" yaml:"data_source_id"`
	FHIRVersion  string    `json:"fhir_version,omitempty" yaml:"fhir_version,omitempty"`
	Payload      string    `json:"payload" yaml:"payload"`
}

// ReadResourcesRequest lists resources of one classification, optionally
// restricted to some data sources, in insertion order.
type ReadResourcesRequest struct {
	Classification medical.Classification
	DataSourceIDs  []uuid.UUID
	PageSize       int
	PageToken      string
}

// ReadResourcesResult is one page of resources.
type ReadResourcesResult struct {
	Resources     []Resource `json:"resources"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

const (
	dsTable  = schema.MedicalDataSourceTable
	resTable = schema.MedicalResourceTable
	idxTable = schema.MedicalResourceIndicesTable
)

// CreateDataSource registers a data source owned by caller. Display names
// are unique per app, and an app may own at most
// Limits.MaxDataSourcesPerApp data sources.
func (s *Store) CreateDataSource(ctx context.Context, caller identity.Caller, req CreateDataSourceRequest) (ds DataSource, err error) {
	defer s.observe("create_data_source", time.Now(), &err)

	if !s.oracle.HasWritePermission(caller.PackageName) {
		return DataSource{}, errs.Permission("%s has no write permission", caller.PackageName)
	}
	if req.DisplayName == "" {
		return DataSource{}, errs.ValidationField(schema.DataSourceDisplayName, "display name is required")
	}
	if req.BaseURI == "" {
		return DataSource{}, errs.ValidationField(schema.DataSourceBaseURI, "base uri is required")
	}

	ds = DataSource{
		ID:               uuid.New(),
		PackageName:      caller.PackageName,
		DisplayName:      req.DisplayName,
		BaseURI:          req.BaseURI,
		FHIRVersion:      req.FHIRVersion,
		LastModifiedTime: s.nowMillis(),
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, err := s.ensureApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		owned, err := s.query(ctx, tx, queryir.Read(dsTable).Select(schema.RowID).Filter(queryir.Eq(schema.AppID, appID)))
		if err != nil {
			return err
		}
		if len(owned) >= s.limits.MaxDataSourcesPerApp {
			return errs.Validation("%s already owns the maximum of %d data sources", caller.PackageName, s.limits.MaxDataSourcesPerApp)
		}
		values := map[string]any{
			schema.AppID:                 appID,
			schema.DataSourceDisplayName: ds.DisplayName,
			schema.DataSourceBaseURI:     ds.BaseURI,
			schema.UUID:                  record.UUIDBytes(ds.ID),
			schema.LastModifiedTime:      ds.LastModifiedTime,
		}
		if ds.FHIRVersion != "" {
			values[schema.DataSourceFHIRVersion] = ds.FHIRVersion
		}
		if _, err := s.insert(ctx, tx, &queryir.UpsertRequest{Table: dsTable, Values: values}); err != nil {
			return err
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{Operation: OperationUpsert, MedicalDataSourceAccessed: true})
	})
	if err != nil {
		return DataSource{}, err
	}
	return ds, nil
}

// GetDataSources returns the data sources caller may see: its own, plus
// those holding resources of a classification caller is granted. An empty
// ids slice returns all of them.
func (s *Store) GetDataSources(ctx context.Context, caller identity.Caller, ids []uuid.UUID) (out []DataSource, err error) {
	defer s.observe("get_data_sources", time.Now(), &err)

	scope, err := identity.Resolve(s.oracle, caller, medical.Names())
	if err != nil {
		return nil, err
	}
	var where queryir.Predicate
	if len(ids) > 0 {
		where = queryir.OneOf(dsTable+"."+schema.UUID, uuidBytes(ids))
	}
	dsRead := func() *queryir.ReadRequest {
		return queryir.Read(dsTable).
			Select(dsTable+".*", schema.AppInfoTable+"."+schema.PackageName).
			WithJoin(queryir.InnerJoin(schema.AppInfoTable, schema.AppID, schema.RowID)).
			Filter(where)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, known, err := s.lookupApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		var legs []*queryir.ReadRequest
		if scope.Self && known {
			legs = append(legs, dsRead().Filter(queryir.Eq(dsTable+"."+schema.AppID, appID)))
		}
		if granted := classificationValues(scope.AnyOwnerTypes); len(granted) > 0 {
			leg := dsRead().
				WithJoin(queryir.InnerJoin(resTable, dsTable+"."+schema.RowID, schema.ResourceDataSourceRowID)).
				WithJoin(queryir.InnerJoin(idxTable, resTable+"."+schema.RowID, schema.ResourceRowID).
					WithFilter(queryir.OneOf(idxTable+"."+schema.ResourceTypeClassification, granted)))
			leg.Distinct = true
			legs = append(legs, leg)
		}
		out = []DataSource{}
		if len(legs) == 0 {
			return nil
		}
		r := legs[0].Union(legs[1:]...).Order(dsTable+"."+schema.RowID, false)
		rows, err := s.query(ctx, tx, r)
		if err != nil {
			return err
		}
		for _, row := range rows {
			ds, err := decodeDataSource(row)
			if err != nil {
				return err
			}
			out = append(out, ds)
		}
		if scope.SelfOnly() {
			return nil
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{Operation: OperationRead, MedicalDataSourceAccessed: true})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDataSource deletes a data source owned by caller together with all
// of its resources.
func (s *Store) DeleteDataSource(ctx context.Context, caller identity.Caller, id uuid.UUID) (err error) {
	defer s.observe("delete_data_source", time.Now(), &err)

	if !s.oracle.HasWritePermission(caller.PackageName) {
		return errs.Permission("%s has no write permission", caller.PackageName)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		appID, _, err := s.lookupApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		match := queryir.Eq(schema.UUID, record.UUIDBytes(id))
		rows, err := s.query(ctx, tx, queryir.Read(dsTable).Select(schema.UUID, schema.AppID).Filter(match))
		if err != nil {
			return err
		}
		if err := checkTargets([]uuid.UUID{id}, rows, schema.UUID, schema.AppID, appID); err != nil {
			return err
		}
		n, err := s.delete(ctx, tx, &queryir.DeleteRequest{
			Table:       dsTable,
			OwnerColumn: schema.AppID,
			OwnerID:     appID,
			Where:       match,
		})
		if err != nil {
			return err
		}
		if n != 1 {
			return errs.Integrity("deleted %d data sources, expected 1", n)
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{Operation: OperationDelete, MedicalDataSourceAccessed: true})
	})
}

// UpsertResources writes FHIR resources into data sources owned by caller.
// A resource's id is derived from (resource id, resource type, data source
// id), so writing the same resource again replaces it.
func (s *Store) UpsertResources(ctx context.Context, caller identity.Caller, reqs []UpsertResourceRequest) (out []Resource, err error) {
	defer s.observe("upsert_resources", time.Now(), &err)

	if !s.oracle.HasWritePermission(caller.PackageName) {
		return nil, errs.Permission("%s has no write permission", caller.PackageName)
	}
	parsed := make([]medical.Resource, len(reqs))
	for i, req := range reqs {
		if parsed[i], err = medical.Classify([]byte(req.Payload)); err != nil {
			return nil, err
		}
	}

	now := s.nowMillis()
	out = make([]Resource, 0, len(reqs))
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		appID, err := s.ensureApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		sources := make(map[uuid.UUID]record.Row)
		classes := make(map[string]bool)
		for i, req := range reqs {
			src, ok := sources[req.DataSourceID]
			if !ok {
				if src, err = s.ownedDataSource(ctx, tx, req.DataSourceID, appID); err != nil {
					return err
				}
				sources[req.DataSourceID] = src
			}
			version, err := resourceVersion(req.FHIRVersion, src.String(schema.DataSourceFHIRVersion))
			if err != nil {
				return err
			}
			dsRowID, err := src.Int64(schema.RowID)
			if err != nil {
				return err
			}
			p := parsed[i]
			res := Resource{
				ID:               ir.ResourceUUID(p.ID, p.Type, req.DataSourceID),
				DataSourceID:     req.DataSourceID,
				Type:             p.Type,
				ResourceID:       p.ID,
				Classification:   p.Classification,
				Payload:          req.Payload,
				FHIRVersion:      version,
				LastModifiedTime: now,
			}
			if err := s.upsertResource(ctx, tx, dsRowID, res); err != nil {
				return err
			}
			out = append(out, res)
			classes[p.Classification.String()] = true
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{MedicalResourceTypes: keys(classes), Operation: OperationUpsert})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddRows("upsert_resources", len(out))
	return out, nil
}

func (s *Store) upsertResource(ctx context.Context, tx *sql.Tx, dsRowID int64, res Resource) error {
	u := &queryir.UpsertRequest{
		Table: resTable,
		Values: map[string]any{
			schema.UUID:                    record.UUIDBytes(res.ID),
			schema.ResourceType:            res.Type,
			schema.ResourceID:              res.ResourceID,
			schema.ResourcePayload:         res.Payload,
			schema.ResourceVersion:         res.FHIRVersion,
			schema.ResourceDataSourceRowID: dsRowID,
			schema.LastModifiedTime:        res.LastModifiedTime,
		},
		UniqueGroups: [][]string{{schema.UUID}},
		Children: []queryir.ChildUpsert{{
			ParentColumn: schema.ResourceRowID,
			Request: &queryir.UpsertRequest{
				Table:  idxTable,
				Values: map[string]any{schema.ResourceTypeClassification: int64(res.Classification)},
			},
		}},
		ReplaceChildren: []queryir.ChildTable{{Table: idxTable, ParentColumn: schema.ResourceRowID}},
	}
	rows, err := s.query(ctx, tx, u.ConflictLookup(schema.RowID))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		_, err = s.insert(ctx, tx, u)
		return err
	}
	id, err := rows[0].Int64(schema.RowID)
	if err != nil {
		return err
	}
	return s.overwrite(ctx, tx, u, schema.RowID, id)
}

func (s *Store) ownedDataSource(ctx context.Context, q migrate.Querier, id uuid.UUID, appID int64) (record.Row, error) {
	rows, err := s.query(ctx, q, queryir.Read(dsTable).Filter(queryir.Eq(schema.UUID, record.UUIDBytes(id))))
	if err != nil {
		return nil, err
	}
	if err := checkTargets([]uuid.UUID{id}, rows, schema.UUID, schema.AppID, appID); err != nil {
		return nil, err
	}
	return rows[0], nil
}

func resourceVersion(requested, source string) (string, error) {
	switch {
	case requested == "" && source == "":
		return "", errs.ValidationField(schema.DataSourceFHIRVersion, "fhir version is required when the data source has none")
	case requested == "":
		return source, nil
	case source != "" && requested != source:
		return "", errs.ValidationField(schema.DataSourceFHIRVersion, "fhir version %s does not match data source version %s", requested, source)
	default:
		return requested, nil
	}
}

// ReadResourcesByIDs returns the resources among ids that caller may see:
// those in its own data sources and those of granted classifications.
// Invisible or unknown ids are omitted.
func (s *Store) ReadResourcesByIDs(ctx context.Context, caller identity.Caller, ids []uuid.UUID) (out []Resource, err error) {
	defer s.observe("read_resources", time.Now(), &err)

	if len(ids) == 0 {
		return []Resource{}, nil
	}
	scope, err := identity.Resolve(s.oracle, caller, medical.Names())
	if err != nil {
		return nil, err
	}
	where := queryir.OneOf(resTable+"."+schema.UUID, uuidBytes(ids))
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		out, _, err = s.readResources(ctx, tx, caller, scope, where, 0)
		if err != nil {
			return err
		}
		return s.logResourceRead(ctx, tx, caller, scope, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadResources lists resources of one classification in row order with
// row-id page tokens.
func (s *Store) ReadResources(ctx context.Context, caller identity.Caller, req ReadResourcesRequest) (res ReadResourcesResult, err error) {
	defer s.observe("read_resources", time.Now(), &err)

	name := req.Classification.String()
	if _, err := medical.Parse(name); err != nil {
		return ReadResourcesResult{}, err
	}
	pageSize, err := s.pageSize(req.PageSize)
	if err != nil {
		return ReadResourcesResult{}, err
	}
	var preds []queryir.Predicate
	if req.PageToken != "" {
		tok, err := decodeRowToken(req.PageToken)
		if err != nil {
			return ReadResourcesResult{}, err
		}
		preds = append(preds, queryir.Gt(resTable+"."+schema.RowID, tok.LastRowID))
	}
	if len(req.DataSourceIDs) > 0 {
		preds = append(preds, queryir.InSubquery{
			Column: resTable + "." + schema.ResourceDataSourceRowID,
			Sub: queryir.Read(dsTable).
				Select(schema.RowID).
				Filter(queryir.OneOf(schema.UUID, uuidBytes(req.DataSourceIDs))),
		})
	}
	scope, err := identity.Resolve(s.oracle, caller, []string{name})
	if err != nil {
		return ReadResourcesResult{}, err
	}
	scope.SelfTypes = restrictSelf(scope, name)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		rows, rowIDs, err := s.readResources(ctx, tx, caller, scope, queryir.AllOf(preds...), pageSize+1)
		if err != nil {
			return err
		}
		if len(rows) > pageSize {
			rows = rows[:pageSize]
			res.NextPageToken = rowToken{LastRowID: rowIDs[pageSize-1]}.encode()
		}
		res.Resources = rows
		return s.logResourceRead(ctx, tx, caller, scope, rows)
	})
	if err != nil {
		return ReadResourcesResult{}, err
	}
	return res, nil
}

// restrictSelf limits the self leg of a classified listing to name.
func restrictSelf(scope identity.Scope, name string) []string {
	if scope.SelfTypes != nil {
		return scope.SelfTypes
	}
	return []string{name}
}

var resourceColumns = []string{
	resTable + "." + schema.RowID,
	resTable + "." + schema.UUID,
	resTable + "." + schema.ResourceType,
	resTable + "." + schema.ResourceID,
	resTable + "." + schema.ResourcePayload,
	resTable + "." + schema.ResourceVersion,
	resTable + "." + schema.LastModifiedTime,
	resTable + "." + schema.ResourceDataSourceRowID,
	idxTable + "." + schema.ResourceTypeClassification,
}

// readResources runs the visibility union over the resource table in row
// order. It returns the row id of each resource alongside it.
func (s *Store) readResources(ctx context.Context, tx *sql.Tx, caller identity.Caller, scope identity.Scope, where queryir.Predicate, limit int) ([]Resource, []int64, error) {
	appID, known, err := s.lookupApp(ctx, tx, caller.PackageName)
	if err != nil {
		return nil, nil, err
	}
	classified := func(values []int64) *queryir.Join {
		j := queryir.InnerJoin(idxTable, resTable+"."+schema.RowID, schema.ResourceRowID)
		if values != nil {
			j.WithFilter(queryir.OneOf(idxTable+"."+schema.ResourceTypeClassification, values))
		}
		return j
	}
	var legs []*queryir.ReadRequest
	if scope.Self && known {
		var selfValues []int64
		if scope.SelfTypes != nil {
			selfValues = classificationValues(scope.SelfTypes)
		}
		legs = append(legs, queryir.Read(resTable).
			Select(resourceColumns...).
			WithJoin(queryir.InnerJoin(dsTable, schema.ResourceDataSourceRowID, schema.RowID).
				WithFilter(queryir.Eq(dsTable+"."+schema.AppID, appID))).
			WithJoin(classified(selfValues)).
			Filter(where))
	}
	if granted := classificationValues(scope.AnyOwnerTypes); len(granted) > 0 {
		legs = append(legs, queryir.Read(resTable).
			Select(resourceColumns...).
			WithJoin(classified(granted)).
			Filter(where))
	}
	out := []Resource{}
	rowIDs := []int64{}
	if len(legs) == 0 {
		return out, rowIDs, nil
	}
	r := legs[0].Union(legs[1:]...).Order(resTable+"."+schema.RowID, false).WithLimit(limit)
	rows, err := s.query(ctx, tx, r)
	if err != nil {
		return nil, nil, err
	}
	dsIDs, err := s.dataSourceUUIDs(ctx, tx, rows)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range rows {
		res, err := decodeResource(row, dsIDs)
		if err != nil {
			return nil, nil, err
		}
		id, err := row.Int64(schema.RowID)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, res)
		rowIDs = append(rowIDs, id)
	}
	return out, rowIDs, nil
}

// logResourceRead logs the classifications returned by a read that could
// see other apps' resources.
func (s *Store) logResourceRead(ctx context.Context, q migrate.Querier, caller identity.Caller, scope identity.Scope, resources []Resource) error {
	if scope.SelfOnly() {
		return nil
	}
	classes := make(map[string]bool)
	for _, res := range resources {
		classes[res.Classification.String()] = true
	}
	return s.logAccess(ctx, q, caller.PackageName, AccessLog{MedicalResourceTypes: keys(classes), Operation: OperationRead})
}

// DeleteResources deletes resources in data sources owned by caller. Every
// id must exist and be owned by caller, or nothing is deleted.
func (s *Store) DeleteResources(ctx context.Context, caller identity.Caller, ids []uuid.UUID) (err error) {
	defer s.observe("delete_resources", time.Now(), &err)

	if !s.oracle.HasWritePermission(caller.PackageName) {
		return errs.Permission("%s has no write permission", caller.PackageName)
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return errs.ValidationField("ids", "at least one id is required")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		appID, _, err := s.lookupApp(ctx, tx, caller.PackageName)
		if err != nil {
			return err
		}
		match := queryir.OneOf(resTable+"."+schema.UUID, uuidBytes(ids))
		toDataSource := func() *queryir.Join {
			return queryir.InnerJoin(dsTable, schema.ResourceDataSourceRowID, schema.RowID)
		}
		rows, err := s.query(ctx, tx, queryir.Read(resTable).
			Select(resTable+"."+schema.UUID, dsTable+"."+schema.AppID).
			WithJoin(toDataSource()).
			Filter(match))
		if err != nil {
			return err
		}
		if err := checkTargets(ids, rows, schema.UUID, schema.AppID, appID); err != nil {
			return err
		}
		classes, err := s.resourceClassifications(ctx, tx, match)
		if err != nil {
			return err
		}
		n, err := s.delete(ctx, tx, &queryir.DeleteRequest{
			Table:    resTable,
			IDColumn: schema.RowID,
			SubSelect: queryir.Read(resTable).
				Select(resTable + "." + schema.RowID).
				WithJoin(toDataSource().WithFilter(queryir.Eq(dsTable+"."+schema.AppID, appID))).
				Filter(match),
		})
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return errs.Integrity("deleted %d resources, expected %d", n, len(ids))
		}
		return s.logAccess(ctx, tx, caller.PackageName, AccessLog{MedicalResourceTypes: classes, Operation: OperationDelete})
	})
}

func (s *Store) resourceClassifications(ctx context.Context, q migrate.Querier, match queryir.Predicate) ([]string, error) {
	r := queryir.Read(idxTable).
		Select(idxTable + "." + schema.ResourceTypeClassification).
		WithJoin(queryir.InnerJoin(resTable, schema.ResourceRowID, schema.RowID)).
		Filter(match)
	r.Distinct = true
	rows, err := s.query(ctx, q, r)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		c, err := row.Int64(schema.ResourceTypeClassification)
		if err != nil {
			return nil, err
		}
		out = append(out, medical.Classification(c).String())
	}
	sort.Strings(out)
	return out, nil
}

// dataSourceUUIDs maps the data source row ids referenced by rows to
// their uuids.
func (s *Store) dataSourceUUIDs(ctx context.Context, q migrate.Querier, rows []record.Row) (map[int64]uuid.UUID, error) {
	out := make(map[int64]uuid.UUID)
	if len(rows) == 0 {
		return out, nil
	}
	var rowIDs []int64
	for _, row := range rows {
		id, err := row.Int64(schema.ResourceDataSourceRowID)
		if err != nil {
			return nil, err
		}
		if _, seen := out[id]; !seen {
			out[id] = uuid.Nil
			rowIDs = append(rowIDs, id)
		}
	}
	dsRows, err := s.query(ctx, q, queryir.Read(dsTable).
		Select(schema.RowID, schema.UUID).
		Filter(queryir.OneOf(schema.RowID, rowIDs)))
	if err != nil {
		return nil, err
	}
	for _, row := range dsRows {
		id, err := row.Int64(schema.RowID)
		if err != nil {
			return nil, err
		}
		if out[id], err = row.UUID(schema.UUID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeResource(row record.Row, dsIDs map[int64]uuid.UUID) (Resource, error) {
	id, err := row.UUID(schema.UUID)
	if err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	dsRowID, err := row.Int64(schema.ResourceDataSourceRowID)
	if err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	class, err := row.Int64(schema.ResourceTypeClassification)
	if err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	modified, err := row.Int64(schema.LastModifiedTime)
	if err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	return Resource{
		ID:               id,
		DataSourceID:     dsIDs[dsRowID],
		Type:             row.String(schema.ResourceType),
		ResourceID:       row.String(schema.ResourceID),
		Classification:   medical.Classification(class),
		Payload:          row.String(schema.ResourcePayload),
		FHIRVersion:      row.String(schema.ResourceVersion),
		LastModifiedTime: modified,
	}, nil
}

func decodeDataSource(row record.Row) (DataSource, error) {
	id, err := row.UUID(schema.UUID)
	if err != nil {
		return DataSource{}, fmt.Errorf("decode data source: %w", err)
	}
	modified, err := row.Int64(schema.LastModifiedTime)
	if err != nil {
		return DataSource{}, fmt.Errorf("decode data source: %w", err)
	}
	return DataSource{
		ID:               id,
		PackageName:      row.String(schema.PackageName),
		DisplayName:      row.String(schema.DataSourceDisplayName),
		BaseURI:          row.String(schema.DataSourceBaseURI),
		FHIRVersion:      row.String(schema.DataSourceFHIRVersion),
		LastModifiedTime: modified,
	}, nil
}

// classificationValues converts permission names to stored classification
// values, skipping names that are not medical classifications.
func classificationValues(names []string) []int64 {
	out := []int64{}
	for _, n := range names {
		if c, err := medical.Parse(n); err == nil {
			out = append(out, int64(c))
		}
	}
	return out
}
