package staticstore

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	regmysql "svc-registry/mysql"
	"svc-registry/registry"
)

// staticServiceRow is the static_services table's row shape. Properties is
// stored as a JSON-encoded object rather than a side table, since the
// property set is small and never queried on directly.
type staticServiceRow struct {
	ID         string `db:"id"`
	NodeID     string `db:"node_id"`
	Type       string `db:"type"`
	Pool       string `db:"pool"`
	Location   string `db:"location"`
	Properties string `db:"properties"`
}

func (r staticServiceRow) toService() (registry.Service, error) {
	var props map[string]string
	if r.Properties != "" {
		if err := json.Unmarshal([]byte(r.Properties), &props); err != nil {
			return registry.Service{}, errors.Wrapf(err, "staticstore: decode properties for %q", r.ID)
		}
	}
	return registry.Service{
		ID:         registry.ServiceId(r.ID),
		NodeID:     registry.NodeId(r.NodeID),
		Type:       r.Type,
		Pool:       r.Pool,
		Location:   r.Location,
		Properties: props,
	}, nil
}

func rowFromService(svc registry.Service) (staticServiceRow, error) {
	props := ""
	if len(svc.Properties) > 0 {
		b, err := json.Marshal(svc.Properties)
		if err != nil {
			return staticServiceRow{}, errors.Wrap(err, "staticstore: encode properties")
		}
		props = string(b)
	}
	return staticServiceRow{
		ID:         string(svc.ID),
		NodeID:     string(svc.NodeID),
		Type:       svc.Type,
		Pool:       svc.Pool,
		Location:   svc.Location,
		Properties: props,
	}, nil
}

// MySQLStore is a StaticStore backed by a static_services table, built on
// the registry's own mysql query builder package.
type MySQLStore struct {
	db    *sqlx.DB
	table string
}

// NewMySQLStore wraps db, operating against the named table (default
// "static_services" when table is empty).
func NewMySQLStore(db *sqlx.DB, table string) *MySQLStore {
	if table == "" {
		table = "static_services"
	}
	return &MySQLStore{db: db, table: table}
}

func (s *MySQLStore) GetAll(ctx context.Context) ([]registry.Service, error) {
	rows, err := regmysql.SelectFrom[staticServiceRow](s.table).FetchAll(ctx, s.db)
	if err != nil {
		return nil, errors.Wrap(err, "staticstore: select all")
	}

	out := make([]registry.Service, 0, len(rows))
	for _, r := range rows {
		svc, err := r.toService()
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *MySQLStore) Put(ctx context.Context, svc registry.Service) error {
	row, err := rowFromService(svc)
	if err != nil {
		return err
	}

	if _, err := regmysql.DeleteFrom(s.table).Where(regmysql.Eq("id", row.ID)).Exec(ctx, s.db); err != nil {
		return errors.Wrap(err, "staticstore: replace (delete phase)")
	}

	insert := regmysql.InsertCond{Arg: []any{row.ID, row.NodeID, row.Type, row.Pool, row.Location, row.Properties}}
	if _, err := regmysql.InsertFrom(s.table).Values(&insert).Exec(ctx, s.db); err != nil {
		return errors.Wrap(err, "staticstore: replace (insert phase)")
	}

	return nil
}

func (s *MySQLStore) Delete(ctx context.Context, id registry.ServiceId) error {
	n, err := regmysql.DeleteFrom(s.table).Where(regmysql.Eq("id", string(id))).Exec(ctx, s.db)
	if err != nil {
		return errors.Wrap(err, "staticstore: delete")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
