package store

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/logger"
	"github.com/ppiankov/lifespan/internal/record"
)

// GraphDriver is the slice of a Bolt driver the graph store needs
type GraphDriver interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error)
	BuildIndices(ctx context.Context) error
	Close(ctx context.Context) error
}

// BoltDriver talks to Neo4j or Memgraph over Bolt
type BoltDriver struct {
	driver neo4j.DriverWithContext
	log    *zap.SugaredLogger
}

// NewBoltDriver connects and verifies connectivity
func NewBoltDriver(ctx context.Context, uri, username, password string, log *zap.SugaredLogger) (*BoltDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.Wrap(err, "create bolt driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.Wrapf(err, "connect to %s", uri)
	}
	log = logger.Or(log)
	log.Infow("Connected to graph database", logger.FieldSource, uri)
	return &BoltDriver{driver: driver, log: log}, nil
}

func (d *BoltDriver) ExecuteQuery(ctx context.Context, query string, params map[string]any) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, errors.Wrap(err, "execute query")
	}
	return *result, nil
}

// BuildIndices creates the handle indices. Failures are logged, since the
// index may already exist under another name.
func (d *BoltDriver) BuildIndices(ctx context.Context) error {
	for _, q := range graphIndices {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			d.log.Warnw("Index creation failed", "query", q, logger.FieldError, err)
		}
	}
	return nil
}

func (d *BoltDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

var graphIndices = []string{
	"CREATE INDEX person_handle IF NOT EXISTS FOR (n:Person) ON (n.handle)",
	"CREATE INDEX family_handle IF NOT EXISTS FOR (n:Family) ON (n.handle)",
	"CREATE INDEX event_handle IF NOT EXISTS FOR (n:Event) ON (n.handle)",
}

const (
	queryPerson  = `MATCH (n:Person {handle: $handle}) RETURN n LIMIT 1`
	queryFamily  = `MATCH (n:Family {handle: $handle}) RETURN n LIMIT 1`
	queryEvent   = `MATCH (n:Event {handle: $handle}) RETURN n LIMIT 1`
	queryHandles = `MATCH (n:Person) RETURN n.handle AS handle ORDER BY handle`

	mergePerson = `MERGE (n:Person {handle: $handle}) SET n += $props`
	mergeFamily = `MERGE (n:Family {handle: $handle}) SET n += $props`
	mergeEvent  = `MERGE (n:Event {handle: $handle}) SET n += $props`
	linkParent  = `MATCH (p:Person {handle: $person}), (f:Family {handle: $family}) MERGE (p)-[:PARENT_IN]->(f)`
	linkChild   = `MATCH (p:Person {handle: $person}), (f:Family {handle: $family}) MERGE (p)-[:CHILD_OF]->(f)`
)

// Graph serves records stored as nodes in Neo4j or Memgraph. Reference
// lists are kept as parallel list properties on each node so a record is
// one lookup; Import also creates PARENT_IN and CHILD_OF relationships for
// browsing the graph.
type Graph struct {
	driver GraphDriver
	log    *zap.SugaredLogger
}

// NewGraph wraps a driver
func NewGraph(driver GraphDriver, log *zap.SugaredLogger) *Graph {
	return &Graph{driver: driver, log: logger.Or(log)}
}

// Close closes the driver
func (g *Graph) Close() error {
	return g.driver.Close(context.Background())
}

func (g *Graph) node(ctx context.Context, kind, query, handle string) (map[string]any, error) {
	res, err := g.driver.ExecuteQuery(ctx, query, map[string]any{"handle": handle})
	if err != nil {
		return nil, errors.Wrapf(err, "query %s %s", kind, handle)
	}
	if len(res.Records) == 0 {
		return nil, record.NotFound(kind, handle)
	}
	v, ok := res.Records[0].Get("n")
	if !ok {
		return nil, errors.Newf("query %s %s: no node column", kind, handle)
	}
	n, ok := v.(neo4j.Node)
	if !ok {
		return nil, errors.Newf("query %s %s: unexpected %T", kind, handle, v)
	}
	return n.Props, nil
}

func (g *Graph) Person(ctx context.Context, handle string) (*record.Person, error) {
	props, err := g.node(ctx, "person", queryPerson, handle)
	if err != nil {
		return nil, err
	}
	return &record.Person{
		Handle:         handle,
		Name:           record.Name{Given: propString(props, "given"), Surname: propString(props, "surname")},
		Birth:          propRef(props, "birth"),
		Death:          propRef(props, "death"),
		Events:         propRefs(props, "event_handles", "event_roles"),
		ParentFamilies: propStrings(props, "parent_families"),
		Families:       propStrings(props, "families"),
	}, nil
}

func (g *Graph) Family(ctx context.Context, handle string) (*record.Family, error) {
	props, err := g.node(ctx, "family", queryFamily, handle)
	if err != nil {
		return nil, err
	}
	return &record.Family{
		Handle:   handle,
		Father:   propString(props, "father"),
		Mother:   propString(props, "mother"),
		Children: propStrings(props, "children"),
		Events:   propRefs(props, "event_handles", "event_roles"),
	}, nil
}

func (g *Graph) Event(ctx context.Context, handle string) (*record.Event, error) {
	props, err := g.node(ctx, "event", queryEvent, handle)
	if err != nil {
		return nil, err
	}
	ev := &record.Event{
		Handle:      handle,
		Type:        record.EventType(propString(props, "type")).Normalize(),
		Description: propString(props, "description"),
	}
	if ev.Date, err = date.Parse(propString(props, "date")); err != nil {
		g.log.Debugw("Unparseable event date", logger.FieldHandle, handle)
		ev.Date = date.Date{}
	}
	return ev, nil
}

// PersonHandles implements record.Lister
func (g *Graph) PersonHandles(ctx context.Context) ([]string, error) {
	res, err := g.driver.ExecuteQuery(ctx, queryHandles, nil)
	if err != nil {
		return nil, errors.Wrap(err, "list persons")
	}
	handles := make([]string, 0, len(res.Records))
	for _, rec := range res.Records {
		if v, ok := rec.Get("handle"); ok {
			if h, ok := v.(string); ok {
				handles = append(handles, h)
			}
		}
	}
	return handles, nil
}

// Import merges every record of tree into the graph
func (g *Graph) Import(ctx context.Context, tree Tree) error {
	if err := g.driver.BuildIndices(ctx); err != nil {
		return errors.Wrap(err, "build indices")
	}

	for i := range tree.Events {
		ev := &tree.Events[i]
		props := map[string]any{
			"type":        string(ev.Type.Normalize()),
			"date":        ev.Date.String(),
			"description": ev.Description,
		}
		if err := g.exec(ctx, mergeEvent, map[string]any{"handle": ev.Handle, "props": props}); err != nil {
			return errors.Wrapf(err, "merge event %s", ev.Handle)
		}
	}
	for i := range tree.Persons {
		p := &tree.Persons[i]
		handles, roles := splitRefs(p.Events)
		props := map[string]any{
			"given":           p.Name.Given,
			"surname":         p.Name.Surname,
			"birth":           refString(p.Birth),
			"birth_role":      refRole(p.Birth),
			"death":           refString(p.Death),
			"death_role":      refRole(p.Death),
			"event_handles":   handles,
			"event_roles":     roles,
			"parent_families": nonNil(p.ParentFamilies),
			"families":        nonNil(p.Families),
		}
		if err := g.exec(ctx, mergePerson, map[string]any{"handle": p.Handle, "props": props}); err != nil {
			return errors.Wrapf(err, "merge person %s", p.Handle)
		}
	}
	for i := range tree.Families {
		f := &tree.Families[i]
		handles, roles := splitRefs(f.Events)
		props := map[string]any{
			"father":        f.Father,
			"mother":        f.Mother,
			"children":      nonNil(f.Children),
			"event_handles": handles,
			"event_roles":   roles,
		}
		if err := g.exec(ctx, mergeFamily, map[string]any{"handle": f.Handle, "props": props}); err != nil {
			return errors.Wrapf(err, "merge family %s", f.Handle)
		}
		for _, parent := range []string{f.Father, f.Mother} {
			if parent == "" {
				continue
			}
			if err := g.exec(ctx, linkParent, map[string]any{"person": parent, "family": f.Handle}); err != nil {
				return errors.Wrapf(err, "link parent %s", parent)
			}
		}
		for _, child := range f.Children {
			if err := g.exec(ctx, linkChild, map[string]any{"person": child, "family": f.Handle}); err != nil {
				return errors.Wrapf(err, "link child %s", child)
			}
		}
	}

	g.log.Infow("Imported tree into graph",
		logger.FieldCount, len(tree.Persons),
		"families", len(tree.Families),
		"events", len(tree.Events))
	return nil
}

func (g *Graph) exec(ctx context.Context, query string, params map[string]any) error {
	_, err := g.driver.ExecuteQuery(ctx, query, params)
	return err
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propStrings(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		if len(v) == 0 {
			return nil
		}
		return append([]string(nil), v...)
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func propRef(props map[string]any, key string) *record.EventRef {
	h := propString(props, key)
	if h == "" {
		return nil
	}
	return &record.EventRef{Handle: h, Role: record.Role(propString(props, key+"_role"))}
}

func propRefs(props map[string]any, handlesKey, rolesKey string) []record.EventRef {
	handles := propStrings(props, handlesKey)
	roles := propStrings(props, rolesKey)
	var out []record.EventRef
	for i, h := range handles {
		ref := record.EventRef{Handle: h}
		if i < len(roles) {
			ref.Role = record.Role(roles[i])
		}
		out = append(out, ref)
	}
	return out
}

func splitRefs(refs []record.EventRef) (handles, roles []string) {
	handles = make([]string, 0, len(refs))
	roles = make([]string, 0, len(refs))
	for _, r := range refs {
		handles = append(handles, r.Handle)
		roles = append(roles, string(r.Role))
	}
	return handles, roles
}

func refString(ref *record.EventRef) string {
	if ref == nil {
		return ""
	}
	return ref.Handle
}

func refRole(ref *record.EventRef) string {
	if ref == nil {
		return ""
	}
	return string(ref.Role)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
