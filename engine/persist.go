package engine

import (
	"context"
	"time"

	"github.com/hatlonely/odb/kv/serializer"
	"github.com/hatlonely/odb/kv/store"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

const (
	schemaKey      = "schema"
	tableKeyPrefix = "table:"
)

type schemaData struct {
	Version uint64          `msgpack:"version" json:"version" bson:"version"`
	Tables  []*schema.Table `msgpack:"tables" json:"tables" bson:"tables"`
}

// columnData 一列的快照，每种类型的值只写入对应的切片
type columnData struct {
	Name    string    `msgpack:"name" json:"name" bson:"name"`
	Nulls   []bool    `msgpack:"nulls,omitempty" json:"nulls,omitempty" bson:"nulls,omitempty"`
	Ints    []int64   `msgpack:"ints,omitempty" json:"ints,omitempty" bson:"ints,omitempty"`
	Floats  []float64 `msgpack:"floats,omitempty" json:"floats,omitempty" bson:"floats,omitempty"`
	Strings []string  `msgpack:"strings,omitempty" json:"strings,omitempty" bson:"strings,omitempty"`
	Bytes   [][]byte  `msgpack:"bytes,omitempty" json:"bytes,omitempty" bson:"bytes,omitempty"`
	Lists   [][]int64 `msgpack:"lists,omitempty" json:"lists,omitempty" bson:"lists,omitempty"`
}

type tableData struct {
	Name    string       `msgpack:"name" json:"name" bson:"name"`
	Rows    int          `msgpack:"rows" json:"rows" bson:"rows"`
	Deleted []bool       `msgpack:"deleted,omitempty" json:"deleted,omitempty" bson:"deleted,omitempty"`
	Columns []columnData `msgpack:"columns" json:"columns" bson:"columns"`
}

// persister 把提交后的表写入 kv 存储
type persister struct {
	backend          store.Store[string, []byte]
	schemaSerializer serializer.Serializer[schemaData, []byte]
	tableSerializer  serializer.Serializer[tableData, []byte]
}

func newPersister(backend store.Store[string, []byte], codec string) (*persister, error) {
	schemaSerializer, err := serializer.NewByteSerializer[schemaData](codec)
	if err != nil {
		return nil, err
	}
	tableSerializer, err := serializer.NewByteSerializer[tableData](codec)
	if err != nil {
		return nil, err
	}
	return &persister{
		backend:          backend,
		schemaSerializer: schemaSerializer,
		tableSerializer:  tableSerializer,
	}, nil
}

// load 读取持久化的快照，存储为空时返回 nil
func (p *persister) load(ctx context.Context, s *schema.Schema) (*Snapshot, error) {
	data, err := p.backend.Get(ctx, schemaKey)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load schema failed")
	}
	stored, err := p.schemaSerializer.Deserialize(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode schema failed")
	}
	storedSchema, err := schema.FromTables(stored.Tables)
	if err != nil {
		return nil, errors.Wrap(err, "restore schema failed")
	}
	if !storedSchema.Equal(s) {
		return nil, errors.Wrapf(ErrSchemaMismatch, "stored tables %v, given tables %v", storedSchema.TableNames(), s.TableNames())
	}

	snap := newSnapshot(s)
	snap.version = stored.Version
	for _, def := range s.Tables() {
		data, err := p.backend.Get(ctx, tableKeyPrefix+def.Name)
		if errors.Is(err, store.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "load table %s failed", def.Name)
		}
		td, err := p.tableSerializer.Deserialize(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode table %s failed", def.Name)
		}
		t, err := decodeTable(def, &td)
		if err != nil {
			return nil, err
		}
		snap.tables[def.Name] = t
	}
	return snap, nil
}

// save 在一次批量写入中保存 schema 和修改过的表
func (p *persister) save(ctx context.Context, snap *Snapshot, version uint64, names []string) error {
	keys := make([]string, 0, len(names)+1)
	vals := make([][]byte, 0, len(names)+1)

	data, err := p.schemaSerializer.Serialize(schemaData{Version: version, Tables: snap.schema.Tables()})
	if err != nil {
		return errors.Wrap(err, "encode schema failed")
	}
	keys = append(keys, schemaKey)
	vals = append(vals, data)

	for _, name := range names {
		td := encodeTable(snap.tables[name])
		data, err := p.tableSerializer.Serialize(*td)
		if err != nil {
			return errors.Wrapf(err, "encode table %s failed", name)
		}
		keys = append(keys, tableKeyPrefix+name)
		vals = append(vals, data)
	}

	errs, err := p.backend.BatchSet(ctx, keys, vals)
	if err != nil {
		return errors.Wrap(err, "write snapshot failed")
	}
	for i, e := range errs {
		if e != nil {
			return errors.Wrapf(e, "write %s failed", keys[i])
		}
	}
	return nil
}

func encodeTable(t *table) *tableData {
	td := &tableData{
		Name:    t.def.Name,
		Rows:    t.rowCount(),
		Deleted: t.deleted,
		Columns: make([]columnData, len(t.columns)),
	}
	for i, col := range t.columns {
		c := t.def.Column(i)
		cd := columnData{Name: c.Name, Nulls: make([]bool, len(col))}
		for row, v := range col {
			cd.Nulls[row] = v == nil
			switch c.Kind {
			case schema.KindInteger, schema.KindObject:
				x, _ := v.(int64)
				cd.Ints = append(cd.Ints, x)
			case schema.KindBool:
				var x int64
				if b, _ := v.(bool); b {
					x = 1
				}
				cd.Ints = append(cd.Ints, x)
			case schema.KindDate:
				var x string
				if ts, ok := v.(time.Time); ok {
					x = ts.UTC().Format(time.RFC3339Nano)
				}
				cd.Strings = append(cd.Strings, x)
			case schema.KindFloat, schema.KindDouble:
				cd.Floats = append(cd.Floats, toFloat64(v))
			case schema.KindString:
				x, _ := v.(string)
				cd.Strings = append(cd.Strings, x)
			case schema.KindBinary:
				x, _ := v.([]byte)
				cd.Bytes = append(cd.Bytes, x)
			case schema.KindList:
				x, _ := v.([]int64)
				cd.Lists = append(cd.Lists, x)
			}
		}
		td.Columns[i] = cd
	}
	return td
}

func decodeTable(def *schema.Table, td *tableData) (*table, error) {
	if len(td.Columns) != def.NumColumns() {
		return nil, errors.Wrapf(ErrSchemaMismatch, "table %s has %d stored columns, expected %d", def.Name, len(td.Columns), def.NumColumns())
	}

	t := newTable(def)
	t.deleted = make([]bool, td.Rows)
	copy(t.deleted, td.Deleted)

	for i, cd := range td.Columns {
		c := def.Column(i)
		if cd.Name != c.Name {
			return nil, errors.Wrapf(ErrSchemaMismatch, "table %s column #%d is %s, expected %s", def.Name, i, cd.Name, c.Name)
		}
		col := make([]any, td.Rows)
		for row := 0; row < td.Rows; row++ {
			if row < len(cd.Nulls) && cd.Nulls[row] {
				continue
			}
			v, err := decodeValue(c.Kind, &cd, row)
			if err != nil {
				return nil, errors.Wrapf(err, "table %s column %s row %d", def.Name, c.Name, row)
			}
			col[row] = v
		}
		t.columns[i] = col
	}
	return t, nil
}

func decodeValue(kind schema.Kind, cd *columnData, row int) (any, error) {
	outOfRange := errors.Wrap(ErrInvalidValue, "stored column is truncated")
	switch kind {
	case schema.KindInteger, schema.KindObject, schema.KindBool:
		if row >= len(cd.Ints) {
			return nil, outOfRange
		}
		if kind == schema.KindBool {
			return cd.Ints[row] != 0, nil
		}
		return cd.Ints[row], nil
	case schema.KindDate:
		if row >= len(cd.Strings) {
			return nil, outOfRange
		}
		ts, err := time.Parse(time.RFC3339Nano, cd.Strings[row])
		if err != nil {
			return nil, errors.Wrap(ErrInvalidValue, err.Error())
		}
		return ts, nil
	case schema.KindFloat, schema.KindDouble:
		if row >= len(cd.Floats) {
			return nil, outOfRange
		}
		if kind == schema.KindFloat {
			return float32(cd.Floats[row]), nil
		}
		return cd.Floats[row], nil
	case schema.KindString:
		if row >= len(cd.Strings) {
			return nil, outOfRange
		}
		return cd.Strings[row], nil
	case schema.KindBinary:
		if row >= len(cd.Bytes) {
			return nil, outOfRange
		}
		return append([]byte{}, cd.Bytes[row]...), nil
	case schema.KindList:
		if row >= len(cd.Lists) {
			return []int64{}, nil
		}
		return append([]int64{}, cd.Lists[row]...), nil
	}
	return nil, errors.Wrapf(ErrInvalidValue, "unknown kind %s", kind)
}
