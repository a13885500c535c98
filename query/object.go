package query

import (
	"context"
	"reflect"

	"github.com/hatlonely/odb/engine"
	"github.com/hatlonely/odb/predicate"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// ObjectState 单个对象结果的生命周期
type ObjectState int

const (
	// Loaded 对象指向一行数据
	Loaded ObjectState = iota
	// Pending 异步查询尚未完成
	Pending
	// LoadedInvalid 查询已完成但没有匹配的行，或者会话在完成前关闭
	LoadedInvalid
)

func (s ObjectState) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Pending:
		return "pending"
	case LoadedInvalid:
		return "loaded-invalid"
	}
	return "unknown"
}

// Object 表中的一行。异步查询返回的对象在完成前处于 Pending 状态，
// 只会在所有者 goroutine 的事件循环上被重新绑定一次
type Object struct {
	session *Session
	table   string
	row     int
	state   ObjectState

	scope     engine.Scope
	node      predicate.Node
	listeners []func(*Object)
}

func newObject(s *Session, table string, row int) *Object {
	return &Object{session: s, table: table, row: row, state: Loaded}
}

func newInvalidObject(s *Session, table string) *Object {
	return &Object{session: s, table: table, row: -1, state: LoadedInvalid}
}

func newPendingObject(s *Session, scope engine.Scope, node predicate.Node) *Object {
	return &Object{session: s, table: scope.Table(), row: -1, state: Pending, scope: scope, node: node}
}

func (o *Object) Table() string {
	return o.table
}

func (o *Object) State() ObjectState {
	return o.state
}

// IsLoaded 异步查询已经完成，不论是否找到数据
func (o *Object) IsLoaded() bool {
	return o.state != Pending
}

// IsValid 对象指向的行仍然存在
func (o *Object) IsValid() bool {
	return o.readable() == nil
}

// Row 对象在表中的行号
func (o *Object) Row() (int, error) {
	if err := o.readable(); err != nil {
		return 0, err
	}
	return o.row, nil
}

// AddChangeListener 异步对象完成时在所有者 goroutine 上回调
func (o *Object) AddChangeListener(fn func(*Object)) {
	o.listeners = append(o.listeners, fn)
}

// Get 读取字段的值，只支持表本身的列；单对象链接返回行号
func (o *Object) Get(field string) (any, error) {
	snap, col, _, err := o.column(field)
	if err != nil {
		return nil, err
	}
	return snap.Value(o.table, o.row, col)
}

// GetObject 读取单对象链接，链接为空时返回 nil
func (o *Object) GetObject(field string) (*Object, error) {
	snap, col, kind, err := o.column(field)
	if err != nil {
		return nil, err
	}
	if kind != schema.KindObject {
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': type mismatch, was %s, expected %s", field, kind, schema.KindObject)
	}
	v, err := snap.Value(o.table, o.row, col)
	if err != nil || v == nil {
		return nil, err
	}
	return newObject(o.session, snap.Schema().LinkTarget(o.table, col), int(v.(int64))), nil
}

// GetList 读取多对象链接
func (o *Object) GetList(field string) (*List, error) {
	snap, col, kind, err := o.column(field)
	if err != nil {
		return nil, err
	}
	if kind != schema.KindList {
		return nil, errors.Wrapf(ErrTypeMismatch, "field '%s': type mismatch, was %s, expected %s", field, kind, schema.KindList)
	}
	return &List{
		owner:  o,
		field:  field,
		column: col,
		target: snap.Schema().LinkTarget(o.table, col),
	}, nil
}

// Scan 把对象的列复制到结构体，链接列跳过
func (o *Object) Scan(dest any) error {
	if err := o.readable(); err != nil {
		return err
	}
	snap, err := o.session.current()
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("scan destination must be a non-nil pointer, got %T", dest)
	}
	return scanRow(snap, o.table, o.row, rv.Elem())
}

// Load 立即在当前 goroutine 上完成 Pending 对象的查询
func (o *Object) Load(ctx context.Context) error {
	if o.state != Pending {
		return nil
	}
	snap, err := o.session.current()
	if err != nil {
		o.rebind(0, false)
		return nil
	}
	row, found, err := snap.Where(o.scope, o.node).Find()
	if err != nil {
		o.rebind(0, false)
		if errors.Is(err, engine.ErrDetached) {
			return nil
		}
		return err
	}
	o.rebind(row, found)
	return nil
}

// deliver 后台查询的结果，在所有者 goroutine 上执行
func (o *Object) deliver(row int, found bool, version uint64, err error) {
	if o.state != Pending {
		return
	}
	if err != nil || o.session.IsClosed() {
		o.rebind(0, false)
		return
	}
	// 后台查询之后有新的提交，结果需要在最新快照上重新计算
	if o.session.engine.Version() != version || o.session.engine.InTransaction() {
		if err := o.Load(context.Background()); err != nil {
			o.session.logger.Warn("reload pending object failed", "table", o.table, "error", err.Error())
		}
		return
	}
	o.rebind(row, found)
}

// rebind 只对 Pending 对象生效一次
func (o *Object) rebind(row int, found bool) {
	if o.state != Pending {
		return
	}
	if found {
		o.row, o.state = row, Loaded
	} else {
		o.row, o.state = -1, LoadedInvalid
	}
	o.scope, o.node = nil, nil
	o.session.untrack(o)
	for _, fn := range o.listeners {
		fn(o)
	}
}

func (o *Object) readable() error {
	switch o.state {
	case Pending:
		return errors.Wrapf(ErrNotYetLoaded, "table %s", o.table)
	case LoadedInvalid:
		return errors.Wrapf(ErrInvalidQueryState, "object of table %s is not valid", o.table)
	}
	snap, err := o.session.current()
	if err != nil {
		return err
	}
	if !snap.IsLive(o.table, o.row) {
		return errors.Wrapf(ErrInvalidQueryState, "table %s row %d was deleted", o.table, o.row)
	}
	return nil
}

func (o *Object) column(field string) (*engine.Snapshot, int, schema.Kind, error) {
	if err := o.readable(); err != nil {
		return nil, 0, "", err
	}
	col, kind, err := o.session.resolver.ResolveColumn(o.table, field)
	if err != nil {
		return nil, 0, "", err
	}
	snap, err := o.session.current()
	if err != nil {
		return nil, 0, "", err
	}
	return snap, col, kind, nil
}

// scanRow 按 odb tag 把一行数据写入结构体
func scanRow(snap *engine.Snapshot, table string, row int, dest reflect.Value) error {
	for dest.Kind() == reflect.Ptr {
		if dest.IsNil() {
			dest.Set(reflect.New(dest.Type().Elem()))
		}
		dest = dest.Elem()
	}
	if dest.Kind() != reflect.Struct {
		return errors.Errorf("scan destination must be a struct, got %v", dest.Type())
	}
	def, ok := snap.Schema().Table(table)
	if !ok {
		return errors.Wrapf(ErrInvalidQueryState, "table %s does not exist", table)
	}

	rt := dest.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := schema.ColumnName(field)
		if name == "" {
			continue
		}
		col, ok := def.ColumnIndex(name)
		if !ok || def.Column(col).Kind.IsLink() {
			continue
		}
		v, err := snap.Value(table, row, col)
		if err != nil {
			return err
		}
		if err := setField(dest.Field(i), v); err != nil {
			return errors.WithMessagef(err, "field %s", field.Name)
		}
	}
	return nil
}

func setField(fv reflect.Value, v any) error {
	if v == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if fv.Kind() == reflect.Ptr {
		elem := reflect.New(fv.Type().Elem())
		if err := setField(elem.Elem(), v); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}
	if (fv.Kind() == reflect.String) != (rv.Kind() == reflect.String) || !rv.Type().ConvertibleTo(fv.Type()) {
		return errors.Wrapf(ErrTypeMismatch, "cannot assign %T to %v", v, fv.Type())
	}
	fv.Set(rv.Convert(fv.Type()))
	return nil
}
