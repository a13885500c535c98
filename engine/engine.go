package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/hatlonely/odb/kv/store"
	"github.com/hatlonely/odb/log"
	"github.com/hatlonely/odb/log/logger"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

type Options struct {
	// 快照编码：msgpack, json, bson
	Codec string `cfg:"codec" def:"msgpack" validate:"omitempty,oneof=msgpack json bson"`
}

// Engine 单写多读的内存列存储。读者拿到的已提交快照不会再被修改，
// 写事务在私有快照上进行，提交时替换已提交快照并写入持久化存储
type Engine struct {
	schema    *schema.Schema
	persister *persister
	logger    logger.Logger

	mu        sync.RWMutex
	committed *Snapshot
	working   *Snapshot
	closed    bool
}

// New 创建引擎，backend 为 nil 时不做持久化；backend 中已有数据时加载最近一次提交
func New(ctx context.Context, s *schema.Schema, backend store.Store[string, []byte], options *Options, l logger.Logger) (*Engine, error) {
	if s == nil {
		return nil, errors.New("schema cannot be nil")
	}
	if options == nil {
		options = &Options{}
	}
	if l == nil {
		l = log.Default()
	}

	e := &Engine{
		schema:    s,
		logger:    l,
		committed: newSnapshot(s),
	}
	if backend == nil {
		return e, nil
	}

	p, err := newPersister(backend, options.Codec)
	if err != nil {
		return nil, errors.WithMessage(err, "create persister failed")
	}
	snap, err := p.load(ctx, s)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		e.committed = snap
		l.InfoContext(ctx, "engine loaded", "version", snap.version, "tables", len(snap.tables))
	}
	e.persister = p
	return e, nil
}

func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Committed 最近一次提交的快照
func (e *Engine) Committed() (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.committed, nil
}

// Current 写事务中返回事务快照，否则返回已提交快照
func (e *Engine) Current() (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.working != nil {
		return e.working, nil
	}
	return e.committed, nil
}

func (e *Engine) InTransaction() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.working != nil
}

func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.committed.version
}

// BeginWrite 开始写事务，同一时间只允许一个写事务
func (e *Engine) BeginWrite() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.working != nil {
		return ErrInTransaction
	}
	e.working = e.committed.begin()
	return nil
}

// Commit 持久化修改过的表并发布新版本，持久化失败时事务回滚
func (e *Engine) Commit(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	w := e.working
	if w == nil {
		return ErrNoTransaction
	}
	e.working = nil

	names := make([]string, 0, len(w.dirty))
	for name := range w.dirty {
		names = append(names, name)
	}
	sort.Strings(names)

	version := w.version + 1
	if e.persister != nil {
		if err := e.persister.save(ctx, w, version, names); err != nil {
			e.logger.ErrorContext(ctx, "commit failed, transaction rolled back", "version", version, "error", err)
			return errors.WithMessage(err, "commit failed")
		}
	}

	w.version = version
	w.dirty = nil
	e.committed = w
	e.logger.DebugContext(ctx, "transaction committed", "version", version, "tables", names)
	return nil
}

// Rollback 丢弃写事务中的修改
func (e *Engine) Rollback() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.working == nil {
		return ErrNoTransaction
	}
	e.working = nil
	return nil
}

// Insert 插入一行，未给出的列取零值，返回新行号
func (e *Engine) Insert(name string, values map[string]any) (int, error) {
	w, err := e.writable()
	if err != nil {
		return 0, err
	}
	def, ok := e.schema.Table(name)
	if !ok {
		return 0, errors.Wrapf(ErrTableNotFound, "table %s", name)
	}
	for column := range values {
		if _, ok := def.ColumnIndex(column); !ok {
			return 0, errors.Wrapf(ErrColumnNotFound, "table %s column %s", name, column)
		}
	}

	row := make([]any, def.NumColumns())
	for i, c := range def.Columns {
		v, given := values[c.Name]
		if !given {
			if !c.Nullable {
				row[i] = zeroValue(c.Kind)
			}
			continue
		}
		if row[i], err = e.checkValue(w, def, c, v); err != nil {
			return 0, err
		}
	}

	t, err := w.mutable(name)
	if err != nil {
		return 0, err
	}
	for i := range t.columns {
		t.columns[i] = append(t.columns[i], row[i])
	}
	t.deleted = append(t.deleted, false)
	return t.rowCount() - 1, nil
}

// Set 修改一个单元格
func (e *Engine) Set(name string, row int, column string, value any) error {
	w, err := e.writable()
	if err != nil {
		return err
	}
	def, col, err := e.column(name, column)
	if err != nil {
		return err
	}
	if !w.IsLive(name, row) {
		return errors.Wrapf(ErrRowNotFound, "table %s row %d", name, row)
	}
	v, err := e.checkValue(w, def, def.Column(col), value)
	if err != nil {
		return err
	}
	t, err := w.mutable(name)
	if err != nil {
		return err
	}
	t.columns[col][row] = v
	return nil
}

// AddLink 在多对象链接列末尾追加目标行
func (e *Engine) AddLink(name string, row int, column string, target int) error {
	w, err := e.writable()
	if err != nil {
		return err
	}
	def, col, err := e.column(name, column)
	if err != nil {
		return err
	}
	c := def.Column(col)
	if c.Kind != schema.KindList {
		return errors.Wrapf(ErrInvalidValue, "column %s.%s is not a list", name, column)
	}
	if !w.IsLive(name, row) {
		return errors.Wrapf(ErrRowNotFound, "table %s row %d", name, row)
	}
	if !w.IsLive(c.Target, target) {
		return errors.Wrapf(ErrRowNotFound, "table %s row %d", c.Target, target)
	}
	t, err := w.mutable(name)
	if err != nil {
		return err
	}
	links, _ := t.columns[col][row].([]int64)
	// 共享的列表不可原地修改
	next := make([]int64, len(links), len(links)+1)
	copy(next, links)
	t.columns[col][row] = append(next, int64(target))
	return nil
}

// Delete 删除一行，并清除其他表中指向该行的链接
func (e *Engine) Delete(name string, row int) error {
	w, err := e.writable()
	if err != nil {
		return err
	}
	if _, ok := e.schema.Table(name); !ok {
		return errors.Wrapf(ErrTableNotFound, "table %s", name)
	}
	if !w.IsLive(name, row) {
		return errors.Wrapf(ErrRowNotFound, "table %s row %d", name, row)
	}
	t, err := w.mutable(name)
	if err != nil {
		return err
	}
	t.deleted[row] = true

	for _, def := range e.schema.Tables() {
		for i, c := range def.Columns {
			if c.Target != name {
				continue
			}
			if err := e.unlink(w, def.Name, i, c.Kind, int64(row)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) unlink(w *Snapshot, name string, col int, kind schema.Kind, row int64) error {
	src, err := w.table(name)
	if err != nil {
		return err
	}
	var t *table
	for r, v := range src.columns[col] {
		var next any
		switch links := v.(type) {
		case int64:
			if kind != schema.KindObject || links != row {
				continue
			}
		case []int64:
			kept := make([]int64, 0, len(links))
			for _, l := range links {
				if l != row {
					kept = append(kept, l)
				}
			}
			if len(kept) == len(links) {
				continue
			}
			next = kept
		default:
			continue
		}
		if t == nil {
			if t, err = w.mutable(name); err != nil {
				return err
			}
		}
		t.columns[col][r] = next
	}
	return nil
}

// Close 丢弃未提交的写事务，之后的读写返回 ErrClosed
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.working = nil
	return nil
}

func (e *Engine) writable() (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	if e.working == nil {
		return nil, ErrNoTransaction
	}
	return e.working, nil
}

func (e *Engine) column(name, column string) (*schema.Table, int, error) {
	def, ok := e.schema.Table(name)
	if !ok {
		return nil, 0, errors.Wrapf(ErrTableNotFound, "table %s", name)
	}
	col, ok := def.ColumnIndex(column)
	if !ok {
		return nil, 0, errors.Wrapf(ErrColumnNotFound, "table %s column %s", name, column)
	}
	return def, col, nil
}

func (e *Engine) checkValue(w *Snapshot, def *schema.Table, c schema.Column, v any) (any, error) {
	nv, err := Normalize(c.Kind, v)
	if err != nil {
		return nil, errors.WithMessagef(err, "table %s column %s", def.Name, c.Name)
	}
	if nv == nil {
		if c.Kind == schema.KindList {
			return []int64{}, nil
		}
		if !c.Nullable {
			return nil, errors.Wrapf(ErrNullValue, "table %s column %s", def.Name, c.Name)
		}
		return nil, nil
	}

	switch c.Kind {
	case schema.KindObject:
		if target := int(nv.(int64)); !w.IsLive(c.Target, target) {
			return nil, errors.Wrapf(ErrRowNotFound, "table %s row %d", c.Target, target)
		}
	case schema.KindList:
		for _, target := range nv.([]int64) {
			if !w.IsLive(c.Target, int(target)) {
				return nil, errors.Wrapf(ErrRowNotFound, "table %s row %d", c.Target, target)
			}
		}
	}
	return nv, nil
}
