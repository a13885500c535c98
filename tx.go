package odb

import (
	"context"
	"reflect"

	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// Tx 写事务，同一时刻只有一个
type Tx struct {
	db   *DB
	done bool
}

// BeginWrite 开始写事务，事务中的查询能看到未提交的修改
func (db *DB) BeginWrite() (*Tx, error) {
	if err := db.engine.BeginWrite(); err != nil {
		return nil, err
	}
	return &Tx{db: db}, nil
}

// Write 在写事务中执行 fn，fn 返回错误或 panic 时回滚
func (db *DB) Write(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.BeginWrite()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.WarnContext(ctx, "rollback failed", "error", rbErr.Error())
		}
		return err
	}
	return tx.Commit(ctx)
}

// Commit 提交并持久化，持久化失败时事务被回滚
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true
	return tx.db.engine.Commit(ctx)
}

func (tx *Tx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.db.engine.Rollback()
}

// Insert 插入一行，返回行号
func (tx *Tx) Insert(table string, values map[string]any) (int, error) {
	return tx.db.engine.Insert(table, values)
}

// InsertStruct 按 odb tag 插入结构体，链接字段需要通过 Set 或 AddLink 设置
func (tx *Tx) InsertStruct(v any) (int, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return 0, errors.New("cannot insert nil value")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return 0, errors.Errorf("InsertStruct requires a struct, got %T", v)
	}

	s := tx.db.engine.Schema()
	name, ok := s.TableFor(rv.Type())
	if !ok {
		return 0, errors.Errorf("type %v is not registered", rv.Type())
	}
	def, _ := s.Table(name)

	values := map[string]any{}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		column := schema.ColumnName(field)
		if column == "" {
			continue
		}
		col, ok := def.ColumnIndex(column)
		if !ok || def.Column(col).Kind.IsLink() {
			continue
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				values[column] = nil
				continue
			}
			fv = fv.Elem()
		}
		values[column] = fv.Interface()
	}
	return tx.db.engine.Insert(name, values)
}

// Set 修改一列，单对象链接的值为目标行号或 nil
func (tx *Tx) Set(table string, row int, column string, value any) error {
	return tx.db.engine.Set(table, row, column, value)
}

// AddLink 向多对象链接追加目标行
func (tx *Tx) AddLink(table string, row int, column string, target int) error {
	return tx.db.engine.AddLink(table, row, column, target)
}

// Delete 删除一行，指向它的链接被置空或从列表中移除
func (tx *Tx) Delete(table string, row int) error {
	return tx.db.engine.Delete(table, row)
}
