package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/hatlonely/odb/kv/store"
	"github.com/hatlonely/odb/schema"
	"github.com/pkg/errors"
)

// Resolver 将点号分隔的字段路径解析为列序号序列
type Resolver struct {
	view  schema.View
	cache *store.FreeCacheStore[string, schema.FieldPath]
}

// NewResolver cacheSize 为缓存字节数，0 表示不缓存
func NewResolver(view schema.View, cacheSize int) (*Resolver, error) {
	r := &Resolver{view: view}
	if cacheSize <= 0 {
		return r, nil
	}
	cache, err := store.NewFreeCacheStoreWithOptions[string, schema.FieldPath](&store.FreeCacheStoreOptions{
		Size:     cacheSize,
		KeyCodec: "raw",
		ValCodec: "msgpack",
	})
	if err != nil {
		return nil, errors.WithMessage(err, "create path cache failed")
	}
	r.cache = cache
	return r, nil
}

// Resolve 解析 table 上的字段路径。expected 非空时终点列的类型必须属于其中之一
func (r *Resolver) Resolve(table, path string, expected ...schema.Kind) (schema.FieldPath, error) {
	fp, err := r.lookup(table, path)
	if err != nil {
		return schema.FieldPath{}, err
	}
	if err := checkKind(fp, expected); err != nil {
		return schema.FieldPath{}, err
	}
	return fp, nil
}

// ResolveColumn 只在 table 本身查找列，不支持跨链接
func (r *Resolver) ResolveColumn(table, name string, expected ...schema.Kind) (int, schema.Kind, error) {
	if strings.Contains(name, ".") {
		return 0, "", errors.Wrapf(ErrFieldNotFound, "%s: link paths are not supported here", name)
	}
	fp, err := r.Resolve(table, name, expected...)
	if err != nil {
		return 0, "", err
	}
	hop := fp.Terminal()
	return hop.Column, hop.Kind, nil
}

func (r *Resolver) lookup(table, path string) (schema.FieldPath, error) {
	if r.cache == nil {
		return r.walk(table, path)
	}

	ctx := context.Background()
	key := table + "\x00" + path
	if fp, err := r.cache.Get(ctx, key); err == nil {
		return fp, nil
	}
	fp, err := r.walk(table, path)
	if err != nil {
		return fp, err
	}
	// 缓存写入失败不影响解析结果
	_ = r.cache.Set(ctx, key, fp)
	return fp, nil
}

func (r *Resolver) walk(table, path string) (schema.FieldPath, error) {
	if !r.view.HasTable(table) {
		return schema.FieldPath{}, errors.Wrapf(ErrInvalidQueryState, "table %s does not exist", table)
	}
	if path == "" {
		return schema.FieldPath{}, errors.Wrap(ErrFieldNotFound, "empty field name")
	}

	names := strings.Split(path, ".")
	fp := schema.FieldPath{Name: path, Hops: make([]schema.Hop, 0, len(names))}
	current := table
	for i, name := range names {
		col, ok := r.view.ColumnIndex(current, name)
		if !ok {
			return schema.FieldPath{}, errors.Wrapf(ErrFieldNotFound, "field '%s' does not exist in table %s (path %s)", name, current, path)
		}
		kind := r.view.ColumnKind(current, col)
		fp.Hops = append(fp.Hops, schema.Hop{Table: current, Name: name, Column: col, Kind: kind})
		if i == len(names)-1 {
			break
		}
		if !kind.IsLink() {
			return schema.FieldPath{}, errors.Wrapf(ErrInvalidLinkPath, "'%s' in %s is a %s, not a link", name, path, kind)
		}
		current = r.view.LinkTarget(current, col)
	}
	return fp, nil
}

func checkKind(fp schema.FieldPath, expected []schema.Kind) error {
	if len(expected) == 0 {
		return nil
	}
	actual := fp.Terminal().Kind
	for _, k := range expected {
		if k == actual {
			return nil
		}
	}
	return errors.Wrapf(ErrTypeMismatch, "field '%s': type mismatch, was %s, expected %s", fp, actual, kindList(expected))
}

func kindList(kinds []schema.Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	}
	return fmt.Sprintf("%s or %s", strings.Join(names[:len(names)-1], ", "), names[len(names)-1])
}
