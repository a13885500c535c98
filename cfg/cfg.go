package cfg

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// 支持的配置格式
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatTOML = "toml"
	FormatINI  = "ini"
)

// Load 读取配置文件到 v，格式由文件扩展名决定
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s failed", path)
	}
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	return Decode(data, format, v)
}

// FormatOf 根据文件扩展名推断配置格式
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".ini", ".conf":
		return FormatINI, nil
	}
	return "", errors.Errorf("unsupported config file %s", path)
}

// Decode 解析配置数据到 v
//
// 先根据 def tag 填充默认值，再用配置中出现的字段覆盖，最后根据 validate tag 校验。
// 字段名取 cfg tag，其次 json、yaml tag，匹配时忽略大小写
func Decode(data []byte, format string, v any) error {
	if err := SetDefaults(v); err != nil {
		return err
	}

	src, err := parse(data, format)
	if err != nil {
		return err
	}
	if src != nil {
		if err := convertValue(src, reflectValue(v)); err != nil {
			return errors.WithMessage(err, "convert config failed")
		}
	}
	return Validate(v)
}

func parse(data []byte, format string) (any, error) {
	var result any
	switch strings.ToLower(format) {
	case FormatYAML, "yml":
		if err := yaml.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "decode yaml failed")
		}
	case FormatJSON:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, nil
		}
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, errors.Wrap(err, "decode json failed")
		}
	case FormatTOML:
		m := map[string]any{}
		if _, err := toml.Decode(string(data), &m); err != nil {
			return nil, errors.Wrap(err, "decode toml failed")
		}
		result = m
	case FormatINI:
		return parseINI(data)
	default:
		return nil, errors.Errorf("unsupported config format %s", format)
	}
	return result, nil
}

// parseINI 段名作为一级键，键名中的点号展开为嵌套结构
func parseINI(data []byte) (any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "decode ini failed")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if name := section.Name(); name != ini.DefaultSection {
			target = nested(result, strings.Split(name, "."))
		}
		for _, key := range section.Keys() {
			parts := strings.Split(key.Name(), ".")
			nested(target, parts[:len(parts)-1])[parts[len(parts)-1]] = parseINIValue(key.String())
		}
	}
	return result, nil
}

func nested(m map[string]any, keys []string) map[string]any {
	for _, key := range keys {
		next, ok := m[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[key] = next
		}
		m = next
	}
	return m
}

func parseINIValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
