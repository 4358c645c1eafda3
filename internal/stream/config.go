package stream

import (
	"fmt"

	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	kyaml "github.com/knadh/koanf/parsers/yaml"
)

type rawDeclaration struct {
	Name       string         `conf:"name"`
	Type       string         `conf:"type"`
	Input      string         `conf:"input"`
	OutputPath string         `conf:"output_path"`
	Options    map[string]any `conf:"options"`
}

type document struct {
	Streams []rawDeclaration `conf:"streams"`
}

// Load reads the streams configuration file and returns the valid
// declarations, in file order.
//
// An unreadable or malformed document, or one without a `streams`
// sequence, is an error: the caller is expected to treat it as fatal.
// Individually invalid declarations are logged and skipped so that
// their siblings still start.
func Load(path string, log *zap.Logger) ([]Declaration, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("read streams config %s: %w", path, err)
	}

	if err := validateDocument(k.Raw()); err != nil {
		return nil, fmt.Errorf("invalid streams config %s: %w", path, err)
	}

	var doc document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "conf"}); err != nil {
		return nil, fmt.Errorf("parse streams config %s: %w", path, err)
	}

	decls := make([]Declaration, 0, len(doc.Streams))
	seen := make(map[string]struct{}, len(doc.Streams))

	for _, raw := range doc.Streams {
		decl := Declaration{
			Name:       raw.Name,
			Input:      raw.Input,
			OutputPath: raw.OutputPath,
			Options:    raw.Options,
		}

		sourceType, err := ParseSourceType(raw.Type)
		if err != nil {
			log.Error("skipping stream declaration",
				zap.String("stream", raw.Name),
				zap.Error(err),
			)
			continue
		}
		decl.Type = sourceType

		if err := decl.Validate(); err != nil {
			log.Error("skipping stream declaration", zap.Error(err))
			continue
		}

		if _, ok := seen[decl.Name]; ok {
			log.Error("skipping stream declaration with duplicate name",
				zap.String("stream", decl.Name),
			)
			continue
		}
		seen[decl.Name] = struct{}{}

		decls = append(decls, decl)
	}

	return decls, nil
}
