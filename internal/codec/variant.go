package codec

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/postpub/internal/foundation/errors"
)

// Required holds the metadata every post must carry.
type Required struct {
	IsDraft    bool
	Title      string
	Tags       []string
	Categories []string
}

// Variant extracts required fields from parsed metadata. Variants may
// diverge in the metadata shapes they accept.
type Variant interface {
	Name() string
	ExtractRequired(meta map[string]any) (Required, error)
}

// GenericVariant reads the plain postpub metadata keys.
type GenericVariant struct{}

func (GenericVariant) Name() string { return "generic" }

func (GenericVariant) ExtractRequired(meta map[string]any) (Required, error) {
	return extractRequired(meta)
}

// HugoVariant reads metadata written for Hugo sites.
type HugoVariant struct{}

func (HugoVariant) Name() string { return "hugo" }

func (HugoVariant) ExtractRequired(meta map[string]any) (Required, error) {
	return extractRequired(meta)
}

// VariantByName maps a configuration value to a Variant.
func VariantByName(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "generic":
		return GenericVariant{}, nil
	case "hugo":
		return HugoVariant{}, nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown codec variant %q", name)).Build()
	}
}

// requiredKeys is the order in which missing keys are reported.
var requiredKeys = []string{"is_draft", "title", "tags", "categories"}

func extractRequired(meta map[string]any) (Required, error) {
	for _, key := range requiredKeys {
		if _, ok := meta[key]; !ok {
			return Required{}, missingKey(key)
		}
	}

	var req Required
	isDraft, ok := meta["is_draft"].(bool)
	if !ok {
		return Required{}, invalidKey("is_draft")
	}
	req.IsDraft = isDraft

	title, ok := meta["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return Required{}, invalidKey("title")
	}
	req.Title = title

	if req.Tags, ok = stringList(meta["tags"]); !ok {
		return Required{}, invalidKey("tags")
	}
	if req.Categories, ok = stringList(meta["categories"]); !ok {
		return Required{}, invalidKey("categories")
	}
	return req, nil
}

func missingKey(key string) *errors.ClassifiedError {
	return errors.DecodeError(fmt.Sprintf("'%s' key is missing.", key)).WithContext("key", key).Build()
}

func invalidKey(key string) *errors.ClassifiedError {
	return errors.DecodeError(fmt.Sprintf("'%s' key is invalid.", key)).WithContext("key", key).Build()
}

func stringList(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...), true
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
